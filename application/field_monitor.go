package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMonitorStaleAfter     = 30 * time.Second
	DefaultMonitorReportInterval = 10 * time.Second
)

// NodeSnapshot is what the monitor last heard from one node.
type NodeSnapshot struct {
	NodeID     string
	Telemetry  *TelemetryMessage
	Status     string
	Uptime     int64
	LastSeen   time.Time
	StatusSeen time.Time
}

type FieldMonitorParams struct {
	MQTTClient MQTTClient
	BaseTopic  string

	StaleAfter     time.Duration
	ReportInterval time.Duration
	Clock          Clock

	Log zerolog.Logger
}

func (p *FieldMonitorParams) EnsureDefaults() {
	if p.StaleAfter == 0 {
		p.StaleAfter = DefaultMonitorStaleAfter
	}
	if p.ReportInterval == 0 {
		p.ReportInterval = DefaultMonitorReportInterval
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
}

// FieldMonitor follows the data and status topics of every node under a
// base topic and keeps the latest state of each.
type FieldMonitor struct {
	params FieldMonitorParams
	base   string

	mu    sync.Mutex
	nodes map[string]*NodeSnapshot

	log zerolog.Logger
}

func NewFieldMonitor(params FieldMonitorParams) (*FieldMonitor, error) {
	if params.MQTTClient == nil {
		return nil, fmt.Errorf("MQTTClient is nil")
	}
	if params.BaseTopic == "" {
		return nil, fmt.Errorf("base topic is empty")
	}
	params.EnsureDefaults()

	return &FieldMonitor{
		params: params,
		base:   strings.TrimSuffix(params.BaseTopic, "/"),
		nodes:  map[string]*NodeSnapshot{},
		log:    params.Log,
	}, nil
}

// Subscribe registers the data and status subscriptions. It must be
// called again after every new broker session.
func (m *FieldMonitor) Subscribe() error {
	for _, topic := range []string{m.base + "/+", m.base + "/+/status"} {
		if err := m.params.MQTTClient.Subscribe(topic, 0, m.HandleMessage); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		m.log.Info().Str("topic", topic).Msg("subscribed")
	}
	return nil
}

func (m *FieldMonitor) HandleMessage(msg MQTTMessage) {
	rest, ok := strings.CutPrefix(msg.Topic(), m.base+"/")
	if !ok {
		return
	}
	now := m.params.Clock.Now()

	switch parts := strings.Split(rest, "/"); {
	case len(parts) == 1 && isReservedSegment(parts[0]):
		// status or control of a node publishing on the base topic itself
		m.log.Debug().Str("topic", msg.Topic()).Msg("ignoring base topic channel")

	case len(parts) == 1:
		t, err := ParseTelemetry(msg.Payload())
		if err != nil {
			m.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("failed to parse telemetry")
			return
		}
		nodeID := t.NodeID
		if nodeID == "" {
			nodeID = parts[0]
		}

		m.mu.Lock()
		n := m.node(nodeID)
		n.Telemetry = &t
		n.LastSeen = now
		m.mu.Unlock()

		m.log.Info().
			Str("node_id", nodeID).
			Float64("temperature", float64(t.Temperature)).
			Float64("humidity", float64(t.Humidity)).
			Msg("telemetry")

	case len(parts) == 2 && parts[1] == "status":
		s, err := ParseStatus(msg.Payload())
		if err != nil {
			m.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("failed to parse status")
			return
		}
		nodeID := s.NodeID
		if nodeID == "" {
			nodeID = parts[0]
		}

		m.mu.Lock()
		n := m.node(nodeID)
		n.Status = s.Status
		n.Uptime = s.Uptime
		n.StatusSeen = now
		m.mu.Unlock()

		m.log.Info().Str("node_id", nodeID).Str("status", s.Status).Int64("uptime", s.Uptime).Msg("status")
	}
}

func isReservedSegment(segment string) bool {
	return segment == "status" || segment == "control"
}

// node returns the snapshot for id, creating it. Callers hold mu.
func (m *FieldMonitor) node(id string) *NodeSnapshot {
	n, ok := m.nodes[id]
	if !ok {
		n = &NodeSnapshot{NodeID: id}
		m.nodes[id] = n
	}
	return n
}

// Snapshot returns copies of all known nodes ordered by id.
func (m *FieldMonitor) Snapshot() []NodeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]NodeSnapshot, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Active counts nodes whose telemetry arrived within the stale window and
// that have not announced themselves offline.
func (m *FieldMonitor) Active() int {
	now := m.params.Clock.Now()
	active := 0
	for _, n := range m.Snapshot() {
		if n.Status == StatusOffline && !n.StatusSeen.Before(n.LastSeen) {
			continue
		}
		if !n.LastSeen.IsZero() && now.Sub(n.LastSeen) <= m.params.StaleAfter {
			active++
		}
	}
	return active
}

// Run logs a summary of the field until ctx is cancelled.
func (m *FieldMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.params.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.log.Info().
				Int("active", m.Active()).
				Int("known", len(m.Snapshot())).
				Bool("is_connected", m.params.MQTTClient.IsConnected()).
				Msg("field report")
		}
	}
}
