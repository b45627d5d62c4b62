package adapters

import (
	"dht-to-mqtt/application"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exports node activity. Several nodes may share one
// instance, series are labelled by node id.
type PrometheusMetrics struct {
	readings        *prometheus.CounterVec
	published       *prometheus.CounterVec
	sessionAttempts *prometheus.CounterVec
	connState       *prometheus.GaugeVec

	mu     sync.Mutex
	states map[string]application.ConnectionState
}

func NewPrometheusMetrics(registry prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{states: map[string]application.ConnectionState{}}

	readings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dht_node_readings_total",
		Help: "Sensor readings by outcome (accepted, nan, noise)",
	}, []string{"node_id", "result"})
	if err := register(registry, readings, &m.readings); err != nil {
		return nil, fmt.Errorf("failed to register readings metric: %v", err)
	}

	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dht_node_telemetry_published_total",
		Help: "Telemetry publish attempts by outcome",
	}, []string{"node_id", "result"})
	if err := register(registry, published, &m.published); err != nil {
		return nil, fmt.Errorf("failed to register published metric: %v", err)
	}

	sessionAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dht_node_session_attempts_total",
		Help: "Broker session attempts by outcome",
	}, []string{"node_id", "result"})
	if err := register(registry, sessionAttempts, &m.sessionAttempts); err != nil {
		return nil, fmt.Errorf("failed to register sessionAttempts metric: %v", err)
	}

	connState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dht_node_connection_state",
		Help: "Connection state (0 disconnected, 1 link up, 2 session up)",
	}, []string{"node_id"})
	if err := register(registry, connState, &m.connState); err != nil {
		return nil, fmt.Errorf("failed to register connState metric: %v", err)
	}

	return m, nil
}

// register adopts an already registered collector of the same shape.
func register[T prometheus.Collector](registry prometheus.Registerer, c T, dst *T) error {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return fmt.Errorf("existing collector has type %T", are.ExistingCollector)
		}
		*dst = existing
		return nil
	}
	*dst = c
	return nil
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (m *PrometheusMetrics) ReadingAccepted(nodeID string) {
	m.readings.WithLabelValues(nodeID, "accepted").Inc()
}

func (m *PrometheusMetrics) ReadingRejected(nodeID string, reason string) {
	m.readings.WithLabelValues(nodeID, reason).Inc()
}

func (m *PrometheusMetrics) TelemetryPublished(nodeID string, ok bool) {
	m.published.WithLabelValues(nodeID, result(ok)).Inc()
}

func (m *PrometheusMetrics) SessionAttempt(nodeID string, ok bool) {
	m.sessionAttempts.WithLabelValues(nodeID, result(ok)).Inc()
}

func (m *PrometheusMetrics) ConnectionState(nodeID string, state application.ConnectionState) {
	m.connState.WithLabelValues(nodeID).Set(float64(state))

	m.mu.Lock()
	m.states[nodeID] = state
	m.mu.Unlock()
}

// NodeState is the last reported connection state of one node.
type NodeState struct {
	NodeID string `json:"node_id"`
	State  string `json:"state"`
}

func (m *PrometheusMetrics) States() []NodeState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]NodeState, 0, len(m.states))
	for id, s := range m.states {
		out = append(out, NodeState{NodeID: id, State: s.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

var _ application.Metrics = &PrometheusMetrics{}
