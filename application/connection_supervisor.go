package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultLinkTimeout    = 10 * time.Second
	DefaultLinkPollStep   = 500 * time.Millisecond
	DefaultSessionBackoff = 5 * time.Second
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	LinkUp
	SessionUp
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case LinkUp:
		return "link_up"
	case SessionUp:
		return "session_up"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Link is the network link underneath the broker session.
type Link interface {
	// Associate starts joining the network. It does not wait for the link.
	Associate(ctx context.Context) error
	IsUp(ctx context.Context) bool
}

// Indicator mirrors node state on status outputs (LEDs).
type Indicator interface {
	SetLink(on bool)
	SetSession(on bool)
	SetAlarm(level AlarmLevel)
}

type NopIndicator struct{}

func (NopIndicator) SetLink(bool)        {}
func (NopIndicator) SetSession(bool)     {}
func (NopIndicator) SetAlarm(AlarmLevel) {}

// Restarter restarts the device.
type Restarter interface {
	Restart(reason string)
}

// DeriveClientID builds a broker client id that stays unique across nodes
// sharing one broker, e.g. esp32_node_001_1a2b3c4d.
func DeriveClientID(prefix, nodeID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, nodeID, suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

type ConnectionSupervisorParams struct {
	NodeID     string
	ClientID   string
	Link       Link
	MQTTClient MQTTClient
	Indicator  Indicator
	Restarter  Restarter
	Clock      Clock

	LinkTimeout    time.Duration
	LinkPollStep   time.Duration
	SessionBackoff time.Duration
	// NonBlockingBackoff skips session attempts until the backoff has
	// elapsed instead of sleeping through it.
	NonBlockingBackoff bool

	// ControlTopic is subscribed on every new session when non-empty.
	ControlTopic     string
	OnControlMessage func(msg MQTTMessage)
	// OnSessionUp runs once per established session.
	OnSessionUp func(ctx context.Context)

	Metrics Metrics
	Log     zerolog.Logger
}

func (p *ConnectionSupervisorParams) EnsureDefaults() {
	if p.LinkTimeout == 0 {
		p.LinkTimeout = DefaultLinkTimeout
	}
	if p.LinkPollStep == 0 {
		p.LinkPollStep = DefaultLinkPollStep
	}
	if p.SessionBackoff == 0 {
		p.SessionBackoff = DefaultSessionBackoff
	}
	if p.Indicator == nil {
		p.Indicator = NopIndicator{}
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.Metrics == nil {
		p.Metrics = NopMetrics{}
	}
}

// ConnectionSupervisor keeps the link and the broker session alive.
type ConnectionSupervisor struct {
	params ConnectionSupervisorParams

	state       ConnectionState
	fatal       bool
	lastFailure time.Time
	// sessionReady is set once the control subscription and online event
	// ran for the current broker session.
	sessionReady bool

	log zerolog.Logger
}

func NewConnectionSupervisor(params ConnectionSupervisorParams) (*ConnectionSupervisor, error) {
	if params.Link == nil {
		return nil, fmt.Errorf("Link is nil")
	}
	if params.MQTTClient == nil {
		return nil, fmt.Errorf("MQTTClient is nil")
	}
	if params.Restarter == nil {
		return nil, fmt.Errorf("Restarter is nil")
	}
	if params.ControlTopic != "" && params.OnControlMessage == nil {
		return nil, fmt.Errorf("OnControlMessage is nil")
	}
	params.EnsureDefaults()

	return &ConnectionSupervisor{params: params, log: params.Log}, nil
}

func (s *ConnectionSupervisor) State() ConnectionState {
	return s.state
}

// EnsureConnected brings the link and the session up. It blocks at most
// for the link timeout or one session backoff and then reports the state
// reached; the caller retries on its next tick.
func (s *ConnectionSupervisor) EnsureConnected(ctx context.Context) ConnectionState {
	if s.fatal {
		return Disconnected
	}

	if !s.params.Link.IsUp(ctx) {
		s.params.Indicator.SetLink(false)
		s.params.Indicator.SetSession(false)
		s.setState(Disconnected)

		if !s.associate(ctx) {
			return Disconnected
		}
	}
	s.params.Indicator.SetLink(true)

	if s.params.MQTTClient.IsConnected() {
		if !s.sessionReady {
			// the client finished a handshake after Connect gave up on it
			s.log.Info().Str("client_id", s.params.ClientID).Msg("adopting broker session")
			s.lastFailure = time.Time{}
			s.sessionUp(ctx)
			return SessionUp
		}
		s.params.Indicator.SetSession(true)
		s.setState(SessionUp)
		return SessionUp
	}

	s.sessionReady = false
	s.params.Indicator.SetSession(false)
	s.setState(LinkUp)
	return s.establishSession(ctx)
}

func (s *ConnectionSupervisor) associate(ctx context.Context) bool {
	s.log.Warn().Msg("link down, associating")

	if err := s.params.Link.Associate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("link association request failed")
	}

	start := s.params.Clock.Now()
	for !s.params.Link.IsUp(ctx) {
		if s.params.Clock.Now().Sub(start) > s.params.LinkTimeout {
			s.fatal = true
			s.log.Error().Dur("timeout", s.params.LinkTimeout).Msg("link connection timeout")
			s.params.Restarter.Restart("link association timeout")
			return false
		}

		if !s.params.Clock.Sleep(ctx, s.params.LinkPollStep) {
			return false
		}
	}

	s.log.Info().Dur("took", s.params.Clock.Now().Sub(start)).Msg("link connected")
	return true
}

func (s *ConnectionSupervisor) establishSession(ctx context.Context) ConnectionState {
	backoff := s.params.SessionBackoff
	if s.params.NonBlockingBackoff && !s.lastFailure.IsZero() &&
		s.params.Clock.Now().Sub(s.lastFailure) < backoff {
		return Disconnected
	}

	s.log.Info().Str("client_id", s.params.ClientID).Msg("attempting broker session")

	if err := s.params.MQTTClient.Connect(); err != nil {
		s.lastFailure = s.params.Clock.Now()
		s.params.Metrics.SessionAttempt(s.params.NodeID, false)

		ev := s.log.Warn().Err(err)
		var connErr *ConnectError
		if errors.As(err, &connErr) {
			ev = ev.Uint8("rc", connErr.ReturnCode)
		}
		ev.Dur("retry_in", backoff).Msg("broker session failed")

		s.setState(Disconnected)
		if !s.params.NonBlockingBackoff {
			s.params.Clock.Sleep(ctx, backoff)
		}
		return Disconnected
	}

	s.lastFailure = time.Time{}
	s.params.Metrics.SessionAttempt(s.params.NodeID, true)
	s.log.Info().Str("client_id", s.params.ClientID).Msg("broker session established")

	s.sessionUp(ctx)
	return SessionUp
}

// sessionUp subscribes the control topic and announces the node on a
// session seen for the first time.
func (s *ConnectionSupervisor) sessionUp(ctx context.Context) {
	if topic := s.params.ControlTopic; topic != "" {
		if err := s.params.MQTTClient.Subscribe(topic, 0, s.params.OnControlMessage); err != nil {
			s.log.Warn().Err(err).Str("topic", topic).Msg("control subscription failed")
		} else {
			s.log.Info().Str("topic", topic).Msg("subscribed to control topic")
		}
	}

	s.sessionReady = true
	s.params.Indicator.SetSession(true)
	s.setState(SessionUp)

	if s.params.OnSessionUp != nil {
		s.params.OnSessionUp(ctx)
	}
}

func (s *ConnectionSupervisor) setState(state ConnectionState) {
	if s.state == state {
		return
	}
	s.log.Debug().
		Str("from", s.state.String()).
		Str("to", state.String()).
		Msg("connection state changed")

	s.state = state
	s.params.Metrics.ConnectionState(s.params.NodeID, state)
}
