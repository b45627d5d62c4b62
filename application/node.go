package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSampleInterval  = 2000 * time.Millisecond
	DefaultPublishInterval = 5000 * time.Millisecond
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultReportInterval  = 30 * time.Second

	inboxSize = 16
)

var ErrRestartRequested = errors.New("restart requested")

// NodeConfig selects the variant a node runs as.
type NodeConfig struct {
	Identity  NodeIdentity
	BaseTopic string
	ClientID  string

	SampleInterval  time.Duration
	PublishInterval time.Duration
	TickInterval    time.Duration
	ReportInterval  time.Duration

	LinkTimeout        time.Duration
	LinkPollStep       time.Duration
	SessionBackoff     time.Duration
	NonBlockingBackoff bool

	Noise  NoiseFilter
	Fields PayloadFields

	CommandsEnabled bool
	StatusReply     string

	LEDsEnabled  bool
	AlarmEnabled bool
	Alarm        AlarmThresholds
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		SampleInterval:  DefaultSampleInterval,
		PublishInterval: DefaultPublishInterval,
		TickInterval:    DefaultTickInterval,
		ReportInterval:  DefaultReportInterval,
		LinkTimeout:     DefaultLinkTimeout,
		LinkPollStep:    DefaultLinkPollStep,
		SessionBackoff:  DefaultSessionBackoff,
		Noise:           DefaultNoiseFilter(),
		Fields:          AllPayloadFields(),
		StatusReply:     StatusOnline,
		Alarm:           DefaultAlarmThresholds(),
	}
}

func (c *NodeConfig) EnsureDefaults() {
	d := DefaultNodeConfig()
	if c.SampleInterval == 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.PublishInterval == 0 {
		c.PublishInterval = d.PublishInterval
	}
	if c.TickInterval == 0 {
		c.TickInterval = d.TickInterval
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = d.ReportInterval
	}
	if c.StatusReply == "" {
		c.StatusReply = d.StatusReply
	}
}

func (c NodeConfig) Validate() error {
	if c.BaseTopic == "" {
		return fmt.Errorf("base topic is empty")
	}
	if strings.ContainsAny(c.Identity.ID, "/+#") {
		return fmt.Errorf("node id %q contains topic separators or wildcards", c.Identity.ID)
	}
	if c.Fields.NodeID && c.Identity.ID == "" {
		return fmt.Errorf("node id is required when the payload carries node_id")
	}
	if c.SampleInterval < 0 || c.PublishInterval < 0 || c.TickInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.AlarmEnabled {
		if err := c.Alarm.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type NodeParams struct {
	Config NodeConfig

	MQTTClient MQTTClient
	Link       Link
	Sensor     Sensor
	Indicator  Indicator
	Restarter  Restarter
	Clock      Clock
	Metrics    Metrics

	// Console delivers operator commands typed on a local terminal.
	Console <-chan string

	Log zerolog.Logger
}

// restartLatch forwards the first restart request and remembers it so the
// control loop can stop.
type restartLatch struct {
	target    Restarter
	requested bool
	reason    string
}

func (r *restartLatch) Restart(reason string) {
	if r.requested {
		return
	}
	r.requested = true
	r.reason = reason
	r.target.Restart(reason)
}

// Node is the controller owning all mutable state of one telemetry node.
// Everything except the inbox producer runs on the control loop.
type Node struct {
	params NodeParams
	cfg    NodeConfig
	topics Topics

	supervisor *ConnectionSupervisor
	sampler    *SensorSampler
	publisher  *TelemetryPublisher
	listener   *CommandListener

	inbox   chan MQTTMessage
	restart *restartLatch

	startedAt   time.Time
	lastSample  time.Time
	lastPublish time.Time
	alarm       AlarmLevel

	log zerolog.Logger
}

func NewNode(params NodeParams) (*Node, error) {
	if params.MQTTClient == nil {
		return nil, fmt.Errorf("MQTTClient is nil")
	}
	if params.Restarter == nil {
		return nil, fmt.Errorf("Restarter is nil")
	}
	if params.Clock == nil {
		params.Clock = SystemClock{}
	}
	if params.Metrics == nil {
		params.Metrics = NopMetrics{}
	}
	if params.Indicator == nil {
		params.Indicator = NopIndicator{}
	}

	cfg := params.Config
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		params:    params,
		cfg:       cfg,
		topics:    NewTopics(cfg.BaseTopic, cfg.Identity.ID),
		inbox:     make(chan MQTTMessage, inboxSize),
		restart:   &restartLatch{target: params.Restarter},
		startedAt: params.Clock.Now(),
		log:       params.Log,
	}

	var err error
	n.sampler, err = NewSensorSampler(SensorSamplerParams{
		NodeID:  cfg.Identity.ID,
		Sensor:  params.Sensor,
		Filter:  cfg.Noise,
		Clock:   params.Clock,
		Metrics: params.Metrics,
		Log:     params.Log.With().Str("module", "sampler").Logger(),
	})
	if err != nil {
		return nil, err
	}

	statusIndicator := Indicator(NopIndicator{})
	if cfg.LEDsEnabled {
		statusIndicator = params.Indicator
	}

	supervisorParams := ConnectionSupervisorParams{
		NodeID:             cfg.Identity.ID,
		ClientID:           cfg.ClientID,
		Link:               params.Link,
		MQTTClient:         params.MQTTClient,
		Indicator:          statusIndicator,
		Restarter:          n.restart,
		Clock:              params.Clock,
		LinkTimeout:        cfg.LinkTimeout,
		LinkPollStep:       cfg.LinkPollStep,
		SessionBackoff:     cfg.SessionBackoff,
		NonBlockingBackoff: cfg.NonBlockingBackoff,
		OnSessionUp: func(ctx context.Context) {
			n.publisher.PublishStatus(StatusOnline)
		},
		Metrics: params.Metrics,
		Log:     params.Log.With().Str("module", "supervisor").Logger(),
	}
	if cfg.CommandsEnabled {
		supervisorParams.ControlTopic = n.topics.Control
		supervisorParams.OnControlMessage = n.deliver
	}
	n.supervisor, err = NewConnectionSupervisor(supervisorParams)
	if err != nil {
		return nil, err
	}

	n.publisher, err = NewTelemetryPublisher(TelemetryPublisherParams{
		Identity:   cfg.Identity,
		Fields:     cfg.Fields,
		Topics:     n.topics,
		MQTTClient: params.MQTTClient,
		State:      n.supervisor,
		Readings:   n.sampler,
		Clock:      params.Clock,
		StartedAt:  n.startedAt,
		Metrics:    params.Metrics,
		Log:        params.Log.With().Str("module", "publisher").Logger(),
	})
	if err != nil {
		return nil, err
	}

	n.listener, err = NewCommandListener(CommandListenerParams{
		Restarter:   n.restart,
		Status:      n.publisher,
		StatusReply: cfg.StatusReply,
		Log:         params.Log.With().Str("module", "commands").Logger(),
	})
	if err != nil {
		return nil, err
	}

	return n, nil
}

func (n *Node) Topics() Topics {
	return n.topics
}

// State is the connection state seen by the last tick. Only safe to call
// from the control loop.
func (n *Node) State() ConnectionState {
	return n.supervisor.State()
}

func (n *Node) RestartRequested() (string, bool) {
	return n.restart.reason, n.restart.requested
}

// deliver hands a broker message to the control loop. It runs on the
// broker client's goroutine.
func (n *Node) deliver(msg MQTTMessage) {
	select {
	case n.inbox <- msg:
	default:
		n.log.Warn().Str("topic", msg.Topic()).Msg("inbox full, dropping message")
	}
}

// Tick runs one iteration of the control loop: connection check, broker
// housekeeping, sampling, then publishing.
func (n *Node) Tick(ctx context.Context) {
	n.supervisor.EnsureConnected(ctx)

	// EnsureConnected may have blocked on the link or a session backoff
	now := n.params.Clock.Now()

	n.housekeeping(ctx)
	if n.restart.requested {
		return
	}

	if n.lastSample.IsZero() || now.Sub(n.lastSample) >= n.cfg.SampleInterval {
		n.sample()
		n.lastSample = now
	}

	if n.sampler.Ready() && n.supervisor.State() == SessionUp &&
		(n.lastPublish.IsZero() || now.Sub(n.lastPublish) >= n.cfg.PublishInterval) {
		n.publisher.Publish()
		n.lastPublish = now
	}
}

func (n *Node) housekeeping(ctx context.Context) {
	for {
		select {
		case msg := <-n.inbox:
			n.listener.OnMessage(msg.Topic(), msg.Payload())
		case line, ok := <-n.params.Console:
			if !ok {
				n.params.Console = nil
				continue
			}
			n.handleConsole(line)
		default:
			return
		}

		if n.restart.requested {
			return
		}
	}
}

func (n *Node) sample() {
	reading, ok := n.sampler.Sample()
	if !ok || !n.cfg.AlarmEnabled {
		return
	}

	level := n.cfg.Alarm.Level(reading.Temperature)
	n.params.Indicator.SetAlarm(level)
	if level != n.alarm {
		n.log.Info().
			Str("level", level.String()).
			Float64("temperature", reading.Temperature).
			Msg("alarm level changed")
		n.alarm = level
	}
}

func (n *Node) handleConsole(line string) {
	switch strings.TrimSpace(line) {
	case "":
	case "info":
		n.logInfo()
	case "restart":
		n.log.Warn().Msg("restarting on console command")
		n.restart.Restart("console restart command")
	case "test":
		n.log.Info().Msg("sending test data")
		n.publisher.Publish()
	case "status":
		n.publisher.PublishStatus(StatusManualStatus)
	default:
		n.log.Info().Msg("available commands: info, restart, test, status")
	}
}

func (n *Node) logInfo() {
	ev := n.log.Info().
		Str("node_id", n.cfg.Identity.ID).
		Float64("pos_x", n.cfg.Identity.PositionX).
		Float64("pos_y", n.cfg.Identity.PositionY).
		Str("client_id", n.cfg.ClientID).
		Str("topic", n.topics.Data).
		Str("state", n.supervisor.State().String()).
		Dur("uptime", n.params.Clock.Now().Sub(n.startedAt))

	if r, ok := n.sampler.LastGood(); ok {
		ev = ev.Float64("temperature", r.Temperature).
			Float64("humidity", r.Humidity).
			Time("captured_at", r.CapturedAt)
	}
	ev.Msg("system information")
}

// Run drives Tick until ctx is cancelled or a restart is requested, in
// which case ErrRestartRequested is returned.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// control loop
	g.Go(func() error {
		n.log.Info().
			Str("topic", n.topics.Data).
			Dur("sample_interval", n.cfg.SampleInterval).
			Dur("publish_interval", n.cfg.PublishInterval).
			Msg("node starting")
		defer n.log.Info().Msg("node stopped")

		ticker := time.NewTicker(n.cfg.TickInterval)
		defer ticker.Stop()

		for {
			n.Tick(ctx)
			if reason, ok := n.RestartRequested(); ok {
				n.log.Warn().Str("reason", reason).Msg("restart requested")
				return ErrRestartRequested
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	// mqtt publish reporter
	g.Go(func() error {
		ticker := time.NewTicker(n.cfg.ReportInterval)
		defer ticker.Stop()
		lastStatus := n.params.MQTTClient.Status()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				newStatus := n.params.MQTTClient.Status()

				msgCountDiff := newStatus.MessageCount - lastStatus.MessageCount
				msgPerMin := float64(msgCountDiff) * float64(time.Minute) / float64(n.cfg.ReportInterval)

				n.log.Info().
					Float64("msg_per_min", msgPerMin).
					Uint64("msg_count", newStatus.MessageCount).
					Bool("is_connected", newStatus.Connected).
					Time("last_time_published", newStatus.LastTimePublished).
					Msg("publish report")

				lastStatus = newStatus
			}
		}
	})

	return g.Wait()
}
