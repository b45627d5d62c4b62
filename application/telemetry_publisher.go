package application

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type StateSource interface {
	State() ConnectionState
}

type ReadingSource interface {
	LastGood() (Reading, bool)
}

type TelemetryPublisherParams struct {
	Identity NodeIdentity
	Fields   PayloadFields
	Topics   Topics

	MQTTClient MQTTClient
	State      StateSource
	Readings   ReadingSource
	Clock      Clock
	StartedAt  time.Time

	Metrics Metrics
	Log     zerolog.Logger
}

func (p *TelemetryPublisherParams) EnsureDefaults() {
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = p.Clock.Now()
	}
	if p.Metrics == nil {
		p.Metrics = NopMetrics{}
	}
}

// TelemetryPublisher sends the last-known-good reading and lifecycle
// status events. Nothing is queued: a skipped or failed publish is lost.
type TelemetryPublisher struct {
	params TelemetryPublisherParams

	log zerolog.Logger
}

func NewTelemetryPublisher(params TelemetryPublisherParams) (*TelemetryPublisher, error) {
	if params.MQTTClient == nil {
		return nil, fmt.Errorf("MQTTClient is nil")
	}
	if params.State == nil {
		return nil, fmt.Errorf("State is nil")
	}
	if params.Readings == nil {
		return nil, fmt.Errorf("Readings is nil")
	}
	if params.Topics.Data == "" {
		return nil, fmt.Errorf("data topic is empty")
	}
	params.EnsureDefaults()

	return &TelemetryPublisher{params: params, log: params.Log}, nil
}

// Publish sends the latest valid reading on the data topic. It is skipped
// unless the session is up and a valid reading exists.
func (p *TelemetryPublisher) Publish() bool {
	if p.params.State.State() != SessionUp {
		p.log.Debug().Msg("publish skipped, session down")
		return false
	}

	reading, ok := p.params.Readings.LastGood()
	if !ok {
		p.log.Debug().Msg("publish skipped, no valid reading")
		return false
	}

	msg := NewTelemetryMessage(reading, p.params.Identity, p.params.Fields, p.params.Clock.Now())
	payload, err := EncodeTelemetry(msg)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to encode telemetry")
		p.params.Metrics.TelemetryPublished(p.params.Identity.ID, false)
		return false
	}

	if err := p.params.MQTTClient.Publish(p.params.Topics.Data, 0, false, payload); err != nil {
		p.log.Warn().Err(err).Str("topic", p.params.Topics.Data).Msg("failed to send data")
		p.params.Metrics.TelemetryPublished(p.params.Identity.ID, false)
		return false
	}

	p.params.Metrics.TelemetryPublished(p.params.Identity.ID, true)
	p.log.Info().
		Str("topic", p.params.Topics.Data).
		RawJSON("payload", payload).
		Msg("data sent")
	return true
}

// PublishStatus sends a lifecycle event on the status topic.
func (p *TelemetryPublisher) PublishStatus(status string) bool {
	if p.params.State.State() != SessionUp {
		p.log.Debug().Str("status", status).Msg("status skipped, session down")
		return false
	}

	now := p.params.Clock.Now()
	msg := NewStatusMessage(p.params.Identity.ID, status, now, now.Sub(p.params.StartedAt))
	payload, err := EncodeStatus(msg)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to encode status")
		return false
	}

	if err := p.params.MQTTClient.Publish(p.params.Topics.Status, 0, false, payload); err != nil {
		p.log.Warn().Err(err).Str("status", status).Msg("failed to send status")
		return false
	}

	p.log.Info().Str("status", status).Msg("status sent")
	return true
}
