package application

const (
	RejectReasonNaN   = "nan"
	RejectReasonNoise = "noise"
)

type Metrics interface {
	ReadingAccepted(nodeID string)
	ReadingRejected(nodeID string, reason string)
	TelemetryPublished(nodeID string, ok bool)
	SessionAttempt(nodeID string, ok bool)
	ConnectionState(nodeID string, state ConnectionState)
}

type NopMetrics struct{}

func (NopMetrics) ReadingAccepted(string)                  {}
func (NopMetrics) ReadingRejected(string, string)          {}
func (NopMetrics) TelemetryPublished(string, bool)         {}
func (NopMetrics) SessionAttempt(string, bool)             {}
func (NopMetrics) ConnectionState(string, ConnectionState) {}

var _ Metrics = NopMetrics{}
