package application

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxTemperatureDelta = 10.0
	DefaultMaxHumidityDelta    = 20.0
)

// Sensor is the temperature/humidity acquisition capability. A value the
// sensor failed to produce is returned as NaN.
type Sensor interface {
	Read() (temperature float64, humidity float64)
}

// NoiseFilter bounds the change accepted between two consecutive valid
// readings. A zero bound disables the check for that value.
type NoiseFilter struct {
	MaxTemperatureDelta float64
	MaxHumidityDelta    float64
}

func DefaultNoiseFilter() NoiseFilter {
	return NoiseFilter{
		MaxTemperatureDelta: DefaultMaxTemperatureDelta,
		MaxHumidityDelta:    DefaultMaxHumidityDelta,
	}
}

func (f NoiseFilter) spurious(prev Reading, temperature, humidity float64) bool {
	if f.MaxTemperatureDelta > 0 && math.Abs(temperature-prev.Temperature) > f.MaxTemperatureDelta {
		return true
	}
	if f.MaxHumidityDelta > 0 && math.Abs(humidity-prev.Humidity) > f.MaxHumidityDelta {
		return true
	}
	return false
}

type SensorSamplerParams struct {
	NodeID string
	Sensor Sensor
	Filter NoiseFilter
	Clock  Clock

	Metrics Metrics
	Log     zerolog.Logger
}

func (p *SensorSamplerParams) EnsureDefaults() {
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.Metrics == nil {
		p.Metrics = NopMetrics{}
	}
}

// SensorSampler reads the sensor and keeps the last-known-good reading.
type SensorSampler struct {
	params SensorSamplerParams

	last  Reading
	ready bool

	log zerolog.Logger
}

func NewSensorSampler(params SensorSamplerParams) (*SensorSampler, error) {
	if params.Sensor == nil {
		return nil, fmt.Errorf("Sensor is nil")
	}
	if params.Filter.MaxTemperatureDelta < 0 || params.Filter.MaxHumidityDelta < 0 {
		return nil, fmt.Errorf("noise filter thresholds must not be negative")
	}
	params.EnsureDefaults()

	return &SensorSampler{params: params, log: params.Log}, nil
}

// Sample reads the sensor once. It returns false when the read failed or
// was rejected by the noise filter; the last-known-good reading is left
// untouched in that case.
func (s *SensorSampler) Sample() (Reading, bool) {
	temperature, humidity := s.params.Sensor.Read()

	if math.IsNaN(temperature) || math.IsNaN(humidity) {
		s.log.Warn().Msg("failed to read from sensor")
		s.params.Metrics.ReadingRejected(s.params.NodeID, RejectReasonNaN)
		return Reading{}, false
	}

	if s.ready && s.params.Filter.spurious(s.last, temperature, humidity) {
		s.log.Warn().
			Float64("temperature_prev", s.last.Temperature).
			Float64("temperature", temperature).
			Float64("humidity_prev", s.last.Humidity).
			Float64("humidity", humidity).
			Msg("sensor reading filtered")
		s.params.Metrics.ReadingRejected(s.params.NodeID, RejectReasonNoise)
		return Reading{}, false
	}

	s.last = Reading{
		Temperature: temperature,
		Humidity:    humidity,
		CapturedAt:  s.params.Clock.Now(),
	}
	s.ready = true
	s.params.Metrics.ReadingAccepted(s.params.NodeID)

	s.log.Debug().
		Float64("temperature", temperature).
		Float64("humidity", humidity).
		Msg("sensor reading")

	return s.last, true
}

// LastGood returns the most recent valid reading, false if there is none yet.
func (s *SensorSampler) LastGood() (Reading, bool) {
	return s.last, s.ready
}

func (s *SensorSampler) Ready() bool {
	return s.ready
}
