package application

import "fmt"

const (
	DefaultAlarmLow  = 45.0
	DefaultAlarmHigh = 55.0
)

type AlarmLevel int

const (
	AlarmOff AlarmLevel = iota
	AlarmLow
	AlarmNormal
	AlarmHigh
)

func (l AlarmLevel) String() string {
	switch l {
	case AlarmOff:
		return "off"
	case AlarmLow:
		return "low"
	case AlarmNormal:
		return "normal"
	case AlarmHigh:
		return "high"
	default:
		return fmt.Sprintf("AlarmLevel(%d)", int(l))
	}
}

// AlarmThresholds classify a temperature into low, normal or high. There
// is no hysteresis, a value oscillating around a bound flips the level on
// every reading.
type AlarmThresholds struct {
	Low  float64
	High float64
}

func DefaultAlarmThresholds() AlarmThresholds {
	return AlarmThresholds{Low: DefaultAlarmLow, High: DefaultAlarmHigh}
}

func (t AlarmThresholds) Validate() error {
	if t.Low > t.High {
		return fmt.Errorf("alarm low threshold %.1f above high threshold %.1f", t.Low, t.High)
	}
	return nil
}

func (t AlarmThresholds) Level(temperature float64) AlarmLevel {
	switch {
	case temperature < t.Low:
		return AlarmLow
	case temperature <= t.High:
		return AlarmNormal
	default:
		return AlarmHigh
	}
}
