package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlarmThresholds_Level(t *testing.T) {
	thresholds := DefaultAlarmThresholds()

	testCases := map[float64]AlarmLevel{
		-10.0: AlarmLow,
		44.9:  AlarmLow,
		45.0:  AlarmNormal,
		50.0:  AlarmNormal,
		55.0:  AlarmNormal,
		55.1:  AlarmHigh,
		80.0:  AlarmHigh,
	}

	for temperature, expected := range testCases {
		assert.Equal(t, expected, thresholds.Level(temperature), "temperature %.1f", temperature)
	}
}

func TestAlarmThresholds_NoHysteresis(t *testing.T) {
	thresholds := AlarmThresholds{Low: 20, High: 30}

	var levels []AlarmLevel
	for _, temperature := range []float64{30.0, 30.1, 30.0, 30.1} {
		levels = append(levels, thresholds.Level(temperature))
	}
	assert.Equal(t, []AlarmLevel{AlarmNormal, AlarmHigh, AlarmNormal, AlarmHigh}, levels)
}

func TestAlarmThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultAlarmThresholds().Validate())
	assert.NoError(t, AlarmThresholds{Low: 30, High: 30}.Validate())
	assert.Error(t, AlarmThresholds{Low: 31, High: 30}.Validate())
}

func TestAlarmLevel_String(t *testing.T) {
	assert.Equal(t, "off", AlarmOff.String())
	assert.Equal(t, "low", AlarmLow.String())
	assert.Equal(t, "normal", AlarmNormal.String())
	assert.Equal(t, "high", AlarmHigh.String())
}
