package application

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testIdentity = NodeIdentity{ID: "node_001", PositionX: 25.0, PositionY: 25.0}

func newTestPublisher(t *testing.T, client MQTTClient, state ConnectionState, readings ReadingSource) *TelemetryPublisher {
	clock := newFakeClock()
	p, err := NewTelemetryPublisher(TelemetryPublisherParams{
		Identity:   testIdentity,
		Fields:     AllPayloadFields(),
		Topics:     NewTopics("field", testIdentity.ID),
		MQTTClient: client,
		State:      fixedState(state),
		Readings:   readings,
		Clock:      clock,
		StartedAt:  clock.Now().Add(-42 * time.Second),
	})
	require.NoError(t, err)
	return p
}

func TestNewTelemetryPublisher_MissingDependencies(t *testing.T) {
	p, err := NewTelemetryPublisher(TelemetryPublisherParams{
		MQTTClient: &MockMQTTClient{},
		State:      fixedState(SessionUp),
		Readings:   fixedReading{},
	})
	require.Error(t, err)
	require.Nil(t, p)

	p, err = NewTelemetryPublisher(TelemetryPublisherParams{
		Topics:   NewTopics("field", "node_001"),
		State:    fixedState(SessionUp),
		Readings: fixedReading{},
	})
	require.Error(t, err)
	require.Nil(t, p)
}

func TestTelemetryPublisher_Publish(t *testing.T) {
	client := &MockMQTTClient{}
	reading := fixedReading{reading: Reading{Temperature: 26.5, Humidity: 60.0}, ok: true}
	p := newTestPublisher(t, client, SessionUp, reading)

	expected := []byte(`{"node_id":"node_001","temperature":26.5,"humidity":60.0,"pos_x":25.0,"pos_y":25.0,"timestamp":1700000000}`)
	client.On("Publish", "field/node_001", byte(0), false, expected).Return(nil).Once()

	assert.True(t, p.Publish())
	client.AssertExpectations(t)
}

func TestTelemetryPublisher_Publish_NotSessionUp(t *testing.T) {
	for _, state := range []ConnectionState{Disconnected, LinkUp} {
		t.Run(state.String(), func(t *testing.T) {
			client := &MockMQTTClient{}
			reading := fixedReading{reading: Reading{Temperature: 26.5, Humidity: 60.0}, ok: true}
			p := newTestPublisher(t, client, state, reading)

			assert.False(t, p.Publish())
			assert.False(t, p.PublishStatus(StatusOnline))
			client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTelemetryPublisher_Publish_NotReady(t *testing.T) {
	client := &MockMQTTClient{}
	p := newTestPublisher(t, client, SessionUp, fixedReading{})

	assert.False(t, p.Publish())
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTelemetryPublisher_Publish_Error(t *testing.T) {
	client := &MockMQTTClient{}
	reading := fixedReading{reading: Reading{Temperature: 26.5, Humidity: 60.0}, ok: true}
	p := newTestPublisher(t, client, SessionUp, reading)

	client.On("Publish", "field/node_001", byte(0), false, mock.Anything).Return(fmt.Errorf("publish timeout")).Once()

	assert.False(t, p.Publish())
	client.AssertExpectations(t)
}

func TestTelemetryPublisher_PublishStatus(t *testing.T) {
	client := &MockMQTTClient{}
	p := newTestPublisher(t, client, SessionUp, fixedReading{})

	expected := []byte(`{"node_id":"node_001","status":"manual_status","timestamp":1700000000,"uptime":42}`)
	client.On("Publish", "field/node_001/status", byte(0), false, expected).Return(nil).Once()

	assert.True(t, p.PublishStatus(StatusManualStatus))
	client.AssertExpectations(t)
}
