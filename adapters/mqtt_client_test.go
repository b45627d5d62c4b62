package adapters

import (
	"dht-to-mqtt/application"
	"errors"
	"fmt"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMQTTClient(mClient *MockMQTTClient, params MQTTClientParams) *MQTTClient {
	params.ClientID = "test"
	params.Username = "admin"
	params.Password = "password"
	params.MQTTUrl = "tcp://localhost:1883"
	// for testing
	params.NewClientFunc = func(options *mqtt.ClientOptions) mqtt.Client {
		return mClient
	}
	return NewMQTTClient(params)
}

func TestMQTTClient_Options(t *testing.T) {
	var opts *mqtt.ClientOptions
	NewMQTTClient(MQTTClientParams{
		ClientID:    "esp32_node_001",
		MQTTUrl:     "tcp://localhost:1883",
		WillTopic:   "field/node_001/status",
		WillPayload: []byte(`{"status":"offline"}`),
		NewClientFunc: func(options *mqtt.ClientOptions) mqtt.Client {
			opts = options
			return &MockMQTTClient{}
		},
	})

	require.NotNil(t, opts)
	assert.Equal(t, "esp32_node_001", opts.ClientID)
	assert.Equal(t, int64(30), opts.KeepAlive)
	assert.False(t, opts.AutoReconnect)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "field/node_001/status", opts.WillTopic)
	assert.Equal(t, []byte(`{"status":"offline"}`), opts.WillPayload)
}

func TestMQTTClient_Connect(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	err := mqttClient.Connect()
	require.NoError(t, err)
	assert.Equal(t, true, mqttClient.IsConnected())

	status := mqttClient.Status()
	assert.Equal(t, uint64(0), status.MessageCount)
	assert.Equal(t, time.Unix(0, 0), status.LastTimePublished)
	assert.Equal(t, true, status.Connected)

	err = mqttClient.Connect()
	require.NoError(t, err)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Connect_Error(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(fmt.Errorf("not authorized")).Once()

	err := mqttClient.Connect()
	require.Error(t, err)
	assert.Equal(t, false, mqttClient.IsConnected())

	var connErr *application.ConnectError
	require.True(t, errors.As(err, &connErr))
	assert.EqualError(t, connErr.Err, "not authorized")

	status := mqttClient.Status()
	assert.Equal(t, uint64(0), status.MessageCount)
	assert.Equal(t, time.Unix(0, 0), status.LastTimePublished)
	assert.Equal(t, false, status.Connected)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Connect_Timeout(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{ConnectTimeout: time.Second})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", time.Second).Return(false).Once()

	err := mqttClient.Connect()
	require.Equal(t, ErrMQTTConnectTimeout, err)
	assert.Equal(t, false, mqttClient.IsConnected())

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_OnConnectionLost(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	err := mqttClient.Connect()
	require.NoError(t, err)
	assert.Equal(t, true, mqttClient.IsConnected())

	mqttClient.OnConnectionLost(mClient, fmt.Errorf("connection lost"))
	assert.Equal(t, false, mqttClient.IsConnected())

	status := mqttClient.Status()
	assert.Equal(t, uint64(0), status.MessageCount)
	assert.Equal(t, time.Unix(0, 0), status.LastTimePublished)
	assert.Equal(t, false, status.Connected)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_OnConnect_Hook(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	hooks := 0
	var mqttClient *MQTTClient
	mqttClient = newTestMQTTClient(mClient, MQTTClientParams{
		OnConnect: func() {
			hooks++
			assert.True(t, mqttClient.IsConnected())
		},
	})

	mClient.On("Connect").Run(func(args mock.Arguments) {
		mqttClient.OnConnect(mClient)
	}).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	require.NoError(t, mqttClient.Connect())
	assert.Equal(t, 1, hooks)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	// not connected, nothing to do
	mqttClient.Disconnect(250)

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	mClient.On("Disconnect", uint(250)).Return().Once()

	require.NoError(t, mqttClient.Connect())
	mqttClient.Disconnect(250)
	assert.False(t, mqttClient.IsConnected())

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Publish(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Run(func(args mock.Arguments) {
		mqttClient.OnConnect(mClient)
	}).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	err := mqttClient.Connect()
	require.NoError(t, err)
	assert.Equal(t, true, mqttClient.IsConnected())

	topic := "field/node_001"
	qos := byte(0)
	retained := false
	payload := []byte(`{"temperature":26.5,"humidity":60.0}`)

	mClient.On("Publish", topic, qos, retained, payload).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultPublishTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	err = mqttClient.Publish(topic, qos, retained, payload)
	require.NoError(t, err)

	status := mqttClient.Status()
	assert.Equal(t, uint64(1), status.MessageCount)
	assert.False(t, time.Now().Before(status.LastTimePublished))
	assert.Equal(t, true, status.Connected)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Publish_NotConnected(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	err := mqttClient.Publish("field/node_001", byte(0), false, []byte("test_payload"))
	require.Error(t, err)
	require.Equal(t, ErrMQTTNotConnected, err)

	status := mqttClient.Status()
	assert.Equal(t, uint64(0), status.MessageCount)
	assert.Equal(t, time.Unix(0, 0), status.LastTimePublished)
	assert.Equal(t, false, status.Connected)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Publish_Error(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	err := mqttClient.Connect()
	require.NoError(t, err)

	topic := "field/node_001"
	payload := []byte("test_payload")

	mClient.On("Publish", topic, byte(0), false, payload).Return(mToken).Twice()
	mToken.On("WaitTimeout", MQTTDefaultPublishTimeout).Return(true).Once()
	mToken.On("Error").Return(fmt.Errorf("internal")).Once()

	err = mqttClient.Publish(topic, byte(0), false, payload)
	require.EqualError(t, err, "internal")

	mToken.On("WaitTimeout", MQTTDefaultPublishTimeout).Return(false).Once()

	err = mqttClient.Publish(topic, byte(0), false, payload)
	require.Equal(t, ErrMQTTPublishTimeout, err)

	status := mqttClient.Status()
	assert.Equal(t, uint64(0), status.MessageCount)
	assert.Equal(t, true, status.Connected)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Subscribe(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	err := mqttClient.Subscribe("field/node_001/control", 0, func(msg application.MQTTMessage) {})
	require.Equal(t, ErrMQTTNotConnected, err)

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	require.NoError(t, mqttClient.Connect())

	var handler mqtt.MessageHandler
	mClient.On("Subscribe", "field/node_001/control", byte(0), mock.Anything).Run(func(args mock.Arguments) {
		handler = args.Get(2).(mqtt.MessageHandler)
	}).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultPublishTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	var received []string
	err = mqttClient.Subscribe("field/node_001/control", 0, func(msg application.MQTTMessage) {
		received = append(received, msg.Topic()+" "+string(msg.Payload()))
	})
	require.NoError(t, err)
	require.NotNil(t, handler)

	handler(mClient, fakeMessage{topic: "field/node_001/control", payload: []byte(`{"command":"status"}`)})
	assert.Equal(t, []string{`field/node_001/control {"command":"status"}`}, received)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Subscribe_Timeout(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}

	mqttClient := newTestMQTTClient(mClient, MQTTClientParams{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultConnectTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	require.NoError(t, mqttClient.Connect())

	mClient.On("Subscribe", "field/+", byte(0), mock.Anything).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultPublishTimeout).Return(false).Once()

	err := mqttClient.Subscribe("field/+", 0, func(msg application.MQTTMessage) {})
	require.Equal(t, ErrMQTTSubscribeTimeout, err)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}
