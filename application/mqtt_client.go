package application

import (
	"fmt"
	"time"
)

type MQTTStatus struct {
	MessageCount      uint64
	LastTimePublished time.Time
	Connected         bool
}

// MQTTMessage is an inbound message delivered by the broker session.
type MQTTMessage interface {
	Topic() string
	Payload() []byte
}

type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, msg any) error
	Subscribe(topic string, qos byte, handler func(msg MQTTMessage)) error

	Connect() error
	IsConnected() bool
	Status() MQTTStatus
}

// ConnectError carries the return code the broker sent when it refused
// a session.
type ConnectError struct {
	ReturnCode byte
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect refused, rc=%d: %v", e.ReturnCode, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
