package application

import (
	"context"
	"math"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, msg any) error {
	args := m.Called(topic, qos, retained, msg)
	return args.Error(0)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(msg MQTTMessage)) error {
	args := m.Called(topic, qos, handler)
	return args.Error(0)
}

func (m *MockMQTTClient) Connect() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMQTTClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) Status() MQTTStatus {
	args := m.Called()
	return args.Get(0).(MQTTStatus)
}

var _ MQTTClient = &MockMQTTClient{}

type MockRestarter struct {
	mock.Mock
}

func (m *MockRestarter) Restart(reason string) {
	m.Called(reason)
}

var _ Restarter = &MockRestarter{}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err() == nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakeSensor returns queued values; once drained it repeats the last one.
type fakeSensor struct {
	values [][2]float64
	reads  int
}

func (s *fakeSensor) Read() (float64, float64) {
	if len(s.values) == 0 {
		return math.NaN(), math.NaN()
	}
	i := s.reads
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	s.reads++
	return s.values[i][0], s.values[i][1]
}

type fakeLink struct {
	up         bool
	associated int
	// upAfter brings the link up after that many IsUp calls following
	// Associate; zero keeps it down.
	upAfter int
	polls   int
}

func (l *fakeLink) Associate(ctx context.Context) error {
	l.associated++
	l.polls = 0
	return nil
}

func (l *fakeLink) IsUp(ctx context.Context) bool {
	if l.up {
		return true
	}
	if l.associated > 0 && l.upAfter > 0 {
		l.polls++
		if l.polls >= l.upAfter {
			l.up = true
		}
	}
	return l.up
}

type fakeIndicator struct {
	link, session bool
	alarms        []AlarmLevel
}

func (i *fakeIndicator) SetLink(on bool)           { i.link = on }
func (i *fakeIndicator) SetSession(on bool)        { i.session = on }
func (i *fakeIndicator) SetAlarm(level AlarmLevel) { i.alarms = append(i.alarms, level) }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type fixedState ConnectionState

func (s fixedState) State() ConnectionState { return ConnectionState(s) }

type fixedReading struct {
	reading Reading
	ok      bool
}

func (r fixedReading) LastGood() (Reading, bool) { return r.reading, r.ok }
