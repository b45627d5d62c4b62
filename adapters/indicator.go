package adapters

import (
	"dht-to-mqtt/application"
	"sync"

	"github.com/rs/zerolog"
)

// LogIndicator stands in for the status LEDs and logs every change.
type LogIndicator struct {
	mu      sync.Mutex
	link    bool
	session bool
	alarm   application.AlarmLevel

	log zerolog.Logger
}

func NewLogIndicator(log zerolog.Logger) *LogIndicator {
	return &LogIndicator{log: log}
}

func (i *LogIndicator) SetLink(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.link != on {
		i.link = on
		i.log.Debug().Bool("on", on).Msg("link led")
	}
}

func (i *LogIndicator) SetSession(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.session != on {
		i.session = on
		i.log.Debug().Bool("on", on).Msg("mqtt led")
	}
}

func (i *LogIndicator) SetAlarm(level application.AlarmLevel) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.alarm != level {
		i.alarm = level
		i.log.Debug().Str("level", level.String()).Msg("alarm led")
	}
}

// State returns the current outputs.
func (i *LogIndicator) State() (link, session bool, alarm application.AlarmLevel) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.link, i.session, i.alarm
}

var _ application.Indicator = &LogIndicator{}
