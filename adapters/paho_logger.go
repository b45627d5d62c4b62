package adapters

import (
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// PahoLogger forwards paho's internal logging to zerolog at a fixed level.
type PahoLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

func NewPahoLogger(log zerolog.Logger, level zerolog.Level) PahoLogger {
	return PahoLogger{log: log, level: level}
}

func (p PahoLogger) Println(v ...interface{}) {
	p.log.WithLevel(p.level).Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (p PahoLogger) Printf(format string, v ...interface{}) {
	p.log.WithLevel(p.level).Msgf(format, v...)
}

var _ mqtt.Logger = PahoLogger{}

// RoutePahoLogs installs zerolog backed loggers for every paho log level.
func RoutePahoLogs(log zerolog.Logger) {
	log = log.With().Str("module", "paho").Logger()

	mqtt.CRITICAL = NewPahoLogger(log, zerolog.ErrorLevel)
	mqtt.ERROR = NewPahoLogger(log, zerolog.ErrorLevel)
	mqtt.WARN = NewPahoLogger(log, zerolog.WarnLevel)
	mqtt.DEBUG = NewPahoLogger(log, zerolog.TraceLevel)
}
