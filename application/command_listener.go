package application

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type Command string

const (
	CommandRestart Command = "restart"
	CommandStatus  Command = "status"
)

type CommandMessage struct {
	Command Command `json:"command"`
}

// ParseCommand decodes a control payload. Payloads that are not JSON
// objects or carry an unknown command are rejected.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var m CommandMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return CommandMessage{}, fmt.Errorf("parse command: %w", err)
	}

	switch m.Command {
	case CommandRestart, CommandStatus:
		return m, nil
	case "":
		return CommandMessage{}, fmt.Errorf("parse command: missing command")
	default:
		return CommandMessage{}, fmt.Errorf("parse command: unknown command %q", m.Command)
	}
}

type StatusPublisher interface {
	PublishStatus(status string) bool
}

type CommandListenerParams struct {
	Restarter Restarter
	Status    StatusPublisher
	// StatusReply is the status sent back for a status command.
	StatusReply string

	Log zerolog.Logger
}

// CommandListener dispatches inbound control messages. Every command is a
// one-shot side effect.
type CommandListener struct {
	params CommandListenerParams

	log zerolog.Logger
}

func NewCommandListener(params CommandListenerParams) (*CommandListener, error) {
	if params.Restarter == nil {
		return nil, fmt.Errorf("Restarter is nil")
	}
	if params.Status == nil {
		return nil, fmt.Errorf("Status is nil")
	}
	if params.StatusReply == "" {
		params.StatusReply = StatusOnline
	}
	return &CommandListener{params: params, log: params.Log}, nil
}

// OnMessage handles one inbound message. Malformed payloads are dropped.
func (l *CommandListener) OnMessage(topic string, payload []byte) {
	l.log.Debug().Str("topic", topic).Bytes("payload", payload).Msg("message received")

	cmd, err := ParseCommand(payload)
	if err != nil {
		l.log.Debug().Err(err).Str("topic", topic).Msg("dropping control message")
		return
	}

	switch cmd.Command {
	case CommandRestart:
		l.log.Warn().Msg("restart command received")
		l.params.Restarter.Restart("remote restart command")
	case CommandStatus:
		l.params.Status.PublishStatus(l.params.StatusReply)
	}
}
