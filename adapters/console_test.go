package adapters

import (
	"context"
	"dht-to-mqtt/application"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConsole(t *testing.T) {
	lines := ReadConsole(context.Background(), strings.NewReader("info\n\n  STATUS \r\ntest\nrestart"))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	assert.Equal(t, []string{"info", "status", "test", "restart"}, got)
}

func TestReadConsole_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	lines := ReadConsole(ctx, pr)

	go func() {
		_, _ = pw.Write([]byte("info\nstatus\n"))
	}()

	assert.Equal(t, "info", <-lines)
	cancel()
	_ = pw.Close()

	// at most the pending line is delivered before the channel closes
	var rest []string
	for line := range lines {
		rest = append(rest, line)
	}
	assert.LessOrEqual(t, len(rest), 1)
}

func TestProcessRestarter(t *testing.T) {
	r := NewProcessRestarter(zerolog.Nop())

	_, ok := r.Requested()
	assert.False(t, ok)

	r.Restart("link association timeout")
	r.Restart("remote restart command")

	reason, ok := r.Requested()
	assert.True(t, ok)
	assert.Equal(t, "link association timeout", reason)

	var exe string
	r.execFunc = func(argv0 string, argv []string, envv []string) error {
		exe = argv0
		return fmt.Errorf("operation not permitted")
	}
	require.Error(t, r.Exec())
	assert.NotEmpty(t, exe)
}

func TestLogIndicator(t *testing.T) {
	i := NewLogIndicator(zerolog.Nop())

	i.SetLink(true)
	i.SetSession(true)
	i.SetAlarm(application.AlarmHigh)

	link, session, alarm := i.State()
	assert.True(t, link)
	assert.True(t, session)
	assert.Equal(t, application.AlarmHigh, alarm)

	i.SetSession(false)
	_, session, _ = i.State()
	assert.False(t, session)
}
