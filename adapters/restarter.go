package adapters

import (
	"dht-to-mqtt/application"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// ProcessRestarter records restart requests. The process is replaced by
// a fresh copy of itself once the node loop has stopped, see Exec.
type ProcessRestarter struct {
	mu     sync.Mutex
	reason string
	count  int

	execFunc func(argv0 string, argv []string, envv []string) error

	log zerolog.Logger
}

func NewProcessRestarter(log zerolog.Logger) *ProcessRestarter {
	return &ProcessRestarter{execFunc: syscall.Exec, log: log}
}

func (r *ProcessRestarter) Restart(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.reason == "" {
		r.reason = reason
	}
	r.log.Warn().Str("reason", reason).Msg("restart requested")
}

// Requested returns the first restart reason, if any.
func (r *ProcessRestarter) Requested() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, r.count > 0
}

// Exec replaces the running process with the same executable and
// arguments. It only returns on failure.
func (r *ProcessRestarter) Exec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	reason, _ := r.Requested()
	r.log.Warn().Str("reason", reason).Str("executable", exe).Msg("restarting")

	if err := r.execFunc(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}

var _ application.Restarter = &ProcessRestarter{}
