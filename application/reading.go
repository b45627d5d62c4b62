package application

import (
	"context"
	"time"
)

// Reading is a sensor capture that passed validity filtering.
type Reading struct {
	Temperature float64
	Humidity    float64
	CapturedAt  time.Time
}

// NodeIdentity is the static provisioning data of a node.
type NodeIdentity struct {
	ID        string
	PositionX float64
	PositionY float64
}

type Clock interface {
	Now() time.Time
	// Sleep blocks for d and reports false if ctx ended first.
	Sleep(ctx context.Context, d time.Duration) bool
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Clock = SystemClock{}
