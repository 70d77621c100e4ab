// Package backend wraps the optional OpenCV acceleration as an injected
// capability with an explicit lifecycle. Components receive an *Accelerator
// handle; nothing consults global state.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"layerscope/internal/logger"
)

// ErrUnavailable is returned when an accelerated operation is requested
// before the backend reached the Ready state, or after it failed to load.
var ErrUnavailable = errors.New("accelerated backend unavailable")

type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Accelerator struct {
	mu      sync.Mutex
	state   State
	loadErr error
	log     logger.Logger
}

func New(log logger.Logger) *Accelerator {
	return &Accelerator{
		state: StateUnloaded,
		log:   logger.OrNop(log),
	}
}

func (a *Accelerator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// EnsureReady probes the OpenCV runtime once and records the outcome. A
// failed probe is sticky; callers decide whether to retry with acceleration
// disabled. The context bounds the probe (the CLI applies a 30 s timeout).
func (a *Accelerator) EnsureReady(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateReady:
		return nil
	case StateFailed:
		return fmt.Errorf("%w: %v", ErrUnavailable, a.loadErr)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	a.state = StateLoading
	a.log.Debug("Backend", "probing OpenCV runtime", nil)

	if err := probe(); err != nil {
		a.state = StateFailed
		a.loadErr = err
		a.log.Error("Backend", err, map[string]interface{}{"state": a.state.String()})
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a.state = StateReady
	a.log.Info("Backend", "OpenCV backend ready", map[string]interface{}{
		"version": gocv.OpenCVVersion(),
	})
	return nil
}

// ready reports whether accelerated calls may proceed, without mutating
// state.
func (a *Accelerator) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateReady {
		return fmt.Errorf("%w: state %s", ErrUnavailable, a.state)
	}
	return nil
}

func probe() error {
	mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)
	defer mat.Close()
	if mat.Empty() {
		return errors.New("failed to allocate probe Mat")
	}
	return nil
}
