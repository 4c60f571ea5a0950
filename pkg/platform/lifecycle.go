package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook is a named start or stop step.
type hook struct {
	name string
	fn   func(context.Context) error
}

// Lifecycle starts platform components in registration order and stops them
// in reverse.
type Lifecycle struct {
	mu      sync.Mutex
	logger  *slog.Logger
	start   []hook
	stop    []hook
	started bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{logger: logger}
}

// Register adds a component. Either step may be nil. Stop steps are paired
// with their start step so a failed start only unwinds what already ran.
func (l *Lifecycle) Register(name string, start, stop func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = append(l.start, hook{name: name, fn: start})
	l.stop = append(l.stop, hook{name: name, fn: stop})
}

// RegisterCloser registers a closer to be closed on shutdown.
func (l *Lifecycle) RegisterCloser(name string, c interface{ Close() error }) {
	l.Register(name, nil, func(context.Context) error { return c.Close() })
}

// Start runs all start steps.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.start {
		if h.fn == nil {
			continue
		}
		if err := h.fn(ctx); err != nil {
			l.unwind(ctx, i)
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
	}

	l.started = true
	return nil
}

// unwind stops the components registered before index failedAt.
func (l *Lifecycle) unwind(ctx context.Context, failedAt int) {
	for j := failedAt - 1; j >= 0; j-- {
		h := l.stop[j]
		if h.fn == nil {
			continue
		}
		if err := h.fn(ctx); err != nil {
			l.logger.Warn("lifecycle rollback: stop failed", "component", h.name, "error", err)
		}
	}
}

// Stop runs all stop steps in reverse order. Every step runs; failures are
// joined.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.started = false

	var errs []error
	for i := len(l.stop) - 1; i >= 0; i-- {
		h := l.stop[i]
		if h.fn == nil {
			continue
		}
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

// IsStarted returns whether the lifecycle has been started.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
