// Package shutdown coordinates graceful teardown across the agents.
// Handlers register with a phase; lower phases stop first and handlers
// within a phase stop concurrently. The serve command uses three
// phases: servers drain, then sinks and pools close, then the logger
// flushes.
package shutdown

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phases used by the serve command.
const (
	PhaseServers = 10
	PhaseSinks   = 20
	PhaseLogger  = 30
)

// Common errors.
var (
	ErrAlreadyShutdown = errors.New("shutdown already initiated")
	ErrTimeout         = errors.New("shutdown timeout exceeded")
	ErrHandlerFailed   = errors.New("one or more handlers failed")
)

// Func tears one component down. The context is cancelled when the
// shutdown deadline passes.
type Func func(ctx context.Context) error

type registration struct {
	name  string
	phase int
	fn    Func
}

// Coordinator runs registered teardown funcs in phase order.
type Coordinator struct {
	logger *zap.Logger

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	err      error
	done     chan struct{}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		logger: logger.Named("shutdown"),
		done:   make(chan struct{}),
	}
}

// Register adds a teardown func. Registration order breaks ties within
// a phase only for reporting; same-phase handlers run concurrently.
func (c *Coordinator) Register(name string, phase int, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, fn: fn})
}

// Shutdown runs every handler once. Later calls return the first run's
// result without running anything.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	first := false
	c.once.Do(func() {
		first = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if first {
		return c.err
	}
	select {
	case <-c.done:
		return c.err
	default:
		return ErrAlreadyShutdown
	}
}

// Done is closed once shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var failed bool
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		select {
		case <-ctx.Done():
			c.logger.Error("shutdown deadline passed with handlers pending",
				zap.String("next", handlers[start].name))
			return ErrTimeout
		default:
		}

		if c.runPhase(ctx, handlers[start:end]) {
			failed = true
		}
		start = end
	}

	if failed {
		return ErrHandlerFailed
	}
	return nil
}

// runPhase runs one phase's handlers concurrently and reports whether
// any failed.
func (c *Coordinator) runPhase(ctx context.Context, phase []registration) bool {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed bool

	for _, reg := range phase {
		wg.Add(1)
		go func(r registration) {
			defer wg.Done()

			start := time.Now()
			err := r.fn(ctx)
			if err != nil {
				mu.Lock()
				failed = true
				mu.Unlock()
				c.logger.Error("handler failed",
					zap.String("name", r.name),
					zap.Int("phase", r.phase),
					zap.Error(err))
				return
			}
			c.logger.Info("handler stopped",
				zap.String("name", r.name),
				zap.Int("phase", r.phase),
				zap.Duration("took", time.Since(start)))
		}(reg)
	}

	wg.Wait()
	return failed
}
