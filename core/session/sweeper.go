package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionstore/pkg/logger"
)

// Sweeper periodically runs the reclamation sweep on a manager. It stands
// in for an external scheduler in deployments that have none; a daily
// interval is typical. Sweep failures are logged and never stop the loop.
type Sweeper struct {
	backend  Backend
	log      *slog.Logger
	interval time.Duration
	done     chan struct{}
}

// NewSweeper creates a sweeper invoking backend.Cleanup every interval.
func NewSweeper(backend Backend, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		backend:  backend,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine and returns
// immediately. The loop stops when Stop is called.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop terminates the sweep loop. Safe to call once.
func (s *Sweeper) Stop() {
	close(s.done)
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.backend.Cleanup(context.Background()); err != nil {
				s.log.Warn("session sweep completed with errors", logger.Error(err))
			}
		case <-s.done:
			return
		}
	}
}
