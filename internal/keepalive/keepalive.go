// Package keepalive periodically interacts with the open stream page so
// players that pause idle viewers keep playing.
package keepalive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webvideo/internal/logging"
)

// DefaultInterval is the pause between synthetic interactions.
const DefaultInterval = 60 * time.Second

const warnAfterFailures = 3

// Target receives synthetic interaction.
type Target interface {
	Poke(ctx context.Context) error
}

// Pulser runs at most one pulse loop at a time.
type Pulser struct {
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped pulser.
func New(interval time.Duration, logger *slog.Logger) *Pulser {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pulser{
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "keepalive"),
	}
}

// Start pokes target immediately and then once per interval until Stop.
// A running loop is replaced.
func (p *Pulser) Start(target Target) {
	if target == nil {
		return
	}
	p.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.loop(ctx, target, done)
	p.logger.Debug("keep-alive started", logging.Duration("interval", p.interval))
}

// Stop halts the loop and waits for an in-flight poke to return. Stopping a
// stopped pulser is a no-op.
func (p *Pulser) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Debug("keep-alive stopped")
}

// Running reports whether a loop is active.
func (p *Pulser) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Pulser) loop(ctx context.Context, target Target, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	failures := 0
	for {
		pokeCtx, cancel := context.WithTimeout(ctx, p.interval)
		err := target.Poke(pokeCtx)
		cancel()
		switch {
		case err == nil:
			failures = 0
		case ctx.Err() != nil:
			return
		default:
			failures++
			if failures == warnAfterFailures {
				logging.WarnWithContext(p.logger, "keep-alive interaction failing", "keepalive_failed",
					logging.Int("consecutive_failures", failures),
					logging.String(logging.FieldErrorHint, "check that the browser window is still open"),
					logging.String(logging.FieldImpact, "stream may pause for idle viewers"),
					logging.Error(err),
				)
			} else {
				p.logger.Debug("keep-alive poke failed", logging.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
