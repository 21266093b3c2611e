package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollTarget is refreshed on every tick.
type PollTarget interface {
	PollOnce(ctx context.Context)
}

// Poller periodically re-reads tracked tickets so missed webhooks are
// caught up.
type Poller struct {
	target   PollTarget
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPoller creates a stopped poller.
func NewPoller(target PollTarget, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{target: target, interval: interval, logger: logger}
}

// Start launches the loop. It reports false when the poller was already
// running.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.loop(ctx, p.done)
	p.logger.Info("ticket poller started", zap.Duration("interval", p.interval))
	return true
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop cancels the loop and waits for an in-flight cycle to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	done := p.done
	p.running = false
	p.mu.Unlock()

	<-done
	p.logger.Info("ticket poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll cycle panicked", zap.Any("panic", r))
		}
	}()
	p.target.PollOnce(ctx)
}
