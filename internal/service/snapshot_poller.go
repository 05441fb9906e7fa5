package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

type snapshotPoller struct {
	selection SelectionService
	logger    logger.Logger
	config    PollerConfig

	// State management
	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	// Metrics
	lastRefreshed time.Time
	refreshCount  int64
	errorCount    int64
}

type PollerConfig struct {
	Interval        time.Duration // How often to re-fetch the current selection
	RetryAttempts   int
	RetryDelay      time.Duration // Multiplied by the attempt number
	RefreshTimeout  time.Duration // Bound for one refresh including retries
	ShutdownTimeout time.Duration
}

// NewSnapshotPoller re-fetches the current selection on a fixed interval so
// state converges even while the push channel is down.
func NewSnapshotPoller(selection SelectionService, l logger.Logger, cfg config.SelectionConfig) SnapshotPoller {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &snapshotPoller{
		selection: selection,
		logger:    l,
		config: PollerConfig{
			Interval:        cfg.RefreshInterval,
			RetryAttempts:   attempts,
			RetryDelay:      cfg.RetryDelay,
			RefreshTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		stopCh: make(chan struct{}),
	}
}

func (p *snapshotPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return errors.New("snapshot poller is already running")
	}
	if p.config.Interval <= 0 {
		return fmt.Errorf("snapshot poller interval must be positive, got %s", p.config.Interval)
	}

	p.logger.Infof(ctx, "Starting snapshot poller: interval=%s retry_attempts=%d", p.config.Interval, p.config.RetryAttempts)

	p.isRunning = true
	p.startedAt = time.Now()
	p.ticker = time.NewTicker(p.config.Interval)

	p.wg.Add(1)
	go p.pollLoop(ctx)

	return nil
}

func (p *snapshotPoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return errors.New("snapshot poller is not running")
	}

	p.logger.Info(context.Background(), "Stopping snapshot poller...")

	close(p.stopCh)
	if p.ticker != nil {
		p.ticker.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info(context.Background(), "Snapshot poller stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn(context.Background(), "Snapshot poller shutdown timeout exceeded")
	}

	p.isRunning = false
	return nil
}

func (p *snapshotPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Snapshot poller stopped due to context cancellation")
			return
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.refreshOnce(ctx)
		}
	}
}

func (p *snapshotPoller) refreshOnce(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, p.config.RefreshTimeout)
	defer cancel()

	err := p.withRetry(refreshCtx, func() error {
		return p.selection.Refresh(refreshCtx)
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.errorCount++
		p.logger.Errorf(ctx, "service.snapshotPoller.refreshOnce: %v", err)
		return
	}
	p.refreshCount++
	p.lastRefreshed = time.Now()
}

func (p *snapshotPoller) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := operation(); err != nil {
			lastErr = err
			p.logger.Warnf(ctx, "snapshot refresh failed (attempt %d/%d): %v", attempt+1, p.config.RetryAttempts, err)
			continue
		}

		return nil
	}

	return fmt.Errorf("refresh failed after %d attempts: %w", p.config.RetryAttempts, lastErr)
}

func (p *snapshotPoller) GetStatus() PollerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PollerStatus{
		IsRunning:     p.isRunning,
		StartedAt:     p.startedAt,
		LastRefreshed: p.lastRefreshed,
		RefreshCount:  p.refreshCount,
		ErrorCount:    p.errorCount,
	}
}
