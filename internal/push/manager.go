package push

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

// Manager keeps at most one live subscription, bound to the current
// (department, doctor) pair. Changing the pair always closes the old
// subscription before the new one is opened.
type Manager struct {
	transport   Transport
	backoff     Backoff
	maxAttempts int
	l           logger.Logger
	after       func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	base     context.Context
	handlers Handlers
	conn     *connection
}

func NewManager(t Transport, cfg config.PushConfig, l logger.Logger) *Manager {
	return &Manager{
		transport:   t,
		backoff:     NewBackoff(cfg),
		maxAttempts: cfg.MaxAttempts,
		l:           l,
		after:       time.After,
		base:        context.Background(),
	}
}

// Handle sets the callbacks used by connections opened from now on.
func (m *Manager) Handle(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// Start binds future connections to ctx. Cancelling ctx tears down the
// live connection.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base = ctx
}

// SetPair subscribes to pair. The same pair is a no-op; an incomplete pair
// only closes the current subscription.
func (m *Manager) SetPair(pair Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.pair == pair {
		return
	}
	if m.conn != nil {
		m.conn.stop()
		m.conn = nil
	}
	if !pair.Complete() {
		return
	}

	conn := newConnection(pair, m.transport, m.backoff, m.maxAttempts, m.handlers, m.l, m.after)
	conn.start(m.base)
	m.conn = conn
}

// Reset restarts a FAILED connection. It is a no-op for a connection that
// is still live or retrying.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return errors.ErrNoPushConnection
	}
	if m.conn.reset() {
		m.l.Infof(ctx, "push channel reset requested for %s", m.conn.pair)
	}
	return nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return Status{State: StateDisconnected}
	}
	return m.conn.status()
}

func (m *Manager) Close() {
	m.SetPair(Pair{})
}
