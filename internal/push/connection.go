package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

// Status is a point-in-time view of the current connection.
type Status struct {
	Pair      Pair   `json:"pair"`
	State     State  `json:"state"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

// connection drives one Pair through the lifecycle machine on its own
// goroutine. The machine is only touched through fire.
type connection struct {
	pair      Pair
	transport Transport
	backoff   Backoff
	handlers  Handlers
	l         logger.Logger
	after     func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	m       machine
	stream  Stream
	lastErr error

	resetCh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func newConnection(pair Pair, t Transport, b Backoff, maxAttempts int, h Handlers, l logger.Logger, after func(time.Duration) <-chan time.Time) *connection {
	return &connection{
		pair:      pair,
		transport: t,
		backoff:   b,
		handlers:  h,
		l:         l,
		after:     after,
		m:         newMachine(maxAttempts),
		resetCh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (c *connection) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	ctx = c.l.WithFields(ctx, "department_id", c.pair.DepartmentID, "doctor_id", c.pair.DoctorID)
	c.cancel = cancel
	go c.run(ctx)
}

// stop closes the transport and waits for the goroutine to exit.
func (c *connection) stop() {
	c.cancel()
	c.closeStream()
	<-c.done
}

// reset asks a FAILED connection to start over. It reports whether the
// connection was FAILED.
func (c *connection) reset() bool {
	if c.status().State != StateFailed {
		return false
	}
	select {
	case c.resetCh <- struct{}{}:
	default:
	}
	return true
}

func (c *connection) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Pair: c.pair, State: c.m.state, Attempts: c.m.attempts}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *connection) run(ctx context.Context) {
	defer close(c.done)
	defer c.closeStream()

	sig, ok := sigStart, true
	for {
		if ctx.Err() != nil {
			c.fire(ctx, sigStop)
			return
		}
		if ok {
			sig, ok = c.perform(ctx, c.fire(ctx, sig))
			continue
		}
		sig, ok = c.wait(ctx)
	}
}

func (c *connection) fire(ctx context.Context, sig signal) []effect {
	c.mu.Lock()
	prev := c.m.state
	next, effects := transition(c.m, sig)
	c.m = next
	c.mu.Unlock()

	if next.state != prev {
		c.l.Debugf(ctx, "push.connection.fire: %s -> %s", prev, next.state)
		if h := c.handlers.OnStateChange; h != nil {
			c.safely(ctx, "OnStateChange", func() { h(ctx, c.pair, next.state) })
		}
	}
	return effects
}

// perform runs effects in order and returns the signal they produced, if any.
func (c *connection) perform(ctx context.Context, effects []effect) (signal, bool) {
	var (
		next signal
		ok   bool
	)

	for _, eff := range effects {
		switch eff {
		case effCloseTransport:
			c.closeStream()

		case effOpenTransport:
			stream, err := c.transport.Connect(ctx, c.pair)
			if err != nil {
				if ctx.Err() != nil {
					return 0, false
				}
				c.setErr(err)
				next, ok = sigTransportError, true
				continue
			}
			c.setStream(stream)
			next, ok = sigHandshakeOK, true

		case effEmitOpened:
			c.l.Infof(ctx, "push channel opened for %s", c.pair)
			if h := c.handlers.OnOpen; h != nil {
				c.safely(ctx, "OnOpen", func() { h(ctx, c.pair) })
			}

		case effEmitReconnected:
			c.l.Infof(ctx, "push channel re-established for %s", c.pair)
			if h := c.handlers.OnReconnect; h != nil {
				c.safely(ctx, "OnReconnect", func() { h(ctx, c.pair) })
			}

		case effEmitError:
			err := c.err()
			c.l.Warnf(ctx, "push.connection.perform: transport error for %s: %v", c.pair, err)
			if h := c.handlers.OnError; h != nil {
				c.safely(ctx, "OnError", func() { h(ctx, c.pair, err) })
			}

		case effEmitFailed:
			st := c.status()
			err := fmt.Errorf("%w after %d attempts: %s", errors.ErrMaxReconnectExceeded, st.Attempts, st.LastError)
			c.l.Errorf(ctx, "push.connection.perform: %v", err)
			c.drainReset()
			if h := c.handlers.OnFailed; h != nil {
				c.safely(ctx, "OnFailed", func() { h(ctx, c.pair, err) })
			}

		case effScheduleRetry:
			delay := c.backoff.Delay(c.status().Attempts)
			c.l.Debugf(ctx, "push.connection.perform: retrying %s in %s", c.pair, delay)
			select {
			case <-ctx.Done():
				return 0, false
			case <-c.after(delay):
				next, ok = sigRetry, true
			}
		}
	}

	return next, ok
}

// wait blocks in the current state until something produces a signal.
func (c *connection) wait(ctx context.Context) (signal, bool) {
	switch c.status().State {
	case StateOpen:
		stream := c.currentStream()
		if stream == nil {
			return 0, false
		}
		msg, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			c.setErr(err)
			return sigTransportError, true
		}
		c.fire(ctx, sigMessage)
		c.dispatch(ctx, msg)
		return 0, false

	case StateFailed:
		select {
		case <-ctx.Done():
		case <-c.resetCh:
			return sigReset, true
		}
		return 0, false

	default:
		<-ctx.Done()
		return 0, false
	}
}

func (c *connection) dispatch(ctx context.Context, msg Message) {
	call, err := c.handlers.decode(c.pair, msg)
	if err != nil {
		c.l.Warnf(ctx, "push.connection.dispatch: dropped %s event: %v", msg.Name, err)
		if h := c.handlers.OnDropped; h != nil {
			c.safely(ctx, "OnDropped", func() { h(ctx, msg.Name, err) })
		}
		return
	}
	if call == nil {
		c.l.Debugf(ctx, "push.connection.dispatch: no handler for %s event", msg.Name)
		return
	}
	c.safely(ctx, msg.Name, func() { call(ctx) })
}

func (c *connection) safely(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.l.Errorf(ctx, "push.connection.safely: %s handler panic: %v", name, r)
		}
	}()
	fn()
}

func (c *connection) setStream(s Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = s
}

func (c *connection) currentStream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func (c *connection) closeStream() {
	c.mu.Lock()
	s := c.stream
	c.stream = nil
	c.mu.Unlock()

	if s != nil {
		_ = s.Close()
	}
}

func (c *connection) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *connection) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *connection) drainReset() {
	select {
	case <-c.resetCh:
	default:
	}
}
