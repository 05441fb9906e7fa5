package queue

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	"golang.org/x/time/rate"
)

// SnapshotFetcher loads authoritative queue state from the REST API.
type SnapshotFetcher interface {
	FetchQueues(ctx context.Context, departmentID, doctorID string) ([]models.DoctorQueueState, error)
}

// ChangeListener receives a copy of a doctor's state after every applied
// mutation. Listeners may read from the engine but must not mutate it.
type ChangeListener func(ctx context.Context, st models.DoctorQueueState)

// Engine is the only writer of per-doctor queue state. Snapshots, push
// events and optimistic commands are all applied through it, one at a
// time, in the order they are received.
type Engine struct {
	// writeMu serialises mutations together with their listener fan-out
	// so listeners observe changes in apply order.
	writeMu sync.Mutex

	mu         sync.RWMutex
	states     map[string]*models.DoctorQueueState
	order      []string
	optimistic map[string]bool

	fetcher   SnapshotFetcher
	limiter   *rate.Limiter
	listeners []ChangeListener
	l         logger.Logger
}

func NewEngine(fetcher SnapshotFetcher, l logger.Logger) *Engine {
	return &Engine{
		states:     make(map[string]*models.DoctorQueueState),
		optimistic: make(map[string]bool),
		fetcher:    fetcher,
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		l:          l,
	}
}

// OnChange registers a listener. Not safe to call once events flow.
func (e *Engine) OnChange(fn ChangeListener) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) State(doctorID string) (models.DoctorQueueState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.states[doctorID]
	if !ok {
		return models.DoctorQueueState{}, false
	}
	return st.Clone(), true
}

// States returns every known doctor queue in the order first seen.
func (e *Engine) States() []models.DoctorQueueState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.DoctorQueueState, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.states[id].Clone())
	}
	return out
}

// FindToken looks a token up among waiting and active tokens of every doctor.
func (e *Engine) FindToken(tokenID string) (models.Token, string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, id := range e.order {
		st := e.states[id]
		if st.Active != nil && st.Active.TokenID == tokenID {
			return *st.Active, id, true
		}
		if i := st.IndexOf(tokenID); i >= 0 {
			return st.Waiting[i], id, true
		}
	}
	return models.Token{}, "", false
}

// Pending reports whether doctorID carries unconfirmed optimistic state.
func (e *Engine) Pending(doctorID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.optimistic[doctorID]
}

// update runs fn under the write lock. fn returns the doctors it changed;
// their new states are handed to listeners after the state lock is
// released.
func (e *Engine) update(ctx context.Context, fn func() []string) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	changed := fn()
	out := make([]models.DoctorQueueState, 0, len(changed))
	for _, id := range changed {
		if st, ok := e.states[id]; ok {
			out = append(out, st.Clone())
		}
	}
	e.mu.Unlock()

	for _, st := range out {
		e.notify(ctx, st)
	}
}

func (e *Engine) notify(ctx context.Context, st models.DoctorQueueState) {
	for _, fn := range e.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.l.Errorf(ctx, "queue.Engine.notify: listener panic for doctor %s: %v", st.DoctorID, r)
				}
			}()
			fn(ctx, st)
		}()
	}
}

// put stores st, keeping first-seen order. Caller holds e.mu.
func (e *Engine) put(st *models.DoctorQueueState) {
	if _, ok := e.states[st.DoctorID]; !ok {
		e.order = append(e.order, st.DoctorID)
	}
	e.states[st.DoctorID] = st
}

// remove drops doctorID entirely. Caller holds e.mu.
func (e *Engine) remove(doctorID string) {
	if _, ok := e.states[doctorID]; !ok {
		return
	}
	delete(e.states, doctorID)
	delete(e.optimistic, doctorID)
	for i, id := range e.order {
		if id == doctorID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}
