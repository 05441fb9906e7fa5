package queue

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

// ApplyOptimisticCallNext applies the call-next transition before the
// server confirms it. The effect matches ApplyTokenCalled for the head of
// the waiting list, so the confirming push event is a no-op.
func (e *Engine) ApplyOptimisticCallNext(ctx context.Context, doctorID string) (models.Token, error) {
	var (
		called models.Token
		err    error
	)
	e.update(ctx, func() []string {
		st, ok := e.states[doctorID]
		if !ok {
			err = fmt.Errorf("%w: %s", errors.ErrDoctorNotFound, doctorID)
			return nil
		}
		if len(st.Waiting) == 0 {
			err = fmt.Errorf("%w: no waiting token for doctor %s", errors.ErrValidation, doctorID)
			return nil
		}
		called = promote(st, 0)
		e.optimistic[doctorID] = true
		return []string{doctorID}
	})
	return called, err
}

// ApplyOptimisticComplete retires the active token into previous.
func (e *Engine) ApplyOptimisticComplete(ctx context.Context, doctorID string) (models.Token, error) {
	var (
		done models.Token
		err  error
	)
	e.update(ctx, func() []string {
		st, ok := e.states[doctorID]
		if !ok {
			err = fmt.Errorf("%w: %s", errors.ErrDoctorNotFound, doctorID)
			return nil
		}
		if st.Active == nil {
			err = fmt.Errorf("%w: no active token for doctor %s", errors.ErrValidation, doctorID)
			return nil
		}
		done = retire(st, models.StatusCompleted)
		e.optimistic[doctorID] = true
		return []string{doctorID}
	})
	return done, err
}

// Confirm marks the optimistic state of doctorID as accepted by the server.
func (e *Engine) Confirm(doctorID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.optimistic, doctorID)
}

// DiscardOptimistic forgets doctorID if it still carries unconfirmed
// optimistic state. The next snapshot for that doctor rebuilds it.
func (e *Engine) DiscardOptimistic(ctx context.Context, doctorID string) bool {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.optimistic[doctorID] {
		return false
	}
	e.remove(doctorID)
	e.l.Debugf(ctx, "queue.Engine.DiscardOptimistic: dropped optimistic state for doctor %s", doctorID)
	return true
}

// Revert throws away local optimism for doctorID by re-fetching its queue
// and applying the result as a snapshot.
func (e *Engine) Revert(ctx context.Context, doctorID string) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("queue.Engine.Revert: %w", err)
	}

	var departmentID string
	if st, ok := e.State(doctorID); ok {
		departmentID = st.DepartmentID
	}

	states, err := e.fetcher.FetchQueues(ctx, departmentID, doctorID)
	if err != nil {
		e.l.Errorf(ctx, "queue.Engine.Revert: fetch for doctor %s: %v", doctorID, err)
		return err
	}

	found := false
	for _, st := range states {
		if st.DoctorID == doctorID {
			found = true
			break
		}
	}
	if !found {
		// The server no longer lists a queue for this doctor.
		states = append(states, models.DoctorQueueState{DoctorID: doctorID, DepartmentID: departmentID})
	}

	e.ApplySnapshot(ctx, states)
	return nil
}
