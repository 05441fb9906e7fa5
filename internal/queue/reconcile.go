package queue

import (
	"context"

	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

// ApplySnapshot replaces the state of every doctor in states. Any
// optimistic active/previous for those doctors is dropped; the stored
// timestamp never moves backwards.
func (e *Engine) ApplySnapshot(ctx context.Context, states []models.DoctorQueueState) {
	e.update(ctx, func() []string {
		changed := make([]string, 0, len(states))
		for _, in := range states {
			if in.DoctorID == "" {
				e.l.Warnf(ctx, "queue.Engine.ApplySnapshot: snapshot without doctorId dropped")
				continue
			}

			next := normalizeSnapshot(in)
			if cur, ok := e.states[in.DoctorID]; ok && cur.Timestamp.After(next.Timestamp.Time) {
				next.Timestamp = cur.Timestamp
			}

			e.put(&next)
			delete(e.optimistic, in.DoctorID)
			changed = append(changed, in.DoctorID)
		}
		return changed
	})
}

// ApplyQueueUpdate merges a partial update for one doctor. It returns
// false when the update was rejected as older than the stored state.
func (e *Engine) ApplyQueueUpdate(ctx context.Context, upd models.QueueUpdateEvent) bool {
	if upd.DoctorID == "" {
		e.l.Warnf(ctx, "queue.Engine.ApplyQueueUpdate: update without doctorId dropped")
		return false
	}

	applied := false
	e.update(ctx, func() []string {
		st, ok := e.states[upd.DoctorID]
		if !ok {
			st = &models.DoctorQueueState{DoctorID: upd.DoctorID}
		} else if !upd.Timestamp.IsZero() && upd.Timestamp.Before(st.Timestamp.Time) {
			e.l.Debugf(ctx, "queue.Engine.ApplyQueueUpdate: stale update for doctor %s (%s < %s) ignored",
				upd.DoctorID, upd.Timestamp, st.Timestamp)
			return nil
		}

		if active := inProgressCandidate(upd.CurrentToken, upd.Waiting); active != nil {
			st.Active = active
		}
		st.Waiting = waitingOnly(upd.Waiting, st.Active)

		if upd.DepartmentID != "" {
			st.DepartmentID = upd.DepartmentID
		}
		if upd.DoctorName != "" {
			st.DoctorName = upd.DoctorName
		}
		if upd.DepartmentName != "" {
			st.DepartmentName = upd.DepartmentName
		}
		st.TotalPatients = upd.TotalPatients
		if upd.Timestamp.After(st.Timestamp.Time) {
			st.Timestamp = upd.Timestamp
		}

		e.put(st)
		applied = true
		return []string{upd.DoctorID}
	})
	return applied
}

// ApplyTokenCalled promotes the referenced waiting token to active. A
// token that is already active, or not known at all, is a no-op.
func (e *Engine) ApplyTokenCalled(ctx context.Context, ev models.TokenEvent) bool {
	return e.applyTokenEvent(ctx, models.EventTokenCalled, ev, func(st *models.DoctorQueueState) bool {
		if st.Active != nil && st.Active.TokenID == ev.TokenID {
			return false
		}
		idx := st.IndexOf(ev.TokenID)
		if idx < 0 {
			e.l.Warnf(ctx, "queue.Engine.ApplyTokenCalled: token %s not in waiting list of doctor %s",
				ev.TokenID, st.DoctorID)
			return false
		}
		promote(st, idx)
		return true
	})
}

// ApplyTokenCompleted retires the active token into previous, or drops the
// token from waiting if the server completed it without calling it.
func (e *Engine) ApplyTokenCompleted(ctx context.Context, ev models.TokenEvent) bool {
	return e.applyTokenEvent(ctx, models.EventTokenCompleted, ev, func(st *models.DoctorQueueState) bool {
		if st.Active != nil && st.Active.TokenID == ev.TokenID {
			retire(st, models.StatusCompleted)
			return true
		}
		if idx := st.IndexOf(ev.TokenID); idx >= 0 {
			st.Waiting = removeAt(st.Waiting, idx)
			return true
		}
		return false
	})
}

// ApplyTokenCancelled removes the token from waiting and clears it from
// active. Previous is left alone.
func (e *Engine) ApplyTokenCancelled(ctx context.Context, ev models.TokenEvent) bool {
	return e.applyTokenEvent(ctx, models.EventTokenCancelled, ev, func(st *models.DoctorQueueState) bool {
		if st.Active != nil && st.Active.TokenID == ev.TokenID {
			st.Active = nil
			return true
		}
		if idx := st.IndexOf(ev.TokenID); idx >= 0 {
			st.Waiting = removeAt(st.Waiting, idx)
			return true
		}
		return false
	})
}

func (e *Engine) applyTokenEvent(ctx context.Context, kind models.EventType, ev models.TokenEvent, fn func(st *models.DoctorQueueState) bool) bool {
	doctorID := ev.DoctorID
	if doctorID == "" && ev.Token != nil {
		doctorID = ev.Token.DoctorID
	}
	if ev.TokenID == "" && ev.Token != nil {
		ev.TokenID = ev.Token.TokenID
	}
	if doctorID == "" || ev.TokenID == "" {
		e.l.Warnf(ctx, "queue.Engine.applyTokenEvent: %s without doctorId/tokenId dropped", kind)
		return false
	}

	applied := false
	e.update(ctx, func() []string {
		st, ok := e.states[doctorID]
		if !ok {
			e.l.Warnf(ctx, "queue.Engine.applyTokenEvent: %s for unknown doctor %s dropped", kind, doctorID)
			return nil
		}
		if !fn(st) {
			return nil
		}
		if ev.Timestamp.After(st.Timestamp.Time) {
			st.Timestamp = ev.Timestamp
		}
		applied = true
		return []string{doctorID}
	})
	return applied
}

func normalizeSnapshot(in models.DoctorQueueState) models.DoctorQueueState {
	out := in.Clone()

	active := in.Active.Clone()
	if active != nil && active.Status.IsTerminal() {
		active = nil
	}
	if active == nil {
		active = inProgressCandidate(nil, in.Waiting)
	}
	out.Active = active
	out.Waiting = waitingOnly(in.Waiting, active)
	return out
}

// inProgressCandidate picks the IN_PROGRESS token an update carries,
// preferring the explicit current token.
func inProgressCandidate(current *models.Token, waiting []models.Token) *models.Token {
	if current != nil && current.Status == models.StatusInProgress {
		return current.Clone()
	}
	for _, t := range waiting {
		if t.Status == models.StatusInProgress {
			c := t
			return &c
		}
	}
	return nil
}

// waitingOnly keeps tokens still waiting, in server order, minus the
// active token. A missing status counts as waiting.
func waitingOnly(tokens []models.Token, active *models.Token) []models.Token {
	out := make([]models.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Status != "" && !t.Status.IsWaiting() {
			continue
		}
		if active != nil && t.TokenID == active.TokenID {
			continue
		}
		out = append(out, t)
	}
	return out
}

// promote makes Waiting[idx] the active token, shifting the old active
// into previous.
func promote(st *models.DoctorQueueState, idx int) models.Token {
	tok := st.Waiting[idx]
	st.Waiting = removeAt(st.Waiting, idx)
	if st.Active != nil {
		st.Previous = st.Active
	}
	tok.Status = models.StatusInProgress
	st.Active = &tok
	return tok
}

func retire(st *models.DoctorQueueState, status models.TokenStatus) models.Token {
	done := *st.Active
	done.Status = status
	st.Previous = &done
	st.Active = nil
	return done
}

func removeAt(tokens []models.Token, idx int) []models.Token {
	out := make([]models.Token, 0, len(tokens)-1)
	out = append(out, tokens[:idx]...)
	return append(out, tokens[idx+1:]...)
}
