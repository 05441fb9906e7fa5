package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

// Handlers receives connection lifecycle and typed queue events. Every
// callback is optional and runs on the connection's goroutine, in receipt
// order. A panicking callback is logged and the subscription stays up.
// Callbacks must not call back into the Manager.
type Handlers struct {
	OnOpen        func(ctx context.Context, pair Pair)
	OnReconnect   func(ctx context.Context, pair Pair)
	OnError       func(ctx context.Context, pair Pair, err error)
	OnFailed      func(ctx context.Context, pair Pair, err error)
	OnStateChange func(ctx context.Context, pair Pair, state State)
	OnDropped     func(ctx context.Context, event string, err error)

	OnQueueUpdate    func(ctx context.Context, ev models.QueueUpdateEvent)
	OnTokenCalled    func(ctx context.Context, ev models.TokenEvent)
	OnTokenCompleted func(ctx context.Context, ev models.TokenEvent)
	OnTokenCancelled func(ctx context.Context, ev models.TokenEvent)
}

// decode turns a wire message into a call on the matching typed handler.
// Unknown event names return (nil, nil).
func (h Handlers) decode(pair Pair, msg Message) (func(ctx context.Context), error) {
	switch models.EventType(msg.Name) {
	case models.EventQueueUpdate:
		var ev models.QueueUpdateEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errors.ErrMalformedPayload, msg.Name, err)
		}
		if ev.DoctorID == "" {
			ev.DoctorID = pair.DoctorID
		}
		if ev.DepartmentID == "" {
			ev.DepartmentID = pair.DepartmentID
		}
		if h.OnQueueUpdate == nil {
			return nil, nil
		}
		return func(ctx context.Context) { h.OnQueueUpdate(ctx, ev) }, nil

	case models.EventTokenCalled, models.EventTokenCompleted, models.EventTokenCancelled:
		var ev models.TokenEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errors.ErrMalformedPayload, msg.Name, err)
		}
		if ev.TokenID == "" && ev.Token != nil {
			ev.TokenID = ev.Token.TokenID
		}
		if ev.TokenID == "" {
			return nil, fmt.Errorf("%w: %s without tokenId", errors.ErrMalformedPayload, msg.Name)
		}
		if ev.DoctorID == "" {
			ev.DoctorID = pair.DoctorID
		}

		fn := h.OnTokenCalled
		switch models.EventType(msg.Name) {
		case models.EventTokenCompleted:
			fn = h.OnTokenCompleted
		case models.EventTokenCancelled:
			fn = h.OnTokenCancelled
		}
		if fn == nil {
			return nil, nil
		}
		return func(ctx context.Context) { fn(ctx, ev) }, nil
	}

	return nil, nil
}
