package service

import (
	"context"

	"github.com/vogiaan1904/clinicqueue-sync/internal/metrics"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

// NewPushHandlers routes push events into the engine. After a reconnect
// the current selection is re-fetched in the background so the push
// goroutine keeps draining events meanwhile.
func NewPushHandlers(engine *queue.Engine, sel SelectionService, m *metrics.Metrics, l logger.Logger) push.Handlers {
	states := push.StateNames()

	return push.Handlers{
		OnOpen: func(ctx context.Context, pair push.Pair) {
			l.Infof(ctx, "push channel open for %s", pair)
		},
		OnReconnect: func(ctx context.Context, pair push.Pair) {
			l.Infof(ctx, "push channel reconnected for %s, refreshing snapshot", pair)
			go func() {
				if err := sel.Refresh(ctx); err != nil {
					l.Warnf(ctx, "service.pushHandlers.OnReconnect: %v", err)
				}
			}()
		},
		OnError: func(ctx context.Context, pair push.Pair, err error) {
			l.Warnf(ctx, "push channel error for %s: %v", pair, err)
		},
		OnFailed: func(ctx context.Context, pair push.Pair, err error) {
			l.Errorf(ctx, "push channel failed for %s: %v", pair, err)
		},
		OnStateChange: func(ctx context.Context, pair push.Pair, state push.State) {
			m.PushState(state.String(), states)
		},
		OnDropped: func(ctx context.Context, event string, err error) {
			l.Warnf(ctx, "dropped push event %s: %v", event, err)
			m.PushDropped(event)
		},
		OnQueueUpdate: func(ctx context.Context, ev models.QueueUpdateEvent) {
			m.PushEvent(string(models.EventQueueUpdate), engine.ApplyQueueUpdate(ctx, ev))
		},
		OnTokenCalled: func(ctx context.Context, ev models.TokenEvent) {
			m.PushEvent(string(models.EventTokenCalled), engine.ApplyTokenCalled(ctx, ev))
		},
		OnTokenCompleted: func(ctx context.Context, ev models.TokenEvent) {
			m.PushEvent(string(models.EventTokenCompleted), engine.ApplyTokenCompleted(ctx, ev))
		},
		OnTokenCancelled: func(ctx context.Context, ev models.TokenEvent) {
			m.PushEvent(string(models.EventTokenCancelled), engine.ApplyTokenCancelled(ctx, ev))
		},
	}
}
