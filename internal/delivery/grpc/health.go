package grpc

import (
	"context"

	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PushServiceName is the health-check service reporting the push channel.
const PushServiceName = "clinicqueue.PushChannel"

type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HealthMirror reflects push connection state onto the gRPC health
// service. The overall ("") service is always SERVING; the push service is
// NOT_SERVING while the channel is down or retrying.
type HealthMirror struct {
	hs HealthSetter
	l  logger.Logger
}

func NewHealthMirror(hs HealthSetter, l logger.Logger) *HealthMirror {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(PushServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthMirror{hs: hs, l: l}
}

func (m *HealthMirror) SetPushState(ctx context.Context, state push.State) {
	status := servingStatus(state)
	m.hs.SetServingStatus(PushServiceName, status)
	m.l.Debugf(ctx, "health %s: %s (push %s)", PushServiceName, status, state)
}

// Observe wraps a push state callback so the mirror sees every
// transition too. next may be nil.
func (m *HealthMirror) Observe(next func(ctx context.Context, pair push.Pair, state push.State)) func(ctx context.Context, pair push.Pair, state push.State) {
	return func(ctx context.Context, pair push.Pair, state push.State) {
		if next != nil {
			next(ctx, pair, state)
		}
		m.SetPushState(ctx, state)
	}
}

func servingStatus(state push.State) healthpb.HealthCheckResponse_ServingStatus {
	switch state {
	case push.StateOpen, push.StateDisconnected:
		// DISCONNECTED means no doctor is selected, which is healthy.
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}
