package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

const stateTTL = 12 * time.Hour

// StateRepository mirrors reconciled doctor queues into Redis so display
// boards can read the latest state and subscribe to changes.
type StateRepository interface {
	SaveState(ctx context.Context, st models.DoctorQueueState) error
	// PublishState is a queue.ChangeListener. Errors are logged.
	PublishState(ctx context.Context, st models.DoctorQueueState)
}

type redisStateRepository struct {
	cli redis.Cmdable
	l   logger.Logger
}

func NewRedisStateRepository(cli redis.Cmdable, l logger.Logger) StateRepository {
	return &redisStateRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisStateRepository) SaveState(ctx context.Context, st models.DoctorQueueState) error {
	val, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state for doctor %s: %w", st.DoctorID, err)
	}

	if err := r.cli.Set(ctx, StateKey(st.DoctorID), val, stateTTL).Err(); err != nil {
		r.l.Errorf(ctx, "redisStateRepository.SaveState: %v", err)
		return err
	}

	if err := r.cli.Publish(ctx, StateChannel(st.DoctorID), val).Err(); err != nil {
		r.l.Errorf(ctx, "redisStateRepository.SaveState: publish: %v", err)
		return err
	}

	r.l.Debugf(ctx, "published state for doctor %s: waiting=%d", st.DoctorID, len(st.Waiting))
	return nil
}

func (r *redisStateRepository) PublishState(ctx context.Context, st models.DoctorQueueState) {
	// Listeners run on the writer's goroutine; a slow Redis must not stall
	// reconciliation forever.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	// SaveState logs its own failures.
	r.SaveState(ctx, st)
}

func StateKey(doctorID string) string {
	return fmt.Sprintf("clinicqueue:doctor:%s:state", doctorID)
}

func StateChannel(doctorID string) string {
	return fmt.Sprintf("clinicqueue:doctor:%s:updates", doctorID)
}
