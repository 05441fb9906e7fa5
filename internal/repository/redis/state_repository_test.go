package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

// fakeCmdable overrides the two commands the repository issues; any
// other call panics through the nil embedded interface.
type fakeCmdable struct {
	redis.Cmdable
	store      map[string][]byte
	published  map[string][][]byte
	publishErr error
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{store: map[string][]byte{}, published: map[string][][]byte{}}
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.store[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestPublishStateStoresAndPublishes(t *testing.T) {
	cli := newFakeCmdable()
	repo := NewRedisStateRepository(cli, logger.InitializeTestZapLogger())
	ctx := context.Background()

	st := models.DoctorQueueState{
		DoctorID:     "d1",
		DepartmentID: "dep1",
		Waiting:      []models.Token{{TokenID: "t2", Status: models.StatusCheckedIn}},
		Active:       &models.Token{TokenID: "t1", Status: models.StatusInProgress},
	}
	repo.PublishState(ctx, st)

	msgs := cli.published[StateChannel("d1")]
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	var onWire models.DoctorQueueState
	if err := json.Unmarshal(msgs[0], &onWire); err != nil {
		t.Fatalf("decode published state: %v", err)
	}
	if onWire.Active == nil || onWire.Active.TokenID != "t1" {
		t.Fatalf("published=%+v", onWire)
	}

	var stored models.DoctorQueueState
	if err := json.Unmarshal(cli.store[StateKey("d1")], &stored); err != nil {
		t.Fatalf("decode stored state: %v", err)
	}
	if len(stored.Waiting) != 1 || stored.Waiting[0].TokenID != "t2" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestSaveStatePublishError(t *testing.T) {
	cli := newFakeCmdable()
	cli.publishErr = errors.New("connection refused")
	repo := NewRedisStateRepository(cli, logger.InitializeTestZapLogger())

	err := repo.SaveState(context.Background(), models.DoctorQueueState{DoctorID: "d1"})
	if !errors.Is(err, cli.publishErr) {
		t.Fatalf("err=%v, want %v", err, cli.publishErr)
	}
}

// A failing Redis is logged and never surfaces to the engine's listener
// fan-out.
func TestPublishStateSwallowsErrors(t *testing.T) {
	cli := newFakeCmdable()
	cli.publishErr = errors.New("connection refused")
	repo := NewRedisStateRepository(cli, logger.InitializeTestZapLogger())

	repo.PublishState(context.Background(), models.DoctorQueueState{DoctorID: "d1"})

	if _, ok := cli.store[StateKey("d1")]; !ok {
		t.Fatal("state not stored before the publish failure")
	}
	if n := len(cli.published[StateChannel("d1")]); n != 0 {
		t.Fatalf("published %d messages, want 0", n)
	}
}
