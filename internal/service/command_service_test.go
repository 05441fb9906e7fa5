package service

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	kafka "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka/producer"
	pkgErrors "github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

func newCommands(f *fakeAPI, prod *fakeProducer) (CommandService, *queue.Engine) {
	e := newEngine(f)
	var p producer.Producer
	if prod != nil {
		p = prod
	}
	svc := NewCommandService(e, f, p, nil, logger.InitializeTestZapLogger(), config.APIConfig{RevertTimeout: time.Second})
	return svc, e
}

func TestCallNextConfirmed(t *testing.T) {
	f := &fakeAPI{}
	prod := &fakeProducer{}
	svc, e := newCommands(f, prod)
	ctx := context.Background()

	t1, t2 := tok("t1", models.PriorityNormal), tok("t2", models.PriorityNormal)
	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(t1, t2)})

	out, err := svc.CallNext(ctx, "d1")
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if out.TokenID != "t1" || out.Command != CommandCallNext || out.CommandID == "" {
		t.Fatalf("output=%+v", out)
	}

	if len(f.statusCalls) != 1 {
		t.Fatalf("status requests=%d, want 1", len(f.statusCalls))
	}
	want := api.UpdateTokenStatusInput{TokenID: "t1", Status: models.StatusInProgress, DoctorID: "d1"}
	if f.statusCalls[0] != want {
		t.Fatalf("request=%+v, want %+v", f.statusCalls[0], want)
	}

	st, _ := e.State("d1")
	if st.Active == nil || st.Active.TokenID != "t1" || !reflect.DeepEqual(ids(st.Waiting), []string{"t2"}) || st.Previous != nil {
		t.Fatalf("state after call-next: active=%+v waiting=%v previous=%+v", st.Active, ids(st.Waiting), st.Previous)
	}
	if e.Pending("d1") {
		t.Fatal("optimistic state still pending after confirmation")
	}

	// The confirming push event arrives afterwards and changes nothing.
	if e.ApplyTokenCalled(ctx, models.TokenEvent{TokenID: "t1", DoctorID: "d1"}) {
		t.Fatal("confirming token_called was applied again")
	}
	after, _ := e.State("d1")
	if !reflect.DeepEqual(st, after) {
		t.Fatalf("state changed by confirming event:\n got %+v\nwant %+v", after, st)
	}

	if len(prod.events) != 1 || prod.events[0].Outcome != kafka.OutcomeConfirmed || prod.events[0].Target != string(models.StatusInProgress) {
		t.Fatalf("audit events=%+v", prod.events)
	}
	if fetch, _, _ := f.counts(); fetch != 0 {
		t.Fatalf("confirmed command fetched %d times", fetch)
	}
}

func TestCallNextFailureRevertsToSnapshot(t *testing.T) {
	t1, t2 := tok("t1", models.PriorityNormal), tok("t2", models.PriorityNormal)
	server := queueD1(t1, t2)

	tcs := map[string]struct {
		status  int
		wantErr error
		outcome string
	}{
		"request failed": {status: http.StatusInternalServerError, wantErr: pkgErrors.ErrRequestFailed, outcome: kafka.OutcomeFailed},
		"stale state":    {status: http.StatusConflict, wantErr: pkgErrors.ErrStaleState, outcome: kafka.OutcomeStale},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			f := &fakeAPI{
				fetchQueues: func(context.Context, string, string) ([]models.DoctorQueueState, error) {
					return []models.DoctorQueueState{server.Clone()}, nil
				},
				updateTokenStatus: func(context.Context, api.UpdateTokenStatusInput) (*models.Token, error) {
					return nil, pkgErrors.NewRequestError(http.MethodPut, "/tokens", tc.status, "token already called")
				},
			}
			prod := &fakeProducer{}
			svc, e := newCommands(f, prod)
			ctx := context.Background()
			e.ApplySnapshot(ctx, []models.DoctorQueueState{server.Clone()})

			_, err := svc.CallNext(ctx, "d1")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want %v", err, tc.wantErr)
			}

			// Reference: a fresh engine that only ever saw the server snapshot.
			ref := newEngine(&fakeAPI{})
			ref.ApplySnapshot(ctx, []models.DoctorQueueState{server.Clone()})
			want, _ := ref.State("d1")
			got, _ := e.State("d1")
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("state after revert:\n got %+v\nwant %+v", got, want)
			}
			if e.Pending("d1") {
				t.Fatal("optimistic flag survived revert")
			}

			if fetch, _, _ := f.counts(); fetch != 1 {
				t.Fatalf("revert fetches=%d, want 1", fetch)
			}
			if svc.LastError() != "token already called" {
				t.Fatalf("banner=%q", svc.LastError())
			}
			svc.ClearError()
			if svc.LastError() != "" {
				t.Fatal("ClearError did not clear the banner")
			}
			if len(prod.events) != 1 || prod.events[0].Outcome != tc.outcome || prod.events[0].Error == "" {
				t.Fatalf("audit events=%+v", prod.events)
			}
		})
	}
}

func TestCompleteCurrent(t *testing.T) {
	f := &fakeAPI{}
	svc, e := newCommands(f, nil)
	ctx := context.Background()

	if _, err := svc.CompleteCurrent(ctx, "d1"); !errors.Is(err, pkgErrors.ErrDoctorNotFound) {
		t.Fatalf("unknown doctor err=%v", err)
	}

	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(tok("t1", models.PriorityNormal))})
	if _, err := svc.CompleteCurrent(ctx, "d1"); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("no active token err=%v, want ErrValidation", err)
	}
	if _, status, _ := f.counts(); status != 0 {
		t.Fatalf("validation failure sent %d requests", status)
	}

	if _, err := svc.CallNext(ctx, "d1"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	out, err := svc.CompleteCurrent(ctx, "d1")
	if err != nil {
		t.Fatalf("CompleteCurrent: %v", err)
	}
	if out.TokenID != "t1" || f.statusCalls[1].Status != models.StatusCompleted {
		t.Fatalf("out=%+v request=%+v", out, f.statusCalls[1])
	}

	st, _ := e.State("d1")
	if st.Active != nil || st.Previous == nil || st.Previous.TokenID != "t1" {
		t.Fatalf("state after complete: active=%+v previous=%+v", st.Active, st.Previous)
	}
}

func TestCallNextEmptyQueueSendsNothing(t *testing.T) {
	f := &fakeAPI{}
	svc, e := newCommands(f, nil)
	ctx := context.Background()
	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1()})

	if _, err := svc.CallNext(ctx, "d1"); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("err=%v, want ErrValidation", err)
	}
	if _, err := svc.CallNext(ctx, ""); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("empty doctor err=%v, want ErrValidation", err)
	}
	if _, status, _ := f.counts(); status != 0 {
		t.Fatalf("sent %d requests, want 0", status)
	}
}

func TestUpdatePriorityClamp(t *testing.T) {
	tcs := map[string]struct {
		priority models.Priority
		action   api.PriorityAction
		wantErr  error
		wantSent bool
	}{
		"increase at emergency": {priority: models.PriorityEmergency, action: api.ActionIncrease, wantErr: pkgErrors.ErrValidation},
		"decrease at normal":    {priority: models.PriorityNormal, action: api.ActionDecrease, wantErr: pkgErrors.ErrValidation},
		"unknown action":        {priority: models.PriorityHigh, action: "sideways", wantErr: pkgErrors.ErrValidation},
		"increase at high":      {priority: models.PriorityHigh, action: api.ActionIncrease, wantSent: true},
		"decrease at high":      {priority: models.PriorityHigh, action: api.ActionDecrease, wantSent: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			f := &fakeAPI{}
			svc, e := newCommands(f, nil)
			ctx := context.Background()
			e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(tok("t1", tc.priority), tok("t2", models.PriorityNormal))})
			before, _ := e.State("d1")

			_, err := svc.UpdatePriority(ctx, "t1", tc.action)
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && err != nil {
				t.Fatalf("err=%v", err)
			}

			_, _, prio := f.counts()
			if sent := prio == 1; sent != tc.wantSent {
				t.Fatalf("priority requests=%d, want sent=%v", prio, tc.wantSent)
			}
			if tc.wantSent && f.prioCalls[0] != (api.UpdatePriorityInput{TokenID: "t1", Action: tc.action}) {
				t.Fatalf("request=%+v", f.prioCalls[0])
			}

			// Priority never reorders locally.
			after, _ := e.State("d1")
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("local state changed: %+v", after)
			}
		})
	}
}

func TestUpdatePriorityUnknownToken(t *testing.T) {
	f := &fakeAPI{}
	svc, _ := newCommands(f, nil)

	if _, err := svc.UpdatePriority(context.Background(), "ghost", api.ActionIncrease); !errors.Is(err, pkgErrors.ErrTokenNotFound) {
		t.Fatalf("err=%v, want ErrTokenNotFound", err)
	}
}

func TestUpdatePriorityFailureDoesNotRevert(t *testing.T) {
	f := &fakeAPI{
		updatePriority: func(context.Context, api.UpdatePriorityInput) (*models.Token, error) {
			return nil, pkgErrors.NewRequestError(http.MethodPost, "/tokens/priority", http.StatusBadGateway, "upstream down")
		},
	}
	svc, e := newCommands(f, nil)
	ctx := context.Background()
	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(tok("t1", models.PriorityNormal))})

	if _, err := svc.UpdatePriority(ctx, "t1", api.ActionIncrease); !errors.Is(err, pkgErrors.ErrRequestFailed) {
		t.Fatalf("err=%v, want ErrRequestFailed", err)
	}
	if fetch, _, _ := f.counts(); fetch != 0 {
		t.Fatalf("priority failure re-fetched %d times", fetch)
	}
	if svc.LastError() != "upstream down" {
		t.Fatalf("banner=%q", svc.LastError())
	}
}

func TestDuplicateCommandsSuppressed(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{
		updatePriority: func(ctx context.Context, in api.UpdatePriorityInput) (*models.Token, error) {
			close(started)
			<-release
			return &models.Token{TokenID: in.TokenID, Priority: models.PriorityHigh}, nil
		},
	}
	svc, e := newCommands(f, nil)
	ctx := context.Background()
	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(tok("t1", models.PriorityNormal))})

	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdatePriority(ctx, "t1", api.ActionIncrease)
		done <- err
	}()
	<-started

	if busy := svc.Busy(); !reflect.DeepEqual(busy.UpdatingTokens, []string{"t1"}) {
		t.Fatalf("busy=%+v", busy)
	}
	if _, err := svc.UpdatePriority(ctx, "t1", api.ActionIncrease); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("duplicate err=%v, want ErrValidation", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first command: %v", err)
	}
	if _, _, prio := f.counts(); prio != 1 {
		t.Fatalf("priority requests=%d, want 1", prio)
	}
	if busy := svc.Busy(); len(busy.UpdatingTokens) != 0 {
		t.Fatalf("busy after completion=%+v", busy)
	}
}

func TestCallNextInFlightPerDoctor(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{
		updateTokenStatus: func(ctx context.Context, in api.UpdateTokenStatusInput) (*models.Token, error) {
			close(started)
			<-release
			return &models.Token{TokenID: in.TokenID, Status: in.Status}, nil
		},
	}
	svc, e := newCommands(f, nil)
	ctx := context.Background()
	e.ApplySnapshot(ctx, []models.DoctorQueueState{queueD1(tok("t1", models.PriorityNormal), tok("t2", models.PriorityNormal))})

	done := make(chan error, 1)
	go func() {
		_, err := svc.CallNext(ctx, "d1")
		done <- err
	}()
	<-started

	if _, err := svc.CallNext(ctx, "d1"); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("second call-next err=%v, want ErrValidation", err)
	}
	if busy := svc.Busy(); !reflect.DeepEqual(busy.CallingNext, []string{"d1"}) || !reflect.DeepEqual(busy.Unconfirmed, []string{"d1"}) {
		t.Fatalf("busy=%+v", busy)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call-next: %v", err)
	}
	if busy := svc.Busy(); len(busy.Unconfirmed) != 0 {
		t.Fatalf("unconfirmed after commit=%v", busy.Unconfirmed)
	}
	st, _ := e.State("d1")
	if st.Active == nil || st.Active.TokenID != "t1" || !reflect.DeepEqual(ids(st.Waiting), []string{"t2"}) {
		t.Fatalf("state=%+v", st)
	}
}

func TestStatusCommandsExclusivePerDoctor(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{
		updateTokenStatus: func(ctx context.Context, in api.UpdateTokenStatusInput) (*models.Token, error) {
			if in.DoctorID == "d1" {
				close(started)
				<-release
			}
			return &models.Token{TokenID: in.TokenID, Status: in.Status}, nil
		},
	}
	svc, e := newCommands(f, nil)
	ctx := context.Background()
	e.ApplySnapshot(ctx, []models.DoctorQueueState{
		queueD1(tok("t1", models.PriorityNormal)),
		{DoctorID: "d2", DepartmentID: "dep1", Waiting: []models.Token{{TokenID: "u1", Status: models.StatusCheckedIn, DoctorID: "d2"}}},
	})

	done := make(chan error, 1)
	go func() {
		_, err := svc.CallNext(ctx, "d1")
		done <- err
	}()
	<-started

	if _, err := svc.CompleteCurrent(ctx, "d1"); !errors.Is(err, pkgErrors.ErrValidation) {
		t.Fatalf("complete during call-next err=%v, want ErrValidation", err)
	}
	// Another doctor is unaffected.
	if _, err := svc.CallNext(ctx, "d2"); err != nil {
		t.Fatalf("call-next d2: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("call-next d1: %v", err)
	}
	if _, status, _ := f.counts(); status != 2 {
		t.Fatalf("status requests=%d, want 2", status)
	}
}
