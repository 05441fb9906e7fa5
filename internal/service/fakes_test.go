package service

import (
	"context"
	"sync"

	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	kafka "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

type fakeAPI struct {
	mu          sync.Mutex
	fetchCalls  int
	statusCalls []api.UpdateTokenStatusInput
	prioCalls   []api.UpdatePriorityInput

	fetchQueues       func(ctx context.Context, departmentID, doctorID string) ([]models.DoctorQueueState, error)
	listDepartments   func(ctx context.Context) ([]models.Department, error)
	listDoctors       func(ctx context.Context, departmentID string) ([]models.Doctor, error)
	updateTokenStatus func(ctx context.Context, in api.UpdateTokenStatusInput) (*models.Token, error)
	updatePriority    func(ctx context.Context, in api.UpdatePriorityInput) (*models.Token, error)
}

func (f *fakeAPI) FetchQueues(ctx context.Context, departmentID, doctorID string) ([]models.DoctorQueueState, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchQueues == nil {
		return nil, nil
	}
	return f.fetchQueues(ctx, departmentID, doctorID)
}

func (f *fakeAPI) ListDepartments(ctx context.Context) ([]models.Department, error) {
	if f.listDepartments == nil {
		return nil, nil
	}
	return f.listDepartments(ctx)
}

func (f *fakeAPI) ListDoctors(ctx context.Context, departmentID string) ([]models.Doctor, error) {
	if f.listDoctors == nil {
		return nil, nil
	}
	return f.listDoctors(ctx, departmentID)
}

func (f *fakeAPI) UpdateTokenStatus(ctx context.Context, in api.UpdateTokenStatusInput) (*models.Token, error) {
	f.mu.Lock()
	f.statusCalls = append(f.statusCalls, in)
	f.mu.Unlock()
	if f.updateTokenStatus == nil {
		return &models.Token{TokenID: in.TokenID, Status: in.Status, DoctorID: in.DoctorID}, nil
	}
	return f.updateTokenStatus(ctx, in)
}

func (f *fakeAPI) UpdatePriority(ctx context.Context, in api.UpdatePriorityInput) (*models.Token, error) {
	f.mu.Lock()
	f.prioCalls = append(f.prioCalls, in)
	f.mu.Unlock()
	if f.updatePriority == nil {
		return &models.Token{TokenID: in.TokenID}, nil
	}
	return f.updatePriority(ctx, in)
}

func (f *fakeAPI) counts() (fetch, status, prio int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, len(f.statusCalls), len(f.prioCalls)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.CommandAuditEvent
}

func (p *fakeProducer) PublishCommandAudit(ctx context.Context, ev kafka.CommandAuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeSubscriber struct {
	mu    sync.Mutex
	pairs []push.Pair
}

func (s *fakeSubscriber) SetPair(pair push.Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append(s.pairs, pair)
}

func (s *fakeSubscriber) last() push.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pairs) == 0 {
		return push.Pair{}
	}
	return s.pairs[len(s.pairs)-1]
}

func tok(id string, p models.Priority) models.Token {
	return models.Token{TokenID: id, TokenValue: "A-" + id, Priority: p, Status: models.StatusCheckedIn, DoctorID: "d1"}
}

func queueD1(waiting ...models.Token) models.DoctorQueueState {
	return models.DoctorQueueState{DoctorID: "d1", DepartmentID: "dep1", Waiting: waiting, TotalPatients: len(waiting)}
}

func newEngine(f *fakeAPI) *queue.Engine {
	return queue.NewEngine(f, logger.InitializeTestZapLogger())
}

func ids(tokens []models.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.TokenID)
	}
	return out
}
