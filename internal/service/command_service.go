package service

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	kafka "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/metrics"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

type commandService struct {
	engine        *queue.Engine
	api           api.Client
	producer      producer.Producer
	metrics       *metrics.Metrics
	l             logger.Logger
	revertTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]map[string]bool // command name -> subject
	banner   string
}

// NewCommandService builds the dispatcher. prod and m may be nil.
func NewCommandService(engine *queue.Engine, c api.Client, prod producer.Producer, m *metrics.Metrics, l logger.Logger, cfg config.APIConfig) CommandService {
	timeout := cfg.RevertTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &commandService{
		engine:        engine,
		api:           c,
		producer:      prod,
		metrics:       m,
		l:             l,
		revertTimeout: timeout,
		inFlight: map[string]map[string]bool{
			CommandCallNext:       {},
			CommandComplete:       {},
			CommandUpdatePriority: {},
		},
	}
}

func (s *commandService) CallNext(ctx context.Context, doctorID string) (*CommandOutput, error) {
	return s.run(ctx, newCallNext(doctorID, s.engine, s.api))
}

func (s *commandService) CompleteCurrent(ctx context.Context, doctorID string) (*CommandOutput, error) {
	return s.run(ctx, newComplete(doctorID, s.engine, s.api))
}

func (s *commandService) UpdatePriority(ctx context.Context, tokenID string, action api.PriorityAction) (*CommandOutput, error) {
	return s.run(ctx, newUpdatePriority(tokenID, action, s.engine, s.api))
}

func (s *commandService) Busy() BusyFlags {
	unconfirmed := []string{}
	for _, st := range s.engine.States() {
		if s.engine.Pending(st.DoctorID) {
			unconfirmed = append(unconfirmed, st.DoctorID)
		}
	}
	sort.Strings(unconfirmed)

	s.mu.Lock()
	defer s.mu.Unlock()

	return BusyFlags{
		CallingNext:    keys(s.inFlight[CommandCallNext]),
		Completing:     keys(s.inFlight[CommandComplete]),
		UpdatingTokens: keys(s.inFlight[CommandUpdatePriority]),
		Unconfirmed:    unconfirmed,
	}
}

func (s *commandService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

func (s *commandService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = ""
}

func (s *commandService) run(ctx context.Context, cmd command) (*CommandOutput, error) {
	if !s.acquire(cmd) {
		s.metrics.Command(cmd.Name(), "rejected")
		return nil, fmt.Errorf("%w: %s already in flight for %s", errors.ErrValidation, cmd.Name(), cmd.Subject())
	}
	defer s.release(cmd)

	commandID := uuid.NewString()
	requestedAt := time.Now()

	if err := cmd.Prepare(ctx); err != nil {
		s.metrics.Command(cmd.Name(), "rejected")
		return nil, err
	}

	tok, err := cmd.Send(ctx)
	if err != nil {
		outcome := kafka.OutcomeFailed
		if stdErrors.Is(err, errors.ErrStaleState) {
			outcome = kafka.OutcomeStale
		}
		s.l.Errorf(ctx, "service.commandService.run: %s %s failed: %v", cmd.Name(), cmd.Subject(), err)
		s.setBanner(errors.UserMessage(err))
		s.metrics.Command(cmd.Name(), outcome)

		if cmd.Optimistic() {
			// The caller's context may already be done; the corrective
			// re-fetch still has to happen.
			rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revertTimeout)
			rbErr := cmd.Rollback(rbCtx)
			cancel()
			s.metrics.Revert(rbErr)
			if rbErr != nil {
				s.l.Errorf(ctx, "service.commandService.run: revert doctor %s: %v", cmd.DoctorID(), rbErr)
			}
		}

		s.audit(ctx, cmd, commandID, requestedAt, outcome, err)
		return nil, fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	cmd.Commit(ctx)
	s.metrics.Command(cmd.Name(), kafka.OutcomeConfirmed)
	s.audit(ctx, cmd, commandID, requestedAt, kafka.OutcomeConfirmed, nil)

	s.l.Infof(ctx, "%s confirmed: doctor=%s token=%s", cmd.Name(), cmd.DoctorID(), cmd.TokenID())

	return &CommandOutput{
		CommandID: commandID,
		Command:   cmd.Name(),
		DoctorID:  cmd.DoctorID(),
		TokenID:   cmd.TokenID(),
		Token:     tok,
	}, nil
}

func (s *commandService) acquire(cmd command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := []string{cmd.Name()}
	if cmd.Optimistic() {
		// Call-next and complete both move the doctor's queue; only one
		// of them may be in flight per doctor.
		names = []string{CommandCallNext, CommandComplete}
	}
	for _, name := range names {
		if s.inFlight[name][cmd.Subject()] {
			return false
		}
	}
	s.inFlight[cmd.Name()][cmd.Subject()] = true
	return true
}

func (s *commandService) release(cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight[cmd.Name()], cmd.Subject())
}

func (s *commandService) setBanner(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = msg
}

func (s *commandService) audit(ctx context.Context, cmd command, commandID string, requestedAt time.Time, outcome string, cause error) {
	if s.producer == nil {
		return
	}

	ev := kafka.CommandAuditEvent{
		CommandID:   commandID,
		Command:     cmd.Name(),
		DoctorID:    cmd.DoctorID(),
		TokenID:     cmd.TokenID(),
		Target:      cmd.Target(),
		Outcome:     outcome,
		RequestedAt: requestedAt,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}

	if err := s.producer.PublishCommandAudit(ctx, ev); err != nil {
		// Auditing never fails the command.
		s.l.Warnf(ctx, "service.commandService.audit: %v", err)
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
