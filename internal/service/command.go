package service

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
)

const (
	CommandCallNext       = "call_next"
	CommandComplete       = "complete"
	CommandUpdatePriority = "update_priority"
)

// command is one operator action. Prepare validates and applies any local
// optimistic change, Send issues the request, and exactly one of Commit or
// Rollback runs afterwards.
type command interface {
	Name() string
	// Subject is the doctor or token the in-flight guard is keyed on.
	Subject() string
	DoctorID() string
	TokenID() string
	Target() string
	Optimistic() bool

	Prepare(ctx context.Context) error
	Send(ctx context.Context) (*models.Token, error)
	Commit(ctx context.Context)
	Rollback(ctx context.Context) error
}

// statusCommand moves a doctor's queue forward: call-next promotes the head
// of waiting, complete retires the active token.
type statusCommand struct {
	name     string
	doctorID string
	target   models.TokenStatus
	engine   *queue.Engine
	api      api.Client

	token models.Token
}

func newCallNext(doctorID string, engine *queue.Engine, c api.Client) *statusCommand {
	return &statusCommand{name: CommandCallNext, doctorID: doctorID, target: models.StatusInProgress, engine: engine, api: c}
}

func newComplete(doctorID string, engine *queue.Engine, c api.Client) *statusCommand {
	return &statusCommand{name: CommandComplete, doctorID: doctorID, target: models.StatusCompleted, engine: engine, api: c}
}

func (c *statusCommand) Name() string     { return c.name }
func (c *statusCommand) Subject() string  { return c.doctorID }
func (c *statusCommand) DoctorID() string { return c.doctorID }
func (c *statusCommand) TokenID() string  { return c.token.TokenID }
func (c *statusCommand) Target() string   { return string(c.target) }
func (c *statusCommand) Optimistic() bool { return true }

func (c *statusCommand) Prepare(ctx context.Context) error {
	if c.doctorID == "" {
		return fmt.Errorf("%w: doctor id is required", errors.ErrValidation)
	}

	var (
		tok models.Token
		err error
	)
	if c.target == models.StatusInProgress {
		tok, err = c.engine.ApplyOptimisticCallNext(ctx, c.doctorID)
	} else {
		tok, err = c.engine.ApplyOptimisticComplete(ctx, c.doctorID)
	}
	if err != nil {
		return err
	}
	c.token = tok
	return nil
}

func (c *statusCommand) Send(ctx context.Context) (*models.Token, error) {
	return c.api.UpdateTokenStatus(ctx, api.UpdateTokenStatusInput{
		TokenID:  c.token.TokenID,
		Status:   c.target,
		DoctorID: c.doctorID,
	})
}

func (c *statusCommand) Commit(ctx context.Context) {
	c.engine.Confirm(c.doctorID)
}

// Rollback re-fetches instead of undoing locally: a push event may already
// have moved the queue past the optimistic change.
func (c *statusCommand) Rollback(ctx context.Context) error {
	return c.engine.Revert(ctx, c.doctorID)
}

// priorityCommand raises or lowers one step. The server re-ranks, so the
// waiting list is not touched locally.
type priorityCommand struct {
	tokenID string
	action  api.PriorityAction
	engine  *queue.Engine
	api     api.Client

	doctorID string
	from     models.Priority
	to       models.Priority
}

func newUpdatePriority(tokenID string, action api.PriorityAction, engine *queue.Engine, c api.Client) *priorityCommand {
	return &priorityCommand{tokenID: tokenID, action: action, engine: engine, api: c}
}

func (c *priorityCommand) Name() string     { return CommandUpdatePriority }
func (c *priorityCommand) Subject() string  { return c.tokenID }
func (c *priorityCommand) DoctorID() string { return c.doctorID }
func (c *priorityCommand) TokenID() string  { return c.tokenID }
func (c *priorityCommand) Target() string   { return string(c.action) }
func (c *priorityCommand) Optimistic() bool { return false }

func (c *priorityCommand) Prepare(ctx context.Context) error {
	if c.tokenID == "" {
		return fmt.Errorf("%w: token id is required", errors.ErrValidation)
	}

	tok, doctorID, ok := c.engine.FindToken(c.tokenID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrTokenNotFound, c.tokenID)
	}
	c.doctorID = doctorID
	c.from = tok.Priority

	var next models.Priority
	switch c.action {
	case api.ActionIncrease:
		next, ok = tok.Priority.Raise()
	case api.ActionDecrease:
		next, ok = tok.Priority.Lower()
	default:
		return fmt.Errorf("%w: unknown priority action %q", errors.ErrValidation, c.action)
	}
	if !ok {
		return fmt.Errorf("%w: cannot %s priority %s", errors.ErrValidation, c.action, tok.Priority)
	}
	c.to = next
	return nil
}

func (c *priorityCommand) Send(ctx context.Context) (*models.Token, error) {
	return c.api.UpdatePriority(ctx, api.UpdatePriorityInput{TokenID: c.tokenID, Action: c.action})
}

func (c *priorityCommand) Commit(ctx context.Context) {}

func (c *priorityCommand) Rollback(ctx context.Context) error { return nil }
