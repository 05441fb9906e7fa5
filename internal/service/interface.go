package service

import (
	"context"

	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/view"
)

// CommandService dispatches operator commands with optimistic local
// application and a corrective re-fetch on failure.
type CommandService interface {
	CallNext(ctx context.Context, doctorID string) (*CommandOutput, error)
	CompleteCurrent(ctx context.Context, doctorID string) (*CommandOutput, error)
	UpdatePriority(ctx context.Context, tokenID string, action api.PriorityAction) (*CommandOutput, error)
	Busy() BusyFlags
	LastError() string
	ClearError()
}

// SelectionService owns the current (department, doctor) selection and
// keeps the push subscription and snapshots in step with it.
type SelectionService interface {
	Select(ctx context.Context, sel models.Selection) error
	SelectDepartment(ctx context.Context, departmentID string) error
	Selection() models.Selection
	Refresh(ctx context.Context) error
	LoadDirectory(ctx context.Context) error
	View() view.QueueView
}

type SnapshotPoller interface {
	Start(ctx context.Context) error
	Stop() error
	GetStatus() PollerStatus
}

// PairSubscriber is the part of the push manager the selection needs.
type PairSubscriber interface {
	SetPair(pair push.Pair)
}
