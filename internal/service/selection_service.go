package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	"github.com/vogiaan1904/clinicqueue-sync/internal/view"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

type selectionService struct {
	engine *queue.Engine
	api    api.Client
	push   PairSubscriber
	l      logger.Logger

	// switchMu orders selection switches end to end, so the pair handed
	// to push always belongs to the latest selection.
	switchMu sync.Mutex

	mu          sync.RWMutex
	sel         models.Selection
	generation  uint64
	departments []models.Department
	doctors     []models.Doctor
}

func NewSelectionService(engine *queue.Engine, c api.Client, sub PairSubscriber, l logger.Logger) SelectionService {
	return &selectionService{
		engine: engine,
		api:    c,
		push:   sub,
		l:      l,
		sel:    models.Selection{}.Normalize(),
	}
}

// Select switches the dashboard to sel. The old push subscription is
// closed before the new one opens, unconfirmed optimistic state of the
// previous doctor is dropped, and any fetch still running for an older
// selection will be discarded when it returns.
func (s *selectionService) Select(ctx context.Context, sel models.Selection) error {
	sel = sel.Normalize()
	if err := s.checkDoctor(sel); err != nil {
		s.l.Warnf(ctx, "service.selectionService.Select: %v", err)
		return err
	}

	s.switchMu.Lock()
	s.mu.Lock()
	prev := s.sel
	s.sel = sel
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if prev.DoctorID != "" && prev.DoctorID != sel.DoctorID {
		s.engine.DiscardOptimistic(ctx, prev.DoctorID)
	}

	departmentID, doctorID, _ := sel.PushPair()
	s.push.SetPair(push.Pair{DepartmentID: departmentID, DoctorID: doctorID})
	s.switchMu.Unlock()

	if prev != sel {
		s.l.Infof(ctx, "selection changed: department=%s doctor=%s", sel.DepartmentID, sel.DoctorID)
	}

	return s.refresh(ctx, gen, sel)
}

// checkDoctor rejects a doctor outside the selected department. Without a
// loaded directory any doctor is accepted.
func (s *selectionService) checkDoctor(sel models.Selection) error {
	if sel.DoctorID == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.doctors) == 0 {
		return nil
	}
	for _, d := range s.doctors {
		if d.DoctorID != sel.DoctorID {
			continue
		}
		if d.DepartmentID != "" && d.DepartmentID != sel.DepartmentID {
			return fmt.Errorf("%w: doctor %s is not in department %s", errors.ErrValidation, sel.DoctorID, sel.DepartmentID)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", errors.ErrDoctorNotFound, sel.DoctorID)
}

// SelectDepartment changes the department and clears the doctor.
func (s *selectionService) SelectDepartment(ctx context.Context, departmentID string) error {
	return s.Select(ctx, models.Selection{DepartmentID: departmentID})
}

func (s *selectionService) Selection() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Refresh re-fetches the snapshot for the current selection.
func (s *selectionService) Refresh(ctx context.Context) error {
	s.mu.RLock()
	gen, sel := s.generation, s.sel
	s.mu.RUnlock()

	return s.refresh(ctx, gen, sel)
}

func (s *selectionService) refresh(ctx context.Context, gen uint64, sel models.Selection) error {
	departmentID := sel.DepartmentID
	if sel.AllDepartments() {
		departmentID = ""
	}

	states, err := s.api.FetchQueues(ctx, departmentID, sel.DoctorID)
	if err != nil {
		s.l.Errorf(ctx, "service.selectionService.refresh: %v", err)
		return fmt.Errorf("fetch queues: %w", err)
	}

	// Hold the lock across the apply so a concurrent Select cannot slip in
	// between the generation check and the snapshot.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if gen != s.generation {
		s.l.Debugf(ctx, "discarding snapshot for stale selection department=%s doctor=%s", sel.DepartmentID, sel.DoctorID)
		return nil
	}

	s.engine.ApplySnapshot(ctx, states)
	return nil
}

// LoadDirectory fetches the department and doctor lists shown in the
// selectors.
func (s *selectionService) LoadDirectory(ctx context.Context) error {
	departments, err := s.api.ListDepartments(ctx)
	if err != nil {
		s.l.Errorf(ctx, "service.selectionService.LoadDirectory: departments: %v", err)
		return err
	}

	doctors, err := s.api.ListDoctors(ctx, "")
	if err != nil {
		s.l.Errorf(ctx, "service.selectionService.LoadDirectory: doctors: %v", err)
		return err
	}

	s.mu.Lock()
	s.departments = departments
	s.doctors = doctors
	s.mu.Unlock()

	s.l.Infof(ctx, "directory loaded: %d departments, %d doctors", len(departments), len(doctors))
	return nil
}

func (s *selectionService) View() view.QueueView {
	s.mu.RLock()
	sel := s.sel
	departments := append([]models.Department(nil), s.departments...)
	doctors := append([]models.Doctor(nil), s.doctors...)
	s.mu.RUnlock()

	return view.Project(sel, s.engine.States(), departments, doctors)
}
