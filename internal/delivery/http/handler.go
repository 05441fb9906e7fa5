package http

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/service"
	pkgErrors "github.com/vogiaan1904/clinicqueue-sync/pkg/errors"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/response"
)

// PushController is the slice of the push manager exposed over HTTP.
type PushController interface {
	Status() push.Status
	Reset(ctx context.Context) error
}

type HTTPHandler struct {
	commands  service.CommandService
	selection service.SelectionService
	push      PushController
	poller    service.SnapshotPoller
	logger    logger.Logger
	validator *validator.Validate
}

// NewHTTPHandler builds the presentation API. poller is nil when periodic
// refresh is disabled.
func NewHTTPHandler(commands service.CommandService, selection service.SelectionService, pc PushController, poller service.SnapshotPoller, l logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		commands:  commands,
		selection: selection,
		push:      pc,
		poller:    poller,
		logger:    l,
		validator: validator.New(),
	}
}

type SelectionRequest struct {
	DepartmentID string `json:"departmentId" validate:"max=64"`
	DoctorID     string `json:"doctorId" validate:"max=64"`
}

type PriorityRequest struct {
	Action string `json:"action" validate:"required,oneof=increase decrease"`
}

type StatusResponse struct {
	Selection models.Selection      `json:"selection"`
	Push      push.Status           `json:"push"`
	Busy      service.BusyFlags     `json:"busy"`
	Poller    *service.PollerStatus `json:"poller,omitempty"`
	// Banner is the last command failure, or the push error while the
	// channel is retrying.
	Banner string `json:"banner,omitempty"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "clinicqueue-sync",
		"push":    h.push.Status().State,
	})
}

func (h *HTTPHandler) GetView(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.selection.View())
}

func (h *HTTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.push.Status()
	banner := h.commands.LastError()
	if banner == "" && (st.State == push.StateReconnecting || st.State == push.StateFailed) {
		banner = st.LastError
	}

	resp := StatusResponse{
		Selection: h.selection.Selection(),
		Push:      st,
		Busy:      h.commands.Busy(),
		Banner:    banner,
	}
	if h.poller != nil {
		ps := h.poller.GetStatus()
		resp.Poller = &ps
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel := models.Selection{DepartmentID: req.DepartmentID, DoctorID: req.DoctorID}
	if sel.DoctorID != "" && sel.AllDepartments() {
		response.ValidationError(w, "Validation failed", map[string]string{"departmentId": "required when doctorId is set"})
		return
	}

	if err := h.selection.Select(r.Context(), sel); err != nil {
		// A rejected doctor leaves the selection as it was; a failed fetch
		// keeps the new selection.
		h.logger.Warnf(r.Context(), "delivery.http.UpdateSelection: %v", err)
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, h.selection.View())
}

func (h *HTTPHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	out, err := h.commands.CallNext(r.Context(), chi.URLParam(r, "doctorId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) CompleteCurrent(w http.ResponseWriter, r *http.Request) {
	out, err := h.commands.CompleteCurrent(r.Context(), chi.URLParam(r, "doctorId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.commands.UpdatePriority(r.Context(), chi.URLParam(r, "tokenId"), api.PriorityAction(req.Action))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	h.commands.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ResetPush(w http.ResponseWriter, r *http.Request) {
	if err := h.push.Reset(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, h.push.Status())
}

// Helper functions

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.ValidationError(w, "Invalid request body", err.Error())
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		details := map[string]string{}
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		response.ValidationError(w, "Validation failed", details)
		return false
	}
	return true
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := mapError(err)
	if httpErr.Status() >= http.StatusInternalServerError {
		h.logger.Errorf(r.Context(), "delivery.http: %s %s: %v", r.Method, r.URL.Path, err)
	}
	response.Error(w, httpErr)
}

func mapError(err error) *pkgErrors.HTTPError {
	status := http.StatusInternalServerError
	switch {
	case stdErrors.Is(err, errors.ErrValidation):
		status = http.StatusUnprocessableEntity
	case stdErrors.Is(err, errors.ErrDoctorNotFound), stdErrors.Is(err, errors.ErrTokenNotFound):
		status = http.StatusNotFound
	case stdErrors.Is(err, errors.ErrStaleState), stdErrors.Is(err, errors.ErrNoPushConnection):
		status = http.StatusConflict
	case stdErrors.Is(err, errors.ErrRequestFailed):
		status = http.StatusBadGateway
	}

	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	return pkgErrors.NewHTTPErrorWithStatus(status, status, msg)
}
