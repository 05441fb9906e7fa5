package response

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgErrors "github.com/vogiaan1904/clinicqueue-sync/pkg/errors"
)

type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, Resp{Message: http.StatusText(statusCode), Data: data})
}

// Error writes err using the envelope. Anything that is not an HTTPError
// is reported as an opaque internal error.
func Error(w http.ResponseWriter, err error) {
	statusCode, resp := parseHttpError(err)
	write(w, statusCode, resp)
}

func ValidationError(w http.ResponseWriter, message string, details any) {
	write(w, http.StatusBadRequest, Resp{
		ErrorCode: http.StatusBadRequest,
		Message:   message,
		Errors:    details,
	})
}

func parseHttpError(err error) (int, Resp) {
	var httpErr *pkgErrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status(), Resp{
			ErrorCode: httpErr.Code,
			Message:   httpErr.Message,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: 500,
		Message:   "Internal server error",
	}
}

func write(w http.ResponseWriter, statusCode int, resp Resp) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
