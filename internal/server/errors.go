package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

var errUnauthorized = errors.New("unauthorized")

// errorResponse is the body of every failed request
type errorResponse struct {
	Message string `json:"error"`
	Code    string `json:"code"`

	status int
}

// Render satisfies [render.Renderer]
func (e *errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

// classify maps an error kind to its status and machine readable code
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNoApplicableRate):
		return http.StatusUnprocessableEntity, "no_applicable_rate"
	case errors.Is(err, domain.ErrNoBillableData):
		return http.StatusUnprocessableEntity, "no_billable_data"
	}
	return http.StatusInternalServerError, "internal"
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Error handling request", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "Internal server error"
	}
	_ = render.Render(w, r, &errorResponse{Message: message, Code: code, status: status})
}
