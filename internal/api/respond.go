package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/dashboard"
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/resilience"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

var (
	errBadBody         = eris.New("api: malformed request body")
	errJournalDisabled = eris.New("api: dispatch journal is disabled")
	errNoticeNotFound  = eris.New("api: notice not found")
)

// errorBody matches the backend's error envelope so the renderer handles
// both the same way.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Detail: detail})
}

var conflicts = []error{
	interaction.ErrBusy,
	interaction.ErrComposerOpen,
	interaction.ErrWardLayerInactive,
	selection.ErrNotIdle,
	selection.ErrNotDrawing,
	selection.ErrNotAnchored,
	dashboard.ErrDensityHidden,
	dashboard.ErrTeamsHidden,
	dashboard.ErrNoLeaderLocation,
	dashboard.ErrNoComposer,
	errNoBounds,
}

// classify maps err onto a status code and the user-facing detail.
func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusUnprocessableEntity, validationDetail(verrs)
	}
	if errors.Is(err, errBadBody) || errors.Is(err, errBadQuery) || errors.Is(err, dashboard.ErrInvalidCoordinate) {
		return http.StatusBadRequest, rootMessage(err)
	}
	if dashboard.IsValidation(err) {
		return http.StatusUnprocessableEntity, rootMessage(err)
	}
	if errors.Is(err, dashboard.ErrUnknownTeam) ||
		errors.Is(err, dashboard.ErrUnknownWard) ||
		errors.Is(err, errJournalDisabled) ||
		errors.Is(err, errNoticeNotFound) {
		return http.StatusNotFound, rootMessage(err)
	}
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return http.StatusConflict, rootMessage(err)
		}
	}
	if errors.Is(err, resilience.ErrOpen) {
		return http.StatusServiceUnavailable, rescueapi.GenericDetail
	}
	var apiErr *rescueapi.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, rescueapi.Detail(err, "")
	}
	if resilience.IsTransient(err) {
		return http.StatusBadGateway, rescueapi.GenericDetail
	}
	return http.StatusInternalServerError, rescueapi.GenericDetail
}

// rootMessage returns the innermost error text without its package prefix.
func rootMessage(err error) string {
	msg := err.Error()
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
		msg = err.Error()
	}
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}

func validationDetail(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return eris.Wrap(errBadBody, err.Error())
	}
	return s.validate.Struct(dst)
}
