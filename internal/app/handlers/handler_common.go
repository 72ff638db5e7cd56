package handlers

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/ngsiproxy/internal/app/middleware"
	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Error  string              `json:"error"`
	Detail string              `json:"detail"`
	Status int                 `json:"status"`
}

func (a *Application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError renders err: AppError keeps its status, validation failures are
// 409 with the offending fields, unknown resources 404, anything else 500
func (a *Application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Status: http.StatusInternalServerError, Detail: "Internal server error"}

	var validation *domain.ValidationError
	switch {
	case domain.AsAppError(err) != nil:
		appErr := domain.AsAppError(err)
		resp.Status = appErr.Status
		resp.Detail = appErr.Detail
	case errors.As(err, &validation):
		resp.Status = http.StatusConflict
		resp.Detail = validation.Error()
		resp.Fields = validation.Fields
	case errors.Is(err, domain.ErrResourceNotFound):
		resp.Status = http.StatusNotFound
		resp.Detail = constants.MsgResourceNotFound
	default:
		middleware.GetLogger(r.Context()).Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	resp.Error = http.StatusText(resp.Status)
	a.writeJSON(w, resp.Status, resp)
}

func (a *Application) decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.NewAppError(http.StatusBadRequest, "Request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewAppError(http.StatusRequestEntityTooLarge, "Request body too large", err)
		}
		return domain.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err), err)
	}
	return nil
}

// catalogUser is the user the host catalog vouches for in the trusted header
func (a *Application) catalogUser(r *http.Request) string {
	return r.Header.Get(a.Config.Credentials.UserHeader)
}
