package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/middleware"
	"resto-ops-services/internal/queue"
	"resto-ops-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errMissingParam = errors.New("missing param")

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := chi.URLParam(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	if _, err := fmt.Sscan(value, &out); err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, errMissingParam
	}
	return out, nil
}

// pathID reads a positive id parameter or writes a VALIDATION_FAILED response.
func pathID(w http.ResponseWriter, r *http.Request, key string, label string) (int64, bool) {
	id, err := readPathInt64(r, key)
	if err != nil {
		response.AppError(w, apperror.ValidationFailed(label+" is required", map[string]any{"field": key}))
		return 0, false
	}
	return id, true
}

// decodeJSON decodes an optional body into dst. An empty body leaves dst at
// its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	response.AppError(w, apperror.ValidationFailed("Invalid request body", nil))
	return false
}

func actorFrom(r *http.Request) lifecycle.Actor {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		return lifecycle.Actor{}
	}
	return authCtx.Actor()
}

func requestID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
}

// fail renders err. Unexpected errors are logged with the request id before
// being masked as INTERNAL_ERROR.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		h.Logger.Error(action+" failed",
			zap.String("requestId", requestID(r)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.AppError(w, apperror.Internal("Failed to "+action))
		return
	}
	response.AppError(w, appErr)
}

func (h *Handler) publish(ctx context.Context, r *http.Request, effects []lifecycle.SideEffect) {
	queue.PublishEffects(ctx, h.Queue, h.Logger, effects, actorFrom(r), requestID(r))
}

// checkVersion enforces an optional client-supplied expected version.
func checkVersion(entity string, id int64, expected *int64, actual int64) error {
	if expected == nil || *expected == actual {
		return nil
	}
	return apperror.PreconditionFailed(entity+" has changed since it was loaded", map[string]any{
		"id":              id,
		"expectedVersion": *expected,
		"version":         actual,
	})
}
