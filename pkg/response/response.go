package response

import (
	"encoding/json"
	"net/http"

	"resto-ops-services/internal/apperror"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// AppError renders err with its code, status and details. Errors that are not
// *apperror.Error become INTERNAL_ERROR without leaking their text.
func AppError(w http.ResponseWriter, err error) {
	appErr := apperror.As(err)
	payload := map[string]any{
		"success": false,
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		payload["details"] = appErr.Details
	}
	JSON(w, appErr.StatusCode, payload)
}
