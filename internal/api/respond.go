package api

import (
	"encoding/json"
	"net/http"

	"github.com/zivra/zivra-custody/internal/logger"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps an error to its JSON representation. Application errors
// carry their own status code and structured reason; anything else is an
// opaque internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		writeJSON(w, appErr.StatusCode, appErr)
		return
	}

	logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, apperrors.ErrInternalError)
}

// errorBody returns the JSON-serializable form of err for embedding inside a
// larger response, without writing it.
func errorBody(err error) any {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr
	}
	return map[string]string{"code": apperrors.ErrCodeInternalError, "message": err.Error()}
}

// decodeJSON decodes a request body into dst
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"Invalid JSON body", err.Error(), http.StatusBadRequest)
	}
	return nil
}
