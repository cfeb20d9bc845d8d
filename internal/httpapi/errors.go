package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"filestore/internal/filestore"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func detail(msg string) errorBody {
	return errorBody{Detail: msg}
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, filestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, filestore.ErrNotDownloadable):
		return http.StatusForbidden
	case errors.Is(err, filestore.ErrInvalidPath),
		errors.Is(err, filestore.ErrUnsupportedCodec),
		errors.Is(err, filestore.ErrConflict),
		errors.Is(err, filestore.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, filestore.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, filestore.ErrPayloadTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a {"detail": ...} body. Server errors are logged
// and their text is withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, detail("Internal server error"))
		return
	}
	writeJSON(w, status, detail(err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
