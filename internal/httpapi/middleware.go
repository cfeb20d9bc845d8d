package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"filestore/internal/filestore"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// withUser requires a valid bearer token and stores the caller's principal
// in the request context.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			w.Header().Set("www-authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
			return
		}

		p, err := s.Auth.CurrentPrincipal(r.Context(), tok)
		if err != nil {
			if errors.Is(err, filestore.ErrUnauthorized) {
				w.Header().Set("www-authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, detail("Could not validate credentials"))
				return
			}
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxPrincipal, p)
		next(w, r.WithContext(ctx))
	}
}

func principalFrom(r *http.Request) filestore.Principal {
	p, _ := r.Context().Value(ctxPrincipal).(filestore.Principal)
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// withRecover guards handlers against panics and returns a 500 response.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.Logger.Error("panic", "panic", v, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, detail("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withRequestLog logs one line per request and feeds the request metrics.
// The route label is the matched mux pattern so ids in query strings never
// become label values.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)

		if sr.status == 0 {
			sr.status = http.StatusOK
		}
		dur := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.Metrics != nil {
			s.Metrics.ObserveRequest(route, sr.status, dur)
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"bytes", sr.bytes,
			"duration_ms", dur.Milliseconds(),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}
		s.Logger.Log(r.Context(), levelForStatus(sr.status), "http request", attrs...)
	})
}

func levelForStatus(code int) slog.Level {
	if code >= 500 {
		return slog.LevelError
	}
	if code >= 400 {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
