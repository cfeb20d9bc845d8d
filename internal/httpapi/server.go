// Package httpapi serves the file store over HTTP under /api/v1.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"filestore/internal/auth"
	"filestore/internal/config"
	"filestore/internal/filestore"
	"filestore/internal/metrics"
)

// multipartOverhead is added to the upload limit to leave room for part
// headers and boundaries around the file body.
const multipartOverhead = 1 << 20

// Server holds the collaborators the handlers need. Metrics may be nil.
type Server struct {
	Files           *filestore.Service
	Auth            *auth.Service
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	MaxUploadBytes  int64
	MetricsEndpoint bool
}

// Handler returns the routed handler wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/register/", s.handleRegister)
	mux.HandleFunc("POST /api/v1/authorization/token", s.handleTokenForm)
	mux.HandleFunc("POST /api/v1/authorization/auth", s.handleTokenJSON)

	mux.HandleFunc("GET /api/v1/files/list", s.withUser(s.handleList))
	mux.HandleFunc("POST /api/v1/files/upload", s.withUser(s.handleUpload))
	mux.HandleFunc("GET /api/v1/files/download", s.withUser(s.handleDownload))

	mux.HandleFunc("GET /api/v1/ping/", s.handlePing)

	if s.MetricsEndpoint && s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	return s.withRequestLog(s.withRecover(mux))
}

// NewHTTPServer applies the listener settings from cfg to h.
func NewHTTPServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
		IdleTimeout:       60 * time.Second,
	}
}
