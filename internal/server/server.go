// Package server exposes smart search over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeGROOVE-dev/dossier/internal/metrics"
	"github.com/codeGROOVE-dev/dossier/pkg/smart"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
)

const maxBodyBytes = 1 << 20

// Searcher runs smart searches. *smart.Service implements it.
type Searcher interface {
	Search(ctx context.Context, in smart.Input, opts ...smart.SearchOption) *smart.Result
}

// Server serves the search API.
type Server struct {
	search Searcher
	store  store.Store
	logger *slog.Logger
}

// New creates a Server. st may be nil, in which case target lookups report 503.
func New(search Searcher, st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{search: search, store: st, logger: logger}
}

// Routes returns the HTTP handler with middleware attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/targets/{name}", s.handleTarget)
	})
	return r
}

// searchRequest is the body of POST /v1/search. Timeout is a Go duration string.
type searchRequest struct {
	Text      string   `json:"text"`
	Region    string   `json:"region"`
	Usernames []string `json:"usernames"`
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	Names     []string `json:"names"`
	Timeout   string   `json:"timeout"`
	Persist   bool     `json:"persist"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var opts []smart.SearchOption
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid timeout %q", req.Timeout))
			return
		}
		opts = append(opts, smart.WithTimeout(d))
	}
	if req.Persist {
		opts = append(opts, smart.WithPersist())
	}

	in := smart.Input{
		Text:      req.Text,
		Region:    req.Region,
		Usernames: req.Usernames,
		Emails:    req.Emails,
		Phones:    req.Phones,
		Names:     req.Names,
	}
	writeJSON(w, http.StatusOK, s.search.Search(r.Context(), in, opts...))
}

// targetResponse is the body of GET /v1/targets/{name}.
type targetResponse struct {
	Target   *store.Target         `json:"target"`
	Profiles []store.TargetProfile `json:"profiles"`
	Searches []store.SearchHistory `json:"searches"`
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	var resp targetResponse
	err := s.store.View(ctx, func(tx store.Tx) error {
		t, err := tx.TargetByName(ctx, name)
		if err != nil {
			return err
		}
		resp.Target = t
		if resp.Profiles, err = tx.Profiles(ctx, t.ID); err != nil {
			return err
		}
		resp.Searches, err = tx.Searches(ctx, t.ID)
		return err
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("target %q not found", name))
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "target lookup failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if resp.Profiles == nil {
		resp.Profiles = []store.TargetProfile{}
	}
	if resp.Searches == nil {
		resp.Searches = []store.SearchHistory{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestLog emits one log line per request and echoes the request ID.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set("X-Request-Id", id)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"latency", time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Options controls ListenAndServe.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves h until ctx is canceled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, h http.Handler, opts Options, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
