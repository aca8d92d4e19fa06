// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the decision engine over HTTP and runs the
// scheduled corpus refresh. The wire format mirrors pkg/types; the
// engine itself knows nothing about HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pdiddy/triage-engine/internal/corpus"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// maxRequestBody bounds an evaluate request. Task text is capped at 5000
// characters downstream, so anything near this limit is garbage anyway.
const maxRequestBody = 1 << 20

// Server wires the engine, corpus, and audit store to an HTTP surface.
type Server struct {
	engine *triage.Engine
	corpus *corpus.Corpus
	audit  *triage.Store
	cfg    types.ServerConfig

	// Log receives serve progress lines. Defaults to io.Discard.
	Log io.Writer
}

// New builds a Server. The audit store may be nil; the decisions
// endpoint then answers 404 for every task.
func New(engine *triage.Engine, corp *corpus.Corpus, audit *triage.Store, cfg types.ServerConfig) *Server {
	return &Server{
		engine: engine,
		corpus: corp,
		audit:  audit,
		cfg:    cfg,
		Log:    io.Discard,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/corpus/refresh", s.handleRefresh)
		r.Get("/decisions/{taskID}", s.handleDecisions)
	})
	return r
}

// Run serves HTTP until ctx is cancelled, refreshing the corpus on the
// configured schedule in the background. The corpus is warmed once
// before the listener starts so the first evaluation does not pay for a
// tracker round trip.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.corpus.Projects(ctx, false); err != nil {
		// Warm-up failure is survivable: evaluations degrade to
		// matching nothing until a refresh succeeds.
		fmt.Fprintf(s.Log, "corpus warm-up failed: %v\n", err)
	}

	var schedule *cron.Cron
	if s.cfg.RefreshSchedule != "" {
		schedule = cron.New()
		_, err := schedule.AddFunc(s.cfg.RefreshSchedule, func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := s.corpus.Projects(refreshCtx, true); err != nil {
				fmt.Fprintf(s.Log, "scheduled corpus refresh failed: %v\n", err)
			}
			if s.audit != nil {
				if n, err := s.audit.Prune(refreshCtx); err != nil {
					fmt.Fprintf(s.Log, "pruning audit records: %v\n", err)
				} else if n > 0 {
					fmt.Fprintf(s.Log, "pruned %d expired audit records\n", n)
				}
			}
		})
		if err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", s.cfg.RefreshSchedule, err)
		}
		schedule.Start()
		defer schedule.Stop()
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(s.Log, "listening on %s\n", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// evaluateRequest is the POST /v1/evaluate body.
type evaluateRequest struct {
	TaskID   string            `json:"task_id"`
	Source   types.TaskSource  `json:"source"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if req.Source == "" {
		req.Source = types.SourceTracker
	}
	if !types.ValidSource(req.Source) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", req.Source))
		return
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}

	task := types.Task{
		ID:       req.TaskID,
		Source:   req.Source,
		RawText:  req.Text,
		Metadata: req.Metadata,
	}
	decision, err := s.engine.Evaluate(r.Context(), task)
	if err != nil {
		fmt.Fprintf(s.Log, "evaluate %s: %v\n", task.ID, err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// healthResponse is the GET /healthz body.
type healthResponse struct {
	Status string        `json:"status"`
	Corpus corpus.Health `json:"corpus"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.corpus.Health()
	resp := healthResponse{Status: "ok", Corpus: h}
	if h.Stale {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	projects, err := s.corpus.Projects(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("refreshing corpus: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": len(projects)})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "decision auditing disabled")
		return
	}
	taskID := chi.URLParam(r, "taskID")
	records, err := s.audit.ByTask(r.Context(), taskID)
	if err != nil {
		fmt.Fprintf(s.Log, "decisions %s: %v\n", taskID, err)
		writeError(w, http.StatusInternalServerError, "reading decisions failed")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no decisions for task %q", taskID))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
