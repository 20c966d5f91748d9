package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ramplab/app"
	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/domain/session"
	"ramplab/internal"
	"ramplab/internal/config"
	"ramplab/ports"
)

// Server exposes the analysis engine over HTTP. The engine itself is pure;
// the server only decodes requests, runs the service and encodes results.
type Server struct {
	router  *chi.Mux
	service *app.AnalysisService
	repo    ports.ResultRepository // nil when persistence is not configured
	cfg     config.Analysis
	log     *internal.Logger
}

// NewServer creates the HTTP server. repo may be nil; result endpoints then
// return 404 for every lookup and analyses are simply not persisted.
func NewServer(service *app.AnalysisService, repo ports.ResultRepository,
	cfg config.Analysis, logger *internal.Logger) *Server {

	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		repo:    repo,
		cfg:     cfg,
		log:     logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/sessions/validate", s.handleValidate)
		r.Post("/sessions/analyze", s.handleAnalyze)
		r.Post("/cp/fit", s.handleFitCP)
		r.Get("/analyses/{id}", s.handleGetAnalysis)
		r.Get("/sessions/{id}/analyses", s.handleListAnalyses)
	})
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": analysis.AlgorithmVersion,
	})
}

// sessionRequest is the request body for validation and analysis calls.
type sessionRequest struct {
	Session *session.Session `json:"session"`
}

func (s *Server) decodeSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	if req.Session == nil || len(req.Session.Channels) == 0 {
		writeError(w, http.StatusBadRequest, "request must carry a session with channels")
		return nil, false
	}
	for _, c := range req.Session.Channels {
		if err := c.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return nil, false
		}
	}
	if req.Session.ID.String() == "" {
		req.Session.ID = core.SessionID(core.NewID())
	}
	return req.Session, true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	report := s.service.Validate(sess, s.cfg)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}

	result, err := s.service.RunFullAnalysis(r.Context(), sess, s.cfg)
	if err != nil {
		if errors.Is(err, core.ErrMissingChannel) || core.IsDataError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Error("analysis failed for session %s: %v", sess.ID, err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	if s.repo != nil {
		if err := s.repo.Save(r.Context(), result); err != nil {
			// Persisting is best effort; the caller still gets the result.
			s.log.Error("saving analysis %s: %v", result.ID, err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// fitRequest is the request body for a standalone critical power fit.
type fitRequest struct {
	Efforts []analysis.Effort `json:"efforts"`
}

func (s *Server) handleFitCP(w http.ResponseWriter, r *http.Request) {
	var req fitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.service.FitCriticalPower(req.Efforts, s.cfg)
	switch {
	case err == nil, errors.Is(err, core.ErrDegenerateFit):
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, core.ErrInsufficientEfforts):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("cp fit failed: %v", err)
		writeError(w, http.StatusInternalServerError, "fit failed")
	}
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusNotFound, "result storage not configured")
		return
	}
	id := core.AnalysisID(chi.URLParam(r, "id"))
	result, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusNotFound, "result storage not configured")
		return
	}
	sessionID, err := core.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.repo.ListBySession(r.Context(), sessionID, 50)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": results})
}

func (s *Server) writeRepoError(w http.ResponseWriter, err error) {
	if core.IsNotFoundError(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error("repository error: %v", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the server until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *internal.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
