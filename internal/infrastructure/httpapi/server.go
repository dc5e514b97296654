package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"

	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

// Runs is the part of service.RunManager the API needs.
type Runs interface {
	Start(objective string) input.RunHandle
	Get(id string) (input.RunHandle, error)
	List() []input.RunHandle
}

type Config struct {
	Runs    Runs
	Archive output.RunArchive
	Metrics http.Handler
	// LogLevel of the access log; empty means "info".
	LogLevel string
	Concise  bool
}

type Server struct {
	runs    Runs
	archive output.RunArchive
	metrics http.Handler
	log     zerolog.Logger
	router  chi.Router
}

func New(cfg Config) *Server {
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	s := &Server{
		runs:    cfg.Runs,
		archive: cfg.Archive,
		metrics: cfg.Metrics,
		log: httplog.NewLogger("orchestra-agent", httplog.Options{
			LogLevel: level,
			JSON:     !cfg.Concise,
			Concise:  cfg.Concise,
		}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/runs", func(r chi.Router) {
		r.With(middleware.Timeout(10*time.Second)).Post("/", s.startRun)
		r.Get("/", s.listRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Get("/plan", s.getPlan)
			r.Get("/data/{key}", s.getData)
			r.Get("/messages", s.getMessages)
		})
	})
	return r
}

type startRunRequest struct {
	Objective string `json:"objective"`
}

type runView struct {
	RunID           string          `json:"run_id"`
	Objective       string          `json:"objective"`
	State           entity.RunState `json:"state"`
	Completed       int             `json:"completed"`
	Total           int             `json:"total"`
	Rounds          int             `json:"rounds,omitempty"`
	BudgetExhausted bool            `json:"budget_exhausted,omitempty"`
	FinalAnswer     string          `json:"final_answer,omitempty"`
	Error           string          `json:"error,omitempty"`
	Archived        bool            `json:"archived,omitempty"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Objective) == "" {
		writeError(w, http.StatusBadRequest, "objective is required")
		return
	}

	run := s.runs.Start(req.Objective)
	httplog.LogEntrySetField(r.Context(), "run_id", run.ID())
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID()})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.List()
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, liveView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	if run, err := s.runs.Get(id); err == nil {
		writeJSON(w, http.StatusOK, liveView(run))
		return
	}

	rec, ok := s.loadArchived(w, r, id)
	if !ok {
		return
	}
	view := runView{
		RunID:           rec.RunID,
		Objective:       rec.Objective,
		State:           rec.State,
		Rounds:          rec.Rounds,
		BudgetExhausted: rec.BudgetExhausted,
		FinalAnswer:     rec.FinalAnswer,
		Error:           rec.Error,
		Archived:        true,
	}
	if rec.Plan != nil {
		view.Completed, view.Total = rec.Plan.Progress()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	var plan *entity.TaskPlan
	if run, err := s.runs.Get(id); err == nil {
		plan = run.GetPlan()
	} else {
		rec, ok := s.loadArchived(w, r, id)
		if !ok {
			return
		}
		plan = rec.Plan
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "run has no plan yet")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	key := chi.URLParam(r, "key")

	var (
		value string
		found bool
	)
	if run, err := s.runs.Get(id); err == nil {
		value, found = run.GetData(key)
	} else {
		rec, ok := s.loadArchived(w, r, id)
		if !ok {
			return
		}
		value, found = rec.Data[key]
	}
	if !found {
		writeError(w, http.StatusNotFound, "no data under key "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	var msgs []entity.SharedMessage
	if run, err := s.runs.Get(id); err == nil {
		msgs = run.Messages()
	} else {
		rec, ok := s.loadArchived(w, r, id)
		if !ok {
			return
		}
		msgs = rec.Messages
	}
	if msgs == nil {
		msgs = []entity.SharedMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// loadArchived writes the error response itself when it returns false.
func (s *Server) loadArchived(w http.ResponseWriter, r *http.Request, id string) (*entity.RunRecord, bool) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	rec, err := s.archive.Load(r.Context(), id)
	if errors.Is(err, entity.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		httplog.LogEntry(r.Context()).Error().Err(err).Str("run_id", id).Msg("archive lookup failed")
		writeError(w, http.StatusInternalServerError, "archive unavailable")
		return nil, false
	}
	return rec, true
}

func liveView(run input.RunHandle) runView {
	completed, total := run.GetProgress()
	v := runView{
		RunID:     run.ID(),
		Objective: run.Objective(),
		State:     run.State(),
		Completed: completed,
		Total:     total,
	}
	if res, err := run.Result(); res != nil {
		v.Rounds = res.Rounds
		v.BudgetExhausted = res.BudgetExhausted
		v.FinalAnswer = res.FinalAnswer
		if err != nil {
			v.Error = err.Error()
		}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
