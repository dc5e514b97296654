package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/application/service"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/archive/redis"
	"orchestra-agent/internal/infrastructure/logger"
	"orchestra-agent/internal/infrastructure/metrics"
)

type fakeRun struct {
	id        string
	objective string
	state     entity.RunState
	plan      *entity.TaskPlan
	data      map[string]string
	messages  []entity.SharedMessage
	result    *entity.RunResult
	err       error
}

func (r *fakeRun) ID() string                { return r.id }
func (r *fakeRun) Objective() string         { return r.objective }
func (r *fakeRun) State() entity.RunState    { return r.state }
func (r *fakeRun) GetPlan() *entity.TaskPlan { return r.plan }
func (r *fakeRun) GetData(key string) (string, bool) {
	v, ok := r.data[key]
	return v, ok
}
func (r *fakeRun) GetProgress() (int, int) {
	if r.plan == nil {
		return 0, 0
	}
	return r.plan.Progress()
}
func (r *fakeRun) Messages() []entity.SharedMessage   { return r.messages }
func (r *fakeRun) Result() (*entity.RunResult, error) { return r.result, r.err }

type fakeRuns struct {
	runs    map[string]*fakeRun
	started []string
}

func (f *fakeRuns) Start(objective string) input.RunHandle {
	run := &fakeRun{id: "new-run", objective: objective, state: entity.RunStateCreated}
	f.runs[run.id] = run
	f.started = append(f.started, objective)
	return run
}

func (f *fakeRuns) Get(id string) (input.RunHandle, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, entity.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) List() []input.RunHandle {
	out := []input.RunHandle{}
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out
}

func livePlan() *entity.TaskPlan {
	plan := &entity.TaskPlan{
		PlanID:    "p1",
		Objective: "obj",
		Tasks: []entity.Task{
			{ID: "t1", AssignedTo: "researcher", Description: "look", Status: entity.TaskStatusCompleted, Dependencies: []string{}},
			{ID: "t2", AssignedTo: "writer", Description: "write", Status: entity.TaskStatusInProgress, Dependencies: []string{"t1"}},
		},
	}
	plan.Tasks[0].SetResult("found it")
	return plan
}

func newTestServer(t *testing.T) (*Server, *fakeRuns, *redis.Archive) {
	t.Helper()
	mr := miniredis.RunT(t)
	archive := redis.New(&goredis.Options{Addr: mr.Addr()}, "test")
	t.Cleanup(func() { archive.Close() })

	runs := &fakeRuns{runs: map[string]*fakeRun{
		"live": {
			id:        "live",
			objective: "obj",
			state:     entity.RunStateExecuting,
			plan:      livePlan(),
			data:      map[string]string{"notes": "abc"},
			messages:  []entity.SharedMessage{{Sender: "orchestrator", Content: "round 1 done"}},
		},
	}}

	srv := New(Config{Runs: runs, Archive: archive, Metrics: metrics.New().Handler(), LogLevel: "error"})
	return srv, runs, archive
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_StartRun(t *testing.T) {
	srv, runs, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/runs", `{"objective":"write a haiku"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "new-run", body["run_id"])
	assert.Equal(t, []string{"write a haiku"}, runs.started)
}

func TestServer_StartRunValidation(t *testing.T) {
	srv, runs, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/runs", `{"objective":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/runs", `not json`).Code)
	assert.Empty(t, runs.started)
}

func TestServer_LiveRunReads(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/runs/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	decode(t, rec, &view)
	assert.Equal(t, "executing", view["state"])
	assert.Equal(t, 1.0, view["completed"])
	assert.Equal(t, 2.0, view["total"])

	rec = do(t, srv, http.MethodGet, "/runs/live/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var plan entity.TaskPlan
	decode(t, rec, &plan)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "found it", plan.Tasks[0].ResultText())

	rec = do(t, srv, http.MethodGet, "/runs/live/data/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var kv map[string]string
	decode(t, rec, &kv)
	assert.Equal(t, "abc", kv["value"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/runs/live/data/missing", "").Code)

	rec = do(t, srv, http.MethodGet, "/runs/live/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []entity.SharedMessage
	decode(t, rec, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "round 1 done", msgs[0].Content)
}

func TestServer_ArchivedRunReads(t *testing.T) {
	srv, _, archive := newTestServer(t)

	plan := livePlan()
	plan.Tasks[1].Status = entity.TaskStatusFailed
	require.NoError(t, archive.Save(context.Background(), &entity.RunRecord{
		RunID:       "old",
		Objective:   "earlier",
		State:       entity.RunStateDone,
		FinalAnswer: "final",
		Plan:        plan,
		Data:        map[string]string{"k": "v"},
		Rounds:      2,
	}))

	rec := do(t, srv, http.MethodGet, "/runs/old", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	decode(t, rec, &view)
	assert.Equal(t, "done", view["state"])
	assert.Equal(t, "final", view["final_answer"])
	assert.Equal(t, true, view["archived"])

	rec = do(t, srv, http.MethodGet, "/runs/old/data/k", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/runs/old/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_UnknownRun(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/runs/nope", "/runs/nope/plan", "/runs/nope/data/x", "/runs/nope/messages"} {
		assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, "").Code, path)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orchestra_rounds_total")
}

type archivingOrchestrator struct {
	archive *redis.Archive
}

func (o *archivingOrchestrator) Execute(context.Context, string) (*input.ExecuteResult, error) {
	return nil, nil
}

func (o *archivingOrchestrator) Prepare(objective string) input.RunHandle {
	return &fakeRun{id: "finished-run", objective: objective, state: entity.RunStateCreated}
}

func (o *archivingOrchestrator) Run(ctx context.Context, run input.RunHandle) (*entity.RunResult, error) {
	res := &entity.RunResult{RunID: run.ID(), State: entity.RunStateDone, FinalAnswer: "from the archive", Plan: livePlan()}
	return res, o.archive.Save(ctx, &entity.RunRecord{
		RunID:       res.RunID,
		Objective:   run.Objective(),
		State:       res.State,
		FinalAnswer: res.FinalAnswer,
		Plan:        res.Plan,
	})
}

func TestServer_FinishedRunServedFromArchiveAfterEviction(t *testing.T) {
	mr := miniredis.RunT(t)
	archive := redis.New(&goredis.Options{Addr: mr.Addr()}, "test")
	t.Cleanup(func() { archive.Close() })

	runs := service.NewRunManager(&archivingOrchestrator{archive: archive}, logger.NewNop(), service.RunManagerConfig{Archive: archive})
	t.Cleanup(func() { runs.Shutdown(context.Background()) })
	srv := New(Config{Runs: runs, Archive: archive, LogLevel: "error"})

	rec := do(t, srv, http.MethodPost, "/runs", `{"objective":"done soon"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		_, err := runs.Get("finished-run")
		return err != nil
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(t, srv, http.MethodGet, "/runs/finished-run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	decode(t, rec, &view)
	assert.Equal(t, true, view["archived"])
	assert.Equal(t, "from the archive", view["final_answer"])
	assert.Equal(t, "done soon", view["objective"])

	rec = do(t, srv, http.MethodGet, "/runs/finished-run/plan", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
