package tool

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/domain/memory"
	"orchestra-agent/internal/infrastructure/logger"
)

func startRound(t *testing.T) (*memory.SharedMemory, entity.WorkerRequest) {
	t.Helper()
	mem := memory.New()
	mem.SetPlan(&entity.TaskPlan{
		PlanID:    "p1",
		Objective: "research",
		Tasks: []entity.Task{
			{ID: "t1", Description: "find facts", AssignedTo: "researcher", Status: entity.TaskStatusPending},
			{ID: "t2", Description: "write", AssignedTo: "writer", Status: entity.TaskStatusPending, Dependencies: []string{"t1"}},
		},
	})
	mem.SetData("seed", "value")

	snap, err := mem.BeginRound([]string{"t1"})
	require.NoError(t, err)
	task, _ := snap.Plan.Task("t1")
	return mem, entity.WorkerRequest{Task: *task, Objective: snap.Plan.Objective, Snapshot: snap}
}

func byName(tools []output.ToolPort, name entity.ToolName) output.ToolPort {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func TestUpdateTaskMemory_WritesThroughMemory(t *testing.T) {
	mem, req := startRound(t)
	tool := byName(MemoryTools(req, mem), entity.ToolUpdateTaskMemory)

	out, err := tool.Execute(context.Background(), `{"task_id":"t1","result":"found 3 facts","extra_data":{"facts":"a,b,c"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Updated task t1, stored keys: facts", out)

	v, ok := mem.GetData("facts")
	require.True(t, ok)
	assert.Equal(t, "a,b,c", v)

	t1, _ := mem.GetPlan().Task("t1")
	assert.Equal(t, "found 3 facts", t1.ResultText())
}

func TestUpdateTaskMemory_RejectsOtherTasks(t *testing.T) {
	mem, req := startRound(t)
	tool := byName(MemoryTools(req, mem), entity.ToolUpdateTaskMemory)

	_, err := tool.Execute(context.Background(), `{"task_id":"t2","result":"x"}`)
	assert.Error(t, err)
}

func TestReadSharedData_ServesRoundSnapshot(t *testing.T) {
	mem, req := startRound(t)
	tools := MemoryTools(req, mem)

	_, err := byName(tools, entity.ToolUpdateTaskMemory).Execute(context.Background(), `{"task_id":"t1","extra_data":{"late":"1"}}`)
	require.NoError(t, err)

	read := byName(tools, entity.ToolReadSharedData)
	out, err := read.Execute(context.Background(), `{"key":"seed"}`)
	require.NoError(t, err)
	assert.Equal(t, "value", out)

	_, err = read.Execute(context.Background(), `{"key":"late"}`)
	assert.Error(t, err)

	out, err = read.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Equal(t, "Available keys: seed", out)
}

func TestGetPlan_ReturnsJSON(t *testing.T) {
	mem, req := startRound(t)
	out, err := byName(MemoryTools(req, mem), entity.ToolGetPlan).Execute(context.Background(), "")
	require.NoError(t, err)

	var decoded struct {
		Objective string     `json:"objective"`
		Tasks     []planView `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "research", decoded.Objective)
	require.Len(t, decoded.Tasks, 2)
	assert.Equal(t, entity.TaskStatusInProgress, decoded.Tasks[0].Status)
	assert.Equal(t, []string{"t1"}, decoded.Tasks[1].Dependencies)
}

func TestPostMessage_UsesWorkerAsSender(t *testing.T) {
	mem, req := startRound(t)
	post := byName(MemoryTools(req, mem), entity.ToolPostMessage)

	out, err := post.Execute(context.Background(), `{"recipient":"writer","content":"facts are ready"}`)
	require.NoError(t, err)
	assert.Equal(t, "Message sent to writer", out)

	msgs := mem.MessagesFor("writer")
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "researcher", last.Sender)
	assert.Equal(t, "facts are ready", last.Content)

	_, err = post.Execute(context.Background(), `{"content":"  "}`)
	assert.Error(t, err)
}

type fakePage struct {
	mu     sync.Mutex
	url    string
	closed bool
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return nil
}

func (f *fakePage) GetPageContent(context.Context) (*entity.PageContent, error) {
	url := f.CurrentURL()
	return &entity.PageContent{URL: url, Title: "Example", Text: "Hello from " + url}, nil
}

func (f *fakePage) Screenshot(context.Context) (*entity.Screenshot, error) {
	return &entity.Screenshot{Data: []byte("png"), Format: "png", Width: 10, Height: 5}, nil
}

func (f *fakePage) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *fakePage) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type fakeBrowser struct {
	fakePage
	mu    sync.Mutex
	pages []*fakePage
}

func (f *fakeBrowser) NewPage(context.Context) (output.PagePort, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePage{}
	f.pages = append(f.pages, p)
	return p, nil
}

func invocationTools(b *Browser, taskID string) []output.ToolPort {
	return b.ToolsFor(entity.WorkerRequest{Task: entity.Task{ID: taskID}}, nil)
}

func closeAll(tools []output.ToolPort) {
	for _, t := range tools {
		if c, ok := t.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

func TestWebTools(t *testing.T) {
	fb := &fakeBrowser{}
	dir := t.TempDir()
	tools := invocationTools(NewBrowser(fb, dir, logger.NewNop()), "t1")

	out, err := byName(tools, entity.ToolWebNavigate).Execute(context.Background(), `{"url":"https://example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, "Navigated to https://example.com", out)

	out, err = byName(tools, entity.ToolWebReadPage).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Example")
	assert.Contains(t, out, "Hello from https://example.com")

	out, err = byName(tools, entity.ToolWebScreenshot).Execute(context.Background(), "{}")
	require.NoError(t, err)
	assert.Contains(t, out, "10x5 png")

	path := out[strings.LastIndex(out, " ")+1:]
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	_, err = byName(tools, entity.ToolWebNavigate).Execute(context.Background(), `{}`)
	assert.Error(t, err)

	require.Len(t, fb.pages, 1)
	assert.Empty(t, fb.url, "the default tab must not be driven by worker tools")
}

func TestWebTools_InterleavedInvocationsKeepTheirOwnPage(t *testing.T) {
	fb := &fakeBrowser{}
	b := NewBrowser(fb, t.TempDir(), logger.NewNop())
	a := invocationTools(b, "t1")
	other := invocationTools(b, "t2")
	ctx := context.Background()

	_, err := byName(a, entity.ToolWebNavigate).Execute(ctx, `{"url":"https://a.example"}`)
	require.NoError(t, err)
	_, err = byName(other, entity.ToolWebNavigate).Execute(ctx, `{"url":"https://b.example"}`)
	require.NoError(t, err)

	out, err := byName(a, entity.ToolWebReadPage).Execute(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, "URL: https://a.example")
	assert.NotContains(t, out, "b.example")

	out, err = byName(other, entity.ToolWebReadPage).Execute(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, "URL: https://b.example")

	assert.Len(t, fb.pages, 2)
}

func TestWebTools_ConcurrentInvocations(t *testing.T) {
	fb := &fakeBrowser{}
	b := NewBrowser(fb, t.TempDir(), logger.NewNop())

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tools := invocationTools(b, "t")
			defer closeAll(tools)
			url := "https://example.com/" + string(rune('a'+i))
			_, _ = byName(tools, entity.ToolWebNavigate).Execute(context.Background(), `{"url":"`+url+`"}`)
			time.Sleep(time.Millisecond)
			out, _ := byName(tools, entity.ToolWebReadPage).Execute(context.Background(), "")
			results[i] = out
		}()
	}
	wg.Wait()

	for i, out := range results {
		assert.Contains(t, out, "URL: https://example.com/"+string(rune('a'+i)))
	}
}

func TestWebTools_CloseReleasesTab(t *testing.T) {
	fb := &fakeBrowser{}
	tools := invocationTools(NewBrowser(fb, t.TempDir(), logger.NewNop()), "t1")

	_, err := byName(tools, entity.ToolWebNavigate).Execute(context.Background(), `{"url":"https://example.com"}`)
	require.NoError(t, err)

	closeAll(tools)
	require.Len(t, fb.pages, 1)
	assert.True(t, fb.pages[0].closed)

	_, err = byName(tools, entity.ToolWebReadPage).Execute(context.Background(), "")
	assert.Error(t, err)
}

func TestWebTools_UnusedSessionOpensNoTab(t *testing.T) {
	fb := &fakeBrowser{}
	closeAll(invocationTools(NewBrowser(fb, t.TempDir(), logger.NewNop()), "t1"))
	assert.Empty(t, fb.pages)
}
