package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

// Browser hands every worker invocation its own tab, so a navigate then read
// sequence of one task never observes another task's page.
type Browser struct {
	port          output.BrowserPort
	screenshotDir string
	logger        output.LoggerPort
}

func NewBrowser(port output.BrowserPort, screenshotDir string, logger output.LoggerPort) *Browser {
	if screenshotDir == "" {
		screenshotDir = "screenshots"
	}
	return &Browser{port: port, screenshotDir: screenshotDir, logger: logger.Named("web")}
}

// ToolsFor returns web tools bound to a fresh session for one invocation.
// The tab is opened on first use and released when any of the tools is
// closed.
func (b *Browser) ToolsFor(req entity.WorkerRequest, _ output.MemoryWriter) []output.ToolPort {
	s := &webSession{browser: b, taskID: req.Task.ID}
	return []output.ToolPort{
		&NavigateTool{session: s},
		&ReadPageTool{session: s},
		&ScreenshotTool{session: s},
	}
}

type webSession struct {
	browser *Browser
	taskID  string

	mu     sync.Mutex
	page   output.PagePort
	closed bool
}

// acquire returns the session's tab with the session lock held; callers
// must call release.
func (s *webSession) acquire(ctx context.Context) (output.PagePort, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("browser session for task %s is closed", s.taskID)
	}
	if s.page == nil {
		page, err := s.browser.port.NewPage(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("open browser tab: %w", err)
		}
		s.browser.logger.Debug("Opened tab", "task_id", s.taskID)
		s.page = page
	}
	return s.page, nil
}

func (s *webSession) release() {
	s.mu.Unlock()
}

func (s *webSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	return nil
}

type NavigateTool struct {
	session *webSession
}

func (t *NavigateTool) Close() error { return t.session.Close() }

func (t *NavigateTool) Name() entity.ToolName { return entity.ToolWebNavigate }
func (t *NavigateTool) Description() string   { return "Navigates the browser to a URL and waits for the page to load" }
func (t *NavigateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Full URL including protocol (https:// or http://)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.URL == "" {
		return "", fmt.Errorf("url parameter is required")
	}

	page, err := t.session.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer t.session.release()

	t.session.browser.logger.Info("Navigating", "task_id", t.session.taskID, "url", input.URL)
	if err := page.Navigate(ctx, input.URL); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}
	return fmt.Sprintf("Navigated to %s", page.CurrentURL()), nil
}

type ReadPageTool struct {
	session *webSession
}

func (t *ReadPageTool) Close() error { return t.session.Close() }

func (t *ReadPageTool) Name() entity.ToolName { return entity.ToolWebReadPage }
func (t *ReadPageTool) Description() string {
	return "Returns the title and visible text of the current page, optionally navigating first"
}
func (t *ReadPageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL to open before reading",
			},
		},
		"required": []string{},
	}
}

func (t *ReadPageTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("invalid input format: %w", err)
		}
	}

	page, err := t.session.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer t.session.release()

	if input.URL != "" {
		if err := page.Navigate(ctx, input.URL); err != nil {
			return "", fmt.Errorf("navigation failed: %w", err)
		}
	}

	content, err := page.GetPageContent(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", content.URL, content.Title, content.Text), nil
}

type ScreenshotTool struct {
	session *webSession
}

func (t *ScreenshotTool) Close() error { return t.session.Close() }

func (t *ScreenshotTool) Name() entity.ToolName { return entity.ToolWebScreenshot }
func (t *ScreenshotTool) Description() string   { return "Saves a screenshot of the current page and returns its path" }
func (t *ScreenshotTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, _ string) (string, error) {
	page, err := t.session.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer t.session.release()

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	b := t.session.browser

	if err := os.MkdirAll(b.screenshotDir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(b.screenshotDir, fmt.Sprintf("%s.%s", uuid.NewString(), shot.Format))
	if err := os.WriteFile(path, shot.Data, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	return fmt.Sprintf("Saved %dx%d %s screenshot of %s to %s", shot.Width, shot.Height, shot.Format, page.CurrentURL(), path), nil
}
