package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"orchestra-agent/internal/adapter/tool"
	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/application/service"
	"orchestra-agent/internal/infrastructure/archive/redis"
	"orchestra-agent/internal/infrastructure/browser/rod"
	"orchestra-agent/internal/infrastructure/httpapi"
	"orchestra-agent/internal/infrastructure/llm/langchain"
	"orchestra-agent/internal/infrastructure/llm/openrouter"
	"orchestra-agent/internal/infrastructure/logger"
	"orchestra-agent/internal/infrastructure/metrics"
	"orchestra-agent/internal/infrastructure/userinteraction"
	"orchestra-agent/internal/usecase/orchestrator"
	"orchestra-agent/internal/usecase/planner"
	"orchestra-agent/internal/usecase/synthesizer"
	"orchestra-agent/internal/usecase/worker"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderLangChain  = "langchain"
)

type Container struct {
	Browser      output.BrowserPort
	LLM          output.LLMPort
	Logger       output.LoggerPort
	Workers      output.WorkerRegistry
	Orchestrator input.Orchestrator
	Runs         *service.RunManager
	Archive      *redis.Archive
	Metrics      *metrics.Collector
}

type Config struct {
	LogName  string
	LogDir   string
	LogLevel string

	LLMProvider string
	APIKey      string
	Model       string
	BaseURL     string

	MaxRounds           int
	WorkerTimeout       time.Duration
	WorkerMaxIterations int

	WebTools        bool
	BrowserHeadless bool
	ScreenshotDir   string

	// RedisAddr enables the run archive when set.
	RedisAddr string
	// ConsoleProgress prints plan and round progress to stdout.
	ConsoleProgress bool
}

type workerProfile struct {
	id          string
	description string
	web         bool
}

var defaultWorkers = []workerProfile{
	{
		id:          "researcher",
		description: "Collects facts and source material for the objective. Can browse the web when web tools are enabled.",
		web:         true,
	},
	{
		id:          "analyst",
		description: "Compares, evaluates and draws conclusions from material gathered by other tasks.",
	},
	{
		id:          "writer",
		description: "Turns results of other tasks into clear, well structured prose.",
	},
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Name:  cfg.LogName,
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{Logger: log, Metrics: metrics.New()}

	c.LLM, err = newLLM(cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	var web *tool.Browser
	if cfg.WebTools {
		browserCfg := rod.DefaultConfig()
		browserCfg.Headless = cfg.BrowserHeadless
		browser, err := rod.NewBrowserAdapter(browserCfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create browser: %w", err)
		}
		c.Browser = browser
		web = tool.NewBrowser(browser, cfg.ScreenshotDir, log)
	}

	workers := service.NewWorkerRegistry()
	for _, p := range defaultWorkers {
		wcfg := worker.Config{
			ID:            p.id,
			Description:   p.description,
			MaxIterations: cfg.WorkerMaxIterations,
			ToolsFor:      tool.MemoryTools,
		}
		if p.web && web != nil {
			wcfg.ToolsFor = worker.Chain(tool.MemoryTools, web.ToolsFor)
		}
		workers.Register(worker.NewLLMWorker(c.LLM, log, wcfg))
	}
	c.Workers = workers

	if cfg.RedisAddr != "" {
		c.Archive = redis.New(&goredis.Options{Addr: cfg.RedisAddr}, redis.DefaultPrefix)
		if err := c.Archive.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
	}

	deps := orchestrator.Deps{
		Planner:     planner.New(c.LLM, log, ""),
		Synthesizer: synthesizer.New(c.LLM, log),
		Workers:     workers,
		Logger:      log,
		Metrics:     c.Metrics,
	}
	if c.Archive != nil {
		deps.Archive = c.Archive
	}
	if cfg.ConsoleProgress {
		deps.Progress = userinteraction.NewConsoleProgress()
	}

	c.Orchestrator = orchestrator.New(deps, orchestrator.Config{
		MaxRounds:     cfg.MaxRounds,
		WorkerTimeout: cfg.WorkerTimeout,
	})
	runsCfg := service.RunManagerConfig{}
	if c.Archive != nil {
		runsCfg.Archive = c.Archive
	}
	c.Runs = service.NewRunManager(c.Orchestrator, log, runsCfg)

	return c, nil
}

func newLLM(cfg Config, log output.LoggerPort) (output.LLMPort, error) {
	switch cfg.LLMProvider {
	case "", ProviderOpenRouter:
		llmCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			llmCfg.BaseURL = cfg.BaseURL
		}
		llmCfg.Logger = log
		return openrouter.NewOpenRouterAdapter(llmCfg), nil
	case ProviderLangChain:
		adapter, err := langchain.New(langchain.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create langchain client: %w", err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// HTTPHandler exposes run submission and monitoring over the run manager.
func (c *Container) HTTPHandler() http.Handler {
	cfg := httpapi.Config{
		Runs:    c.Runs,
		Metrics: c.Metrics.Handler(),
	}
	if c.Archive != nil {
		cfg.Archive = c.Archive
	}
	return httpapi.New(cfg)
}

func (c *Container) Close() {
	if c.Runs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.Runs.Shutdown(ctx); err != nil && c.Logger != nil {
			c.Logger.Warn("Runs still active at shutdown", "error", err)
		}
		cancel()
	}
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Archive != nil {
		c.Archive.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
