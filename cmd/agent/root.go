package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"orchestra-agent/internal/di"
	"orchestra-agent/internal/infrastructure/env"
	"orchestra-agent/internal/usecase/orchestrator"
	"orchestra-agent/internal/usecase/worker"
)

var (
	flagMaxRounds int
	flagWebTools  bool
	flagRedisAddr string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Multi-worker task orchestrator",
	Long: `agent breaks an objective into a plan of dependent tasks, runs every
ready task of a round concurrently on specialised workers that share one
memory, and synthesises the results into a final answer.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagMaxRounds, "max-rounds", 0, "Round budget per run (default MAX_ROUNDS or 10)")
	rootCmd.PersistentFlags().BoolVar(&flagWebTools, "web", false, "Give the researcher browser tools (also WEB_TOOLS_ENABLED)")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis", "", "Redis address for the run archive (also REDIS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (also LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig merges the environment with command line flags; flags win.
func loadConfig(logName string) di.Config {
	e := env.NewEnvService()

	cfg := di.Config{
		LogName:  logName,
		LogDir:   e.GetWithDefault("LOG_DIR", "log"),
		LogLevel: e.GetWithDefault("LOG_LEVEL", "info"),

		LLMProvider: e.GetWithDefault("LLM_PROVIDER", di.ProviderOpenRouter),
		APIKey:      e.MustGet("OPENROUTER_API_KEY"),
		Model:       e.MustGet("OPENROUTER_MODEL_NAME"),
		BaseURL:     e.Get("OPENROUTER_BASE_URL"),

		MaxRounds:           e.GetInt("MAX_ROUNDS", orchestrator.DefaultMaxRounds),
		WorkerTimeout:       e.GetDuration("WORKER_TIMEOUT", 5*time.Minute),
		WorkerMaxIterations: e.GetInt("WORKER_MAX_ITERATIONS", worker.DefaultMaxIterations),

		WebTools:        e.GetBool("WEB_TOOLS_ENABLED", false),
		BrowserHeadless: e.GetBool("BROWSER_HEADLESS", true),
		ScreenshotDir:   e.GetWithDefault("SCREENSHOT_DIR", "screenshots"),

		RedisAddr: e.Get("REDIS_ADDR"),
	}

	if flagMaxRounds > 0 {
		cfg.MaxRounds = flagMaxRounds
	}
	if flagWebTools {
		cfg.WebTools = true
	}
	if flagRedisAddr != "" {
		cfg.RedisAddr = flagRedisAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg
}
