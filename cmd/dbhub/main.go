package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/choijun/dbhub/config"
	"github.com/choijun/dbhub/internal/db"
	"github.com/choijun/dbhub/internal/engine"
	"github.com/choijun/dbhub/internal/llm"
	"github.com/choijun/dbhub/internal/schemacache"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	database, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	manager, err := llm.NewManager(context.Background(), llm.ProviderConfig{
		Backend:   cfg.Backend,
		Groq:      llm.BackendSettings{APIKey: cfg.GroqAPIKey, Model: cfg.GroqModel, Temperature: cfg.Temperature, Timeout: cfg.GroqTimeout},
		Ollama:    llm.BackendSettings{BaseURL: cfg.OllamaBaseURL, Model: cfg.OllamaModel, Temperature: cfg.Temperature, Timeout: cfg.OllamaTimeout},
		LMStudio:  llm.BackendSettings{BaseURL: cfg.LMStudioURL, Model: cfg.LMStudioModel, Temperature: cfg.Temperature, Timeout: cfg.LMStudioTimeout},
		Anthropic: llm.BackendSettings{APIKey: cfg.AnthropicKey, Model: cfg.AnthropicModel, Temperature: cfg.Temperature, Timeout: cfg.AnthropicTimeout},
	}, logger)
	if err != nil {
		logger.Error("failed to create LLM backend", "error", err)
		os.Exit(1)
	}
	logger.Info("backend selected", "backend", manager.Name())

	cache := schemacache.New(database, logger)
	if err := cache.Start(cfg.SchemaRefreshCron); err != nil {
		logger.Error("failed to start schema cache", "error", err)
		os.Exit(1)
	}
	defer cache.Stop()

	policy := engine.DuplicateAdvisory
	if cfg.RejectDuplicates {
		policy = engine.DuplicateReject
	}
	eng, err := engine.New(manager, database, engine.Options{
		MaxToolCalls:    cfg.MaxToolCalls,
		UseTools:        cfg.UseTools,
		DuplicatePolicy: policy,
		DatabaseName:    cfg.DBName,
		SchemaContext:   cache.Context,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// One-shot when a question is passed as arguments.
	if len(os.Args) > 1 {
		answer(eng, strings.Join(os.Args[1:], " "))
		return
	}
	runREPL(eng)
}

func runREPL(eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)

	// Check if stdin is a pipe (non-interactive)
	stat, _ := os.Stdin.Stat()
	isPipe := (stat.Mode() & os.ModeCharDevice) == 0

	if !isPipe {
		fmt.Print("dbhub> ")
	}
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input != "" {
			answer(eng, input)
		}
		if isPipe {
			break // single exchange in pipe mode
		}
		fmt.Print("dbhub> ")
	}
}

func answer(eng *engine.Engine, question string) {
	res := eng.Answer(context.Background(), question)
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error (%s): %s\n", res.Err.Kind, res.Err.Detail)
		return
	}
	fmt.Println(res.SQL)
	out, err := json.MarshalIndent(res.Rows, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error rendering rows: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
