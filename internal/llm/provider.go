package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BackendSettings holds the per-backend knobs from configuration.
type BackendSettings struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// ProviderConfig selects the active backend and carries settings for every
// backend the manager may fall back to.
type ProviderConfig struct {
	Backend   string // groq, ollama, lmstudio, anthropic
	Groq      BackendSettings
	Ollama    BackendSettings
	LMStudio  BackendSettings
	Anthropic BackendSettings
}

// fallbackOrder is the deterministic priority used when the configured
// backend is unavailable.
var fallbackOrder = []string{"groq", "ollama", "lmstudio", "anthropic"}

// Manager owns the adapters and pins the active one at construction time.
// If the configured backend is unavailable it selects the first available
// adapter in priority order and logs the substitution; if none are available
// construction fails.
type Manager struct {
	active Client
	name   string
}

func NewManager(ctx context.Context, cfg ProviderConfig, log *slog.Logger) (*Manager, error) {
	clients := map[string]Client{
		"groq":      NewGroqClient(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.Temperature, cfg.Groq.Timeout),
		"ollama":    NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Temperature, cfg.Ollama.Timeout),
		"lmstudio":  NewLMStudioClient(cfg.LMStudio.BaseURL, cfg.LMStudio.Model, cfg.LMStudio.Temperature, cfg.LMStudio.Timeout),
		"anthropic": NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.Temperature, cfg.Anthropic.Timeout),
	}

	configured, ok := clients[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown LLM backend: %s", cfg.Backend)
	}
	if configured.Available(ctx) {
		return &Manager{active: configured, name: cfg.Backend}, nil
	}

	for _, name := range fallbackOrder {
		if name == cfg.Backend {
			continue
		}
		if clients[name].Available(ctx) {
			log.Warn("configured backend unavailable, substituting",
				"configured", cfg.Backend, "selected", name)
			return &Manager{active: clients[name], name: name}, nil
		}
	}
	return nil, fmt.Errorf("no available LLM backend (configured: %s)", cfg.Backend)
}

// Generate sends the conversation to the active backend. The conversation
// must be non-empty with a system message first; tools may be empty.
func (m *Manager) Generate(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	if len(messages) == 0 || messages[0].Role != RoleSystem {
		return nil, fmt.Errorf("conversation must start with a system message")
	}
	return m.active.Chat(ctx, messages, tools)
}

// Name reports the active backend.
func (m *Manager) Name() string {
	return m.name
}
