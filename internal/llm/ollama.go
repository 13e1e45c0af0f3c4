package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OllamaClient talks to Ollama's native API. Tool-calling changes the
// endpoint: /api/chat understands messages and tools, /api/generate only a
// flat prompt, so the no-tools path flattens the conversation.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	http        *http.Client
}

func NewOllamaClient(baseURL, model string, temperature float64, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		http:        &http.Client{Timeout: timeout},
	}
}

// Raw API request/response types

type ollamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // object, not a string
}

type ollamaTool struct {
	Type     string       `json:"type"`
	Function ollamaToolFn `json:"function"`
}

type ollamaToolFn struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	if len(tools) > 0 {
		return c.chat(ctx, messages, tools)
	}
	return c.generate(ctx, messages)
}

func (c *OllamaClient) chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	req := ollamaChatRequest{
		Model:   c.model,
		Stream:  false,
		Options: ollamaOptions{Temperature: c.temperature, NumPredict: 4096},
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type:     "function",
			Function: ollamaToolFn{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	for _, m := range messages {
		om := ollamaMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunction{Name: tc.Name, Arguments: args},
			})
		}
		req.Messages = append(req.Messages, om)
	}

	body, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &BackendError{Backend: "ollama", Kind: ErrKindHTTPStatus, Status: http.StatusOK, Detail: "unparsable chat response: " + err.Error()}
	}

	result := &Response{Content: StripThink(parsed.Message.Content)}
	for _, tc := range parsed.Message.ToolCalls {
		// The native API assigns no call IDs; synthesize them so tool-result
		// correlation works the same as for other backends.
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   uuid.NewString(),
			Name: tc.Function.Name,
			Args: DecodeArgs(string(tc.Function.Arguments)),
		})
	}
	return result, nil
}

func (c *OllamaClient) generate(ctx context.Context, messages []Message) (*Response, error) {
	var parts []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			parts = append(parts, "System instructions:\n"+m.Content)
		case RoleUser:
			parts = append(parts, "User question:\n"+m.Content)
		case RoleAssistant:
			parts = append(parts, "Assistant:\n"+m.Content)
		}
	}
	req := ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  strings.Join(parts, "\n\n"),
		Stream:  false,
		Options: ollamaOptions{Temperature: c.temperature, NumPredict: 4096},
	}
	body, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return nil, err
	}
	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &BackendError{Backend: "ollama", Kind: ErrKindHTTPStatus, Status: http.StatusOK, Detail: "unparsable generate response: " + err.Error()}
	}
	return &Response{Content: StripThink(parsed.Response)}, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport("ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport("ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("ollama", resp.StatusCode, respBody)
	}
	return respBody, nil
}

// Available checks /api/tags and that the configured model is pulled.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	for _, m := range parsed.Models {
		if m.Name == c.model {
			return true
		}
	}
	return false
}
