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
)

// LMStudioClient talks to LM Studio's OpenAI-compatible local server over raw
// HTTP. Local models routinely leak reasoning scratchpads, so content is
// think-stripped.
type LMStudioClient struct {
	baseURL     string
	model       string
	temperature float64
	http        *http.Client
}

func NewLMStudioClient(baseURL, model string, temperature float64, timeout time.Duration) *LMStudioClient {
	if baseURL == "" {
		baseURL = "http://localhost:1234/v1"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &LMStudioClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		http:        &http.Client{Timeout: timeout},
	}
}

// Raw API request/response types

type lmsMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	Name       string        `json:"name,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolCalls  []lmsToolCall `json:"tool_calls,omitempty"`
}

type lmsToolCall struct {
	ID       string      `json:"id,omitempty"`
	Type     string      `json:"type,omitempty"`
	Function lmsFunction `json:"function"`
}

type lmsFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded string
}

type lmsTool struct {
	Type     string    `json:"type"`
	Function lmsToolFn `json:"function"`
}

type lmsToolFn struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type lmsRequest struct {
	Model       string       `json:"model"`
	Messages    []lmsMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	Stream      bool         `json:"stream"`
	Tools       []lmsTool    `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
}

type lmsResponse struct {
	Choices []struct {
		Message lmsMessage `json:"message"`
	} `json:"choices"`
}

func (c *LMStudioClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	req := lmsRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   4096,
		Stream:      false,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, lmsTool{
			Type:     "function",
			Function: lmsToolFn{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	for _, m := range messages {
		lm := lmsMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID, Name: m.ToolName}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			lm.ToolCalls = append(lm.ToolCalls, lmsToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: lmsFunction{Name: tc.Name, Arguments: string(args)},
			})
		}
		req.Messages = append(req.Messages, lm)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransport("lmstudio", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport("lmstudio", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("lmstudio", resp.StatusCode, respBody)
	}

	var parsed lmsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &BackendError{Backend: "lmstudio", Kind: ErrKindHTTPStatus, Status: resp.StatusCode, Detail: "unparsable response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return &Response{}, nil
	}

	msg := parsed.Choices[0].Message
	result := &Response{Content: StripThink(msg.Content)}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: DecodeArgs(tc.Function.Arguments),
		})
	}
	return result, nil
}

// Available checks the local server's model listing.
func (c *LMStudioClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
