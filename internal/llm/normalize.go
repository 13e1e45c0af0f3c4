package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Smaller local models can't always emit structured tool calls and instead
// print the call as JSON in the content, sometimes inside a markdown fence.
// Normalize reconciles all three shapes into one canonical list:
//
//  1. structured array on the response (always wins)
//  2. content starting with a ```-fenced JSON object
//  3. content starting directly with {"name"
//
// An empty result means the model gave a final answer.
func Normalize(resp *Response) []ToolCall {
	if resp == nil {
		return nil
	}
	if len(resp.ToolCalls) > 0 {
		return resp.ToolCalls
	}
	trimmed := strings.TrimSpace(resp.Content)
	switch {
	case strings.HasPrefix(trimmed, "```"):
		body, ok := fencedBody(trimmed)
		if !ok {
			return nil
		}
		return freeTextCall(body)
	case strings.HasPrefix(trimmed, `{"name"`):
		return freeTextCall(trimmed)
	}
	return nil
}

// LooksLikeToolCall reports whether content has the shape of a free-text
// function call, whether or not it parses. Used to keep the loop going
// instead of accepting such content as a final answer. An unterminated fence
// still counts: a model cut off mid-call must get another turn, not have its
// fragment treated as SQL.
func LooksLikeToolCall(content string) bool {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, `{"name"`) {
		return true
	}
	if !strings.HasPrefix(trimmed, "```") {
		return false
	}
	body, ok := fencedBody(trimmed)
	if !ok {
		body = openFenceRE.ReplaceAllString(trimmed, "")
	}
	return strings.HasPrefix(strings.TrimSpace(body), "{")
}

var (
	fenceRE     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)```")
	openFenceRE = regexp.MustCompile("^```[a-zA-Z]*[ \t]*\\n?")
)

func fencedBody(s string) (string, bool) {
	m := fenceRE.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// freeTextCall parses a {"name": ..., "arguments": ...} object. The ID is
// synthesized since free-text calls never carry one.
func freeTextCall(body string) []ToolCall {
	if !gjson.Valid(body) {
		return nil
	}
	name := gjson.Get(body, "name")
	if !name.Exists() || name.Type != gjson.String || name.String() == "" {
		return nil
	}
	return []ToolCall{{
		ID:   uuid.NewString(),
		Name: name.String(),
		Args: DecodeArgs(gjson.Get(body, "arguments").Raw),
	}}
}

// DecodeArgs decodes a raw arguments payload into a map. The payload may be a
// JSON object, a JSON-encoded string containing an object, or garbage; the
// last case degrades to an empty map so the turn can proceed and tool
// execution can report a typed error the model can react to.
func DecodeArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err == nil && m != nil {
		return m
	}
	// Arguments sometimes arrive double-encoded as a string.
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		if err := json.Unmarshal([]byte(s), &m); err == nil && m != nil {
			return m
		}
	}
	return map[string]any{}
}

var thinkRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThink removes reasoning scratchpad blocks that some models leak into
// their content.
func StripThink(s string) string {
	if !strings.Contains(s, "<think>") {
		return s
	}
	return strings.TrimSpace(thinkRE.ReplaceAllString(s, ""))
}
