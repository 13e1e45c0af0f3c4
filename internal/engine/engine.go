// Package engine runs the tool-calling loop that turns a natural-language
// question into a validated, executed SQL query.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/choijun/dbhub/internal/db"
	"github.com/choijun/dbhub/internal/llm"
	"github.com/choijun/dbhub/internal/sqltext"
	"github.com/choijun/dbhub/internal/tool"
)

const defaultMaxToolCalls = 8

// Backend generates a canonical response for a conversation. Satisfied by
// *llm.Manager.
type Backend interface {
	Generate(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error)
	Name() string
}

// DuplicatePolicy controls what happens when the model repeats an identical
// tool call within one session. The prompt already tells it not to; this
// decides whether that rule is enforced.
type DuplicatePolicy int

const (
	// DuplicateAdvisory executes repeats anyway (observed legacy behavior).
	DuplicateAdvisory DuplicatePolicy = iota
	// DuplicateReject answers the repeat with a model-visible error result
	// instead of executing it.
	DuplicateReject
)

// Options configures an Engine.
type Options struct {
	MaxToolCalls    int
	UseTools        bool
	DuplicatePolicy DuplicatePolicy
	DatabaseName    string
	// SchemaContext renders the table/column summary stuffed into the system
	// prompt when UseTools is false.
	SchemaContext func() string
	Logger        *slog.Logger
}

// Result is the single outcome of a question: exactly one of the {SQL, Rows}
// pair or Err is set.
type Result struct {
	Success bool     `json:"success"`
	SQL     string   `json:"sql,omitempty"`
	Rows    []db.Row `json:"rows,omitempty"`
	Err     *Error   `json:"error,omitempty"`
}

// Engine wires a backend, a query executor, and the tool registry into the
// orchestration loop. All collaborators arrive through the constructor; there
// is no process-global state.
type Engine struct {
	backend  Backend
	exec     db.Executor
	registry *tool.Registry
	opts     Options
	log      *slog.Logger
}

func New(backend Backend, exec db.Executor, opts Options) (*Engine, error) {
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = defaultMaxToolCalls
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{backend: backend, exec: exec, opts: opts, log: opts.Logger}

	registry, err := tool.NewRegistry(
		tool.ListTables(exec),
		tool.DescribeTable(exec),
		tool.QueryDatabase(e.subQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}
	e.registry = registry
	return e, nil
}

// session is the per-question state. Discarded when the question is answered
// or fails; nothing is shared across questions.
type session struct {
	conversation  []llm.Message
	toolCallCount int
	maxToolCalls  int
	seen          map[string]bool
}

func newSession(systemPrompt, question string, maxToolCalls int) *session {
	return &session{
		conversation: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: question},
		},
		maxToolCalls: maxToolCalls,
		seen:         make(map[string]bool),
	}
}

func (s *session) append(m llm.Message) {
	s.conversation = append(s.conversation, m)
}

// callKey canonicalizes a call for duplicate detection.
func callKey(call llm.ToolCall) string {
	args, _ := json.Marshal(call.Args)
	return call.Name + ":" + string(args)
}

// Answer runs one full session for a question and returns its terminal
// result.
func (e *Engine) Answer(ctx context.Context, question string) Result {
	q := strings.TrimSpace(question)
	if utf8.RuneCountInString(q) < 5 || isNumeric(q) {
		return failed(newError(KindAmbiguousQuestion,
			"the question is too short or not a natural-language question"))
	}

	if !e.opts.UseTools {
		return e.answerDirect(ctx, q)
	}
	return e.answerAgentic(ctx, q)
}

// answerAgentic is the tool-calling state machine.
func (e *Engine) answerAgentic(ctx context.Context, question string) Result {
	prompt := llm.BuildSystemPrompt(llm.PromptOptions{UseTools: true})
	s := newSession(prompt, question, e.opts.MaxToolCalls)
	tools := e.registry.Definitions()

	for {
		if err := ctx.Err(); err != nil {
			return failed(wrapError(KindCancelled, err))
		}

		resp, err := e.backend.Generate(ctx, s.conversation, tools)
		if err != nil {
			if ctx.Err() != nil {
				return failed(wrapError(KindCancelled, ctx.Err()))
			}
			return failed(wrapError(KindBackend, err))
		}

		calls := llm.Normalize(resp)
		if len(calls) == 0 {
			content := strings.TrimSpace(resp.Content)
			if content == "" {
				return failed(newError(KindBackend, "backend returned neither content nor tool calls"))
			}
			if llm.LooksLikeToolCall(content) {
				// The model emitted an unparsable function call as its final
				// answer. Keep looping instead of accepting it as SQL; it
				// still counts against the budget.
				if s.toolCallCount >= s.maxToolCalls {
					return failed(e.limitError(s))
				}
				s.toolCallCount++
				s.append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
				e.log.Debug("premature final answer, continuing loop", "round", s.toolCallCount)
				continue
			}
			return e.finish(ctx, content)
		}

		if s.toolCallCount >= s.maxToolCalls {
			return failed(e.limitError(s))
		}
		s.toolCallCount++
		s.append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})

		// Execute sequentially, in the order the backend listed them; all
		// results are appended before the next backend call.
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return failed(wrapError(KindCancelled, err))
			}
			result := e.dispatch(ctx, s, call)
			e.log.Info("tool call", "tool", call.Name, "round", s.toolCallCount)
			s.append(result.Message())
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, s *session, call llm.ToolCall) llm.ToolResult {
	key := callKey(call)
	if s.seen[key] && e.opts.DuplicatePolicy == DuplicateReject {
		content, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("duplicate call to %s with identical arguments; use the result you already have", call.Name),
		})
		return llm.ToolResult{ToolCallID: call.ID, Name: call.Name, Content: string(content)}
	}
	s.seen[key] = true
	return e.registry.Execute(ctx, call)
}

// answerDirect is the no-tools path: one backend call with the schema context
// stuffed into the system prompt.
func (e *Engine) answerDirect(ctx context.Context, question string) Result {
	var schemaContext string
	if e.opts.SchemaContext != nil {
		schemaContext = e.opts.SchemaContext()
	}
	prompt := llm.BuildSystemPrompt(llm.PromptOptions{
		DatabaseName:  e.opts.DatabaseName,
		SchemaContext: schemaContext,
	})
	s := newSession(prompt, question, e.opts.MaxToolCalls)

	resp, err := e.backend.Generate(ctx, s.conversation, nil)
	if err != nil {
		if ctx.Err() != nil {
			return failed(wrapError(KindCancelled, ctx.Err()))
		}
		return failed(wrapError(KindBackend, err))
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return failed(newError(KindBackend, "backend returned an empty response"))
	}
	return e.finish(ctx, content)
}

// finish runs the extraction and execution tail shared by both paths.
func (e *Engine) finish(ctx context.Context, content string) Result {
	query, err := sqltext.Extract(content)
	switch {
	case errors.Is(err, sqltext.ErrRefusal):
		return failed(newError(KindAmbiguousQuestion, content))
	case errors.Is(err, sqltext.ErrNoSQL):
		return failed(newError(KindNoSQLGenerated,
			"the model did not produce SQL: "+truncate(content, 300)))
	case err != nil:
		return failed(newError(KindNoSQLGenerated, err.Error()))
	}

	if err := e.exec.Validate(ctx, query); err != nil {
		if ctx.Err() != nil {
			return failed(wrapError(KindCancelled, ctx.Err()))
		}
		return failed(wrapError(KindSQLValidation, err))
	}
	rows, err := e.exec.Execute(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return failed(wrapError(KindCancelled, ctx.Err()))
		}
		return failed(wrapError(KindSQLExecution, err))
	}
	e.log.Info("query executed", "rows", len(rows))
	return Result{Success: true, SQL: query, Rows: rows}
}

func (e *Engine) limitError(s *session) *Error {
	return newError(KindIterationLimit, fmt.Sprintf(
		"tool call limit of %d exceeded; try a more specific question", s.maxToolCalls))
}

type nestedKey struct{}

// subQuery backs the query_database tool. One level of delegation is
// allowed; a sub-session may not itself call query_database again.
func (e *Engine) subQuery(ctx context.Context, question string) (any, error) {
	if ctx.Value(nestedKey{}) != nil {
		return nil, errors.New("recursive query_database call refused")
	}
	res := e.Answer(context.WithValue(ctx, nestedKey{}, true), question)
	if !res.Success {
		return nil, fmt.Errorf("sub-query failed: %s", res.Err.Detail)
	}
	return map[string]any{"sql_query": res.SQL, "result": res.Rows}, nil
}

func failed(err *Error) Result {
	return Result{Err: err}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// truncate cuts at a rune boundary so multi-byte text stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
