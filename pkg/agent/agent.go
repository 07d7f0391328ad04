// Package agent runs the orchestration loop: build a request from the
// conversation, send it through the client, execute any tools the model
// requested via the two-phase protocol, merge the results back, and repeat
// until the model ends its turn or a limit cuts the exchange short.
//
// Token spending is bounded by an optional budget pool. Each exchange
// leases the configured output limit up front, sizes every request from
// what the lease still holds, consumes actual usage after each response,
// and returns the remainder on every exit path.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"parley/pkg/budget"
	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
	"parley/pkg/logx"
)

// State names the loop's position in its lifecycle.
type State string

const (
	// StateIdle means no exchange is in flight.
	StateIdle State = "idle"
	// StateAwaitingResponse means a request is out and the loop is
	// waiting for the model.
	StateAwaitingResponse State = "awaiting_response"
	// StateExecutingTools means the loop is running requested tools.
	StateExecutingTools State = "executing_tools"
	// StateDone means the last exchange finished normally.
	StateDone State = "done"
	// StateFailed means the last exchange halted on a fatal error.
	StateFailed State = "failed"
)

// Outcome summarizes one finished exchange.
type Outcome struct {
	// State is the terminal state, StateDone or StateFailed.
	State State
	// StopReason is the model's final stop reason.
	StopReason llm.StopReason
	// Turns counts completed request/response cycles.
	Turns int
	// Usage sums token consumption across all cycles, including ones
	// whose responses were not committed.
	Usage llm.Usage
	// TurnLimit reports that MaxTurns ended the exchange early.
	TurnLimit bool
	// Truncated reports that the token lease ran out mid-exchange.
	Truncated bool
}

// Preflight inspects an outgoing request before it is sent. A non-nil error
// fails the exchange without issuing the request. tokens.Guard is the usual
// implementation, rejecting prompts that cannot fit the model's context
// window.
type Preflight interface {
	Check(req llm.Request) error
}

// Agent drives multi-turn exchanges against a client. It is not safe for
// concurrent use: one exchange runs at a time and owns the conversation.
type Agent struct {
	client      llm.Client
	conv        *Conversation
	tools       []Tool
	byName      map[string]Tool
	pool        *budget.Budget
	preflight   Preflight
	system      string
	maxTokens   int
	maxTurns    int
	temperature *float64
	streaming   bool
	state       State
	logger      *logx.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithBudget bounds the agent's token spending by a shared pool. Each
// exchange leases MaxTokens from it and returns what it does not consume.
func WithBudget(pool *budget.Budget) Option {
	return func(a *Agent) { a.pool = pool }
}

// WithTools exposes tools to the model, in definition order.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) { a.tools = append(a.tools, tools...) }
}

// WithSystem sets the system prompt.
func WithSystem(system string) Option {
	return func(a *Agent) { a.system = system }
}

// WithMaxTokens sets the per-exchange output token limit.
func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.maxTokens = n }
}

// WithMaxTurns caps request/response cycles per exchange. Zero means
// unlimited.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithStreaming makes the loop consume responses as event streams instead
// of single completions. Semantics are identical; only transport differs.
func WithStreaming() Option {
	return func(a *Agent) { a.streaming = true }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = &t }
}

// WithConversation seeds the agent with an existing history, for resuming
// a saved session.
func WithConversation(conv *Conversation) Option {
	return func(a *Agent) { a.conv = conv }
}

// WithPreflight checks every outgoing request before it is sent.
func WithPreflight(p Preflight) Option {
	return func(a *Agent) { a.preflight = p }
}

// New creates an agent around a client.
func New(client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		client:    client,
		conv:      NewConversation(),
		maxTokens: llm.DefaultMaxTokens,
		state:     StateIdle,
		logger:    logx.NewLogger("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.byName = make(map[string]Tool, len(a.tools))
	for _, tool := range a.tools {
		a.byName[tool.Definition().Name] = tool
	}
	return a
}

// State returns the loop's current lifecycle state.
func (a *Agent) State() State {
	return a.state
}

// Conversation returns the agent's history. It remains readable after a
// failed exchange.
func (a *Agent) Conversation() *Conversation {
	return a.conv
}

// Send appends a user message and runs the loop until the model finishes.
// If the budget cannot cover the exchange, Send fails before the message
// is committed and the conversation is left untouched.
func (a *Agent) Send(ctx context.Context, text string) (*Outcome, error) {
	msg := llm.NewUserMessage(text)
	return a.run(ctx, &msg)
}

// Resume runs the loop over the existing conversation without new input.
// The history must already end with a user message.
func (a *Agent) Resume(ctx context.Context) (*Outcome, error) {
	return a.run(ctx, nil)
}

func (a *Agent) run(ctx context.Context, user *llm.Message) (*Outcome, error) {
	outcome := &Outcome{}

	// Lease the whole exchange's tokens before touching the conversation,
	// so a rejected exchange leaves no half-committed user message behind.
	var alloc *budget.Allocation
	if a.pool != nil {
		var err error
		alloc, err = a.pool.Allocate(uint64(a.maxTokens))
		if err != nil {
			return a.fail(outcome), llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBudget, err,
				fmt.Sprintf("leasing %d tokens", a.maxTokens))
		}
		defer alloc.Release()
	}
	if user != nil {
		a.conv.PushOrMerge(*user)
	}

	for {
		if a.maxTurns > 0 && outcome.Turns >= a.maxTurns {
			a.logger.Debug("turn limit %d reached", a.maxTurns)
			outcome.TurnLimit = true
			return a.done(outcome), nil
		}
		limit := a.maxTokens
		if alloc != nil {
			limit = int(alloc.Held())
		}
		if limit <= 0 {
			outcome.Truncated = true
			outcome.StopReason = llm.StopMaxTokens
			return a.done(outcome), nil
		}

		req := a.buildRequest(limit)
		if a.preflight != nil {
			if err := a.preflight.Check(req); err != nil {
				return a.fail(outcome), err
			}
		}
		a.state = StateAwaitingResponse
		resp, err := a.exchange(ctx, req)
		if err != nil {
			return a.fail(outcome), err
		}
		outcome.Usage.Add(resp.Usage)
		if alloc != nil && !alloc.Consume(uint64(resp.Usage.Total())) {
			// The response cost more than the lease had left. End the
			// exchange without committing the over-budget message.
			outcome.Truncated = true
			outcome.StopReason = llm.StopMaxTokens
			return a.done(outcome), nil
		}
		outcome.Turns++
		outcome.StopReason = resp.StopReason
		a.conv.PushOrMerge(resp.Message())
		a.logger.Debug("turn %d: stop=%s tokens=%d in / %d out",
			outcome.Turns, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)

		switch resp.StopReason {
		case llm.StopMaxTokens:
			outcome.Truncated = true
			return a.done(outcome), nil
		case llm.StopPauseTurn:
			// The model paused mid-turn; resubmit the conversation as-is.
			continue
		case llm.StopToolUse:
			a.state = StateExecutingTools
			results, err := a.executeTools(ctx, resp.ToolUses())
			if err != nil {
				return a.fail(outcome), err
			}
			a.conv.PushOrMerge(llm.NewToolResultsMessage(results...))
		case llm.StopEndTurn, llm.StopStopSequence, llm.StopRefusal:
			return a.done(outcome), nil
		default:
			// Stop reasons this loop does not know are still finished
			// responses; treat them like end_turn rather than failing.
			a.logger.Warn("unhandled stop reason %q, ending exchange", resp.StopReason)
			return a.done(outcome), nil
		}
	}
}

func (a *Agent) done(outcome *Outcome) *Outcome {
	a.state = StateDone
	outcome.State = StateDone
	return outcome
}

func (a *Agent) fail(outcome *Outcome) *Outcome {
	a.state = StateFailed
	outcome.State = StateFailed
	return outcome
}

func (a *Agent) buildRequest(maxTokens int) llm.Request {
	req := llm.NewRequest(a.client.Model(), a.conv.Messages()...)
	req.MaxTokens = maxTokens
	req.System = a.system
	req.Temperature = a.temperature
	for _, tool := range a.tools {
		req.Tools = append(req.Tools, tool.Definition())
	}
	return req
}

// exchange performs one request/response cycle, via Complete or by draining
// an event stream through the accumulator.
func (a *Agent) exchange(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !a.streaming {
		return a.client.Complete(ctx, req)
	}
	stream, err := a.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	acc := llm.NewAccumulator()
	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := acc.Apply(event); err != nil {
			return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeStreamMalformed, err, "accumulating stream")
		}
	}
	return acc.Response()
}

// executeTools runs the two-phase protocol over a response's invocations:
// compute everything concurrently, then apply sequentially in invocation
// order. A non-nil error from either phase aborts the exchange; applies
// after the aborting invocation never run.
func (a *Agent) executeTools(ctx context.Context, uses []llm.ToolUse) ([]llm.ContentBlock, error) {
	pendings := make([]*Pending, len(uses))
	computeErrs := make([]error, len(uses))

	var wg sync.WaitGroup
	for i, use := range uses {
		tool, ok := a.byName[use.Name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, use llm.ToolUse, tool Tool) {
			defer wg.Done()
			pendings[i], computeErrs[i] = tool.Compute(ctx, use)
		}(i, use, tool)
	}
	wg.Wait()

	results := make([]llm.ContentBlock, 0, len(uses))
	for i, use := range uses {
		tool, ok := a.byName[use.Name]
		if !ok {
			a.logger.Warn("model requested unknown tool %q", use.Name)
			results = append(results, llm.NewToolResultBlock(use.ID, fmt.Sprintf("tool %s not found", use.Name), true))
			continue
		}
		if err := computeErrs[i]; err != nil {
			return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeToolAbort, err,
				fmt.Sprintf("tool %s aborted during compute", use.Name))
		}
		result, err := tool.Apply(ctx, pendings[i])
		if err != nil {
			return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeToolAbort, err,
				fmt.Sprintf("tool %s aborted during apply", use.Name))
		}
		if result.IsError {
			a.logger.Debug("tool %s returned error payload", use.Name)
		}
		results = append(results, llm.NewToolResultBlock(use.ID, result.Content, result.IsError))
	}
	return results, nil
}
