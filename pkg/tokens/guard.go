package tokens

import (
	"fmt"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
)

// Guard rejects requests whose prompt plus response reservation cannot fit a
// model's context window. It satisfies the agent's preflight hook, catching
// over-long conversations locally instead of burning a request on a
// guaranteed rejection.
type Guard struct {
	est    *Estimator
	window int
}

// NewGuard creates a guard for a context window of the given size in tokens.
func NewGuard(est *Estimator, window int) *Guard {
	return &Guard{est: est, window: window}
}

// Check estimates the request's prompt size and fails when prompt plus
// MaxTokens exceeds the window. The error classifies as a validation failure:
// retrying cannot help.
func (g *Guard) Check(req llm.Request) error {
	prompt := g.est.CountRequest(req)
	if prompt+req.MaxTokens > g.window {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation,
			fmt.Sprintf("prompt of ~%d tokens plus %d reserved for the response exceeds the %d-token context window",
				prompt, req.MaxTokens, g.window))
	}
	return nil
}

// Headroom returns how many tokens the window has left after the
// conversation's estimated prompt size. Negative when already over.
func (g *Guard) Headroom(msgs []llm.Message) int {
	return g.window - g.est.CountMessages(msgs)
}
