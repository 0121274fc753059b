package chat

import (
	"context"
)

// Completer is the seam to the model-calling transport. The orchestration
// core only ever needs "prompt in, full response text out"; providers,
// token streaming and retries live behind implementations of this
// interface.
type Completer interface {
	Complete(ctx context.Context, prompt string, body *Body) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, body *Body) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, body *Body) (string, error) {
	return f(ctx, prompt, body)
}
