package chat

import (
	"context"
	"time"
)

// EchoCompleter returns the prompt as the response, optionally after a
// delay. Useful for tests and for dry-running workflows without burning
// tokens.
type EchoCompleter struct {
	Delay time.Duration
}

func (e *EchoCompleter) Complete(ctx context.Context, prompt string, _ *Body) (string, error) {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return prompt, nil
}

var _ Completer = &EchoCompleter{}
