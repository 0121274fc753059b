package chat

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// OpenAICompleter is a Completer backed by the OpenAI chat completion API.
type OpenAICompleter struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAICompleter(apiKey string, defaultModel string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenAICompleter{
		client:       openai.NewClient(apiKey),
		defaultModel: defaultModel,
	}, nil
}

func (o *OpenAICompleter) Complete(ctx context.Context, prompt string, body *Body) (string, error) {
	model := o.defaultModel
	if body != nil && body.Model != "" {
		model = body.Model
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
	if body != nil {
		if body.Temperature != nil {
			req.Temperature = float32(*body.Temperature)
		}
		if body.MaxTokens != nil {
			req.MaxTokens = *body.MaxTokens
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

var _ Completer = &OpenAICompleter{}
