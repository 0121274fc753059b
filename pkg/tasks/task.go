package tasks

import (
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
	"github.com/go-go-golems/mangiafuoco/pkg/models"
)

// Params is the self-contained payload an out-of-process worker needs to
// execute the task.
type Params struct {
	User        string     `json:"user"`
	Body        *chat.Body `json:"body"`
	AccessToken string     `json:"accessToken"`
}

// Task is a fully self-describing unit of background work. It is immutable
// once built and serialized whole onto the queue. Delivery is
// at-least-once: consumers must be idempotent keyed on the request id in
// Params.Body.Options.
type Task struct {
	Op          string `json:"op"`
	User        string `json:"user"`
	AccessToken string `json:"accessToken"`
	// ResultKey names where the worker stores the result.
	ResultKey string `json:"resultKey"`
	Params    Params `json:"params"`
}

const (
	defaultTemperature = 1.0
	defaultMaxTokens   = 4096
)

// BuildTask merges caller-supplied chat parameters with defaults and stamps
// a fresh request id into the options bag. Later-supplied fields win:
// chatBody overrides the built-in defaults, opts overrides the option
// defaults, both as shallow last-write-wins merges. The model defaults to
// the cheapest equivalent from the caller's catalog, escalating tiers when
// the prompt material does not fit its context window; an empty catalog is
// the one hard failure here, since no model can be selected at all.
func BuildTask(
	resolver *models.Resolver,
	catalog models.Catalog,
	accessToken string,
	user string,
	resultKey string,
	body *chat.Body,
	opts map[string]interface{},
) (*Task, error) {
	model, err := resolver.CheapestEquivalent(catalog)
	if err != nil {
		return nil, err
	}
	if text := promptText(body); text != "" && !models.FitsContext(model, text) {
		wider := widerModel(catalog, model, text)
		if wider.ID != model.ID {
			log.Debug().
				Str("from", model.ID).
				Str("to", wider.ID).
				Msg("prompt exceeds cheapest model context, using wider model")
			model = wider
		}
	}

	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	if model.OutputTokenLimit > 0 {
		maxTokens = int(model.OutputTokenLimit)
	}
	stream := true
	merged := &chat.Body{
		Model:       model.ID,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stream:      &stream,
		DataSources: []chat.DataSource{},
	}
	merged = chat.Merge(merged, body)

	if requested := resolver.ResolveAlias(merged.Model); requested.WasAlias {
		merged.Model = requested.ResolvedID
	}

	options := map[string]interface{}{
		chat.OptionRequestID: uuid.NewString(),
		chat.OptionModel:     model,
	}
	options = chat.MergeOptions(options, merged.Options)
	options = chat.MergeOptions(options, opts)
	merged.Options = options

	return &Task{
		Op:          "chat",
		User:        user,
		AccessToken: accessToken,
		ResultKey:   resultKey,
		Params: Params{
			User:        user,
			Body:        merged,
			AccessToken: accessToken,
		},
	}, nil
}

// promptText gathers the prompt material of a body: message contents plus
// inline data source content.
func promptText(b *chat.Body) string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, len(b.Messages)+len(b.DataSources))
	for _, m := range b.Messages {
		parts = append(parts, m.Content)
	}
	for _, ds := range b.DataSources {
		if content, ok := ds.Metadata["content"].(string); ok {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// widerModel escalates through the default and advanced tiers until one
// holds text, keeping the widest candidate when none does.
func widerModel(catalog models.Catalog, model models.ModelDescriptor, text string) models.ModelDescriptor {
	tiers := []func() (models.ModelDescriptor, bool){catalog.DefaultModel, catalog.AdvancedModel}
	for _, tier := range tiers {
		next, ok := tier()
		if !ok || next.ContextWindow <= model.ContextWindow {
			continue
		}
		model = next
		if models.FitsContext(model, text) {
			break
		}
	}
	return model
}

func (t *Task) Clone() *Task {
	return clone.Clone(t).(*Task)
}

// RequestID returns the unique id stamped at build time.
func (t *Task) RequestID() string {
	if t.Params.Body == nil || t.Params.Body.Options == nil {
		return ""
	}
	id, _ := t.Params.Body.Options[chat.OptionRequestID].(string)
	return id
}
