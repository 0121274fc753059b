package render

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/ops"
)

type capturePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		c.payloads = append(c.payloads, m.Payload)
	}
	return nil
}

func (c *capturePublisher) Close() error {
	return nil
}

func (c *capturePublisher) eventsOfType(t *testing.T, eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := []events.Event{}
	for _, b := range c.payloads {
		e, err := events.NewEventFromJson(b)
		require.NoError(t, err)
		if e.Type() == eventType {
			ret = append(ret, e)
		}
	}
	return ret
}

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	defs  map[string][]ops.Definition
	err   error
}

func (f *countingFetcher) GetOperationsByTag(_ context.Context, _ string, tag string) ([]ops.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[tag]++
	if f.err != nil {
		return nil, f.err
	}
	return f.defs[tag], nil
}

func billingOps() []ops.Definition {
	return []ops.Definition{
		{ID: "op-1", Name: "GetInvoice", Description: "Fetch an invoice"},
		{ID: "op-2", Name: "ListCharges", Description: "List charges"},
	}
}

func newTestEngine(fetcher ops.Fetcher) (*Engine, *capturePublisher) {
	capture := &capturePublisher{}
	pm := events.NewPublisherManager()
	pm.SubscribePublisher("chat", capture)
	return NewEngine(fetcher, WithPublisherManager(pm)), capture
}

func TestRenderOpsInjection(t *testing.T) {
	fetcher := &countingFetcher{defs: map[string][]ops.Definition{"billing": billingOps()}}
	engine, capture := newTestEngine(fetcher)

	out, resolved := engine.Render(context.Background(), &Request{}, "Hello {{ ops billing }}")

	assert.Contains(t, out, "get_invoice")
	assert.Contains(t, out, "list_charges")
	assert.Len(t, resolved, 2)

	stateEvents := capture.eventsOfType(t, events.EventTypeResolvedOps)
	require.Len(t, stateEvents, 1)
	assert.Len(t, stateEvents[0].(*events.EventResolvedOps).ResolvedOps, 2)
}

func TestRenderFetchesEachTagOnce(t *testing.T) {
	fetcher := &countingFetcher{defs: map[string][]ops.Definition{
		"billing": billingOps(),
		"support": {{ID: "op-3", Name: "OpenTicket"}},
	}}
	engine, _ := newTestEngine(fetcher)

	tmpl := "{{ops billing}} {{ops billing:json}} {{ops billing:table noAdd}} {{ops support}}"
	out, _ := engine.Render(context.Background(), &Request{}, tmpl)

	assert.Equal(t, 1, fetcher.calls["billing"])
	assert.Equal(t, 1, fetcher.calls["support"])
	assert.Contains(t, out, `"name": "GetInvoice"`)
	assert.Contains(t, out, "| get_invoice |")
}

func TestRenderNoAddDoesNotRegister(t *testing.T) {
	fetcher := &countingFetcher{defs: map[string][]ops.Definition{"billing": billingOps()}}
	engine, capture := newTestEngine(fetcher)

	out, resolved := engine.Render(context.Background(), &Request{}, "{{ops billing noAdd}}")

	assert.Contains(t, out, "get_invoice")
	assert.Empty(t, resolved)
	assert.Empty(t, capture.eventsOfType(t, events.EventTypeResolvedOps))
}

func TestRenderAutoInjectsWhenTemplateHasNoTag(t *testing.T) {
	engine, capture := newTestEngine(&countingFetcher{})

	out, resolved := engine.Render(context.Background(), &Request{
		Ops: billingOps(),
	}, "Just answer the question.")

	// operations always reach the prompt, even when the author forgot the tag
	assert.Contains(t, out, "get_invoice")
	assert.Contains(t, out, "Just answer the question.")
	assert.Len(t, resolved, 2)
	require.Len(t, capture.eventsOfType(t, events.EventTypeResolvedOps), 1)
}

func TestRenderCapabilityFetchFailure(t *testing.T) {
	fetcher := &countingFetcher{err: assert.AnError}
	engine, _ := newTestEngine(fetcher)

	out, resolved := engine.Render(context.Background(), &Request{}, "Hello {{ops billing}}!")

	// the tag's list is treated as empty and the render continues
	assert.Equal(t, "Hello !", out)
	assert.Empty(t, resolved)
}

func TestRenderNeverFails(t *testing.T) {
	engine, capture := newTestEngine(&countingFetcher{})

	t.Run("parse error returns the original text and warns", func(t *testing.T) {
		in := "broken {{if}} template"
		out, _ := engine.Render(context.Background(), &Request{}, in)
		assert.Equal(t, in, out)
		assert.NotEmpty(t, capture.eventsOfType(t, events.EventTypeWarning))
	})

	t.Run("execution error returns the partial text and warns", func(t *testing.T) {
		out, _ := engine.Render(context.Background(), &Request{}, `before {{fail "boom"}} after`)
		assert.Contains(t, out, "before")
		assert.NotEmpty(t, capture.eventsOfType(t, events.EventTypeWarning))
	})

	t.Run("unknown tags resolve to empty text", func(t *testing.T) {
		out, _ := engine.Render(context.Background(), &Request{}, "a {{mysteryHelper}} b")
		assert.Equal(t, "a  b", out)
	})

	t.Run("unknown keys resolve to empty text", func(t *testing.T) {
		out, _ := engine.Render(context.Background(), &Request{
			State: map[string]interface{}{"known": "here"},
		}, "a {{.known}} {{.unknownKey}} b")
		assert.Equal(t, "a here  b", out)
	})
}

func TestRenderHelpers(t *testing.T) {
	engine, _ := newTestEngine(&countingFetcher{})

	clock := func() time.Time {
		return time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	}
	helpers := &StaticHelpers{
		Conversation: []chat.DataSource{{ID: "old", Name: "old.txt"}},
		Current:      []chat.DataSource{{ID: "new", Name: "new.txt"}},
		Assistant:    "Archie",
		User:         "user@example.com",
		URL:          "https://api.example.com",
		Clock:        clock,
	}

	tmpl := `{{assistantName}}/{{user}}/{{timestamp}}/{{baseUrl}}/` +
		`{{range dataSources}}{{.ID}},{{end}}/{{range currentDataSources}}{{.ID}},{{end}}`
	out, _ := engine.Render(context.Background(), &Request{Helpers: helpers}, tmpl)

	assert.Equal(t, "Archie/user@example.com/2024-05-12T09:30:00Z/https://api.example.com/old,new,/new,", out)
}

func TestRenderStateAndExtra(t *testing.T) {
	engine, _ := newTestEngine(&countingFetcher{})

	out, _ := engine.Render(context.Background(), &Request{
		State: map[string]interface{}{"parts": "p1\n\np2", "task": "from state"},
		Extra: map[string]interface{}{"task": "from extra"},
	}, "{{.task}}: {{.parts}}")

	// extra wins over state on key collisions
	assert.Equal(t, "from extra: p1\n\np2", out)
}
