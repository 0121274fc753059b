package render

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/ops"
)

// mergedOpsTag names the synthetic reference the engine prepends when a
// template registered operations without ever referencing them explicitly.
const mergedOpsTag = "__resolved__"

// Engine assembles prompts: it splices fetched operation metadata and
// conversation context into developer-authored template text before each
// model call.
type Engine struct {
	fetcher   ops.Fetcher
	publisher *events.PublisherManager
}

type EngineOption func(*Engine)

func WithPublisherManager(pm *events.PublisherManager) EngineOption {
	return func(e *Engine) {
		e.publisher = pm
	}
}

func NewEngine(fetcher ops.Fetcher, options ...EngineOption) *Engine {
	ret := &Engine{fetcher: fetcher}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Request carries the per-render context.
type Request struct {
	AccessToken string
	Metadata    events.EventMetadata
	Helpers     Helpers
	// Ops are capabilities already attached to this turn (e.g. configured on
	// the assistant); they are merged with whatever the template registers.
	Ops   []ops.Definition
	State map[string]interface{}
	Extra map[string]interface{}
}

// Render assembles the final prompt text. It never fails: on any internal
// error it logs, emits a caller-visible warning event, and returns the
// best-effort partial result, falling back to the original template text
// when rendering cannot proceed at all. The second return value is the
// merged set of operations registered as invokable for this turn.
func (e *Engine) Render(ctx context.Context, req *Request, templateText string) (string, []ops.Definition) {
	if req == nil {
		req = &Request{}
	}

	refs := ParseOpsTags(templateText)

	// fetch each distinct tag exactly once for this render
	fetched := map[string][]ops.Definition{}
	for _, ref := range refs {
		if _, ok := fetched[ref.Tag]; ok {
			continue
		}
		defs, err := e.fetch(ctx, req.AccessToken, ref.Tag)
		if err != nil {
			log.Warn().Err(err).Str("tag", ref.Tag).Msg("could not fetch operations, treating tag as empty")
			defs = nil
		}
		fetched[ref.Tag] = defs
	}

	// pre-format each distinct (tag, format) pair
	formatted := map[string]string{}
	for _, ref := range refs {
		if _, ok := formatted[ref.Key()]; ok {
			continue
		}
		formatted[ref.Key()] = ops.Format(fetched[ref.Tag], ref.Format)
	}

	registered := [][]ops.Definition{req.Ops}
	for _, ref := range refs {
		if ref.NoAdd {
			continue
		}
		registered = append(registered, fetched[ref.Tag])
	}
	resolved := ops.Merge(registered...)

	text := RewriteOpsTags(templateText)
	if len(resolved) > 0 {
		e.publishBlind(events.NewResolvedOpsEvent(req.Metadata, resolved))
		if len(refs) == 0 {
			// the template never referenced its operations, inject them up
			// front so they still reach the prompt
			formatted[mergedOpsTag] = ops.Format(resolved, ops.FormatDefault)
			text = `{{ops "` + mergedOpsTag + `"}}` + "\n" + text
		}
	}

	funcs := e.funcMap(req, formatted)
	text = BlankUnknownActions(text, func(name string) bool {
		_, ok := funcs[name]
		return ok
	})

	tmpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		log.Warn().Err(err).Msg("template parse failed, returning original text")
		e.warn(req.Metadata, "prompt template could not be parsed, using it verbatim")
		return templateText, resolved
	}

	data := map[string]interface{}{}
	for k, v := range req.State {
		data[k] = v
	}
	for k, v := range req.Extra {
		data[k] = v
	}

	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		log.Warn().Err(err).Msg("template execution failed, returning partial text")
		e.warn(req.Metadata, "prompt template could not be fully evaluated")
		if buf.Len() == 0 {
			return templateText, resolved
		}
	}

	// missingkey=zero still prints absent map keys as "<no value>" (the zero
	// interface value); those resolve to empty text like any other unknown tag
	return strings.ReplaceAll(buf.String(), "<no value>", ""), resolved
}

func (e *Engine) fetch(ctx context.Context, accessToken string, tag string) ([]ops.Definition, error) {
	if e.fetcher == nil {
		return nil, nil
	}
	return e.fetcher.GetOperationsByTag(ctx, accessToken, tag)
}

func (e *Engine) funcMap(req *Request, formatted map[string]string) template.FuncMap {
	h := req.Helpers
	if h == nil {
		h = &StaticHelpers{}
	}

	funcs := sprig.FuncMap()

	funcs["ops"] = func(args ...string) string {
		if len(args) == 0 {
			return ""
		}
		return formatted[args[0]]
	}
	funcs["dataSources"] = func() []chat.DataSource { return h.AllDataSources() }
	funcs["conversationDataSources"] = func() []chat.DataSource { return h.ConversationDataSources() }
	funcs["currentDataSources"] = func() []chat.DataSource { return h.CurrentDataSources() }
	funcs["assistantName"] = func() string { return h.AssistantName() }
	funcs["user"] = func() string { return h.UserID() }
	funcs["timestamp"] = func() string { return h.Now().Format(TimestampLayout) }
	funcs["dump"] = Dump
	funcs["baseUrl"] = func() string { return h.BaseURL() }

	return funcs
}

func (e *Engine) publishBlind(ev events.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishBlind(ev)
}

func (e *Engine) warn(metadata events.EventMetadata, message string) {
	e.publishBlind(events.NewWarningEvent(metadata, message))
}
