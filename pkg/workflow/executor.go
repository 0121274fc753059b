package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/ops"
	"github.com/go-go-golems/mangiafuoco/pkg/render"
)

// DefaultMaxConcurrency bounds map-step fan-out so a workflow over many
// data sources cannot exhaust the process.
const DefaultMaxConcurrency = 8

// Executor interprets a workflow against a mutable shared state, streaming
// status and state events to the caller as steps progress. Steps run
// strictly in declared order; a failed step aborts the remaining ones.
type Executor struct {
	renderer       *render.Engine
	completer      chat.Completer
	publisher      *events.PublisherManager
	maxConcurrency int
}

type ExecutorOption func(*Executor)

func WithPublisherManager(pm *events.PublisherManager) ExecutorOption {
	return func(e *Executor) {
		e.publisher = pm
	}
}

func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

func NewExecutor(renderer *render.Engine, completer chat.Completer, options ...ExecutorOption) *Executor {
	ret := &Executor{
		renderer:       renderer,
		completer:      completer,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// RunRequest carries everything one workflow run needs. The caller's last
// message is the task description.
type RunRequest struct {
	// Workflow to execute; when nil the implicit map/reduce workflow over
	// the body's data sources is built.
	Workflow    *Workflow
	Body        *chat.Body
	AccessToken string
	Helpers     render.Helpers
	// Ops are capabilities already attached to this turn.
	Ops   []ops.Definition
	RunID string
}

// Run executes the workflow and returns the value stored under its result
// key. Progress is streamed through the publisher manager; the final event
// carries the same answer text.
func (e *Executor) Run(ctx context.Context, req *RunRequest) (string, error) {
	if req.Body == nil {
		return "", errors.New("run request has no body")
	}

	wf := req.Workflow
	if wf == nil {
		ids := make([]string, 0, len(req.Body.DataSources))
		for _, ds := range req.Body.DataSources {
			ids = append(ids, ds.ID)
		}
		wf = DefaultWorkflow(ids)
	}
	if err := wf.Validate(); err != nil {
		return "", err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	taskText := req.Body.LastMessageContent()

	e.publishBlind(events.NewStartEvent(e.metadata(runID, "")))

	state := State{}
	turnOps := req.Ops

	for i, step := range wf.Steps {
		stepName := fmt.Sprintf("%d-%s", i, step.Kind)
		log.Debug().Str("run_id", runID).Str("step", stepName).Str("output_to", step.OutputTo).Msg("running step")

		var err error
		switch step.Kind {
		case StepKindPlain:
			turnOps, err = e.runPlain(ctx, req, step, state, taskText, turnOps, runID, stepName)
		case StepKindMap:
			turnOps, err = e.runMap(ctx, req, step, state, taskText, turnOps, runID, stepName)
		case StepKindReduce:
			turnOps, err = e.runReduce(ctx, req, step, state, taskText, turnOps, runID, stepName)
		}
		if err != nil {
			// fail fast: skip the remaining steps and surface the failure on
			// the stream before it closes
			log.Error().Err(err).Str("run_id", runID).Str("step", stepName).Msg("step failed, aborting workflow")
			e.publishBlind(events.NewErrorEvent(e.metadata(runID, stepName), err))
			return "", errors.Wrapf(err, "step %s failed", stepName)
		}
	}

	answer := state.GetString(wf.ResultKey)
	e.publishBlind(events.NewFinalEvent(e.metadata(runID, ""), answer))

	return answer, nil
}

func (e *Executor) runPlain(
	ctx context.Context,
	req *RunRequest,
	step Step,
	state State,
	taskText string,
	turnOps []ops.Definition,
	runID, stepName string,
) ([]ops.Definition, error) {
	prompt := templateOrBody(step.Prompt, taskText)

	rendered, resolved := e.render(ctx, req, state, turnOps, runID, stepName, prompt, map[string]interface{}{
		"task": taskText,
	})

	out, err := e.completer.Complete(ctx, rendered, req.Body)
	if err != nil {
		return resolved, err
	}
	state[step.OutputTo] = out
	return resolved, nil
}

func (e *Executor) runMap(
	ctx context.Context,
	req *RunRequest,
	step Step,
	state State,
	taskText string,
	turnOps []ops.Definition,
	runID, stepName string,
) ([]ops.Definition, error) {
	e.publishBlind(events.NewStatusEvent(
		e.metadata(runID, stepName),
		fmt.Sprintf("Working on %d data sources...", len(step.Input)),
	))

	prompt := templateOrBody(step.Prompt, taskText)

	// each element writes to its own pre-allocated slot, so the stored
	// order is always input order regardless of completion order
	results := make([]string, len(step.Input))
	resolvedPerElement := make([][]ops.Definition, len(step.Input))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxConcurrency)

	for i, elementID := range step.Input {
		i, elementID := i, elementID
		eg.Go(func() error {
			extra := map[string]interface{}{
				"task":    taskText,
				"element": elementID,
				"index":   i,
			}

			body := req.Body
			if ds, ok := findDataSource(req.Body, elementID); ok {
				extra["dataSource"] = ds
				body = req.Body.Clone()
				body.DataSources = []chat.DataSource{ds}
			}

			rendered, resolved := e.render(egCtx, req, state, turnOps, runID, stepName, prompt, extra)
			resolvedPerElement[i] = resolved

			out, err := e.completer.Complete(egCtx, rendered, body)
			if err != nil {
				return errors.Wrapf(err, "element %s", elementID)
			}
			results[i] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return turnOps, err
	}

	state[step.OutputTo] = results

	merged := [][]ops.Definition{turnOps}
	merged = append(merged, resolvedPerElement...)
	return ops.Merge(merged...), nil
}

func (e *Executor) runReduce(
	ctx context.Context,
	req *RunRequest,
	step Step,
	state State,
	taskText string,
	turnOps []ops.Definition,
	runID, stepName string,
) ([]ops.Definition, error) {
	if step.StatusMessage != "" {
		e.publishBlind(events.NewStatusEvent(e.metadata(runID, stepName), step.StatusMessage))
	}

	parts := []string{}
	for _, key := range step.Input {
		parts = append(parts, state.GetStrings(key)...)
	}

	reduceTemplate := templateOrBody(step.Reduce, taskText)

	rendered, resolved := e.render(ctx, req, state, turnOps, runID, stepName, reduceTemplate, map[string]interface{}{
		"task":  taskText,
		"parts": strings.Join(parts, "\n\n"),
	})

	out, err := e.completer.Complete(ctx, rendered, req.Body)
	if err != nil {
		return resolved, err
	}
	state[step.OutputTo] = out
	return resolved, nil
}

func (e *Executor) render(
	ctx context.Context,
	req *RunRequest,
	state State,
	turnOps []ops.Definition,
	runID, stepName string,
	templateText string,
	extra map[string]interface{},
) (string, []ops.Definition) {
	return e.renderer.Render(ctx, &render.Request{
		AccessToken: req.AccessToken,
		Metadata:    e.metadata(runID, stepName),
		Helpers:     req.Helpers,
		Ops:         turnOps,
		State:       state,
		Extra:       extra,
	}, templateText)
}

func (e *Executor) metadata(runID, stepName string) events.EventMetadata {
	return events.EventMetadata{
		ID:    uuid.New(),
		RunID: runID,
		Step:  stepName,
	}
}

func (e *Executor) publishBlind(ev events.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishBlind(ev)
}

func templateOrBody(templateText string, taskText string) string {
	if templateText == "" || templateText == UseBodySentinel {
		return taskText
	}
	return templateText
}

func findDataSource(body *chat.Body, id string) (chat.DataSource, bool) {
	for _, ds := range body.DataSources {
		if ds.ID == id {
			return ds, true
		}
	}
	return chat.DataSource{}, false
}
