package workflow

import (
	"strings"

	"github.com/pkg/errors"
)

type StepKind string

const (
	// StepKindPlain renders one prompt, makes one model call and stores the
	// response under OutputTo.
	StepKindPlain StepKind = "plain"
	// StepKindMap renders the prompt once per input element, calling the
	// model per element; outputs are collected in input order.
	StepKindMap StepKind = "map"
	// StepKindReduce joins previously collected state values and makes
	// exactly one combining model call.
	StepKindReduce StepKind = "reduce"
)

// UseBodySentinel in a step's Prompt or Reduce field means "use the original
// request body's prompt text verbatim" instead of a custom template.
const UseBodySentinel = "__use_body__"

type Step struct {
	Kind StepKind `json:"kind"`
	// Prompt is the template (or literal) for plain and map steps.
	Prompt string `json:"prompt,omitempty"`
	// Reduce is the combining template for reduce steps.
	Reduce string `json:"reduce,omitempty"`
	// Input lists element ids for map steps, or state keys for reduce steps.
	Input    []string `json:"input,omitempty"`
	OutputTo string   `json:"outputTo"`
	// StatusMessage is streamed to the caller before a reduce step runs.
	StatusMessage string `json:"statusMessage,omitempty"`
}

// Workflow is an ordered sequence of steps built per request; it has no
// identity beyond the request and is discarded after execution. ResultKey
// names the state key returned to the caller as the answer.
type Workflow struct {
	ResultKey string `json:"resultKey"`
	Steps     []Step `json:"steps"`
}

func (w *Workflow) Validate() error {
	if w.ResultKey == "" {
		return errors.New("workflow has no result key")
	}
	if len(w.Steps) == 0 {
		return errors.New("workflow has no steps")
	}
	for i, s := range w.Steps {
		switch s.Kind {
		case StepKindPlain, StepKindMap, StepKindReduce:
		default:
			return errors.Errorf("step %d has unknown kind %q", i, s.Kind)
		}
		if s.OutputTo == "" {
			return errors.Errorf("step %d has no output key", i)
		}
		if s.Kind == StepKindReduce && len(s.Input) == 0 {
			return errors.Errorf("reduce step %d has no inputs", i)
		}
	}
	return nil
}

const defaultReducePrompt = `Below are partial answers to the task "{{.task}}", one per data source:

{{.parts}}

Combine them into one cohesive answer. Keep the formatting of the best-formatted part and retain as much of the information as possible. Do not mention that the answer was assembled from parts.`

// DefaultWorkflow builds the implicit two-step workflow used when no
// explicit workflow was supplied: map the task over every data source into
// "parts", then reduce "parts" into "answer".
func DefaultWorkflow(dataSourceIDs []string) *Workflow {
	return &Workflow{
		ResultKey: "answer",
		Steps: []Step{
			{
				Kind:     StepKindMap,
				Prompt:   UseBodySentinel,
				Input:    dataSourceIDs,
				OutputTo: "parts",
			},
			{
				Kind:          StepKindReduce,
				StatusMessage: "Combining partial answers...",
				Input:         []string{"parts"},
				Reduce:        defaultReducePrompt,
				OutputTo:      "answer",
			},
		},
	}
}

// State is the mutable shared mapping a workflow accumulates across steps.
// Keys are produced by exactly one step and may be consumed by any later
// step. A State is owned by a single executor run.
type State map[string]interface{}

// GetString returns the value under key as text; ordered sequences are
// joined with blank lines.
func (s State) GetString(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "\n\n")
	default:
		return ""
	}
}

func (s State) GetStrings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}
