package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkflow(t *testing.T) {
	wf := DefaultWorkflow([]string{"ds1", "ds2", "ds3"})

	require.NoError(t, wf.Validate())
	assert.Equal(t, "answer", wf.ResultKey)
	require.Len(t, wf.Steps, 2)

	mapStep := wf.Steps[0]
	assert.Equal(t, StepKindMap, mapStep.Kind)
	assert.Equal(t, UseBodySentinel, mapStep.Prompt)
	assert.Equal(t, []string{"ds1", "ds2", "ds3"}, mapStep.Input)
	assert.Equal(t, "parts", mapStep.OutputTo)

	reduceStep := wf.Steps[1]
	assert.Equal(t, StepKindReduce, reduceStep.Kind)
	assert.Equal(t, []string{"parts"}, reduceStep.Input)
	assert.Equal(t, "answer", reduceStep.OutputTo)
	assert.NotEmpty(t, reduceStep.StatusMessage)
	assert.Contains(t, reduceStep.Reduce, "{{.parts}}")
	assert.Contains(t, reduceStep.Reduce, "{{.task}}")
}

func TestWorkflowValidate(t *testing.T) {
	testCases := []struct {
		name     string
		workflow Workflow
		wantErr  string
	}{
		{
			name:     "no result key",
			workflow: Workflow{Steps: []Step{{Kind: StepKindPlain, OutputTo: "x"}}},
			wantErr:  "result key",
		},
		{
			name:     "no steps",
			workflow: Workflow{ResultKey: "x"},
			wantErr:  "no steps",
		},
		{
			name: "unknown kind",
			workflow: Workflow{ResultKey: "x", Steps: []Step{
				{Kind: "filter", OutputTo: "x"},
			}},
			wantErr: "unknown kind",
		},
		{
			name: "missing output key",
			workflow: Workflow{ResultKey: "x", Steps: []Step{
				{Kind: StepKindPlain},
			}},
			wantErr: "no output key",
		},
		{
			name: "reduce without inputs",
			workflow: Workflow{ResultKey: "x", Steps: []Step{
				{Kind: StepKindReduce, OutputTo: "x"},
			}},
			wantErr: "no inputs",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.workflow.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestStateAccessors(t *testing.T) {
	s := State{
		"answer": "hello",
		"parts":  []string{"a", "b"},
	}

	assert.Equal(t, "hello", s.GetString("answer"))
	assert.Equal(t, "a\n\nb", s.GetString("parts"))
	assert.Equal(t, "", s.GetString("missing"))

	assert.Equal(t, []string{"a", "b"}, s.GetStrings("parts"))
	assert.Equal(t, []string{"hello"}, s.GetStrings("answer"))
	assert.Nil(t, s.GetStrings("missing"))
}
