// Package pipeline runs the background work of the expenses flow as ordered
// steps over a shared state: extracting an uploaded statement and persisting
// a saved reconciliation batch.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/extraction"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
	"github.com/dvloznov/expense-tracker/internal/wizard"
)

// PipelineStep represents a single step in a pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	DocumentID string
	ObjectURI  string
	Model      string
	RunID      string
	PDF        []byte
	Result     extraction.Result

	Batch    *wizard.Batch
	Rows     []*infra.ReconciledRow
	Exported notionsync.Stats
}

// FailureFunc is called once with the state and error of a failed run.
type FailureFunc func(ctx context.Context, state *PipelineState, err error)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps     []PipelineStep
	onFailure FailureFunc
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// OnFailure registers fn to run when a step fails.
func (p *Pipeline) OnFailure(fn FailureFunc) *Pipeline {
	p.onFailure = fn
	return p
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, state, fmt.Errorf("pipeline step %d (%s): %w", i+1, step.Name(), err))
		}
		if err := step.Execute(ctx, state); err != nil {
			return p.fail(ctx, state, fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err))
		}
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, state *PipelineState, err error) error {
	if p.onFailure != nil {
		p.onFailure(context.WithoutCancel(ctx), state, err)
	}
	return err
}

// stepFunc adapts a function to PipelineStep.
type stepFunc struct {
	name string
	fn   func(ctx context.Context, state *PipelineState) error
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Execute(ctx context.Context, state *PipelineState) error {
	return s.fn(ctx, state)
}

// Step wraps fn as a named PipelineStep.
func Step(name string, fn func(ctx context.Context, state *PipelineState) error) PipelineStep {
	return stepFunc{name: name, fn: fn}
}
