package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Report carries one crawl result through the pipeline. Steps read the
// result and fill in the remaining fields.
type Report struct {
	// Result is the crawl result. Steps must not modify it.
	Result *model.CrawlResult

	// Outcome is set by ClassifyStep.
	Outcome model.Outcome

	// Metadata is the history entry written by MetadataStep.
	Metadata *model.SiteMetadata

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Err is the last step error.
	Err error
}

// NewReport wraps result for the pipeline.
func NewReport(result *model.CrawlResult) *Report {
	return &Report{
		Result:         result,
		PerformedSteps: make([]string, 0),
	}
}

// Classified reports whether a status has been assigned.
func (r *Report) Classified() bool { return r.Outcome.Status != "" }

// Step is one stage of post-crawl processing.
type Step interface {
	// Do runs the step. Returning an error marks the root as failed in the
	// batch summary.
	Do(ctx context.Context, report *Report) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running later steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run later steps even when
// one fails. A failed Store should not keep the metadata history from
// being written, so the default pipeline enables it.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked between
// steps. It returns the first error, or with continueOnError the last
// one; either way the error is also kept in report.Err.
func (p *Pipeline) Execute(ctx context.Context, report *Report) error {
	if report.Result == nil {
		report.Err = ErrNilResult
		return ErrNilResult
	}
	root := report.Result.Root

	var lastErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"root", root,
				"reason", ctx.Err(),
			)
			report.Err = ctx.Err()
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step", "step", step.Name(), "root", root)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"root", root,
				"error", err,
			)
			report.Err = err
			lastErr = err
			if !p.continueOnError {
				return err
			}
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return lastErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
