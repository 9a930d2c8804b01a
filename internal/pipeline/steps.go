package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// ClassifyStep files the crawl result under a status.
type ClassifyStep struct {
	thresholds model.Thresholds
}

// NewClassifyStep creates a ClassifyStep using th.
func NewClassifyStep(th model.Thresholds) *ClassifyStep {
	return &ClassifyStep{thresholds: th}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string { return "classify" }

// Do implements Step.
func (s *ClassifyStep) Do(_ context.Context, report *Report) error {
	report.Outcome = model.Classify(report.Result, s.thresholds)
	return nil
}

// PersistStep hands the result to a ResultSink. The full result goes to
// Put; the collected text is filed under the result's status, keyed by
// home domain.
type PersistStep struct {
	sink   ResultSink
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPersistStep creates a PersistStep writing to sink.
func NewPersistStep(sink ResultSink, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string { return "persist" }

// Do implements Step.
func (s *PersistStep) Do(ctx context.Context, report *Report) error {
	if !report.Classified() {
		return ErrNotClassified
	}
	r := report.Result

	if err := s.sink.Put(ctx, r.Root, r); err != nil {
		return fmt.Errorf("failed to persist result of %s: %w", r.Root, err)
	}

	blob, err := categoryBlob(r, report.Outcome)
	if err != nil {
		return err
	}
	category := report.Outcome.Status.String()
	if err := s.sink.Store(ctx, category, siteKey(r), blob); err != nil {
		return fmt.Errorf("failed to store %s under %s: %w", r.Root, category, err)
	}

	s.logger.Debug("result persisted", "root", r.Root, "category", category, "bytes", len(blob))
	return nil
}

// categoryBlob returns what is filed under the result's status: the page
// text for crawls that produced any, a JSON description otherwise.
func categoryBlob(r *model.CrawlResult, o model.Outcome) ([]byte, error) {
	if len(r.Pages) > 0 {
		return []byte(r.Text()), nil
	}
	blob, err := json.Marshal(struct {
		Root    string        `json:"root"`
		Outcome model.Outcome `json:"outcome"`
		Error   string        `json:"error,omitempty"`
		Code    int           `json:"response_code,omitempty"`
	}{r.Root, o, r.SeedError, r.ResponseCode})
	if err != nil {
		return nil, fmt.Errorf("failed to encode outcome of %s: %w", r.Root, err)
	}
	return blob, nil
}

// siteKey is the key a result is filed under.
func siteKey(r *model.CrawlResult) string {
	if r.HomeDomain != "" {
		return r.HomeDomain
	}
	return r.Root
}

// MetadataStep appends the domain's dated history entry and adds the
// outcome to the running success rate.
type MetadataStep struct {
	store MetadataStore
	now   func() time.Time
}

// NewMetadataStep creates a MetadataStep writing to store.
func NewMetadataStep(store MetadataStore) *MetadataStep {
	return &MetadataStep{
		store: store,
		now:   time.Now,
	}
}

// Name returns the step name.
func (s *MetadataStep) Name() string { return "metadata" }

// Do implements Step.
func (s *MetadataStep) Do(ctx context.Context, report *Report) error {
	if !report.Classified() {
		return ErrNotClassified
	}

	entry := model.NewSiteMetadata(report.Result, report.Outcome.Status, s.now())
	stored, err := s.store.AppendSiteMetadata(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to record metadata of %s: %w", entry.Domain, err)
	}
	report.Metadata = &stored

	if err := s.store.RecordOutcome(ctx, report.Outcome); err != nil {
		return fmt.Errorf("failed to update success rate: %w", err)
	}
	return nil
}

// Store is a ResultSink that also keeps metadata.
type Store interface {
	ResultSink
	MetadataStore
}

// DefaultPipeline builds the standard classify, persist and metadata
// pipeline. With a nil store only classification runs.
func DefaultPipeline(store Store, th model.Thresholds, logger *slog.Logger) *Pipeline {
	p := New(WithLogger(logger), WithContinueOnError(true))
	p.AddStep(NewClassifyStep(th))
	if store != nil {
		p.AddSteps(
			NewPersistStep(store, WithPersistLogger(logger)),
			NewMetadataStep(store),
		)
	}
	return p
}
