package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/orderingest/internal/logging"
	"github.com/google/uuid"
)

// Stage identifies a point in a batch run reported to a progress hook.
type Stage int

const (
	// StageClassified fires after rows are deduplicated and validated,
	// before anything is written.
	StageClassified Stage = iota
	// StageCommitted fires after the batch transaction commits.
	StageCommitted
)

func (s Stage) String() string {
	switch s {
	case StageClassified:
		return "classified"
	case StageCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Ingester runs one batch through the pipeline and hands the results to a
// Store inside a single transaction.
type Ingester struct {
	store     Store
	processor Processor
	now       func() time.Time
	progress  func(Stage, Stats)
}

// NewIngester creates an Ingester writing to store. workers bounds parallel
// canonicalization (zero means GOMAXPROCS).
func NewIngester(store Store, workers int) *Ingester {
	return &Ingester{
		store:     store,
		processor: Processor{Workers: workers},
		now:       time.Now,
	}
}

// OnProgress registers fn to be called at each Stage. It returns in for
// chaining and must be called before Run.
func (in *Ingester) OnProgress(fn func(Stage, Stats)) *Ingester {
	in.progress = fn
	return in
}

func (in *Ingester) report(stage Stage, stats Stats) {
	if in.progress != nil {
		in.progress(stage, stats)
	}
}

// Run processes rows read from the source named label and persists the
// staging snapshot, clean records and rejected rows atomically.
func (in *Ingester) Run(ctx context.Context, label string, rows []RawRow) (*Report, error) {
	start := in.now()
	meta := BatchMeta{
		ID:          uuid.New(),
		SourceLabel: label,
		IngestedAt:  start.UTC().Truncate(time.Second),
	}

	ctx = logging.ContextWithBatchID(ctx, meta.ID.String())
	logger := logging.WithFields(ctx, "source", label)
	logger.Info("batch started", "rows", len(rows))

	result, err := in.processor.Process(rows)
	if err != nil {
		return nil, fmt.Errorf("process batch: %w", err)
	}

	logger.Info("batch classified",
		"exact_duplicates_dropped", result.Stats.ExactDuplicates,
		"conflicting_duplicates", result.Stats.ConflictingDuplicates,
		"clean", result.Stats.Clean,
		"rejected", result.Stats.Rejected,
	)
	in.report(StageClassified, result.Stats)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = in.store.WithTx(ctx, func(sink Sink) error {
		if err := sink.WriteStagingSnapshot(ctx, rows, meta); err != nil {
			return fmt.Errorf("write staging: %w", err)
		}
		if err := sink.WriteClean(ctx, result.Clean, meta); err != nil {
			return fmt.Errorf("write clean: %w", err)
		}
		if err := sink.WriteRejected(ctx, result.Rejected, meta); err != nil {
			return fmt.Errorf("write rejected: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("batch write failed", "error", err)
		return nil, err
	}

	report := &Report{
		Meta:     meta,
		Stats:    result.Stats,
		Rejected: result.Rejected,
		Duration: in.now().Sub(start),
	}
	logger.Info("batch committed", "duration_ms", report.Duration.Milliseconds())
	in.report(StageCommitted, report.Stats)

	return report, nil
}
