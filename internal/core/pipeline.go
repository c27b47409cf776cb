package core

// pipeline.go combines duplicate resolution, canonicalization and validation
// into the clean and rejected streams of one batch.
//
// The flow is:
//
//  1. Check every row carries at least one recognized column
//  2. Drop exact duplicates and flag conflicting (order_id, item_sku) keys
//  3. Canonicalize and validate the survivors in parallel
//  4. Gather results in input order, append the conflict reason, route
//
// Malformed data never produces an error here; only a source that breaks its
// contract does.

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNoRecognizedColumns is returned when a row has none of the known columns.
// This is a caller error, distinct from data-quality rejections.
var ErrNoRecognizedColumns = errors.New("row has no recognized columns")

// Processor runs the batch pipeline. The zero value is ready to use.
type Processor struct {
	// Workers bounds parallel canonicalization. Zero means GOMAXPROCS.
	Workers int
}

// ProcessBatch runs the pipeline with default settings.
func ProcessBatch(rows []RawRow) (BatchResult, error) {
	return Processor{}.Process(rows)
}

// Process classifies every row of the batch as clean, rejected or dropped.
func (p Processor) Process(rows []RawRow) (BatchResult, error) {
	for i, row := range rows {
		if !row.hasKnownColumn() {
			return BatchResult{}, fmt.Errorf("row %d: %w", i+1, ErrNoRecognizedColumns)
		}
	}

	dedup := ResolveDuplicates(rows)
	outcomes := p.validateAll(dedup.Rows)

	result := BatchResult{
		Stats: Stats{
			Read:            len(rows),
			ExactDuplicates: dedup.Dropped,
		},
	}

	for i, outcome := range outcomes {
		reasons := outcome.Reasons
		if dedup.Conflicting[i] {
			reasons = append(reasons, ReasonConflictingKey)
			result.Stats.ConflictingDuplicates++
		}

		if len(reasons) == 0 {
			result.Clean = append(result.Clean, outcome.Record)
			continue
		}

		key := KeyOf(dedup.Rows[i])
		result.Rejected = append(result.Rejected, RejectedRow{
			OrderID: textOrNull(key.OrderID, key.OrderIDValid),
			ItemSKU: textOrNull(key.ItemSKU, key.ItemSKUValid),
			Reasons: reasons,
			RawJSON: RawJSON(dedup.Rows[i]),
		})
	}

	result.Stats.Clean = len(result.Clean)
	result.Stats.Rejected = len(result.Rejected)
	return result, nil
}

// validateAll canonicalizes and validates rows concurrently. Each worker
// writes only its own slot, so the output keeps input order.
func (p Processor) validateAll(rows []RawRow) []ValidationOutcome {
	outcomes := make([]ValidationOutcome, len(rows))

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range rows {
		i := i
		g.Go(func() error {
			outcomes[i] = ValidateRow(rows[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
