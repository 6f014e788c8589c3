// =============================================================================
// CFE XML Extractor - Batch Aggregator
// =============================================================================
//
// This module runs the converter over every XML document of a Source and
// consolidates the rows into one dataset.
//
// PROCESSING PIPELINE:
//   1. Select entries whose name ends in .xml (case-insensitive)
//   2. For each entry:
//      a. Read the bytes
//      b. Classify the role from the entry path
//      c. Extract rows
//   3. Concatenate rows in archive order
//   4. Count documents with rows, without rows, and malformed ones
//
// ISOLATION:
//   Errors in one document never affect the others. An unreadable entry is
//   counted as malformed, exactly like an unparsable one.
//
// CONCURRENCY:
//   With Workers > 1 documents are parsed by a bounded errgroup. Each worker
//   writes into its own slot and the dataset is assembled afterwards, so the
//   row order is the archive order either way. Cancelling the context aborts
//   the run and no partial result is returned.
//
// =============================================================================

package batch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/converter"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Status is the outcome for a single document.
type Status string

const (
	StatusExtracted Status = "extracted"
	StatusEmpty     Status = "empty"
	StatusMalformed Status = "malformed"
)

// DocumentResult describes what happened to one XML entry.
type DocumentResult struct {
	Name   string
	Role   types.Role
	Status Status
	Rows   int

	// Error is set for malformed documents.
	Error error
}

// Stats contains batch-level counters.
type Stats struct {
	// Documents is the number of .xml entries considered.
	Documents int

	// Skipped is the number of entries ignored for their extension.
	Skipped int

	// WithRows counts documents that produced at least one row.
	WithRows int

	// WithoutRows counts documents that produced none: Empty + Malformed.
	WithoutRows int
	Empty       int
	Malformed   int

	Rows     int
	Duration time.Duration
}

// Result is the consolidated dataset of one batch run.
type Result struct {
	Rows      []types.Row
	Documents []DocumentResult
	Stats     Stats
}

// =============================================================================
// AGGREGATOR STRUCTURE
// =============================================================================

// Aggregator processes whole sources.
type Aggregator struct {
	classifier *converter.Classifier
	converter  *converter.Converter
	workers    int
	logger     *slog.Logger
}

// New creates an Aggregator. workers below 1 means sequential processing.
func New(classifier *converter.Classifier, conv *converter.Converter, workers int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		classifier: classifier,
		converter:  conv,
		workers:    workers,
		logger:     logger,
	}
}

// outcome is the per-document slot filled by a worker.
type outcome struct {
	result DocumentResult
	rows   []types.Row
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run extracts every document of src.
//
// RETURNS:
//   - The consolidated Result.
//   - ctx.Err() if the run was cancelled; document problems are never errors.
func (a *Aggregator) Run(ctx context.Context, src Source) (*Result, error) {
	start := time.Now()

	var (
		docs    []Entry
		skipped int
	)
	for _, entry := range src.Entries() {
		if isDocument(entry.Name) {
			docs = append(docs, entry)
		} else {
			skipped++
		}
	}

	a.logger.Info("processing batch", "documents", len(docs), "skipped", skipped, "workers", a.workers)

	outcomes := make([]outcome, len(docs))

	if a.workers == 1 {
		for i, entry := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = a.process(entry)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers)
		for i, entry := range docs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = a.process(entry)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Documents: make([]DocumentResult, 0, len(outcomes)),
		Stats:     Stats{Documents: len(docs), Skipped: skipped},
	}
	for _, o := range outcomes {
		result.Rows = append(result.Rows, o.rows...)
		result.Documents = append(result.Documents, o.result)

		switch o.result.Status {
		case StatusExtracted:
			result.Stats.WithRows++
		case StatusEmpty:
			result.Stats.WithoutRows++
			result.Stats.Empty++
		case StatusMalformed:
			result.Stats.WithoutRows++
			result.Stats.Malformed++
		}
	}
	result.Stats.Rows = len(result.Rows)
	result.Stats.Duration = time.Since(start)

	a.logger.Info("batch complete",
		"with_rows", result.Stats.WithRows,
		"without_rows", result.Stats.WithoutRows,
		"malformed", result.Stats.Malformed,
		"rows", result.Stats.Rows,
		"duration", result.Stats.Duration)

	return result, nil
}

// process reads, classifies and extracts one entry.
func (a *Aggregator) process(entry Entry) outcome {
	role := a.classifier.Classify(entry.Name)
	res := DocumentResult{Name: entry.Name, Role: role}

	data, err := entry.ReadAll()
	if err != nil {
		a.logger.Warn("failed to read entry", "entry", entry.Name, "error", err)
		res.Status = StatusMalformed
		res.Error = errors.Join(converter.ErrMalformedDocument, err)
		return outcome{result: res}
	}

	rows, err := a.converter.Extract(data, entry.Name, role)
	if err != nil {
		a.logger.Warn("document skipped", "entry", entry.Name, "error", err)
		res.Status = StatusMalformed
		res.Error = err
		return outcome{result: res}
	}

	res.Rows = len(rows)
	if len(rows) == 0 {
		res.Status = StatusEmpty
	} else {
		res.Status = StatusExtracted
	}
	return outcome{result: res, rows: rows}
}

// =============================================================================
// DATASET HELPERS
// =============================================================================

// issueDateLayouts are the FchEmis formats seen in practice.
var issueDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"20060102",
}

// parseIssueDate returns the date and whether any layout matched.
func parseIssueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RecipientTaxID returns the first non-empty recipient tax id of the dataset.
func (r *Result) RecipientTaxID() string {
	for _, row := range r.Rows {
		if row.RecipientTaxID != "" {
			return row.RecipientTaxID
		}
	}
	return ""
}

// IssueRange returns the earliest and latest parseable issue dates.
// ok is false when no row has a parseable date.
func (r *Result) IssueRange() (from, to time.Time, ok bool) {
	for _, row := range r.Rows {
		t, parsed := parseIssueDate(row.IssueDate)
		if !parsed {
			continue
		}
		if !ok || t.Before(from) {
			from = t
		}
		if !ok || t.After(to) {
			to = t
		}
		ok = true
	}
	return from, to, ok
}

// Companies lists the distinct owning-company tax ids, sorted.
func (r *Result) Companies() []string {
	seen := make(map[string]struct{})
	for _, row := range r.Rows {
		if row.CompanyTaxID != "" {
			seen[row.CompanyTaxID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
