package etl

import (
	"context"
	"io"
	"time"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: source.Read → blank-row filter → id derivation
// + coercion → destination.CommitBatch.

// ImportRequest is one file to import into one target.
type ImportRequest struct {
	Target   string
	FileName string
	Body     io.Reader
}

// Result is the outcome of a successful import.
type Result struct {
	Target      string        `json:"target"`
	Collection  string        `json:"collection"`
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
}

// Preview is the mapped output of a file without the commit step.
type Preview struct {
	Target     string     `json:"target"`
	Collection string     `json:"collection"`
	RowsRead   int        `json:"rowsRead"`
	RowsKept   int        `json:"rowsKept"`
	Documents  []Document `json:"documents"`
}

// Engine runs imports against a destination.
type Engine struct {
	Dest Destination
	// StrictNumbers rejects malformed numeric cells instead of writing 0.
	StrictNumbers bool
	// Now is the commit clock; defaults to time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run executes an import end-to-end. Nothing is written unless every
// step before the commit succeeds.
func (e *Engine) Run(ctx context.Context, req ImportRequest) (*Result, error) {
	start := time.Now()

	target, docs, read, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	written, err := e.Dest.CommitBatch(ctx, target.Collection, docs)
	if err != nil {
		return nil, &CommitError{Collection: target.Collection, Err: err}
	}

	return &Result{
		Target:      target.Key,
		Collection:  target.Collection,
		RowsRead:    read,
		RowsWritten: written,
		Duration:    time.Since(start),
	}, nil
}

// Preview runs every step except the commit and returns up to maxRows
// mapped documents (all of them when maxRows <= 0).
func (e *Engine) Preview(ctx context.Context, req ImportRequest, maxRows int) (*Preview, error) {
	target, docs, read, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		Target:     target.Key,
		Collection: target.Collection,
		RowsRead:   read,
		RowsKept:   len(docs),
		Documents:  docs,
	}
	if maxRows > 0 && len(docs) > maxRows {
		p.Documents = docs[:maxRows]
	}
	return p, nil
}

func (e *Engine) prepare(ctx context.Context, req ImportRequest) (Target, []Document, int, error) {
	// 1. Resolve target and source before touching the file.
	target, err := LookupTarget(req.Target)
	if err != nil {
		return Target{}, nil, 0, err
	}
	source, err := SourceFor(req.FileName)
	if err != nil {
		return Target{}, nil, 0, err
	}

	// 2. Read rows.
	rows, err := source.Read(ctx, req.Body)
	if err != nil {
		return Target{}, nil, 0, err
	}

	// 3. Drop blank rows.
	kept := FilterBlankRows(rows)
	if len(kept) == 0 {
		return Target{}, nil, len(rows), &EmptyInputError{FileName: req.FileName}
	}

	// 4. Derive ids and coerce, with one timestamp for the whole batch.
	m := Mapper{Target: target, Strict: e.StrictNumbers, Format: source.Spec().Format}
	docs, err := m.Map(kept, e.now())
	if err != nil {
		return Target{}, nil, len(rows), err
	}
	return target, docs, len(rows), nil
}
