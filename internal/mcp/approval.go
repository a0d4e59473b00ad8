package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistria/internal/domain"
	"logistria/internal/storage"
)

// EventEmitter allows the approval queue to notify the console.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// ApprovalOptions tunes an ApprovalQueue. Zero values are usable.
type ApprovalOptions struct {
	// Timeout rejects a request nobody resolved; defaults to 2 minutes.
	Timeout time.Duration
	// PollInterval is how often the store is checked; defaults to 500ms.
	PollInterval time.Duration
	// AutoApprove skips the operator, for trusted local agents.
	AutoApprove bool
}

// ApprovalQueue manages human-in-the-loop approval for destructive tool
// calls. The MCP process runs apart from the HTTP server, so requests go
// through the mcp_approvals table of the shared state database and the
// queue polls until an operator resolves them in the console.
type ApprovalQueue struct {
	store   *storage.ApprovalStore
	emitter EventEmitter
	opts    ApprovalOptions
}

func NewApprovalQueue(store *storage.ApprovalStore, emitter EventEmitter, opts ApprovalOptions) *ApprovalQueue {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &ApprovalQueue{store: store, emitter: emitter, opts: opts}
}

// Request records a pending action and blocks until it is approved,
// rejected, timed out or ctx is done. metadata is optional JSON.
func (q *ApprovalQueue) Request(ctx context.Context, tool, description string, metadata ...string) (bool, error) {
	if q.opts.AutoApprove {
		return true, nil
	}
	if q.store == nil {
		return false, errors.New("approvals need local state storage; start the server with --yes to skip them")
	}

	a := &domain.Approval{Tool: tool, Description: description}
	if len(metadata) > 0 {
		a.Metadata = metadata[0]
	}
	if err := q.store.CreateApproval(a); err != nil {
		return false, err
	}
	defer q.store.DeleteApproval(a.ID)

	q.emitter.Emit(ctx, "mcp:approval-required", a)

	deadline := time.NewTimer(q.opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, err := q.store.ApprovalStatus(a.ID)
			if err != nil {
				continue
			}
			switch status {
			case domain.ApprovalApproved:
				return true, nil
			case domain.ApprovalRejected:
				return false, nil
			}
			// Still pending.
		case <-deadline.C:
			q.emitter.Emit(ctx, "mcp:approval-dismissed", map[string]string{"id": a.ID})
			return false, fmt.Errorf("action timed out after %s: %s", q.opts.Timeout, tool)
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
