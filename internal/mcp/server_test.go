package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistria/internal/docstore"
	"logistria/internal/domain"
	"logistria/internal/etl"
	_ "logistria/internal/etl/sources"
	"logistria/internal/identity"
	"logistria/internal/service"
	"logistria/internal/storage"
)

const stockCSV = "product_id,current_stock,reserved_stock\nSKU1,100,10\nSKU2,0,5\n"

type fixture struct {
	srv       *Server
	docs      *docstore.MemoryStore
	approvals *storage.ApprovalStore
	emitter   *service.MockEmitter
	file      string
}

func newFixture(t *testing.T, opts ApprovalOptions) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		docs:      docstore.NewMemoryStore(),
		approvals: storage.NewApprovalStore(db),
		emitter:   &service.MockEmitter{},
		file:      filepath.Join(dir, "stock.csv"),
	}
	require.NoError(t, os.WriteFile(f.file, []byte(stockCSV), 0o644))

	imports := service.NewImportService(&etl.Engine{Dest: f.docs}, storage.NewImportStore(db), f.emitter, service.ImportOptions{})
	t.Cleanup(imports.Stop)

	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	f.srv = New(Deps{
		Emitter:   f.emitter,
		Imports:   imports,
		Orders:    service.NewOrderService(f.docs, f.emitter),
		Feeds:     service.NewFeedService(f.docs),
		Store:     f.docs,
		Approvals: f.approvals,
		Approval:  opts,
	})
	return f
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return h(context.Background(), req)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

// resolveNext waits for the next pending approval and resolves it.
func resolveNext(t *testing.T, store *storage.ApprovalStore, approve bool) <-chan domain.Approval {
	t.Helper()
	out := make(chan domain.Approval, 1)
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			pending, err := store.ListPendingApprovals()
			if err == nil && len(pending) > 0 {
				_ = store.ResolveApproval(pending[0].ID, approve)
				out <- pending[0]
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		close(out)
	}()
	return out
}

// ─────────────────────────────────────────────────────────────
// Import tools
// ─────────────────────────────────────────────────────────────

func TestListImportTargets(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	res, err := call(t, f.srv.handleListImportTargets, nil)
	require.NoError(t, err)

	var body struct {
		Targets []etl.Target     `json:"targets"`
		Formats []etl.SourceSpec `json:"formats"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.Len(t, body.Targets, 9)
	assert.Len(t, body.Formats, 2)
}

func TestPreviewImport(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	res, err := call(t, f.srv.handlePreviewImport, map[string]any{"target": "inventory", "path": f.file, "limit": float64(1)})
	require.NoError(t, err)

	var preview etl.Preview
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &preview))
	assert.Equal(t, "inventory", preview.Collection)
	assert.Len(t, preview.Documents, 1)
	assert.Zero(t, f.docs.Count("inventory"))

	_, err = call(t, f.srv.handlePreviewImport, map[string]any{"target": "inventory"})
	assert.Error(t, err)
}

func TestImportFile_AutoApprove(t *testing.T) {
	f := newFixture(t, ApprovalOptions{AutoApprove: true})
	res, err := call(t, f.srv.handleImportFile, map[string]any{"target": "inventory", "path": f.file})
	require.NoError(t, err)

	var result etl.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, 2, result.RowsWritten)
	assert.Equal(t, 2, f.docs.Count("inventory"))

	runs, err := call(t, f.srv.handleListImportRuns, map[string]any{})
	require.NoError(t, err)
	var history []domain.ImportRun
	require.NoError(t, json.Unmarshal([]byte(resultText(t, runs)), &history))
	require.Len(t, history, 1)
	assert.Equal(t, service.SurfaceMCP, history[0].Surface)
}

func TestImportFile_OperatorApproves(t *testing.T) {
	f := newFixture(t, ApprovalOptions{Timeout: 5 * time.Second})
	resolved := resolveNext(t, f.approvals, true)

	res, err := call(t, f.srv.handleImportFile, map[string]any{"target": "inventory", "path": f.file})
	require.NoError(t, err)
	assert.NotEqual(t, "Action rejected by user", resultText(t, res))
	assert.Equal(t, 2, f.docs.Count("inventory"))

	a, ok := <-resolved
	require.True(t, ok, "no approval was requested")
	assert.Equal(t, "import_file", a.Tool)
	assert.Contains(t, a.Metadata, f.file)

	pending, err := f.approvals.ListPendingApprovals()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestImportFile_OperatorRejects(t *testing.T) {
	f := newFixture(t, ApprovalOptions{Timeout: 5 * time.Second})
	resolveNext(t, f.approvals, false)

	res, err := call(t, f.srv.handleImportFile, map[string]any{"target": "inventory", "path": f.file})
	require.NoError(t, err)
	assert.Equal(t, "Action rejected by user", resultText(t, res))
	assert.Zero(t, f.docs.Count("inventory"))
}

func TestImportFile_ApprovalTimeoutIsNotARejection(t *testing.T) {
	f := newFixture(t, ApprovalOptions{Timeout: 40 * time.Millisecond})

	res, err := call(t, f.srv.handleImportFile, map[string]any{"target": "inventory", "path": f.file})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.NotEqual(t, "Action rejected by user", text)
	assert.Contains(t, text, "timed out")
	assert.Zero(t, f.docs.Count("inventory"))
}

func TestRunImportJob_ApprovalCancelled(t *testing.T) {
	f := newFixture(t, ApprovalOptions{Timeout: 5 * time.Second})
	job, err := f.srv.imports.CreateJob(context.Background(), service.CreateImportJobInput{
		Name: "stock", Target: "inventory", FilePath: f.file,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"jobId": job.ID}
	res, err := f.srv.handleRunImportJob(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), context.DeadlineExceeded.Error())
	assert.Zero(t, f.docs.Count("inventory"))
}

func TestImportFile_InvalidInputSkipsApproval(t *testing.T) {
	f := newFixture(t, ApprovalOptions{Timeout: 50 * time.Millisecond})

	_, err := call(t, f.srv.handleImportFile, map[string]any{"target": "warehouses", "path": f.file})
	var cfgErr *etl.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = call(t, f.srv.handleImportFile, map[string]any{"target": "inventory", "path": "stock.pdf"})
	var formatErr *etl.UnsupportedFormatError
	assert.ErrorAs(t, err, &formatErr)

	assert.Empty(t, f.emitter.Recorded())
}

func TestRunImportJob(t *testing.T) {
	f := newFixture(t, ApprovalOptions{AutoApprove: true})
	job, err := f.srv.imports.CreateJob(context.Background(), service.CreateImportJobInput{
		Name: "stock", Target: "inventory", FilePath: f.file,
	})
	require.NoError(t, err)

	jobs, err := call(t, f.srv.handleListImportJobs, nil)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, jobs), job.ID)

	_, err = call(t, f.srv.handleRunImportJob, map[string]any{"jobId": job.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, f.docs.Count("inventory"))

	_, err = call(t, f.srv.handleRunImportJob, map[string]any{"jobId": "missing"})
	assert.ErrorIs(t, err, storage.ErrJobNotFound)
}

// ─────────────────────────────────────────────────────────────
// Approval queue
// ─────────────────────────────────────────────────────────────

func TestApprovalQueue_Timeout(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	q := NewApprovalQueue(f.approvals, f.emitter, ApprovalOptions{Timeout: 40 * time.Millisecond, PollInterval: 5 * time.Millisecond})

	approved, err := q.Request(context.Background(), "import_file", "Import x")
	assert.False(t, approved)
	assert.Error(t, err)

	events := f.emitter.Recorded()
	require.Len(t, events, 2)
	assert.Equal(t, "mcp:approval-required", events[0].Event)
	assert.Equal(t, "mcp:approval-dismissed", events[1].Event)

	pending, err := f.approvals.ListPendingApprovals()
	require.NoError(t, err)
	assert.Empty(t, pending, "timed out approvals are removed")
}

func TestApprovalQueue_ContextCancelled(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	q := NewApprovalQueue(f.approvals, nil, ApprovalOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	approved, err := q.Request(ctx, "import_file", "Import x")
	assert.False(t, approved)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestApprovalQueue_NoStore(t *testing.T) {
	q := NewApprovalQueue(nil, nil, ApprovalOptions{})
	_, err := q.Request(context.Background(), "import_file", "Import x")
	assert.Error(t, err)

	q = NewApprovalQueue(nil, nil, ApprovalOptions{AutoApprove: true})
	approved, err := q.Request(context.Background(), "import_file", "Import x")
	require.NoError(t, err)
	assert.True(t, approved)
}

// ─────────────────────────────────────────────────────────────
// Store tools, resources & prompts
// ─────────────────────────────────────────────────────────────

func TestStoreTools(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	ctx := context.Background()
	_, err := f.srv.orders.Place(ctx, identity.Principal{UID: "u1", Email: "a@example.com"}, service.PlaceOrderInput{Product: "semiconductors", Quantity: 2})
	require.NoError(t, err)
	_, err = f.srv.orders.Place(ctx, identity.Principal{UID: "u2"}, service.PlaceOrderInput{Product: "engine-blocks", Quantity: 1})
	require.NoError(t, err)

	res, err := call(t, f.srv.handleListOrders, map[string]any{"userId": "u1"})
	require.NoError(t, err)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "Industrial Semiconductors", orders[0].ProductName)

	res, err = call(t, f.srv.handleDashboard, nil)
	require.NoError(t, err)
	var d service.Dashboard
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &d))
	assert.Equal(t, 2, d.PendingOrders)

	res, err = call(t, f.srv.handleListCatalog, nil)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Quantum Memory Arrays")
}

func TestCollectionResource(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})
	require.NoError(t, f.docs.Put(context.Background(), "inventory", "SKU1", map[string]any{"current_stock": 4.0}))

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "logistria://collections/inventory"
	contents, err := f.srv.handleCollectionResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, "SKU1")

	req.Params.URI = "logistria://collections/users"
	_, err = f.srv.handleCollectionResource(context.Background(), req)
	assert.Error(t, err)
}

func TestPrepareImportPrompt(t *testing.T) {
	f := newFixture(t, ApprovalOptions{})

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"target": "bom", "path": "/tmp/bom.xlsx"}
	res, err := f.srv.handlePrepareImportPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, text, "/tmp/bom.xlsx")
	assert.Contains(t, text, "ids join")

	req.Params.Arguments = map[string]string{"target": "nope", "path": "x.csv"}
	_, err = f.srv.handlePrepareImportPrompt(context.Background(), req)
	assert.Error(t, err)
}
