package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistria/internal/docstore"
	"logistria/internal/domain"
	"logistria/internal/etl"
	_ "logistria/internal/etl/sources"
	"logistria/internal/httpapi"
	"logistria/internal/identity"
	"logistria/internal/service"
	"logistria/internal/storage"
)

const stockCSV = "product_id,current_stock,reserved_stock\nSKU1,100,10\nSKU2,0,5\n"

var (
	officer = identity.Principal{UID: "u-officer", Email: "officer@example.com"}
	client  = identity.Principal{UID: "u-client", Email: "client@example.com"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	docs      *docstore.MemoryStore
	verifier  *identity.Verifier
	events    *service.Broadcaster
	imports   *service.ImportService
	approvals *storage.ApprovalStore
	router    *gin.Engine
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		docs:      docstore.NewMemoryStore(),
		verifier:  identity.NewVerifier("test-secret", "logistria-test"),
		events:    service.NewBroadcaster(),
		approvals: storage.NewApprovalStore(db),
	}
	f.imports = service.NewImportService(&etl.Engine{Dest: f.docs}, storage.NewImportStore(db), f.events, service.ImportOptions{})
	t.Cleanup(f.imports.Stop)

	f.router = httpapi.NewRouter(httpapi.Deps{
		Store:          f.docs,
		Verifier:       f.verifier,
		Profiles:       identity.NewProfiles(f.docs),
		Imports:        f.imports,
		Orders:         service.NewOrderService(f.docs, f.events),
		Feeds:          service.NewFeedService(f.docs),
		Events:         f.events,
		Approvals:      f.approvals,
		MaxUploadBytes: maxUpload,
	})

	require.NoError(t, f.docs.Put(context.Background(), identity.UsersCollection, officer.UID, domain.Profile{
		Email: officer.Email,
		Role:  domain.RoleLogisticsOfficer,
	}.Fields()))
	return f
}

func (f *fixture) token(t *testing.T, p identity.Principal) string {
	t.Helper()
	tok, err := f.verifier.Sign(p, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, p *identity.Principal, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(t, *p))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(t *testing.T, p *identity.Principal, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return f.do(t, p, method, path, body, "application/json")
}

func upload(t *testing.T, target, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if target != "" {
		require.NoError(t, w.WriteField("target", target))
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// ─────────────────────────────────────────────────────────────
// Routing & auth
// ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, nil, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, nil, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, nil, http.MethodGet, "/api/session", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := identity.NewVerifier("other-secret", "logistria-test")
	tok, err := other.Sign(client, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/session?access_token="+tok, nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_FirstSignInCreatesClient(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, &client, http.MethodGet, "/api/session", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, client.UID, body["uid"])
	assert.Equal(t, domain.RoleClient, body["role"])
	assert.Equal(t, domain.HomeStore, body["home"])

	stored, err := f.docs.Get(context.Background(), identity.UsersCollection, client.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, stored["role"])
}

func TestSession_Operator(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, &officer, http.MethodGet, "/api/session", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.HomeAdmin, decode(t, w)["home"])
}

func TestConsoleRequiresOperator(t *testing.T) {
	f := newFixture(t, 0)
	for _, path := range []string{"/api/targets", "/api/imports/runs", "/api/import-jobs", "/api/dashboard"} {
		w := f.do(t, &client, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	body, ct := upload(t, "inventory", "stock.csv", stockCSV)
	w := f.do(t, &client, http.MethodPost, "/api/imports", body, ct)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.docs.Count("inventory"))
}

// ─────────────────────────────────────────────────────────────
// Imports
// ─────────────────────────────────────────────────────────────

func TestTargets(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, &officer, http.MethodGet, "/api/targets", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Targets []etl.Target     `json:"targets"`
		Formats []etl.SourceSpec `json:"formats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Targets, 9)
	assert.Equal(t, "inventory", body.Targets[0].Key)
	assert.Len(t, body.Formats, 2)
}

func TestImport_Success(t *testing.T) {
	f := newFixture(t, 0)
	body, ct := upload(t, "inventory", "stock.csv", stockCSV)

	w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.EqualValues(t, 2, resp["count"])
	assert.Equal(t, "inventory", resp["collection"])
	assert.Equal(t, "Successfully imported 2 records into inventory", resp["message"])

	doc, err := f.docs.Get(context.Background(), "inventory", "SKU1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, doc["current_stock"])

	runs := f.do(t, &officer, http.MethodGet, "/api/imports/runs", nil, "")
	require.Equal(t, http.StatusOK, runs.Code)
	var history struct {
		Runs []domain.ImportRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(runs.Body.Bytes(), &history))
	require.Len(t, history.Runs, 1)
	assert.Equal(t, officer.UID, history.Runs[0].Surface)
	assert.Equal(t, domain.StatusSuccess, history.Runs[0].Status)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		fileName string
		content  string
		status   int
	}{
		{"unsupported format", "inventory", "stock.pdf", stockCSV, http.StatusBadRequest},
		{"unknown target", "warehouses", "stock.csv", stockCSV, http.StatusBadRequest},
		{"missing target", "", "stock.csv", stockCSV, http.StatusBadRequest},
		{"header only", "inventory", "stock.csv", "product_id,current_stock\n", http.StatusBadRequest},
		{"missing file", "inventory", "", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			body, ct := upload(t, tt.target, tt.fileName, tt.content)
			w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
			assert.Zero(t, f.docs.Count("inventory"))
		})
	}
}

func TestImport_TooLarge(t *testing.T) {
	f := newFixture(t, 128)
	body, ct := upload(t, "inventory", "stock.csv", stockCSV+strings.Repeat("SKU9,1,1\n", 100))
	w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, f.docs.Count("inventory"))
}

func TestImport_CommitFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.docs.FailCommits(errors.New("permission denied"))

	body, ct := upload(t, "inventory", "stock.csv", stockCSV)
	w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["error"], "permission denied")
}

func TestImport_StrictParseErrorReportsLine(t *testing.T) {
	f := newFixture(t, 0)
	engine := &etl.Engine{Dest: f.docs, StrictNumbers: true}
	router := httpapi.NewRouter(httpapi.Deps{
		Verifier: f.verifier,
		Profiles: identity.NewProfiles(f.docs),
		Imports:  service.NewImportService(engine, nil, &service.MockEmitter{}, service.ImportOptions{}),
	})

	body, ct := upload(t, "inventory", "stock.csv", "product_id,current_stock\nSKU1,1\nSKU2,lots\n")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+f.token(t, officer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 3, resp["line"])
	assert.Equal(t, "current_stock", resp["column"])
}

func TestPreview_DoesNotWrite(t *testing.T) {
	f := newFixture(t, 0)
	body, ct := upload(t, "inventory", "stock.csv", stockCSV)

	w := f.do(t, &officer, http.MethodPost, "/api/imports/preview?limit=1", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var preview etl.Preview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, 2, preview.RowsKept)
	assert.Len(t, preview.Documents, 1)
	assert.Zero(t, f.docs.Count("inventory"))
}

func TestPreview_BadLimit(t *testing.T) {
	f := newFixture(t, 0)
	body, ct := upload(t, "inventory", "stock.csv", stockCSV)
	w := f.do(t, &officer, http.MethodPost, "/api/imports/preview?limit=ten", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "limit")
}

// ─────────────────────────────────────────────────────────────
// Saved jobs
// ─────────────────────────────────────────────────────────────

func TestImportJobs_Lifecycle(t *testing.T) {
	f := newFixture(t, 0)
	path := filepath.Join(t.TempDir(), "stock.csv")
	require.NoError(t, os.WriteFile(path, []byte(stockCSV), 0o644))

	w := f.doJSON(t, &officer, http.MethodPost, "/api/import-jobs", service.CreateImportJobInput{
		Name:          "nightly",
		Target:        "inventory",
		FilePath:      path,
		TriggerType:   domain.TriggerSchedule,
		TriggerConfig: "not cron",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "triggerConfig")

	w = f.doJSON(t, &officer, http.MethodPost, "/api/import-jobs", service.CreateImportJobInput{
		Name:     "manual stock",
		Target:   "inventory",
		FilePath: path,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job domain.ImportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.TriggerManual, job.TriggerType)

	w = f.doJSON(t, &officer, http.MethodPatch, "/api/import-jobs/"+job.ID, map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["enabled"])

	w = f.doJSON(t, &officer, http.MethodPatch, "/api/import-jobs/"+job.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, &officer, http.MethodPost, "/api/import-jobs/"+job.ID+"/run", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["count"])
	assert.Equal(t, 2, f.docs.Count("inventory"))

	w = f.do(t, &officer, http.MethodGet, "/api/imports/runs?jobId="+job.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["runs"], 1)

	w = f.do(t, &officer, http.MethodGet, "/api/import-jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["jobs"], 1)

	w = f.do(t, &officer, http.MethodDelete, "/api/import-jobs/"+job.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, &officer, http.MethodGet, "/api/import-jobs/"+job.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ─────────────────────────────────────────────────────────────
// Storefront
// ─────────────────────────────────────────────────────────────

func TestCatalog(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, &client, http.MethodGet, "/api/catalog", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"], len(domain.Catalog()))
}

func TestOrders_PlaceAndList(t *testing.T) {
	f := newFixture(t, 0)

	w := f.doJSON(t, &client, http.MethodPost, "/api/orders", service.PlaceOrderInput{Product: "semiconductors", Quantity: 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, client.Email, order.UserEmail)

	w = f.doJSON(t, &officer, http.MethodPost, "/api/orders", service.PlaceOrderInput{Product: "engine-blocks", Quantity: 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, &client, http.MethodGet, "/api/orders", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1, "clients see their own orders")

	w = f.do(t, &officer, http.MethodGet, "/api/orders", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 2, "operators see every order")

	w = f.do(t, &officer, http.MethodGet, "/api/dashboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["pendingOrders"])
}

func TestOrders_Invalid(t *testing.T) {
	f := newFixture(t, 0)

	w := f.doJSON(t, &client, http.MethodPost, "/api/orders", service.PlaceOrderInput{Product: "semiconductors"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "Quantity")

	w = f.doJSON(t, &client, http.MethodPost, "/api/orders", service.PlaceOrderInput{Product: "warp drive", Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, &client, http.MethodPost, "/api/orders", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.docs.Count(service.OrdersCollection))
}

// ─────────────────────────────────────────────────────────────
// Streams
// ─────────────────────────────────────────────────────────────

// readEvent returns the name and data of the next server-sent event.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && name != "":
			return name, data
		}
	}
}

func openStream(t *testing.T, f *fixture, path string) *bufio.Reader {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path+"?access_token="+f.token(t, officer), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	return bufio.NewReader(resp.Body)
}

func TestFeed_StreamsSnapshots(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.docs.Put(context.Background(), "inventory", "SKU7", map[string]any{"product_id": "SKU7", "stock": 12.0}))

	r := openStream(t, f, "/api/feed/inventory")
	name, data := readEvent(t, r)
	assert.Equal(t, "snapshot", name)

	var update service.FeedUpdate
	require.NoError(t, json.Unmarshal([]byte(data), &update))
	assert.Equal(t, "inventory", update.Collection)
	require.Len(t, update.Inventory, 1)
	assert.Equal(t, int64(12), *update.Inventory[0].CurrentStock)

	body, ct := upload(t, "inventory", "stock.csv", stockCSV)
	w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = readEvent(t, r)
	require.NoError(t, json.Unmarshal([]byte(data), &update))
	assert.Len(t, update.Inventory, 3)
}

func TestFeed_UnknownCollection(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, &officer, http.MethodGet, "/api/feed/users", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvents_StreamsImportCompleted(t *testing.T) {
	f := newFixture(t, 0)
	r := openStream(t, f, "/api/events")

	body, ct := upload(t, "inventory", "stock.csv", stockCSV)
	w := f.do(t, &officer, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, w.Code)

	name, data := readEvent(t, r)
	assert.Equal(t, service.EventImportCompleted, name)
	var done service.ImportCompleted
	require.NoError(t, json.Unmarshal([]byte(data), &done))
	assert.Equal(t, 2, done.Count)
	assert.Equal(t, officer.UID, done.Surface)
}

// ─────────────────────────────────────────────────────────────
// Agent approvals
// ─────────────────────────────────────────────────────────────

func TestApprovals(t *testing.T) {
	f := newFixture(t, 0)
	a := &domain.Approval{Tool: "import_file", Description: "Import stock.csv into inventory"}
	require.NoError(t, f.approvals.CreateApproval(a))

	w := f.do(t, &client, http.MethodGet, "/api/mcp/approvals", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &officer, http.MethodGet, "/api/mcp/approvals", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Approvals []domain.Approval `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Approvals, 1)
	assert.Equal(t, a.ID, body.Approvals[0].ID)

	w = f.do(t, &officer, http.MethodPost, "/api/mcp/approvals/"+a.ID+"/approve", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	status, err := f.approvals.ApprovalStatus(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, status)

	w = f.do(t, &officer, http.MethodPost, "/api/mcp/approvals/"+a.ID+"/reject", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "already resolved")
}
