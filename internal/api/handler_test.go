package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fleetcare-backend/internal/db"
	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/model"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/store"
	"fleetcare-backend/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeImporter struct {
	result *importer.Result
	err    error
	got    *source.SourceConfig
}

func (f *fakeImporter) ImportOnce(ctx context.Context, cfg source.SourceConfig) (*importer.Result, error) {
	f.got = &cfg
	return f.result, f.err
}

func newTestLedger(t *testing.T) store.Ledger {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.Migrate(gdb))
	return store.NewGormLedger(gdb)
}

func newTestManager(t *testing.T) *source.Manager {
	t.Helper()

	dir := t.TempDir()
	v, err := vault.New(filepath.Join(dir, "vault.key"))
	require.NoError(t, err)
	return source.NewManager(filepath.Join(dir, "source.json"), v)
}

func setupRouter(t *testing.T, ledger store.Ledger, imp Importer, push *webpush.Options) *gin.Engine {
	t.Helper()

	return NewRouter(ledger, imp, newTestManager(t), push, RouterOptions{
		RateLimitPerSec: 1000,
		CacheTTL:        time.Millisecond,
		SourceTimeout:   time.Second,
	})
}

func seedEquipment(t *testing.T, ledger store.Ledger) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, ledger.UpsertEquipment(ctx, "EX-01", "ESCAVADEIRA", 500))
	require.NoError(t, ledger.SetLastService(ctx, "EX-01", 100))
	require.NoError(t, ledger.AppendUsage(ctx, []model.UsageLog{
		{Tag: "EX-01", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Reading: 550},
		{Tag: "EX-01", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Reading: 620},
	}))
}

func TestGetDashboard(t *testing.T) {
	ledger := newTestLedger(t)
	seedEquipment(t, ledger)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/dashboard", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"EX-01"`)
	assert.Contains(t, body, `"CRITICAL"`)
}

func TestGetWorkOrders(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.AppendWorkOrder(ctx, model.WorkOrder{
		Tag: "EX-01", OrderNumber: "OS-10", ScheduledDate: "2024-04-10",
	}))
	require.NoError(t, ledger.AppendWorkOrder(ctx, model.WorkOrder{
		Tag: "CM-02", OrderNumber: "OS-11", ScheduledDate: "2024-04-12",
	}))
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/workorders", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"OS-10"`)
	assert.Contains(t, w.Body.String(), `"OS-11"`)

	// The tag filter is normalized like path parameters.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/workorders?tag=ex-01", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"OS-10"`)
	assert.NotContains(t, w.Body.String(), `"OS-11"`)
}

func TestGetEquipmentByTag(t *testing.T) {
	ledger := newTestLedger(t)
	seedEquipment(t, ledger)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	// Tag normalization applies to path parameters too.
	req, _ := http.NewRequest("GET", "/api/equipment/ex-01", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history"`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/equipment/NOPE", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutInterval(t *testing.T) {
	ledger := newTestLedger(t)
	seedEquipment(t, ledger)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/equipment/EX-01/interval",
		bytes.NewBufferString(`{"interval": 750}`))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	eu, err := ledger.EquipmentUsageByTag(context.Background(), "EX-01")
	require.NoError(t, err)
	assert.Equal(t, 750.0, eu.Equipment.IntervalUnits)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PUT", "/api/equipment/NOPE/interval",
		bytes.NewBufferString(`{"interval": 750}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteIntervalClearsIt(t *testing.T) {
	ledger := newTestLedger(t)
	seedEquipment(t, ledger)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/equipment/EX-01/interval", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	eu, err := ledger.EquipmentUsageByTag(context.Background(), "EX-01")
	require.NoError(t, err)
	assert.Equal(t, 0.0, eu.Equipment.IntervalUnits)
}

func TestPostImportConflict(t *testing.T) {
	imp := &fakeImporter{err: importer.ErrImportRunning}
	router := setupRouter(t, newTestLedger(t), imp, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/import", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostImportSuccess(t *testing.T) {
	imp := &fakeImporter{result: &importer.Result{Rows: 3, Equipment: 2}}
	router := setupRouter(t, newTestLedger(t), imp, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/import", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":3`)
}

func TestGetExport(t *testing.T) {
	ledger := newTestLedger(t)
	seedEquipment(t, ledger)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/export", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestSourceConfigRoundTrip(t *testing.T) {
	router := setupRouter(t, newTestLedger(t), &fakeImporter{}, nil)

	payload := `{"importType":"ftp","address":"sftp://files.example.com/export.xlsx","username":"svc","password":"secret"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/config", bytes.NewBufferString(payload))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/config", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"importType":"ftp"`)
	assert.Contains(t, body, `"hasPassword":true`)
	assert.NotContains(t, body, "secret")
}

func TestTestSourceConfigInvalidPath(t *testing.T) {
	router := setupRouter(t, newTestLedger(t), &fakeImporter{}, nil)

	payload := `{"importType":"network","address":"not-a-unc-path"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/config/test", bytes.NewBufferString(payload))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	ledger := newTestLedger(t)
	router := setupRouter(t, ledger, &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions",
		bytes.NewBufferString(`{"endpoint":"https://push.example/1","p256dh":"k","auth":"a"}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/subscriptions?endpoint=https%3A%2F%2Fpush.example%2F1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/subscriptions",
		bytes.NewBufferString(`{"endpoint":"https://push.example/1"}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupRouter(t, newTestLedger(t), &fakeImporter{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router = setupRouter(t, newTestLedger(t), &fakeImporter{},
		&webpush.Options{VAPIDPublicKey: "pub"})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pub")
}
