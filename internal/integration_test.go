package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fleetcare-backend/config"
	"fleetcare-backend/internal/api"
	"fleetcare-backend/internal/db"
	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/status"
	"fleetcare-backend/internal/store"
	"fleetcare-backend/internal/vault"
)

// TestImportLifecycle drives a full cycle: a field workbook is
// imported from a local source, the dashboard reflects the derived
// status, a later workbook pushes one equipment over its interval and
// a critical alert is dispatched.
func TestImportLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	ledger := store.NewGormLedger(testDB)

	dir := t.TempDir()
	v, err := vault.New(filepath.Join(dir, "vault.key"))
	require.NoError(t, err)
	manager := source.NewManager(filepath.Join(dir, "source.json"), v)

	appCfg := &config.Config{
		Importer: config.ImporterConfig{
			TimeoutSeconds: 5,
			Timezone:       "America/Sao_Paulo",
		},
	}

	dispatcher := &recordingDispatcher{}
	importSvc := importer.NewService(appCfg, manager, ledger, dispatcher)

	router := api.NewRouter(ledger, importSvc, manager, nil, api.RouterOptions{
		RateLimitPerSec: 1000,
		CacheTTL:        time.Millisecond,
		SourceTimeout:   time.Second,
	})

	ctx := context.Background()

	// First export: EX-01 at 300 of a 500 interval since last service.
	srcCfg := source.DefaultSourceConfig()
	srcCfg.Address = writeExport(t, dir, "week1.xlsx", [][]any{
		{"EX-01", "2024-05-01", "100", "ESCAVADEIRA", "500"},
		{"EX-01", "2024-05-02", "400", "", ""},
	})
	result, err := importSvc.ImportOnce(ctx, srcCfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)

	// The week one baseline is the max-date reading, so usage is still
	// zero and nothing alerts yet.
	assert.Empty(t, dispatcher.alerts)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/dashboard", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var dashboard struct {
		Summary   status.Summary    `json:"summary"`
		Equipment []status.Snapshot `json:"equipment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dashboard))
	require.Len(t, dashboard.Equipment, 1)
	assert.Equal(t, status.ClassOK, dashboard.Equipment[0].Class)
	assert.Equal(t, 400.0, dashboard.Equipment[0].LastService)

	// Second export: readings climb past the interval.
	srcCfg.Address = writeExport(t, dir, "week2.xlsx", [][]any{
		{"EX-01", "2024-05-09", "920", "", "500"},
	})
	_, err = importSvc.ImportOnce(ctx, srcCfg)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/dashboard", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dashboard))
	require.Len(t, dashboard.Equipment, 1)
	// usage = 920 - 400 = 520 >= 500
	assert.Equal(t, status.ClassCritical, dashboard.Equipment[0].Class)
	assert.Equal(t, 1, dashboard.Summary.Critical)

	require.Len(t, dispatcher.alerts, 1)
	assert.Equal(t, "EX-01", dispatcher.alerts[0].Tag)
}

type recordingDispatcher struct {
	alerts []status.CriticalAlert
}

func (d *recordingDispatcher) Dispatch(alert status.CriticalAlert) {
	d.alerts = append(d.alerts, alert)
}

// writeExport lays out a minimal field workbook: two banner rows and
// the usage header on the third.
func writeExport(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "PRODUTIVIDADE"))
	require.NoError(t, f.SetSheetRow("PRODUTIVIDADE", "A3", &[]any{"TAG", "DATA", "H FINAL", "ATIVIDADE", "TIPO"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, 4+i)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("PRODUTIVIDADE", cell, &row))
	}

	_, err := f.NewSheet("CONTROLE DE OS")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("CONTROLE DE OS", "A1", &[]any{"EQUIPAMENTO", "N° OS", "DATA"}))

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}
