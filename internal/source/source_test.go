package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fleetcare-backend/internal/vault"
)

// writeWorkbook creates a minimal usage workbook for connector tests.
func writeWorkbook(t *testing.T, sheet string) string {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()

	idx, err := wb.NewSheet(sheet)
	require.NoError(t, err)
	wb.SetActiveSheet(idx)
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"TAG", "DATA", "H FINAL"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A4", &[]any{"EX-01", "2024-05-01", 120.5}))

	path := filepath.Join(t.TempDir(), "planilha.xlsx")
	require.NoError(t, wb.SaveAs(path))
	return path
}

func TestParseUNC(t *testing.T) {
	testCases := []struct {
		name    string
		addr    string
		want    uncPath
		wantErr bool
	}{
		{
			name: "well-formed path",
			addr: `\\srv01\exports\fleet\planilha.xlsx`,
			want: uncPath{Server: "srv01", Share: "exports", Path: `fleet\planilha.xlsx`},
		},
		{
			name:    "missing leading separator",
			addr:    `srv01\exports\planilha.xlsx`,
			wantErr: true,
		},
		{
			name:    "too few segments",
			addr:    `\\srv01\exports`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseUNC("probe", tc.addr)
			if tc.wantErr {
				assert.True(t, IsKind(err, KindInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNetworkProbeInvalidPathBeforeCredentialCheck(t *testing.T) {
	// No credentials configured either; the malformed address must win.
	c, err := New(SourceConfig{ImportType: KindNetwork, Address: `srv01\exports\f.xlsx`}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindInvalidPath))
	assert.False(t, IsKind(err, KindAuthFailed))
}

func TestNetworkProbeMissingCredentials(t *testing.T) {
	c, err := New(SourceConfig{
		ImportType: KindNetwork,
		Address:    `\\srv01\exports\planilha.xlsx`,
		Username:   "svc",
	}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindAuthFailed))
}

func TestParseObjectAddress(t *testing.T) {
	ref, err := parseObjectAddress("probe", "s3://fleet-exports/daily/planilha.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "fleet-exports", ref.Bucket)
	assert.Equal(t, "daily/planilha.xlsx", ref.Key)

	for _, addr := range []string{
		"fleet-exports/planilha.xlsx", // no scheme
		"s3://",
		"s3://bucket-only",
	} {
		_, err := parseObjectAddress("probe", addr)
		assert.True(t, IsKind(err, KindInvalidPath), "address %q", addr)
	}
}

func TestObjectStoreProbeFailsFastWithoutClient(t *testing.T) {
	c, err := New(SourceConfig{ImportType: KindObjectStore, Address: "bucket/key.xlsx"}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindInvalidPath))
}

func TestClassifyObjectError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey"}, KindNotFound},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, KindNotFound},
		{"bad credentials", minio.ErrorResponse{Code: "AccessDenied"}, KindAuthFailed},
		{"unknown sdk code", minio.ErrorResponse{Code: "SlowDown"}, KindTransport},
		{"plain network error", errors.New("connection reset"), KindTransport},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, IsKind(classifyObjectError("fetch", "s3://b/k", tc.err), tc.want))

			// The object body is read lazily, so the SDK error reaches
			// the classifier wrapped by the scratch-file copy. The kind
			// must survive the wrapping.
			wrapped := fmt.Errorf("failed to write scratch file: %w", tc.err)
			assert.True(t, IsKind(classifyObjectError("fetch", "s3://b/k", wrapped), tc.want))
		})
	}
}

func TestParseFTPAddress(t *testing.T) {
	ref, err := parseFTPAddress("probe", "sftp://files.example.com/exports/planilha.xlsx")
	require.NoError(t, err)
	assert.True(t, ref.Secure)
	assert.Equal(t, "files.example.com:22", ref.Host)
	assert.Equal(t, "exports/planilha.xlsx", ref.Path)

	ref, err = parseFTPAddress("probe", "ftp://files.example.com:2121/planilha.xlsx")
	require.NoError(t, err)
	assert.False(t, ref.Secure)
	assert.Equal(t, "files.example.com:2121", ref.Host)

	_, err = parseFTPAddress("probe", "http://files.example.com/planilha.xlsx")
	assert.True(t, IsKind(err, KindInvalidPath))

	_, err = parseFTPAddress("probe", "ftp://hostonly")
	assert.True(t, IsKind(err, KindInvalidPath))
}

func TestLocalProbeAndFetch(t *testing.T) {
	path := writeWorkbook(t, "PRODUTIVIDADE")

	c, err := New(SourceConfig{ImportType: KindLocal, Address: path, SheetName: "PRODUTIVIDADE"}, Options{})
	require.NoError(t, err)

	info, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info.Detail, "planilha.xlsx")
	assert.Greater(t, info.Size, int64(0))

	scratch, err := c.Fetch(context.Background())
	require.NoError(t, err)
	defer Discard(scratch)

	assert.True(t, strings.HasSuffix(scratch, ".xlsx"))
	assert.NotEqual(t, path, scratch)

	orig, err := os.ReadFile(path)
	require.NoError(t, err)
	copied, err := os.ReadFile(scratch)
	require.NoError(t, err)
	assert.Equal(t, orig, copied)
}

func TestLocalProbeMissingFile(t *testing.T) {
	c, err := New(SourceConfig{
		ImportType: KindLocal,
		Address:    filepath.Join(t.TempDir(), "missing.xlsx"),
		SheetName:  "PRODUTIVIDADE",
	}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestLocalProbeRejectsCorruptWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a workbook"), 0o644))

	c, err := New(SourceConfig{ImportType: KindLocal, Address: path, SheetName: "PRODUTIVIDADE"}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindInvalidPath))
}

func TestLocalProbeRejectsMissingSheet(t *testing.T) {
	path := writeWorkbook(t, "OUTRA ABA")

	c, err := New(SourceConfig{ImportType: KindLocal, Address: path, SheetName: "PRODUTIVIDADE"}, Options{})
	require.NoError(t, err)

	_, err = c.Probe(context.Background())
	assert.True(t, IsKind(err, KindInvalidPath))
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(SourceConfig{ImportType: "carrier-pigeon"}, Options{})
	assert.Error(t, err)
}

func TestDiscardTolerantOfMissingFile(t *testing.T) {
	Discard("")
	Discard(filepath.Join(t.TempDir(), "never-existed.xlsx"))
}

func TestManagerRoundTripEncryptsPassword(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.New(filepath.Join(dir, "vault.key"))
	require.NoError(t, err)

	mgr := NewManager(filepath.Join(dir, "source.json"), v)

	cfg := DefaultSourceConfig()
	cfg.ImportType = KindFTP
	cfg.Address = "ftp://files.example.com/planilha.xlsx"
	cfg.Username = "svc"
	cfg.Password = "s3cret"
	require.NoError(t, mgr.Save(cfg))

	// The password must not appear in plaintext on disk.
	raw, err := os.ReadFile(filepath.Join(dir, "source.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.NotEmpty(t, onDisk["password"])

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", loaded.Password)
	assert.Equal(t, KindFTP, loaded.ImportType)
}

func TestManagerKeepsZeroHeaderRow(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.New(filepath.Join(dir, "vault.key"))
	require.NoError(t, err)

	mgr := NewManager(filepath.Join(dir, "source.json"), v)

	// Some exports carry the header on the first row; offset 0 must
	// survive the round trip instead of snapping back to the default.
	cfg := DefaultSourceConfig()
	cfg.HeaderRow = 0
	require.NoError(t, mgr.Save(cfg))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.HeaderRow)
}

func TestManagerLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.New(filepath.Join(dir, "vault.key"))
	require.NoError(t, err)

	cfg, err := NewManager(filepath.Join(dir, "source.json"), v).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSourceConfig(), cfg)
}
