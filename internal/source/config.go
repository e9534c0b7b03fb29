package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fleetcare-backend/internal/vault"
)

// SourceConfig is the user-editable import-source configuration. The
// Password field holds plaintext in memory; it is encrypted by Manager
// before touching disk.
type SourceConfig struct {
	ImportType     string `json:"importType"`
	Address        string `json:"address"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Endpoint       string `json:"endpoint,omitempty"` // object store only
	SheetName      string `json:"sheetName"`
	HeaderRow      int    `json:"headerRow"`
	WorkOrderSheet string `json:"workOrderSheet"`
	AutoImport     bool   `json:"autoImport"`
	ImportHour     int    `json:"importHour"`
	ImportMinute   int    `json:"importMinute"`
	Enabled        bool   `json:"enabled"`
}

// DefaultSourceConfig mirrors the values a fresh installation starts with.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		ImportType:     KindLocal,
		SheetName:      "PRODUTIVIDADE",
		HeaderRow:      2,
		WorkOrderSheet: "CONTROLE DE OS",
		AutoImport:     true,
		ImportHour:     10,
		ImportMinute:   5,
		Enabled:        true,
	}
}

// Manager persists SourceConfig as a JSON file with the password
// encrypted at rest. Safe for concurrent use.
type Manager struct {
	path  string
	vault *vault.Vault

	mu sync.Mutex
}

// NewManager returns a Manager storing its config at path, using v to
// protect the password field.
func NewManager(path string, v *vault.Vault) *Manager {
	return &Manager{path: path, vault: v}
}

// Load reads the stored configuration, decrypting the password and
// filling defaults for absent fields. A missing file yields defaults.
func (m *Manager) Load() (SourceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := DefaultSourceConfig()

	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read source config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return DefaultSourceConfig(), fmt.Errorf("failed to parse source config: %w", err)
	}

	cfg.Password = m.vault.Decrypt(cfg.Password)
	applyDefaults(&cfg)
	return cfg, nil
}

// Save writes cfg to disk with the password encrypted.
func (m *Manager) Save(cfg SourceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc, err := m.vault.Encrypt(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	cfg.Password = enc

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode source config: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(m.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write source config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *SourceConfig) {
	def := DefaultSourceConfig()
	if cfg.ImportType == "" {
		cfg.ImportType = def.ImportType
	}
	if cfg.SheetName == "" {
		cfg.SheetName = def.SheetName
	}
	// 0 is a legitimate offset (header on the first row); the absent
	// case keeps the default because decoding starts from it.
	if cfg.HeaderRow < 0 {
		cfg.HeaderRow = def.HeaderRow
	}
	if cfg.WorkOrderSheet == "" {
		cfg.WorkOrderSheet = def.WorkOrderSheet
	}
	if cfg.ImportHour == 0 && cfg.ImportMinute == 0 {
		cfg.ImportHour = def.ImportHour
		cfg.ImportMinute = def.ImportMinute
	}
}
