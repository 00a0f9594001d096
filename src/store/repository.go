package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
)

const DefaultLockTimeout = 10 * time.Second

// Repository reads and writes the trade index JSON file.
type Repository struct {
	path        string
	lockTimeout time.Duration
}

func NewRepository(path string, lockTimeout time.Duration) *Repository {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Repository{path: path, lockTimeout: lockTimeout}
}

func (r *Repository) Path() string { return r.path }

// Exists reports whether the store file is present.
func (r *Repository) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Load reads the store. A missing file is an empty store at the current
// schema version.
func (r *Repository) Load() (*models.TradeStore, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.L.Debug("Trade store not found, starting empty", "path", r.path)
		return models.NewTradeStore(models.CurrentSchemaVersion), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trade store %s: %w", r.path, err)
	}
	return Decode(data)
}

// LoadRaw returns the file bytes for read-only validation.
func (r *Repository) LoadRaw() ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trade store %s: %w", r.path, err)
	}
	return data, nil
}

// Decode parses a store document; a missing version reads as the legacy
// schema.
func Decode(data []byte) (*models.TradeStore, error) {
	doc := models.NewTradeStore("")
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode trade store: %w", err)
	}
	if doc.Version == "" {
		doc.Version = models.LegacySchemaVersion
	}
	return doc, nil
}

// Encode renders the document as 2-space indented JSON with a trailing
// newline.
func Encode(doc *models.TradeStore) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode trade store: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes doc atomically: a temp file in the same directory is synced
// and renamed over the target. On failure the previous file is untouched.
func (r *Repository) Save(doc *models.TradeStore) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(r.path, data)
}

// WriteFileAtomic replaces path with data via temp file and rename.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
