package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/catalog"
)

// CatalogStore keeps the canonical catalog as two JSON documents, a primary
// and a backup copy, each replaced atomically.
type CatalogStore struct {
	primary string
	backup  string
	log     *zap.Logger
}

// Loaded is a catalog read together with where it came from.
type Loaded struct {
	Products   []internal.Product
	FromBackup bool
}

func NewCatalogStore(primaryPath, backupPath string, log *zap.Logger) *CatalogStore {
	return &CatalogStore{primary: primaryPath, backup: backupPath, log: log.Named("catalog_store")}
}

func (s *CatalogStore) PrimaryPath() string { return s.primary }
func (s *CatalogStore) BackupPath() string  { return s.backup }

// Read returns the current catalog. It never returns a nil slice.
func (s *CatalogStore) Read() ([]internal.Product, error) {
	loaded, err := s.Load()
	if err != nil {
		return []internal.Product{}, err
	}
	return loaded.Products, nil
}

// Load reads the primary document, falling back to a valid backup. When
// neither file exists an empty primary document is created.
func (s *CatalogStore) Load() (Loaded, error) {
	primary, primaryErr := readCatalogFile(s.primary)
	if primaryErr == nil {
		return Loaded{Products: primary}, nil
	}

	backup, backupErr := readCatalogFile(s.backup)
	if backupErr == nil {
		s.log.Warn("serving catalog from backup", zap.String("primary", s.primary), zap.Error(primaryErr))
		return Loaded{Products: backup, FromBackup: true}, nil
	}

	if errors.Is(primaryErr, fs.ErrNotExist) && errors.Is(backupErr, fs.ErrNotExist) {
		if err := writeAtomic(s.primary, []byte("[]\n")); err != nil {
			return Loaded{Products: []internal.Product{}}, fmt.Errorf("failed to initialize catalog: %w", err)
		}
		return Loaded{Products: []internal.Product{}}, nil
	}

	return Loaded{Products: []internal.Product{}}, fmt.Errorf("%w: primary: %v; backup: %v", ErrCatalogUnreadable, primaryErr, backupErr)
}

// Write replaces both documents, primary first. Products are written sorted by id.
func (s *CatalogStore) Write(products []internal.Product) error {
	sorted := make([]internal.Product, len(products))
	copy(sorted, products)
	catalog.SortByID(sorted)

	blob, err := encodeCatalog(sorted)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.primary, blob); err != nil {
		return fmt.Errorf("failed to write primary catalog: %w", err)
	}
	if err := writeAtomic(s.backup, blob); err != nil {
		return fmt.Errorf("failed to write backup catalog: %w", err)
	}
	return nil
}

func encodeCatalog(products []internal.Product) ([]byte, error) {
	for i := range products {
		if products[i].Tags == nil {
			products[i].Tags = []string{}
		}
	}
	blob, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(blob, '\n'), nil
}

func readCatalogFile(path string) ([]internal.Product, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var products []internal.Product
	if err := json.Unmarshal(blob, &products); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", filepath.Base(path), err)
	}
	if products == nil {
		return nil, fmt.Errorf("invalid catalog %s: not an array", filepath.Base(path))
	}
	return products, nil
}

// writeAtomic writes to a temp file in the target directory, syncs it and
// renames it over the target.
func writeAtomic(path string, blob []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
