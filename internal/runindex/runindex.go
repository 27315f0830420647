package runindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/store"
)

const (
	dbFile        = "exe-ctld.run-index"
	bucketName    = "run_index"
	dbPermissions = 0600
)

// RunIndex is the run frequency index kept by ade-exe-ctld: one bucket mapping
// a launched path to a big-endian uint64 count.
type RunIndex struct {
	db *bbolt.DB
}

// Path returns where the run index lives under cacheDir.
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, "ade", dbFile)
}

// DefaultCacheDir returns the user cache directory.
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return cacheDir, nil
}

// OpenReadOnly opens an existing run index without modifying it.
func OpenReadOnly(cacheDir string) (*RunIndex, error) {
	db, err := bbolt.Open(Path(cacheDir), dbPermissions, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &RunIndex{db: db}, nil
}

// Counts returns every recorded path with its run count. Malformed values
// are skipped.
func (ri *RunIndex) Counts() (map[string]int64, error) {
	counts := make(map[string]int64)
	err := ri.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return nil
			}
			counts[string(k)] = int64(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Close closes the database connection.
func (ri *RunIndex) Close() error {
	if ri.db != nil {
		return ri.db.Close()
	}
	return nil
}

// UsageStore is the part of the application store the import needs.
type UsageStore interface {
	GetState(key string) (string, bool, error)
	SetState(key, value string) error
	ImportUsage(counts map[string]int64) (int, error)
}

// Import seeds usage counts from the run index under cacheDir. It runs once
// per store; later calls return 0 without reading the index. A missing index
// counts as imported.
func Import(s UsageStore, cacheDir string, logger *logx.Logger) (int, error) {
	_, done, err := s.GetState(store.KeyLegacyImported)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}

	updated := 0
	if _, err := os.Stat(Path(cacheDir)); err == nil {
		ri, err := OpenReadOnly(cacheDir)
		if err != nil {
			return 0, err
		}
		counts, err := ri.Counts()
		closeErr := ri.Close()
		if err = errors.Join(err, closeErr); err != nil {
			return 0, fmt.Errorf("read run index: %w", err)
		}
		updated, err = s.ImportUsage(counts)
		if err != nil {
			return 0, err
		}
		logger.Infof("Imported run counts for %d applications from %s", updated, Path(cacheDir))
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("stat run index: %w", err)
	}

	if err := s.SetState(store.KeyLegacyImported, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return updated, err
	}
	return updated, nil
}
