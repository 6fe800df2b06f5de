package persistence

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// StateKey is the versioned key the whole state is stored under.
const StateKey = "palaver-state-v1"

var ErrNotFound = errors.New("no persisted state")

// Backend stores opaque blobs under string keys.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendFile   BackendKind = "file"
	BackendSQLite BackendKind = "sqlite"
)

// Open returns the backend of the given kind rooted at path. For the file
// backend path is a directory, for sqlite it is the database file.
func Open(kind BackendKind, path string) (Backend, error) {
	switch kind {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendFile, "":
		return NewFileBackend(path)
	case BackendSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "palaver.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create directory for %s", path)
		}
		dsn, err := SQLiteDSNForFile(path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(dsn)
	default:
		return nil, errors.Errorf("unknown state backend %q", kind)
	}
}
