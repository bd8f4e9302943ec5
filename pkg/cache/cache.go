// Package cache remembers which files are already formatted, so unchanged
// files can be skipped on the next run.
//
// A file is identified by its resolved path and counts as unchanged while
// its modification time and size match what was recorded.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Cache is a database of formatted files for one formatting mode.
type Cache struct {
	db *badger.DB
}

// Dir returns the directory holding the caches of every mode.
func Dir() string {
	if dir := os.Getenv("CROW_CACHE_DIR"); dir != "" {
		return dir
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "crow")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "crow")
	}
	return filepath.Join(os.TempDir(), "crow-cache")
}

// Open opens the cache for the mode fingerprinted by modeKey, under dir.
func Open(dir, modeKey string) (*Cache, error) {
	h := sha256.Sum256([]byte(modeKey))
	path := filepath.Join(dir, "cache."+hex.EncodeToString(h[:8]))
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create cache directory %s", path)
	}

	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: slog.Default().With("component", "cache")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

type entry struct {
	mtime int64
	size  int64
}

func (e entry) String() string {
	return fmt.Sprintf("%d:%d", e.mtime, e.size)
}

func parseEntry(v string) (entry, bool) {
	mtime, size, ok := strings.Cut(v, ":")
	if !ok {
		return entry{}, false
	}
	m, err := strconv.ParseInt(mtime, 10, 64)
	if err != nil {
		return entry{}, false
	}
	s, err := strconv.ParseInt(size, 10, 64)
	if err != nil {
		return entry{}, false
	}
	return entry{mtime: m, size: s}, true
}

func stat(path string) (entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entry{}, err
	}
	return entry{mtime: info.ModTime().UnixNano(), size: info.Size()}, nil
}

func resolve(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	return path
}

// Filter splits paths into those that changed since they were recorded and
// those that did not.
func (c *Cache) Filter(paths []string) (changed, done []string, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		for _, path := range paths {
			current, err := stat(path)
			if err != nil {
				changed = append(changed, path)
				continue
			}

			item, err := txn.Get([]byte(resolve(path)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				changed = append(changed, path)
				continue
			}
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if recorded, ok := parseEntry(string(value)); ok && recorded == current {
				done = append(done, path)
			} else {
				changed = append(changed, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "read cache")
	}
	return changed, done, nil
}

// Write records the current state of paths. Paths that cannot be read are
// skipped.
func (c *Cache) Write(paths []string) error {
	wb := c.db.NewWriteBatch()
	for _, path := range paths {
		e, err := stat(path)
		if err != nil {
			slog.Debug("not caching unreadable file", "path", path, "error", err)
			continue
		}
		if err := wb.Set([]byte(resolve(path)), []byte(e.String())); err != nil {
			wb.Cancel()
			return errors.Wrap(err, "write cache")
		}
	}
	return errors.Wrap(wb.Flush(), "write cache")
}

// badgerLogger adapts slog to badger's logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
