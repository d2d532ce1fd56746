package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	fileExt = ".json"
	tmpExt  = ".tmp"
)

// fileEntry is the on-disk envelope for one cached value.
type fileEntry struct {
	Kind      string          `json:"kind"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

// diskTier stores one file per key in a dedicated directory. The file
// name is derived solely from the key, so lookups need no index.
type diskTier struct {
	dir string
	log zerolog.Logger
}

func newDiskTier(dir string, log zerolog.Logger) (*diskTier, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &diskTier{dir: dir, log: log}, nil
}

func (d *diskTier) path(key string) string {
	return filepath.Join(d.dir, key+fileExt)
}

// get reads the envelope for key. A missing, truncated, or otherwise
// unreadable file is a miss, never an error; corrupt files are logged
// and left in place for an explicit sweep or the next overwrite.
func (d *diskTier) get(key string) (fileEntry, bool) {
	var fe fileEntry
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			d.log.Warn().Err(err).Str("key", key).Msg("cache file unreadable, treating as miss")
		}
		return fe, false
	}
	if err := json.Unmarshal(data, &fe); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache file corrupt, treating as miss")
		return fileEntry{}, false
	}
	return fe, true
}

// put writes the envelope atomically via a temp file and rename, so a
// concurrent reader never sees a partial entry. The temp name is
// randomized: the api and worker processes share this directory, and
// concurrent writers for the same key must not interleave into one
// temp file.
func (d *diskTier) put(key string, fe fileEntry) error {
	data, err := json.Marshal(&fe)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, key+"-*"+tmpExt)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (d *diskTier) remove(key string) {
	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("failed to remove cache file")
	}
}

// removeExpired deletes every entry older than ttl as of now and returns
// the count. Files that cannot be read or parsed count as expired here:
// the sweep is the explicit reclaim path for corrupt entries. Temp files
// from crashed writers are reclaimed too, once their mtime falls outside
// ttl, so a live writer's temp file is never pulled out from under it.
func (d *diskTier) removeExpired(ttl time.Duration, now time.Time) int {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to list cache dir for sweep")
		return 0
	}

	removed := 0
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		path := filepath.Join(d.dir, name)
		stale := false

		switch filepath.Ext(name) {
		case fileExt:
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var fe fileEntry
			if err := json.Unmarshal(data, &fe); err != nil {
				stale = true
			} else {
				stale = !fresh(fe.CreatedAt, now, ttl)
			}
		case tmpExt:
			info, err := de.Info()
			if err != nil {
				continue
			}
			stale = !fresh(info.ModTime(), now, ttl)
		default:
			continue
		}

		if stale {
			if err := os.Remove(path); err == nil {
				removed++
			} else {
				d.log.Warn().Err(err).Str("file", name).Msg("failed to remove expired cache file")
			}
		}
	}
	return removed
}

// clearAll removes every cache file in the directory, including any
// orphaned temp files.
func (d *diskTier) clearAll() error {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("list cache dir: %w", err)
	}
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || (filepath.Ext(name) != fileExt && filepath.Ext(name) != tmpExt) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache file %s: %w", name, err)
		}
	}
	return nil
}

// list returns the cache file names in the tier directory.
func (d *diskTier) list() ([]string, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || filepath.Ext(de.Name()) != fileExt {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}
