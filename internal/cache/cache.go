package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "ocr_cache_"
	fileSuffix = ".json"
)

// Store keeps extracted OCR text on disk, keyed by the source file's path,
// size and modification time.
type Store struct {
	Dir string
	log *slog.Logger
}

// Entry describes one cache file.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type envelope struct {
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
}

// New returns a store rooted at dir. The directory is created on first save.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{Dir: dir, log: log}
}

// FileFor returns the cache file used for the source file at path.
func (s *Store) FileFor(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	id := fmt.Sprintf("%s_%d_%d", path, info.Size(), info.ModTime().UnixNano())
	sum := md5.Sum([]byte(id))
	hash := hex.EncodeToString(sum[:])[:8]

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(s.Dir, filePrefix+base+"_"+hash+fileSuffix), nil
}

// Load returns the cached text for path. A missing entry is a miss; an
// unreadable or corrupted entry is deleted and also reported as a miss.
func (s *Store) Load(path string) (string, bool) {
	file, err := s.FileFor(path)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("cache read failed", "file", file, "error", err)
		}
		return "", false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn("corrupted cache entry removed", "file", file, "error", err)
		if rmErr := os.Remove(file); rmErr != nil {
			s.log.Warn("remove corrupted cache entry", "file", file, "error", rmErr)
		}
		return "", false
	}
	s.log.Info("loaded ocr results from cache", "file", file)
	return env.Text, true
}

// Save writes text for path and returns the cache file. The write goes to a
// temporary file first so a reader never sees a partial entry.
func (s *Store) Save(path, text string) (string, error) {
	file, err := s.FileFor(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(envelope{Source: path, CreatedAt: time.Now().UTC(), Text: text})
	if err != nil {
		return "", fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".ocr_cache-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, file); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename cache entry: %w", err)
	}
	return file, nil
}

// Clear removes the cache entry for path. It reports whether one existed.
func (s *Store) Clear(path string) (bool, error) {
	file, err := s.FileFor(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove cache entry: %w", err)
	}
	return true, nil
}

// ClearAll removes every cache entry and returns how many were removed.
func (s *Store) ClearAll() (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", e.Path, err)
		}
		removed++
	}
	return removed, nil
}

// List returns the cache entries sorted by file name. A missing cache
// directory yields no entries.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var out []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Path:    filepath.Join(s.Dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
