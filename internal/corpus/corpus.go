// Package corpus enumerates and reads pipeline source files. Reading is
// encoding tolerant: files that are not valid UTF-8 are decoded as Latin-1,
// matching the mixed encodings found in exported DI jobs.
package corpus

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultExtensions are the file extensions scanned when none are configured.
var DefaultExtensions = []string{".py", ".sql", ".sas"}

// ErrEmptyCorpus is returned when the root contains no matching source files.
var ErrEmptyCorpus = fmt.Errorf("corpus contains no source files")

// ListSourceFiles walks root recursively and returns the sorted paths of all
// files whose extension matches exts (case-insensitive). An unreadable
// directory entry aborts the walk; the caller decides whether that is fatal.
func ListSourceFiles(root string, exts []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("corpus root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", root)
	}

	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = struct{}{}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrEmptyCorpus, root)
	}
	sort.Strings(files)
	return files, nil
}

// Reader reads source files with a per-run text cache. The index build, the
// candidate prefilter, and the upstream extractors all revisit the same files,
// so each file is decoded at most once per run. Safe for concurrent use.
type Reader struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedText
}

type cachedText struct {
	text string
	ok   bool
}

// NewReader returns a Reader that logs unreadable files through logger.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{
		logger: logger,
		cache:  make(map[string]cachedText),
	}
}

// ReadText returns the decoded contents of path. A file that cannot be read
// yields ("", false) and a warning; it never fails the run.
func (r *Reader) ReadText(path string) (string, bool) {
	r.mu.RLock()
	entry, hit := r.cache[path]
	r.mu.RUnlock()
	if hit {
		return entry.text, entry.ok
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("skipping unreadable source file", "path", path, "error", err)
		r.store(path, cachedText{})
		return "", false
	}

	text := decode(raw)
	r.store(path, cachedText{text: text, ok: true})
	return text, true
}

func (r *Reader) store(path string, entry cachedText) {
	r.mu.Lock()
	r.cache[path] = entry
	r.mu.Unlock()
}

// decode interprets raw as UTF-8 when valid, Latin-1 otherwise. Latin-1
// decoding cannot fail: every byte maps to a code point.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return strings.TrimPrefix(string(raw), "\uFEFF")
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
