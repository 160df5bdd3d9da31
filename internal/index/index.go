// Package index builds and queries the writer index: a one-pass mapping
// from canonical table names to the scripts that produce them. Lookups
// re-check candidates against the raw source text so that stale or overly
// eager extraction never yields a writer whose file no longer mentions the
// table literally.
package index

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/TongWu/tabletracer/internal/extract"
	"github.com/TongWu/tabletracer/internal/table"
)

// Index maps canonical fully qualified table names to their registered
// writers. It is built once per run and queried read-only afterwards.
type Index struct {
	writers map[string][]extract.Writer
	files   []string
	ex      *extract.Extractor
	logger  *slog.Logger
}

// Build scans every file once with the per-kind write-side rules and
// registers each qualified output table. Bare output names are not
// indexed: without a schema they cannot be matched back to a target.
func Build(files []string, ex *extract.Extractor, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ix := &Index{
		writers: make(map[string][]extract.Writer),
		files:   files,
		ex:      ex,
		logger:  logger,
	}

	scanned := 0
	for _, path := range files {
		kind, ok := extract.KindForFile(path)
		if !ok {
			continue
		}
		scanned++
		for _, fqtn := range ex.WrittenTables(path) {
			if !table.IsQualified(fqtn) {
				continue
			}
			ix.writers[fqtn] = append(ix.writers[fqtn], extract.Writer{Path: path, Kind: kind})
		}
	}
	logger.Info("writer index built",
		"files_scanned", scanned,
		"tables_indexed", len(ix.writers))
	return ix
}

// Files returns the corpus file list the index was built from.
func (ix *Index) Files() []string { return ix.files }

// Tables returns every indexed table name in sorted order.
func (ix *Index) Tables() []string {
	out := make([]string, 0, len(ix.writers))
	for name := range ix.writers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registered returns the writers recorded for fqtn at build time, without
// the literal-occurrence re-check applied by WritersFor.
func (ix *Index) Registered(fqtn string) []extract.Writer {
	return ix.writers[strings.ToLower(fqtn)]
}

// WritersFor resolves the confirmed writers of a fully qualified table.
// Registered writers are kept only when their file still contains the
// literal FQTN on a word boundary. When that filter leaves nothing, the
// candidate files are re-parsed directly so a table missed at build time
// can still be resolved. The result is deduplicated by (path, kind).
func (ix *Index) WritersFor(fqtn string) []extract.Writer {
	fqtn = strings.ToLower(fqtn)
	candidates := ix.candidateFiles(fqtn)
	ix.logger.Debug("candidate files by literal search",
		"table", fqtn, "candidates", len(candidates))

	var writers []extract.Writer
	for _, w := range ix.writers[fqtn] {
		if candidates[w.Path] {
			writers = append(writers, w)
		}
	}

	if len(writers) == 0 {
		writers = ix.rescan(fqtn, candidates)
	}

	type key struct {
		path string
		kind extract.Kind
	}
	seen := make(map[key]struct{}, len(writers))
	deduped := writers[:0]
	for _, w := range writers {
		k := key{w.Path, w.Kind}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, w)
	}
	ix.logger.Debug("writers confirmed", "table", fqtn, "writers", len(deduped))
	return deduped
}

// ExpandBare resolves a bare table name to every indexed FQTN whose table
// part matches it, sorted. An empty result means the name is unknown to
// the corpus.
func (ix *Index) ExpandBare(bare string) []string {
	suffix := "." + strings.ToLower(strings.TrimSpace(bare))
	var out []string
	for name := range ix.writers {
		if strings.HasSuffix(name, suffix) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		ix.logger.Warn("bare table has no candidates in writer index", "table", bare)
		return nil
	}
	sort.Strings(out)
	ix.logger.Info("expanded bare table", "table", bare, "candidates", len(out))
	return out
}

// candidateFiles returns the set of corpus files whose lowered text
// contains fqtn on a word boundary.
func (ix *Index) candidateFiles(fqtn string) map[string]bool {
	pat := wordBoundaryPattern(fqtn)
	reader := ix.ex.Reader()
	out := make(map[string]bool)
	for _, path := range ix.files {
		text, ok := reader.ReadText(path)
		if !ok {
			continue
		}
		if pat.MatchString(strings.ToLower(text)) {
			out[path] = true
		}
	}
	return out
}

// rescan re-applies the write-side extraction to each candidate file and
// returns those that actually produce fqtn.
func (ix *Index) rescan(fqtn string, candidates map[string]bool) []extract.Writer {
	paths := make([]string, 0, len(candidates))
	for p := range candidates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var writers []extract.Writer
	for _, path := range paths {
		kind, ok := extract.KindForFile(path)
		if !ok {
			continue
		}
		for _, out := range ix.ex.WrittenTables(path) {
			if out == fqtn {
				writers = append(writers, extract.Writer{Path: path, Kind: kind})
				break
			}
		}
	}
	if len(writers) > 0 {
		ix.logger.Debug("writers recovered by rescan", "table", fqtn, "writers", len(writers))
	}
	return writers
}

// wordBoundaryPattern compiles a strict word-boundary match for a
// lower-cased FQTN. The dot is escaped so db.tbl never matches dbxtbl.
func wordBoundaryPattern(fqtn string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(fqtn) + `\b`)
}
