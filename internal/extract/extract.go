// Package extract implements the per-dialect heuristics that infer which
// tables a pipeline script writes and reads. Extraction is best effort:
// it never executes scripts, and tokens that cannot be resolved to a table
// name are dropped rather than propagated.
package extract

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TongWu/tabletracer/internal/corpus"
)

// Kind selects the extraction rules applied to a writer's source text.
type Kind string

const (
	// KindSpark covers .py Spark ETL jobs (header sections, spark.table,
	// insertInto).
	KindSpark Kind = "spark"
	// KindView covers .sql view definitions (CREATE VIEW, FROM/JOIN).
	KindView Kind = "view"
	// KindSAS covers .sas DI jobs (macro variables, proc sql, data steps).
	KindSAS Kind = "sas"
)

// Writer references a script believed to produce a table.
type Writer struct {
	Path string
	Kind Kind
}

// KindForFile maps a file extension to its extraction kind.
func KindForFile(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return KindSpark, true
	case ".sql":
		return KindView, true
	case ".sas":
		return KindSAS, true
	}
	return "", false
}

// Extractor binds the dialect heuristics to a shared corpus reader.
type Extractor struct {
	reader *corpus.Reader
	logger *slog.Logger
}

// New returns an Extractor reading source text through reader.
func New(reader *corpus.Reader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{reader: reader, logger: logger}
}

// Reader exposes the shared corpus reader so callers can scan raw text
// through the same cache the extractor uses.
func (e *Extractor) Reader() *corpus.Reader { return e.reader }

// WrittenTables returns the canonical tables the file at path declares or
// produces, according to its dialect. Unreadable files yield nil.
func (e *Extractor) WrittenTables(path string) []string {
	kind, ok := KindForFile(path)
	if !ok {
		return nil
	}
	text, ok := e.reader.ReadText(path)
	if !ok {
		return nil
	}
	return writtenTablesIn(text, kind)
}

// ReadTables returns the canonical upstream tables the writer's script reads,
// using the extraction rule for the writer's kind.
func (e *Extractor) ReadTables(w Writer) []string {
	text, ok := e.reader.ReadText(w.Path)
	if !ok {
		return nil
	}
	switch w.Kind {
	case KindSpark:
		return sparkReads(text)
	case KindView:
		return viewReads(text)
	case KindSAS:
		// SAS jobs read back their own work datasets; only the pure
		// inputs are upstream tables.
		reads, writes := AnalyzeSAS(text)
		written := newSet()
		written.addAll(writes)
		var inputs []string
		for _, r := range reads {
			if !written.has(r) {
				inputs = append(inputs, r)
			}
		}
		return inputs
	}
	return nil
}

// ScriptIO summarizes one script's table usage. Intermediates are tables the
// script both produces and consumes; Inputs and Outputs are the pure read and
// write sets with intermediates removed.
type ScriptIO struct {
	Path          string
	Inputs        []string
	Intermediates []string
	Outputs       []string
}

// AnalyzeFile classifies every table the file references as input,
// intermediate, or output. Returns false for unreadable or unrecognized
// files.
func (e *Extractor) AnalyzeFile(path string) (ScriptIO, bool) {
	kind, ok := KindForFile(path)
	if !ok {
		return ScriptIO{}, false
	}
	text, ok := e.reader.ReadText(path)
	if !ok {
		return ScriptIO{}, false
	}

	var reads, writes []string
	switch kind {
	case KindSpark:
		reads = sparkReads(text)
		writes = writtenTablesIn(text, KindSpark)
	case KindView:
		reads = viewReads(text)
		writes = writtenTablesIn(text, KindView)
	case KindSAS:
		reads, writes = AnalyzeSAS(text)
	}

	readSet, writeSet := newSet(), newSet()
	readSet.addAll(reads)
	writeSet.addAll(writes)

	io := ScriptIO{Path: path}
	both := newSet()
	for name := range readSet {
		if writeSet.has(name) {
			both.add(name)
		}
	}
	for name := range readSet {
		if !both.has(name) {
			io.Inputs = append(io.Inputs, name)
		}
	}
	for name := range writeSet {
		if !both.has(name) {
			io.Outputs = append(io.Outputs, name)
		}
	}
	io.Intermediates = both.sorted()
	sort.Strings(io.Inputs)
	sort.Strings(io.Outputs)
	return io, true
}

// writtenTablesIn applies the write-side rule for kind to raw source text.
func writtenTablesIn(text string, kind Kind) []string {
	switch kind {
	case KindSpark:
		out := newSet()
		out.addAll(outputHeaderTables(text))
		out.addAll(insertIntoTargets(text))
		return out.sorted()
	case KindView:
		if name, ok := viewName(text); ok {
			return []string{name}
		}
		return nil
	case KindSAS:
		_, writes := AnalyzeSAS(text)
		return writes
	}
	return nil
}

// set is a small string-set helper used throughout the extractors.
type set map[string]struct{}

func newSet() set { return make(set) }

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
