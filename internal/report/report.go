// Package report renders shaped lineage rows to CSV, JSON, and terminal
// tables, and reads previously emitted CSV back for re-processing.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/TongWu/tabletracer/internal/lineage"
)

const (
	targetColumn = "Target Table"
	sourceColumn = "Source Table"
)

var reLayerColumn = regexp.MustCompile(`^Layer\s+(\d+)$`)

// Render writes rows to w in the requested format: "csv", "json", or the
// default terminal table.
func Render(w io.Writer, format string, rows []lineage.Row) error {
	switch format {
	case "json":
		return RenderJSON(w, rows)
	case "csv":
		return WriteCSV(w, rows)
	default:
		return RenderTable(w, rows)
	}
}

// WriteCSV emits rows with the dynamic column schema. The widest path in
// the row set determines how many Layer columns appear; the header is
// written even when there are no rows.
func WriteCSV(w io.Writer, rows []lineage.Row) error {
	width := lineage.MaxLayers(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(lineage.Columns(width)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values(width)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes rows to path, creating parent directories as needed.
func SaveCSV(path string, rows []lineage.Row) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := WriteCSV(f, rows); err != nil {
		return err
	}
	return f.Close()
}

// ReadCSV parses a lineage CSV produced by WriteCSV (or a compatible
// file). Layer columns are recognized by header name and ordered
// numerically regardless of their position in the file.
func ReadCSV(r io.Reader) ([]lineage.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("lineage csv is empty")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	targetIdx, sourceIdx := -1, -1
	type layerCol struct {
		n   int
		idx int
	}
	var layers []layerCol
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == targetColumn:
			targetIdx = i
		case name == sourceColumn:
			sourceIdx = i
		default:
			if m := reLayerColumn.FindStringSubmatch(name); m != nil {
				n, _ := strconv.Atoi(m[1])
				layers = append(layers, layerCol{n: n, idx: i})
			}
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("missing required column: %s", targetColumn)
	}
	if sourceIdx < 0 {
		return nil, fmt.Errorf("missing required column: %s", sourceColumn)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].n < layers[j].n })

	var rows []lineage.Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(idx int) string {
			if idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}
		row := lineage.Row{Target: field(targetIdx), Source: field(sourceIdx)}
		for _, lc := range layers {
			if v := field(lc.idx); v != "" {
				row.Layers = append(row.Layers, v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCSV reads a lineage CSV from disk.
func LoadCSV(path string) ([]lineage.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

// RenderTable prints rows as a terminal table with a row-count footer.
func RenderTable(w io.Writer, rows []lineage.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	width := lineage.MaxLayers(rows)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	cols := lineage.Columns(width)
	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		values := r.Values(width)
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = v
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

// jsonRow is the JSON shape of one lineage row.
type jsonRow struct {
	Target string   `json:"target"`
	Layers []string `json:"layers,omitempty"`
	Source string   `json:"source"`
}

// RenderJSON emits rows as an indented JSON array.
func RenderJSON(w io.Writer, rows []lineage.Row) error {
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, jsonRow{Target: r.Target, Layers: r.Layers, Source: r.Source})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
