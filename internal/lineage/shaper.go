package lineage

import "fmt"

// Row is the shaped form of one lineage path. Layers holds the
// intermediate tables between Target and Source, outermost first; it is
// empty when the target reads the source directly or is itself a source.
type Row struct {
	Target string
	Layers []string
	Source string
}

// Shape converts one target's paths into rows. A length-1 path marks the
// target as its own source: Target and Source coincide and no layer is
// set. For longer paths, every node except the first and last becomes a
// layer.
func Shape(target string, paths [][]string) []Row {
	rows := make([]Row, 0, len(paths))
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		if len(p) == 1 {
			rows = append(rows, Row{Target: target, Source: p[0]})
			continue
		}
		row := Row{Target: target, Source: p[len(p)-1]}
		if inner := p[1 : len(p)-1]; len(inner) > 0 {
			row.Layers = append(row.Layers, inner...)
		}
		rows = append(rows, row)
	}
	return rows
}

// MaxLayers returns the widest layer count across rows. It determines the
// column schema of the whole run: every row is emitted against the widest
// path seen anywhere in it.
func MaxLayers(rows []Row) int {
	max := 0
	for _, r := range rows {
		if len(r.Layers) > max {
			max = len(r.Layers)
		}
	}
	return max
}

// Columns returns the dynamic column schema for a row set with the given
// layer width: Target Table, Layer 1..width, Source Table.
func Columns(width int) []string {
	cols := make([]string, 0, width+2)
	cols = append(cols, "Target Table")
	for i := 1; i <= width; i++ {
		cols = append(cols, fmt.Sprintf("Layer %d", i))
	}
	cols = append(cols, "Source Table")
	return cols
}

// Values renders the row against a schema of the given layer width.
// Missing layers are left empty, not zero-filled with placeholders.
func (r Row) Values(width int) []string {
	out := make([]string, 0, width+2)
	out = append(out, r.Target)
	for i := 0; i < width; i++ {
		if i < len(r.Layers) {
			out = append(out, r.Layers[i])
		} else {
			out = append(out, "")
		}
	}
	out = append(out, r.Source)
	return out
}
