package lineage

import "strings"

// Expand promotes every intermediate layer table to a target row of its
// own, so each layer's remaining dependency chain becomes explicit.
// Layers that already exist as targets elsewhere in the input are not
// promoted again; sources are never promoted. Output emits every
// original target group first, in first-appearance order, then the
// promoted-only groups, and drops exact duplicate rows.
func Expand(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}

	baseTargets := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if t := strings.TrimSpace(r.Target); t != "" {
			baseTargets[t] = struct{}{}
		}
	}

	grouped := make(map[string][]Row)
	var baseOrder, promotedOrder []string
	appendGroup := func(target string, row Row) {
		if _, ok := grouped[target]; !ok {
			if _, base := baseTargets[target]; base {
				baseOrder = append(baseOrder, target)
			} else {
				promotedOrder = append(promotedOrder, target)
			}
		}
		grouped[target] = append(grouped[target], row)
	}

	for _, original := range rows {
		target := strings.TrimSpace(original.Target)
		if target == "" {
			continue
		}
		appendGroup(target, original)

		for idx, layer := range original.Layers {
			layer = strings.TrimSpace(layer)
			if layer == "" {
				continue
			}
			if _, exists := baseTargets[layer]; exists {
				continue
			}
			promoted := Row{Target: layer, Source: strings.TrimSpace(original.Source)}
			for _, tail := range original.Layers[idx+1:] {
				if tail = strings.TrimSpace(tail); tail != "" {
					promoted.Layers = append(promoted.Layers, tail)
				}
			}
			appendGroup(layer, promoted)
		}
	}

	var expanded []Row
	seen := make(map[string]struct{})
	for _, target := range append(baseOrder, promotedOrder...) {
		for _, row := range grouped[target] {
			sig := row.signature()
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			expanded = append(expanded, row)
		}
	}
	return expanded
}

// signature is the row's identity for duplicate elimination.
func (r Row) signature() string {
	var b strings.Builder
	b.WriteString(r.Target)
	for _, l := range r.Layers {
		b.WriteByte('\x1f')
		b.WriteString(l)
	}
	b.WriteByte('\x1e')
	b.WriteString(r.Source)
	return b.String()
}
