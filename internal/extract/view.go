package extract

import (
	"regexp"
	"strings"

	"github.com/TongWu/tabletracer/internal/table"
)

var (
	reCreateView = regexp.MustCompile(`\bcreate\s+(?:or\s+replace\s+)?view\s+([a-z0-9_]+(?:\.[a-z0-9_]+)?)\b`)
	reFromJoin   = regexp.MustCompile(`\b(?:from|join)\s+([a-z0-9_]+)\.([a-z0-9_]+)\b`)
)

// viewName returns the fully-qualified target of the first CREATE VIEW
// statement. Unqualified view names are reported as not found: without a
// schema they cannot be keyed into the writer index.
func viewName(text string) (string, bool) {
	m := reCreateView.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	if !table.IsQualified(m[1]) {
		return "", false
	}
	return m[1], true
}

// viewReads returns the qualified tables referenced in FROM/JOIN clauses.
// A view selecting from its own name is reported as-is; the enumerator's
// cycle cutting handles the resulting self-edge.
func viewReads(text string) []string {
	out := newSet()
	for _, m := range reFromJoin.FindAllStringSubmatch(strings.ToLower(text), -1) {
		out.add(table.Qualified(m[1], m[2]))
	}
	return out.sorted()
}
