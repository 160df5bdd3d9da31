// Package table canonicalizes table references extracted from pipeline
// source text. Every comparison, set membership check, and index key in the
// tracer goes through Normalize first so that DB.Tbl and db.tbl resolve to
// the same graph node.
package table

import (
	"regexp"
	"strings"
)

var (
	reQualified = regexp.MustCompile(`^([A-Za-z0-9_]+)\.([A-Za-z0-9_]+)$`)
	reBare      = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	reNumeric   = regexp.MustCompile(`^[0-9]+$`)
)

// reservedWords are tokens that the heuristics frequently mistake for table
// names: SQL/SAS keywords, statement options, and common aliases.
var reservedWords = map[string]struct{}{
	"a": {}, "b": {}, "by": {}, "case": {}, "connect": {}, "connection": {},
	"create": {}, "data": {}, "delete": {}, "do": {}, "else": {}, "end": {},
	"eof": {}, "false": {}, "format": {}, "from": {}, "group": {}, "hadoop": {},
	"having": {}, "if": {}, "in": {}, "index": {}, "inner": {}, "input": {},
	"into": {}, "join": {}, "keep": {}, "label": {}, "left": {}, "length": {},
	"libname": {}, "missing": {}, "name": {}, "noprint": {}, "not": {},
	"null": {}, "on": {}, "options": {}, "or": {}, "order": {}, "out": {},
	"outer": {}, "output": {}, "proc": {}, "put": {}, "quit": {},
	"regexp_replace": {}, "rename": {},
	"right": {}, "run": {}, "select": {}, "set": {}, "table": {}, "then": {},
	"to": {}, "true": {}, "type": {}, "update": {}, "values": {}, "view": {},
	"where": {}, "while": {}, "with": {}, "work": {},
}

// Normalize converts a raw identifier token into a canonical table name.
// A qualified token yields "schema.table"; a bare token is kept as-is and is
// never defaulted to a schema. The boolean reports whether the token could be
// confidently resolved; callers must drop the token when it is false.
func Normalize(token string) (string, bool) {
	cleaned := strings.TrimSpace(token)
	cleaned = strings.TrimRight(cleaned, ";,")

	// Dataset options such as "(drop=...)" or "/ view=..." are not part of
	// the identifier.
	if i := strings.IndexByte(cleaned, '('); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.IndexByte(cleaned, '/'); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = strings.Trim(strings.TrimSpace(cleaned), `'"`)
	cleaned = strings.TrimRight(cleaned, ".")

	if cleaned == "" {
		return "", false
	}
	// Unresolved macro/placeholder syntax means the name is dynamic.
	if strings.ContainsAny(cleaned, "&${}") {
		return "", false
	}

	lowered := strings.ToLower(cleaned)

	if m := reQualified.FindStringSubmatch(lowered); m != nil {
		return m[1] + "." + m[2], true
	}
	if !reBare.MatchString(lowered) {
		return "", false
	}
	if strings.EqualFold(cleaned, "_null_") {
		return "", false
	}
	if reNumeric.MatchString(lowered) {
		return "", false
	}
	if len(lowered) == 1 {
		return "", false
	}
	if _, ok := reservedWords[lowered]; ok {
		return "", false
	}
	return lowered, true
}

// IsQualified reports whether a canonical name carries a schema qualifier.
func IsQualified(name string) bool {
	return strings.Contains(name, ".")
}

// Split returns the schema and bare table parts of a canonical name.
// The schema is empty for unqualified names.
func Split(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Qualified builds a canonical "schema.table" name from its parts.
func Qualified(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

// IsReserved reports whether the lower-cased token is a reserved word the
// extractors must not treat as a table name.
func IsReserved(token string) bool {
	_, ok := reservedWords[strings.ToLower(token)]
	return ok
}
