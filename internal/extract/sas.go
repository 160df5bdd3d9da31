package extract

import (
	"regexp"
	"strings"

	"github.com/TongWu/tabletracer/internal/table"
)

// SAS statement patterns. The token group deliberately accepts macro
// references; expansion and validation happen in normalizeIdentifier.
var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*\*.*?;\s*$`)

	reCreateTable = regexp.MustCompile(`(?i)\bcreate\s+table\s+([&A-Za-z0-9_.]+)`)
	reSQLInsert   = regexp.MustCompile(`(?i)\binsert\s+into\s+([&A-Za-z0-9_.]+)`)
	reFromClause  = regexp.MustCompile(`(?i)\bfrom\s+([&A-Za-z0-9_.]+)`)
	reJoinClause  = regexp.MustCompile(`(?i)\bjoin\s+([&A-Za-z0-9_.]+)`)
	reMergeStmt   = regexp.MustCompile(`(?i)\bmerge\s+([&A-Za-z0-9_.]+)`)
	reDataStmt    = regexp.MustCompile(`(?im)^\s*data\s+([^;]+);`)
	reSetStmt     = regexp.MustCompile(`(?im)^\s*set\s+([^;]+);`)
	reProcExecute = regexp.MustCompile(`(?i)\b(insert\s+into|update|delete\s+from)\s+([A-Za-z0-9_.]+)`)
	reOutOption   = regexp.MustCompile(`(?i)\bout\s*=\s*([&A-Za-z0-9_.]+)`)
	reBaseOption  = regexp.MustCompile(`(?i)\bbase\s*=\s*([&A-Za-z0-9_.]+)`)
	reDataOption  = regexp.MustCompile(`(?i)\bdata\s*=\s*([&A-Za-z0-9_.]+)`)
)

// AnalyzeSAS infers the tables a SAS script reads and writes. Comments and
// string literals are stripped first; %let assignments become an immutable
// macro snapshot used for identifier expansion; _INPUT/_OUTPUT/SYSLAST macro
// metadata augments the sets. Both results are sorted canonical names.
func AnalyzeSAS(text string) (reads, writes []string) {
	stripped := stripSASComments(text)
	env := ParseEnv(stripped)
	scan := stripStringLiterals(stripped)

	in, out := collectSASReferences(scan, env)
	enrichWithMacroIO(env, in, out)
	return in.sorted(), out.sorted()
}

func collectSASReferences(text string, env Env) (reads, writes set) {
	reads, writes = newSet(), newSet()

	for _, re := range []*regexp.Regexp{reCreateTable, reSQLInsert, reOutOption, reBaseOption} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			writes.add(normalizeIdentifier(m[1], env))
		}
	}
	for _, re := range []*regexp.Regexp{reFromClause, reJoinClause, reMergeStmt, reDataOption} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			reads.add(normalizeIdentifier(m[1], env))
		}
	}

	// DATA steps write their targets; SET statements read their sources.
	for _, m := range reDataStmt.FindAllStringSubmatch(text, -1) {
		for _, id := range identifiersFromClause(m[1], env) {
			writes.add(id)
		}
	}
	for _, loc := range reSetStmt.FindAllStringSubmatchIndex(text, -1) {
		// "update t; set col = ..." is SQL assignment, not a data-step SET.
		if strings.Contains(strings.ToLower(statementBefore(text, loc[0])), "update") {
			continue
		}
		clause := text[loc[2]:loc[3]]
		for _, id := range identifiersFromClause(clause, env) {
			reads.add(id)
		}
	}

	// Pass-through SQL inside connect-to blocks.
	for _, m := range reProcExecute.FindAllStringSubmatch(text, -1) {
		id := normalizeIdentifier(m[2], env)
		if id == "" {
			continue
		}
		verb := strings.ToLower(m[1])
		if strings.HasPrefix(verb, "insert") || strings.HasPrefix(verb, "update") {
			writes.add(id)
		} else {
			reads.add(id)
		}
	}
	return reads, writes
}

// statementBefore returns the text between the previous semicolon and pos.
func statementBefore(text string, pos int) string {
	if i := strings.LastIndexByte(text[:pos], ';'); i >= 0 {
		return text[i+1 : pos]
	}
	return text[:pos]
}

// enrichWithMacroIO adds tables named by _INPUT/_OUTPUT (and their numbered
// variants) and SYSLAST macro assignments.
func enrichWithMacroIO(env Env, reads, writes set) {
	isIOMacro := func(name, prefix string) bool {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		suffix := name[len(prefix):]
		if suffix == "" {
			return true
		}
		for _, r := range suffix {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}

	for _, name := range env.Names() {
		for _, value := range env.History(name) {
			id := normalizeIdentifier(value, env)
			if id == "" {
				continue
			}
			if name == "SYSLAST" || isIOMacro(name, "_INPUT") {
				reads.add(id)
			}
			if isIOMacro(name, "_OUTPUT") {
				writes.add(id)
			}
		}
	}
}

// normalizeIdentifier expands macros in a raw token and canonicalizes it.
// Returns "" when the token cannot be resolved to a table name.
func normalizeIdentifier(token string, env Env) string {
	cleaned := strings.TrimSpace(token)
	cleaned = strings.TrimRight(cleaned, ";,")
	if i := strings.IndexByte(cleaned, '/'); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}
	if i := strings.IndexByte(cleaned, '('); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}
	if cleaned == "" {
		return ""
	}

	expanded := env.Expand(cleaned)
	// A parenthesized section without '=' is a function call, not dataset
	// options; the token is not a table.
	if open := strings.IndexByte(expanded, '('); open >= 0 {
		inner := expanded[open+1:]
		if close := strings.IndexByte(inner, ')'); close >= 0 {
			inner = inner[:close]
		}
		if !strings.Contains(inner, "=") {
			return ""
		}
	}

	name, ok := table.Normalize(expanded)
	if !ok {
		return ""
	}
	return name
}

// identifiersFromClause tokenizes a DATA/SET clause and yields the table
// identifiers it names, skipping dataset options and option values.
func identifiersFromClause(clause string, env Env) []string {
	stripped := strings.TrimSpace(clause)
	if stripped == "" || strings.HasPrefix(stripped, "=") {
		return nil
	}

	var tokens []string
	var current strings.Builder
	flush := func() {
		if tok := strings.TrimSpace(current.String()); tok != "" {
			tokens = append(tokens, tok)
		}
		current.Reset()
	}

	depth := 0
loop:
	for _, ch := range clause {
		switch {
		case ch == '(':
			if depth == 0 {
				flush()
			}
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// Inside dataset options: ignore.
		case ch == '/' || ch == ';' || ch == '=':
			flush()
			break loop
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	var out []string
	for _, tok := range tokens {
		if table.IsReserved(tok) {
			continue
		}
		if id := normalizeIdentifier(tok, env); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// stripSASComments removes block comments and standalone "* remark;" lines.
func stripSASComments(text string) string {
	withoutBlock := reBlockComment.ReplaceAllString(text, " ")
	return reLineComment.ReplaceAllString(withoutBlock, "")
}

// stripStringLiterals blanks quoted literals so their contents cannot match
// statement patterns. Doubled quotes inside a literal are escapes; an
// unterminated literal consumes the rest of the file.
func stripStringLiterals(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		ch := text[i]
		if ch != '\'' && ch != '"' {
			b.WriteByte(ch)
			i++
			continue
		}
		quote := ch
		end := i + 1
		for end < len(text) {
			if text[end] == quote {
				if end+1 < len(text) && text[end+1] == quote {
					end += 2
					continue
				}
				end++
				break
			}
			end++
		}
		for range end - i {
			b.WriteByte(' ')
		}
		i = end
	}
	return b.String()
}
