package extract

import (
	"regexp"
	"strings"

	"github.com/TongWu/tabletracer/internal/table"
)

var (
	reSparkTable = regexp.MustCompile(`spark\.table\(\s*['"]([a-z0-9_]+)\.([a-z0-9_]+)['"]\s*\)`)
	reInsertInto = regexp.MustCompile(`\.insertinto\(\s*['"]([a-z0-9_]+)\.([a-z0-9_]+)['"]\s*[,)]`)

	reFQTNInline     = regexp.MustCompile(`\b[a-z0-9_]+\.[a-z0-9_]+`)
	reCommentLine    = regexp.MustCompile(`^\s*(#|//|/\*|\*|--)`)
	reBannerLine     = regexp.MustCompile(`^\s*#{5,}\s*$`)
	reLeadingClutter = regexp.MustCompile(`^[\s#/\*\-\|>]+`)
	reOutputHeader   = regexp.MustCompile(`^output\s+tables?\b`)
	reSectionLabel   = regexp.MustCompile(`^[a-z][a-z0-9 _/\-()]*\s*[:：\-\x{2013}\x{2014}]\s*$`)
	reSectionWord    = regexp.MustCompile(`^(input|job|jobs|user|used|usage|purpose|revision|revisions|history|company|author|date|data|datastage|sas|view)\b`)
)

// fqtnBoundary characters are the only ones allowed immediately after an
// inline db.tbl token; anything else (a second dot, a quote) means the match
// is part of a longer expression and is discarded.
const fqtnBoundary = " \t,;)]#-"

// sparkReads returns the FQTNs referenced via spark.table() calls.
func sparkReads(text string) []string {
	out := newSet()
	for _, m := range reSparkTable.FindAllStringSubmatch(strings.ToLower(text), -1) {
		out.add(table.Qualified(m[1], m[2]))
	}
	return out.sorted()
}

// insertIntoTargets returns the FQTNs written through DataFrameWriter
// insertInto calls.
func insertIntoTargets(text string) []string {
	out := newSet()
	for _, m := range reInsertInto.FindAllStringSubmatch(strings.ToLower(text), -1) {
		out.add(table.Qualified(m[1], m[2]))
	}
	return out.sorted()
}

// outputHeaderTables parses every "Output table(s):" section in the file
// header. A section only spans the contiguous comment block after its header
// line: real code or another header-like label ends it. This keeps shared
// banner templates from leaking unrelated tables into the write set.
func outputHeaderTables(text string) []string {
	out := newSet()
	rawLines := strings.Split(text, "\n")
	normLines := make([]string, len(rawLines))
	for i, ln := range rawLines {
		normLines[i] = normalizeHeaderLine(ln)
	}

	i := 0
	for i < len(normLines) {
		if !reOutputHeader.MatchString(normLines[i]) {
			i++
			continue
		}
		i++
		for i < len(normLines) {
			norm, raw := normLines[i], rawLines[i]
			if !isCommentOrBlank(raw) {
				break
			}
			if isSectionBreak(norm) && !reOutputHeader.MatchString(norm) {
				break
			}
			for _, fq := range inlineFQTNs(norm) {
				out.add(fq)
			}
			i++
		}
	}
	return out.sorted()
}

// inlineFQTNs extracts db.tbl tokens from a normalized line, demanding a
// strict right boundary after the table part.
func inlineFQTNs(line string) []string {
	var out []string
	for _, loc := range reFQTNInline.FindAllStringIndex(line, -1) {
		end := loc[1]
		if end < len(line) && !strings.ContainsRune(fqtnBoundary, rune(line[end])) {
			continue
		}
		out = append(out, line[loc[0]:end])
	}
	return out
}

// normalizeHeaderLine lower-cases a line and strips BOM, exotic spaces, and
// leading comment decoration so header labels compare uniformly.
func normalizeHeaderLine(s string) string {
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\u200b", "")
	s = strings.TrimRight(strings.ToLower(s), " \t\r")
	return reLeadingClutter.ReplaceAllString(s, "")
}

func isCommentOrBlank(raw string) bool {
	if strings.TrimSpace(strings.TrimRight(raw, "\r")) == "" {
		return true
	}
	raw = strings.TrimRight(raw, "\r")
	return reCommentLine.MatchString(raw) || reBannerLine.MatchString(raw)
}

func isSectionBreak(norm string) bool {
	if reBannerLine.MatchString(norm) {
		return true
	}
	if reSectionWord.MatchString(norm) {
		return true
	}
	return reSectionLabel.MatchString(norm)
}
