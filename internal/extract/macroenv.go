package extract

import (
	"regexp"
	"strings"
)

// Env is an immutable snapshot of SAS macro-variable assignments. Extraction
// builds one snapshot per script and passes it down explicitly, so the same
// text always expands the same way regardless of evaluation order elsewhere.
type Env struct {
	values map[string]string
	// history keeps every value each macro was assigned, in source order.
	// _INPUTn/_OUTPUTn metadata uses it: a reassigned macro still names all
	// of its earlier tables.
	history map[string][]string
}

var (
	reMacroAssign = regexp.MustCompile(`(?i)%let\s+([a-z0-9_]+)\s*=\s*([^;]*);`)
	reMacroRef    = regexp.MustCompile(`&([A-Za-z0-9_]+)`)
	reWrapperFunc = regexp.MustCompile(`(?i)^%[a-z0-9_]+\((.*)\)$`)
)

// maxExpandDepth caps recursive &macro expansion; self-referencing macro
// definitions must not loop.
const maxExpandDepth = 10

// ParseEnv scans text for %let assignments and returns the resulting
// snapshot. Later assignments shadow earlier ones for expansion, but all
// values are retained in the history.
func ParseEnv(text string) Env {
	env := Env{
		values:  make(map[string]string),
		history: make(map[string][]string),
	}
	for _, m := range reMacroAssign.FindAllStringSubmatch(text, -1) {
		name := strings.ToUpper(m[1])
		value := cleanMacroValue(m[2])
		env.values[name] = value
		env.history[name] = append(env.history[name], value)
	}
	return env
}

// cleanMacroValue strips quoting and %str()/%upcase()-style wrappers from a
// macro assignment's right-hand side.
func cleanMacroValue(raw string) string {
	v := strings.TrimSpace(raw)
	for len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	for {
		m := reWrapperFunc.FindStringSubmatch(v)
		if m == nil {
			break
		}
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			break
		}
		v = inner
	}
	return v
}

// Expand resolves &MACRO references in token against the snapshot. The SAS
// double dot (&LIB..TABLE) collapses to a single literal dot. Unknown macros
// are left in place so the caller can reject the token as unresolved.
func (e Env) Expand(token string) string {
	result := token
	for range maxExpandDepth {
		replaced := false
		result = reMacroRef.ReplaceAllStringFunc(result, func(ref string) string {
			name := strings.ToUpper(ref[1:])
			if v, ok := e.values[name]; ok {
				replaced = true
				return v
			}
			return ref
		})
		result = strings.ReplaceAll(result, "..", ".")
		if !replaced {
			break
		}
	}
	return result
}

// History returns every value assigned to the named macro, in source order.
func (e Env) History(name string) []string {
	return e.history[strings.ToUpper(name)]
}

// Names returns the macro names with at least one recorded assignment.
func (e Env) Names() []string {
	out := make([]string, 0, len(e.history))
	for name := range e.history {
		out = append(out, name)
	}
	return out
}
