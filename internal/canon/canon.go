// Package canon maps function names from both graphs onto one comparable
// form.
package canon

import (
	"path"
	"strings"
)

// AliasTable resolves alternative spellings of a function to one canonical
// name. A nil table resolves nothing.
type AliasTable struct {
	byAlias map[string]string
}

// NewAliasTable builds a table from canonical name → aliases.
func NewAliasTable(groups map[string][]string) *AliasTable {
	t := &AliasTable{byAlias: make(map[string]string)}
	for canonical, aliases := range groups {
		c := strings.ToUpper(strings.TrimSpace(canonical))
		if c == "" {
			continue
		}
		t.byAlias[c] = c
		for _, a := range aliases {
			if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
				t.byAlias[a] = c
			}
		}
	}
	return t
}

// Len returns the number of known spellings, canonical names included.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byAlias)
}

func (t *AliasTable) resolve(upper string) (string, bool) {
	if t == nil {
		return "", false
	}
	c, ok := t.byAlias[upper]
	return c, ok
}

// Name trims, strips any qualifier (A.B.c → c), resolves aliases and
// upper-cases. An alias registered for the qualified spelling wins over
// one for the bare name.
func (t *AliasTable) Name(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	upper = strings.TrimSuffix(upper, "()")
	if c, ok := t.resolve(upper); ok {
		return c
	}
	bare := Bare(upper)
	if c, ok := t.resolve(bare); ok {
		return c
	}
	return bare
}

// Name canonicalizes without aliases.
func Name(name string) string {
	return (*AliasTable)(nil).Name(name)
}

// Bare strips a leading qualifier, keeping the original case.
func Bare(name string) string {
	s := strings.TrimSpace(name)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// Qualifier returns the part before the last '.', or "".
func Qualifier(name string) string {
	s := strings.TrimSpace(name)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return ""
}

// EdgeKey is a canonical caller→callee pair.
type EdgeKey struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

func (k EdgeKey) String() string {
	return k.Caller + " -> " + k.Callee
}

// Edge canonicalizes both ends of a call.
func (t *AliasTable) Edge(caller, callee string) EdgeKey {
	return EdgeKey{Caller: t.Name(caller), Callee: t.Name(callee)}
}

// File reduces a path from either side to its upper-cased base name so
// absolute paths from a foreign machine compare with relative index paths.
func File(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return ""
	}
	return strings.ToUpper(path.Base(p))
}

// Segments splits a slash or backslash path into its non-empty segments.
func Segments(p string) []string {
	p = strings.ReplaceAll(p, `\`, "/")
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
