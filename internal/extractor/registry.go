package extractor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// BlockStyle decides where a declaration's body ends.
type BlockStyle int

const (
	// BlockNextDecl ends a chunk where the next declaration starts.
	BlockNextDecl BlockStyle = iota
	// BlockBraces ends a chunk at the brace closing its first opening brace.
	BlockBraces
	// BlockIndent ends a chunk before the first line indented no deeper
	// than the declaration.
	BlockIndent
)

// Declaration is a matched declaration site on a single line.
type Declaration struct {
	Name  string
	Class string
	Kind  string
}

// Matcher recognises a declaration on one line of (stripped) source.
type Matcher interface {
	Match(line string) (Declaration, bool)
}

// PatternMatcher is a regex-backed Matcher. The pattern must define a
// named group "name" and may define "class".
type PatternMatcher struct {
	kind     string
	re       *regexp.Regexp
	reject   *regexp.Regexp
	nameIdx  int
	classIdx int
}

// NewPatternMatcher compiles a declaration pattern for the given kind.
func NewPatternMatcher(kind, pattern string) (*PatternMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", kind, err)
	}
	nameIdx := re.SubexpIndex("name")
	if nameIdx < 0 {
		return nil, fmt.Errorf("%s pattern %q has no name group", kind, pattern)
	}
	return &PatternMatcher{
		kind:     kind,
		re:       re,
		nameIdx:  nameIdx,
		classIdx: re.SubexpIndex("class"),
	}, nil
}

// MustPattern is NewPatternMatcher for built-in patterns.
func MustPattern(kind, pattern string) *PatternMatcher {
	m, err := NewPatternMatcher(kind, pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Rejecting returns a copy of m that ignores lines matching reject.
func (m *PatternMatcher) Rejecting(reject string) *PatternMatcher {
	cp := *m
	cp.reject = regexp.MustCompile(reject)
	return &cp
}

func (m *PatternMatcher) Match(line string) (Declaration, bool) {
	if m.reject != nil && m.reject.MatchString(line) {
		return Declaration{}, false
	}
	sub := m.re.FindStringSubmatch(line)
	if sub == nil || sub[m.nameIdx] == "" {
		return Declaration{}, false
	}
	d := Declaration{Name: sub[m.nameIdx], Kind: m.kind}
	if m.classIdx >= 0 {
		d.Class = sub[m.classIdx]
	}
	return d, true
}

// FileParser handles a file type that is not line-oriented source, such
// as a form descriptor.
type FileParser func(p *Profile, path string, src []byte) []*CodeChunk

// Profile describes how to chunk and scan one language.
type Profile struct {
	Language   string
	Extensions []string
	// Matchers are tried in order; the first match wins for a line.
	Matchers []Matcher
	Block    BlockStyle
	// NestedMembers makes class declarations scope the declarations
	// inside their block.
	NestedMembers bool
	// Preamble emits code before the first declaration as a module chunk
	// named after the file stem.
	Preamble bool
	// ForwardDeclKeyword marks the end of a forward-declaration section.
	// Unqualified declarations above it are discarded.
	ForwardDeclKeyword string
	// BareIdentifiers enables parameterless call detection.
	BareIdentifiers bool
	// CaseInsensitive languages compare identifiers upper-cased.
	CaseInsensitive bool
	// Reserved holds keywords. They never name a declaration or a call.
	Reserved []string
	// Builtins are predeclared functions and type names. They may name a
	// user declaration; otherwise they are not reported as unresolved.
	Builtins []string
	// SkipTokens are library names treated like Builtins.
	SkipTokens []string

	LineComment       string
	BlockCommentOpen  string
	BlockCommentClose string
	StringDelims      []string

	// SpecialFiles maps an extension to a dedicated parser.
	SpecialFiles map[string]FileParser

	reserved map[string]bool
	builtin  map[string]bool
	stripRes []*regexp.Regexp
}

func (p *Profile) prepare() {
	p.reserved = make(map[string]bool, len(p.Reserved))
	for _, w := range p.Reserved {
		p.reserved[p.fold(w)] = true
	}
	p.builtin = make(map[string]bool, len(p.Builtins)+len(p.SkipTokens))
	for _, w := range append(append([]string(nil), p.Builtins...), p.SkipTokens...) {
		p.builtin[p.fold(w)] = true
	}
	p.stripRes = nil
	for _, d := range p.StringDelims {
		q := regexp.QuoteMeta(d)
		p.stripRes = append(p.stripRes, regexp.MustCompile(q+`(?:\\.|[^`+q+`\\\n])*`+q))
	}
}

func (p *Profile) fold(word string) string {
	if p.CaseInsensitive {
		return strings.ToUpper(word)
	}
	return word
}

// IsReserved reports whether word is a keyword. Case matters unless the
// language is case-insensitive.
func (p *Profile) IsReserved(word string) bool {
	return p.reserved[p.fold(word)]
}

// IsSkipped reports whether an identifier that resolves to no indexed
// function should be dropped rather than recorded as unresolved.
func (p *Profile) IsSkipped(word string) bool {
	w := p.fold(word)
	return p.reserved[w] || p.builtin[w]
}

// StripNonCode blanks comments and string literal contents while keeping
// the line structure intact.
func (p *Profile) StripNonCode(src string) string {
	if p.BlockCommentOpen != "" && p.BlockCommentClose != "" {
		src = stripBlockComments(src, p.BlockCommentOpen, p.BlockCommentClose)
	}
	for i, re := range p.stripRes {
		empty := p.StringDelims[i] + p.StringDelims[i]
		src = re.ReplaceAllLiteralString(src, empty)
	}
	if p.LineComment != "" {
		lines := strings.Split(src, "\n")
		for i, line := range lines {
			if idx := strings.Index(line, p.LineComment); idx >= 0 {
				lines[i] = line[:idx]
			}
		}
		src = strings.Join(lines, "\n")
	}
	return src
}

func stripBlockComments(src, open, close string) string {
	var b strings.Builder
	b.Grow(len(src))
	for {
		start := strings.Index(src, open)
		if start < 0 {
			b.WriteString(src)
			return b.String()
		}
		b.WriteString(src[:start])
		rest := src[start+len(open):]
		end := strings.Index(rest, close)
		if end < 0 {
			b.WriteString(strings.Repeat("\n", strings.Count(rest, "\n")))
			return b.String()
		}
		b.WriteString(strings.Repeat("\n", strings.Count(rest[:end], "\n")))
		src = rest[end+len(close):]
	}
}

// Registry maps file extensions to language profiles. It is read-only
// once built and safe for concurrent use.
type Registry struct {
	profiles map[string]*Profile
	byExt    map[string]*Profile
}

// NewRegistry builds a registry from profiles. Later profiles win on
// extension conflicts.
func NewRegistry(profiles ...*Profile) *Registry {
	r := &Registry{
		profiles: make(map[string]*Profile),
		byExt:    make(map[string]*Profile),
	}
	for _, p := range profiles {
		p.prepare()
		r.profiles[p.Language] = p
		for _, ext := range p.Extensions {
			r.byExt[strings.ToLower(ext)] = p
		}
		for ext := range p.SpecialFiles {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
	return r
}

// DefaultRegistry returns a registry with every built-in profile.
func DefaultRegistry() *Registry {
	return NewRegistry(builtinProfiles()...)
}

// Profile returns the profile registered for a language name.
func (r *Registry) Profile(language string) (*Profile, bool) {
	p, ok := r.profiles[language]
	return p, ok
}

// ForPath selects a profile by file extension.
func (r *Registry) ForPath(path string) (*Profile, bool) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// Extensions lists every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
