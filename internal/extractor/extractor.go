package extractor

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultMaxChunkLines caps chunk size before head/tail truncation.
const DefaultMaxChunkLines = 500

// Extractor splits source files into function-level chunks using the
// language profiles of a Registry.
type Extractor struct {
	registry      *Registry
	maxChunkLines int
}

// NewExtractor creates an extractor. A nil registry means DefaultRegistry.
func NewExtractor(reg *Registry, maxChunkLines int) *Extractor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if maxChunkLines <= 0 {
		maxChunkLines = DefaultMaxChunkLines
	}
	return &Extractor{registry: reg, maxChunkLines: maxChunkLines}
}

func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Supports reports whether a profile is registered for the file.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.registry.ForPath(path)
	return ok
}

// ExtractFromFile reads the file at path and collects its chunks. Chunks
// record relPath as their file path.
func (e *Extractor) ExtractFromFile(path, relPath string) ([]*CodeChunk, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return slices.Collect(e.Chunks(relPath, src)), nil
}

// Chunks yields the chunks of one file in source order. The sequence is
// finite and can be ranged over more than once. Files without a profile
// yield nothing.
func (e *Extractor) Chunks(path string, src []byte) iter.Seq[*CodeChunk] {
	return func(yield func(*CodeChunk) bool) {
		p, ok := e.registry.ForPath(path)
		if !ok {
			return
		}
		if parse, ok := p.SpecialFiles[strings.ToLower(filepath.Ext(path))]; ok {
			for _, c := range parse(p, path, src) {
				c.ContentHash = ContentHash(c.Content)
				c.Content, c.Truncated = Truncate(c.Content, e.maxChunkLines)
				if !yield(finish(c)) {
					return
				}
			}
			return
		}

		text := strings.ReplaceAll(string(src), "\r\n", "\n")
		raw := splitLines(text)
		code := splitLines(p.StripNonCode(text))
		sites := declarationSites(p, code)

		if p.Preamble {
			if c := e.preamble(p, path, raw, sites); c != nil && !yield(c) {
				return
			}
		}
		for i, s := range sites {
			next := len(raw)
			if i+1 < len(sites) {
				next = sites[i+1].line
			}
			end := next - 1
			if s.end >= s.line && s.end < end {
				end = s.end
			}
			end = trimTrailingBlank(raw, s.line, end)
			if !yield(e.newChunk(p, path, s.decl, raw, s.line, end)) {
				return
			}
		}
	}
}

type site struct {
	line int
	end  int
	decl Declaration
}

func declarationSites(p *Profile, code []string) []site {
	var sites []site
	for i, line := range code {
		for _, m := range p.Matchers {
			d, ok := m.Match(line)
			if !ok || p.IsReserved(d.Name) {
				continue
			}
			sites = append(sites, site{line: i, end: blockEnd(p, code, i), decl: d})
			break
		}
	}

	if kw := p.ForwardDeclKeyword; kw != "" {
		if impl := keywordLine(code, kw); impl >= 0 {
			kept := sites[:0]
			for _, s := range sites {
				if s.line > impl || s.decl.Class != "" {
					kept = append(kept, s)
				}
			}
			sites = kept
		}
	}

	if p.NestedMembers {
		for i := range sites {
			if sites[i].decl.Kind == KindClass || sites[i].decl.Class != "" {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				if sites[j].decl.Kind == KindClass && sites[j].end >= sites[i].line {
					sites[i].decl.Class = sites[j].decl.Name
					break
				}
			}
		}
	}
	return sites
}

func keywordLine(code []string, kw string) int {
	for i, line := range code {
		if strings.EqualFold(strings.TrimSpace(line), kw) {
			return i
		}
	}
	return -1
}

// preamble builds the module chunk for code above the first declaration.
func (e *Extractor) preamble(p *Profile, path string, raw []string, sites []site) *CodeChunk {
	first := len(raw)
	if len(sites) > 0 {
		first = sites[0].line
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, s := range sites {
		if strings.EqualFold(s.decl.Name, stem) {
			return nil
		}
	}
	start := 0
	for start < first && strings.TrimSpace(raw[start]) == "" {
		start++
	}
	if start >= first {
		return nil
	}
	end := trimTrailingBlank(raw, start, first-1)
	return e.newChunk(p, path, Declaration{Name: stem, Kind: KindModule}, raw, start, end)
}

func (e *Extractor) newChunk(p *Profile, path string, d Declaration, raw []string, start, end int) *CodeChunk {
	content := strings.Join(raw[start:end+1], "\n")
	c := &CodeChunk{
		Name:        d.Name,
		Class:       d.Class,
		Filepath:    path,
		Language:    p.Language,
		Kind:        d.Kind,
		StartLine:   start + 1,
		EndLine:     end + 1,
		ContentHash: ContentHash(content),
	}
	c.Content, c.Truncated = Truncate(content, e.maxChunkLines)
	return finish(c)
}

func finish(c *CodeChunk) *CodeChunk {
	c.ID = BuildChunkID(c)
	if c.ContentHash == "" {
		c.ContentHash = ContentHash(c.Content)
	}
	return c
}

func blockEnd(p *Profile, code []string, start int) int {
	switch p.Block {
	case BlockBraces:
		return braceEnd(code, start)
	case BlockIndent:
		return indentEnd(code, start)
	default:
		return -1
	}
}

// braceEnd finds the line closing the first brace opened at or after
// start. Declarations without a body within a few lines return -1.
func braceEnd(code []string, start int) int {
	depth := 0
	opened := false
	for i := start; i < len(code); i++ {
		for _, r := range code[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return i
				}
			}
		}
		if !opened && (strings.HasSuffix(strings.TrimSpace(code[i]), ";") || i-start >= 3) {
			return -1
		}
	}
	return -1
}

func indentEnd(code []string, start int) int {
	base := indentWidth(code[start])
	last := start
	for i := start + 1; i < len(code); i++ {
		trimmed := strings.TrimSpace(code[i])
		if trimmed == "" {
			continue
		}
		// closing bracket of a multi-line signature
		if indentWidth(code[i]) <= base && !strings.HasPrefix(trimmed, ")") {
			break
		}
		last = i
	}
	return last
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func trimTrailingBlank(lines []string, start, end int) int {
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	return end
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
