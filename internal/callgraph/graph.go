package callgraph

import (
	"path/filepath"
	"sort"
	"strings"

	"trustgraph/internal/extractor"
)

// Edge is a directed static call edge between two indexed functions.
type Edge struct {
	Caller     extractor.Key `json:"caller"`
	Callee     extractor.Key `json:"callee"`
	Confidence float64       `json:"confidence"`
	Method     string        `json:"method"`
	// Order is the rank of the callee's first occurrence in the caller.
	Order int `json:"order"`
}

// Unresolved is an identifier used like a call that matched no function.
type Unresolved struct {
	Caller extractor.Key `json:"caller"`
	Name   string        `json:"name"`
}

// Result is the static call graph of a codebase.
type Result struct {
	Edges      []Edge
	Unresolved []Unresolved
}

// node groups every chunk sharing one (name, file) key. Overloads and
// repeated declarations are scanned together.
type node struct {
	key    extractor.Key
	chunks []*extractor.CodeChunk
}

func (n *node) first() *extractor.CodeChunk {
	return n.chunks[0]
}

// nameIndex maps upper-cased names to the nodes declaring them.
type nameIndex struct {
	nodes  []*node
	byName map[string][]*node
	forms  map[string]bool
}

func newNameIndex(chunks []*extractor.CodeChunk) *nameIndex {
	idx := &nameIndex{
		byName: make(map[string][]*node),
		forms:  make(map[string]bool),
	}
	byKey := make(map[extractor.Key]*node)
	for _, c := range chunks {
		if c == nil {
			continue
		}
		n, ok := byKey[c.Key()]
		if !ok {
			n = &node{key: c.Key()}
			byKey[c.Key()] = n
			idx.nodes = append(idx.nodes, n)
			name := strings.ToUpper(c.Name)
			idx.byName[name] = append(idx.byName[name], n)
		}
		n.chunks = append(n.chunks, c)
		if c.IsForm() {
			idx.forms[strings.ToUpper(c.Name)] = true
		}
	}
	sort.Slice(idx.nodes, func(i, j int) bool {
		a, b := idx.nodes[i].key, idx.nodes[j].key
		if a.Filepath != b.Filepath {
			return a.Filepath < b.Filepath
		}
		return a.Name < b.Name
	})
	return idx
}

// candidates returns the callable nodes named name in the caller's
// language. Case-sensitive languages require an exact match.
func (idx *nameIndex) candidates(name, language string, caseInsensitive bool) []*node {
	var out []*node
	for _, n := range idx.byName[strings.ToUpper(name)] {
		c := n.first()
		if c.IsForm() || c.Language != language {
			continue
		}
		if !caseInsensitive && c.Name != name {
			continue
		}
		out = append(out, n)
	}
	return out
}

// pickBest breaks ties between same-named candidates: same file first,
// then the longest shared directory prefix, then the same file stem.
func pickBest(callerFile string, cands []*node) *node {
	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	bestScore := tieScore(callerFile, best.key.Filepath)
	for _, c := range cands[1:] {
		s := tieScore(callerFile, c.key.Filepath)
		if s.better(bestScore) || (s == bestScore && c.key.Filepath < best.key.Filepath) {
			best, bestScore = c, s
		}
	}
	return best
}

type score struct {
	sameFile bool
	prefix   int
	sameStem bool
}

func (s score) better(o score) bool {
	if s.sameFile != o.sameFile {
		return s.sameFile
	}
	if s.prefix != o.prefix {
		return s.prefix > o.prefix
	}
	return s.sameStem && !o.sameStem
}

func tieScore(from, to string) score {
	return score{
		sameFile: from == to,
		prefix:   commonDirPrefix(from, to),
		sameStem: strings.EqualFold(stem(from), stem(to)),
	}
}

func commonDirPrefix(a, b string) int {
	as := strings.Split(filepath.ToSlash(filepath.Dir(a)), "/")
	bs := strings.Split(filepath.ToSlash(filepath.Dir(b)), "/")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] && as[n] != "." {
		n++
	}
	return n
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
