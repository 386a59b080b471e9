package reconstruct

import (
	"path"
	"sort"
	"strings"

	"trustgraph/internal/canon"
	"trustgraph/internal/extractor"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/storage"
)

// view is the index restricted to one project scope.
type view struct {
	prefix     string
	entries    map[extractor.Key]storage.Entry
	byName     map[string][]storage.Entry
	byClass    map[string][]storage.Entry
	adj        map[extractor.Key][]storage.EdgeRecord
	unresolved map[extractor.Key][]string
	scoped     int
}

func newView(prefix string, entries []storage.Entry, edges []storage.EdgeRecord, unresolved []storage.UnresolvedRecord) *view {
	v := &view{
		prefix:     prefix,
		entries:    make(map[extractor.Key]storage.Entry, len(entries)),
		byName:     make(map[string][]storage.Entry),
		byClass:    make(map[string][]storage.Entry),
		adj:        make(map[extractor.Key][]storage.EdgeRecord),
		unresolved: make(map[extractor.Key][]string),
	}
	for _, e := range entries {
		v.entries[e.Key()] = e
		if !inScope(e.Filepath, prefix) {
			continue
		}
		v.scoped++
		name := strings.ToUpper(e.Name)
		v.byName[name] = append(v.byName[name], e)
		if e.Class != "" {
			class := strings.ToUpper(e.Class)
			v.byClass[class] = append(v.byClass[class], e)
		}
	}
	for _, e := range edges {
		if inScope(e.Caller.Filepath, prefix) {
			v.adj[e.Caller] = append(v.adj[e.Caller], e)
		}
	}
	for caller, out := range v.adj {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
		v.adj[caller] = out
	}
	for _, u := range unresolved {
		v.unresolved[u.Caller] = append(v.unresolved[u.Caller], u.Name)
	}
	return v
}

// resolve runs the three root tiers; the first that finds anything wins.
func (v *view) resolve(root groundtruth.RootDescriptor) ([]storage.Entry, Resolution) {
	name := strings.TrimSpace(root.RootFunctionName)
	bare := canon.Bare(name)
	qualifier := canon.Bare(canon.Qualifier(name))
	classHint := strings.TrimSpace(root.RootClassHint)
	wantClass := qualifier
	if wantClass == "" {
		wantClass = classHint
	}

	if bare != "" {
		named := v.byName[strings.ToUpper(bare)]
		var exact []storage.Entry
		for _, e := range named {
			if wantClass == "" || strings.EqualFold(e.Class, wantClass) {
				exact = append(exact, e)
			}
		}
		if len(exact) > 0 {
			return []storage.Entry{bestRoot(exact, wantClass, root.RootFileHint)}, ResolutionQualified
		}
		if len(named) > 0 {
			return []storage.Entry{bestRoot(named, wantClass, root.RootFileHint)}, ResolutionBareName
		}
	}

	class := classHint
	if class == "" {
		class = qualifier
	}
	if class == "" {
		return nil, ResolutionNone
	}
	members := v.classMembers(class)
	if len(members) == 0 {
		return nil, ResolutionNone
	}
	return members, ResolutionClassFallback
}

// classMembers lists every in-scope entry declared in class, plus any unit
// named after it.
func (v *view) classMembers(class string) []storage.Entry {
	upper := strings.ToUpper(canon.Bare(class))
	seen := make(map[extractor.Key]bool)
	var out []storage.Entry
	for _, group := range [][]storage.Entry{v.byClass[upper], v.byName[upper]} {
		for _, e := range group {
			if !seen[e.Key()] {
				seen[e.Key()] = true
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Filepath != out[j].Filepath {
			return out[i].Filepath < out[j].Filepath
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out
}

// rescope finds an in-scope function with the callee's name when the
// static edge pointed into another project.
func (v *view) rescope(name, callerFile string) (storage.Entry, bool) {
	cands := v.byName[strings.ToUpper(name)]
	if len(cands) == 0 {
		return storage.Entry{}, false
	}
	return bestRoot(cands, "", callerFile), true
}

type rootScore struct {
	class, file, stem bool
}

func (s rootScore) rank() int {
	r := 0
	if s.class {
		r += 4
	}
	if s.file {
		r += 2
	}
	if s.stem {
		r++
	}
	return r
}

// bestRoot prefers the class hint, then the hinted file name, then its
// stem, then the lowest path.
func bestRoot(cands []storage.Entry, class, fileHint string) storage.Entry {
	hintBase := path.Base(filepathSlash(fileHint))
	score := func(e storage.Entry) int {
		base := path.Base(filepathSlash(e.Filepath))
		return rootScore{
			class: class != "" && strings.EqualFold(e.Class, class),
			file:  fileHint != "" && strings.EqualFold(base, hintBase),
			stem:  fileHint != "" && strings.EqualFold(fileStem(base), fileStem(hintBase)),
		}.rank()
	}
	best := cands[0]
	bestScore := score(best)
	for _, c := range cands[1:] {
		s := score(c)
		if s > bestScore || (s == bestScore && lessEntry(c, best)) {
			best, bestScore = c, s
		}
	}
	return best
}

func lessEntry(a, b storage.Entry) bool {
	if a.Filepath != b.Filepath {
		return a.Filepath < b.Filepath
	}
	return a.StartLine < b.StartLine
}
