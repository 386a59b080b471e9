package reconstruct

import (
	"path"
	"sort"
	"strings"

	"trustgraph/internal/canon"
)

// scopePrefix finds the project directory the root file hint belongs to.
// Candidates are indexed files with the hint's file name, then its stem;
// the one sharing the most trailing directory segments with the hint wins
// and its top-level segment becomes the prefix. No hint or no candidate
// means the whole index is in scope.
func scopePrefix(hint string, files []string) string {
	segs := canon.Segments(hint)
	if len(segs) == 0 {
		return ""
	}
	base := segs[len(segs)-1]
	hintDirs := segs[:len(segs)-1]

	cands := filesMatching(files, func(f string) bool {
		return strings.EqualFold(path.Base(f), base)
	})
	if len(cands) == 0 {
		want := fileStem(base)
		cands = filesMatching(files, func(f string) bool {
			return strings.EqualFold(fileStem(path.Base(f)), want)
		})
	}
	if len(cands) == 0 {
		return ""
	}

	best, bestShared := "", -1
	for _, f := range cands {
		parts := canon.Segments(f)
		if s := sharedTail(parts[:len(parts)-1], hintDirs); s > bestShared {
			best, bestShared = f, s
		}
	}
	parts := canon.Segments(best)
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func filesMatching(files []string, keep func(string) bool) []string {
	var out []string
	for _, f := range files {
		if keep(filepathSlash(f)) {
			out = append(out, filepathSlash(f))
		}
	}
	sort.Strings(out)
	return out
}

func filepathSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func fileStem(base string) string {
	return strings.TrimSuffix(base, path.Ext(base))
}

// sharedTail counts equal trailing segments.
func sharedTail(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && strings.EqualFold(a[len(a)-1-n], b[len(b)-1-n]) {
		n++
	}
	return n
}

// inScope reports whether p lies under the project prefix.
func inScope(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	parts := canon.Segments(p)
	return len(parts) > 1 && strings.EqualFold(parts[0], prefix)
}
