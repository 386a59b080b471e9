package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"trustgraph/internal/canon"
	"trustgraph/internal/storage"
)

// NodeChecker reports whether a function still exists where a graph says
// it lives.
type NodeChecker interface {
	Check(ctx context.Context, function, file string) (NodeState, string)
}

// FSChecker checks nodes against a checked-out codebase. Paths from a
// foreign machine are matched by their longest suffix present under root.
type FSChecker struct {
	root string

	mu    sync.Mutex
	files map[string][]byte
}

func NewFSChecker(root string) *FSChecker {
	return &FSChecker{root: root, files: make(map[string][]byte)}
}

// Check: VALID when the file exists and names the function, DRIFTED when
// the file exists without it, MISSING when no file is found.
func (c *FSChecker) Check(ctx context.Context, function, file string) (NodeState, string) {
	if err := ctx.Err(); err != nil {
		return NodeMissing, err.Error()
	}
	if file == "" {
		return NodeMissing, "no file recorded"
	}
	path, src, err := c.read(file)
	if err != nil {
		return NodeMissing, err.Error()
	}
	name := canon.Bare(function)
	if name == "" {
		return NodeDrifted, "no function name recorded"
	}
	re := regexp.MustCompile(`(?i)(?:^|[^\w$])` + regexp.QuoteMeta(name) + `(?:[^\w$]|$)`)
	if !re.Match(src) {
		return NodeDrifted, fmt.Sprintf("%s not found in %s", name, path)
	}
	return NodeValid, path
}

func (c *FSChecker) read(file string) (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.candidates(file) {
		if src, ok := c.files[p]; ok {
			return p, src, nil
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return p, nil, fmt.Errorf("read %s: %w", p, err)
		}
		c.files[p] = src
		return p, src, nil
	}
	return "", nil, fmt.Errorf("file %s not found", file)
}

// candidates lists the paths tried for file, most specific first.
func (c *FSChecker) candidates(file string) []string {
	var out []string
	native := filepath.FromSlash(file)
	if filepath.IsAbs(native) {
		out = append(out, native)
	}
	segs := canon.Segments(file)
	for i := range segs {
		out = append(out, filepath.Join(append([]string{c.root}, segs[i:]...)...))
	}
	return out
}

// IndexedChecker fills in the file of nodes the external graph recorded
// without one, using the Function Index, before delegating.
type IndexedChecker struct {
	next  NodeChecker
	index storage.IndexReader
}

func NewIndexedChecker(next NodeChecker, index storage.IndexReader) *IndexedChecker {
	return &IndexedChecker{next: next, index: index}
}

func (c *IndexedChecker) Check(ctx context.Context, function, file string) (NodeState, string) {
	if file == "" {
		entries, err := c.index.LookupByBareName(ctx, canon.Bare(function))
		if err == nil && len(entries) > 0 {
			file = entries[0].Filepath
		}
	}
	return c.next.Check(ctx, function, file)
}
