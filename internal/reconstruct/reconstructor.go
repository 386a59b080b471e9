// Package reconstruct rebuilds the call graph of one execution flow from
// the Function Index, starting at a root named by the external graph.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"trustgraph/internal/canon"
	"trustgraph/internal/extractor"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/storage"

	"go.uber.org/zap"
)

const (
	DefaultMaxDepth      = 50
	maxUnresolvedSamples = 10
)

// ErrRootNotFound is reported through Graph.Err when no resolution tier
// matched. Reconstruct itself does not fail for it.
var ErrRootNotFound = errors.New("root not found")

type Verdict string

const (
	VerdictResolved     Verdict = "resolved"
	VerdictRootNotFound Verdict = "root not found"
)

// Resolution names the tier that resolved the root.
type Resolution string

const (
	ResolutionNone          Resolution = "none"
	ResolutionQualified     Resolution = "qualified"
	ResolutionBareName      Resolution = "bare_name"
	ResolutionClassFallback Resolution = "class_fallback"
)

// Edge is a traversed call. Depth is the caller's distance from the root
// (roots are at depth 1). ExecutionOrder comes from external hints and is
// zero when none matched.
type Edge struct {
	Caller         extractor.Key `json:"caller"`
	Callee         extractor.Key `json:"callee"`
	CallerClass    string        `json:"caller_class,omitempty"`
	CalleeClass    string        `json:"callee_class,omitempty"`
	Confidence     float64       `json:"confidence"`
	Method         string        `json:"method"`
	Order          int           `json:"order"`
	Depth          int           `json:"depth"`
	ExecutionOrder int           `json:"execution_order,omitempty"`
}

type Diagnostics struct {
	Verdict             Verdict    `json:"verdict"`
	Resolution          Resolution `json:"resolution"`
	RootName            string     `json:"root_name"`
	RootFileHint        string     `json:"root_file_hint,omitempty"`
	RootClassHint       string     `json:"root_class_hint,omitempty"`
	ScopePrefix         string     `json:"scope_prefix"`
	Roots               []string   `json:"roots,omitempty"`
	CrossProjectSkipped int        `json:"cross_project_skipped"`
	RescopedCallees     int        `json:"rescoped_callees"`
	UnresolvedSamples   []string   `json:"unresolved_samples,omitempty"`
	MaxDepth            int        `json:"max_depth"`
	DepthReached        int        `json:"depth_reached"`
	DepthLimitHits      int        `json:"depth_limit_hits"`
	IndexFunctions      int        `json:"index_functions"`
	IndexEdges          int        `json:"index_edges"`
	ScopedFunctions     int        `json:"scoped_functions"`
}

// Graph is the result of one reconstruction. It is not modified after
// Reconstruct returns.
type Graph struct {
	FlowID            string          `json:"flow_id"`
	RootResolvedTo    []extractor.Key `json:"root_resolved_to"`
	Edges             []Edge          `json:"edges"`
	UnresolvedCallees []string        `json:"unresolved_callees"`
	Diagnostics       Diagnostics     `json:"diagnostics"`
}

// Err returns ErrRootNotFound for an unresolved root, nil otherwise.
func (g *Graph) Err() error {
	if g.Diagnostics.Verdict == VerdictRootNotFound {
		return fmt.Errorf("%w: %s", ErrRootNotFound, g.Diagnostics.RootName)
	}
	return nil
}

// Request asks for the graph of one flow. OrderHints are the external
// edges whose execution order should be attached to matching edges.
type Request struct {
	Root       groundtruth.RootDescriptor
	OrderHints []groundtruth.Edge
}

type Reconstructor struct {
	index    storage.IndexReader
	maxDepth int
	aliases  *canon.AliasTable
	logger   *zap.Logger
}

type Option func(*Reconstructor)

func WithMaxDepth(n int) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithAliases sets the table used to match order hints to edges.
func WithAliases(t *canon.AliasTable) Option {
	return func(r *Reconstructor) {
		r.aliases = t
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reconstructor reading from index.
func New(index storage.IndexReader, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		index:    index,
		maxDepth: DefaultMaxDepth,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct resolves the root and walks the static edges depth-first.
// Only index failures and cancellation are errors; an unknown root yields
// an empty graph with a VerdictRootNotFound diagnostic.
func (r *Reconstructor) Reconstruct(ctx context.Context, req Request) (*Graph, error) {
	entries, err := r.index.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}
	edges, err := r.index.Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	unresolved, err := r.index.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unresolved: %w", err)
	}

	files := make([]string, 0, len(entries))
	seenFile := make(map[string]bool)
	for _, e := range entries {
		if !seenFile[e.Filepath] {
			seenFile[e.Filepath] = true
			files = append(files, e.Filepath)
		}
	}
	prefix := scopePrefix(req.Root.RootFileHint, files)
	v := newView(prefix, entries, edges, unresolved)

	g := &Graph{
		FlowID:            req.Root.ExecutionFlowID,
		Edges:             []Edge{},
		UnresolvedCallees: []string{},
		Diagnostics: Diagnostics{
			RootName:        req.Root.RootFunctionName,
			RootFileHint:    req.Root.RootFileHint,
			RootClassHint:   req.Root.RootClassHint,
			ScopePrefix:     prefix,
			MaxDepth:        r.maxDepth,
			IndexFunctions:  len(entries),
			IndexEdges:      len(edges),
			ScopedFunctions: v.scoped,
		},
	}

	roots, how := v.resolve(req.Root)
	g.Diagnostics.Resolution = how
	if len(roots) == 0 {
		g.Diagnostics.Verdict = VerdictRootNotFound
		r.logger.Warn("root not found",
			zap.String("flow", g.FlowID),
			zap.String("root", req.Root.RootFunctionName),
			zap.String("class_hint", req.Root.RootClassHint),
			zap.String("scope", prefix),
			zap.Int("scoped_functions", v.scoped),
		)
		return g, nil
	}
	g.Diagnostics.Verdict = VerdictResolved

	w := &walker{
		view:     v,
		graph:    g,
		maxDepth: r.maxDepth,
		aliases:  r.aliases,
		hints:    orderHints(r.aliases, req.OrderHints),
		visited:  make(map[extractor.Key]bool),
		seen:     make(map[string]bool),
	}
	for _, root := range roots {
		g.RootResolvedTo = append(g.RootResolvedTo, root.Key())
		g.Diagnostics.Roots = append(g.Diagnostics.Roots, root.Key().String())
		if err := w.visit(ctx, root.Key(), 1); err != nil {
			return nil, err
		}
	}

	n := min(len(g.UnresolvedCallees), maxUnresolvedSamples)
	g.Diagnostics.UnresolvedSamples = append([]string(nil), g.UnresolvedCallees[:n]...)

	r.logger.Info("flow reconstructed",
		zap.String("flow", g.FlowID),
		zap.String("resolution", string(how)),
		zap.String("scope", prefix),
		zap.Int("roots", len(roots)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("unresolved", len(g.UnresolvedCallees)),
		zap.Int("cross_project_skipped", g.Diagnostics.CrossProjectSkipped),
	)
	return g, nil
}

func orderHints(aliases *canon.AliasTable, edges []groundtruth.Edge) map[canon.EdgeKey]int {
	hints := make(map[canon.EdgeKey]int, len(edges))
	for _, e := range edges {
		if e.Order == 0 {
			continue
		}
		k := aliases.Edge(e.Caller, e.Callee)
		if _, ok := hints[k]; !ok {
			hints[k] = e.Order
		}
	}
	return hints
}

type walker struct {
	view     *view
	graph    *Graph
	maxDepth int
	aliases  *canon.AliasTable
	hints    map[canon.EdgeKey]int
	visited  map[extractor.Key]bool
	seen     map[string]bool
}

func (w *walker) addUnresolved(name string) {
	key := strings.ToUpper(name)
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.graph.UnresolvedCallees = append(w.graph.UnresolvedCallees, name)
}

func isSelf(caller, callee extractor.Key) bool {
	return caller.Filepath == callee.Filepath && strings.EqualFold(caller.Name, callee.Name)
}

// visit expands a node once. Nodes past the depth limit are not marked,
// so a shorter path found later can still expand them.
func (w *walker) visit(ctx context.Context, key extractor.Key, depth int) error {
	d := &w.graph.Diagnostics
	if depth > w.maxDepth {
		d.DepthLimitHits++
		return nil
	}
	if w.visited[key] {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.visited[key] = true
	d.DepthReached = max(d.DepthReached, depth)

	for _, name := range w.view.unresolved[key] {
		w.addUnresolved(name)
	}

	caller := w.view.entries[key]
	emitted := make(map[extractor.Key]bool)
	for _, e := range w.view.adj[key] {
		callee := e.Callee
		if isSelf(key, callee) {
			continue
		}
		if !inScope(callee.Filepath, w.view.prefix) {
			alt, ok := w.view.rescope(callee.Name, key.Filepath)
			if !ok {
				d.CrossProjectSkipped++
				w.addUnresolved(callee.Name)
				continue
			}
			d.RescopedCallees++
			callee = alt.Key()
			if isSelf(key, callee) {
				continue
			}
		}
		target, known := w.view.entries[callee]
		if !known {
			w.addUnresolved(callee.Name)
			continue
		}
		// Rescoping can map several stored callees onto one function.
		if emitted[callee] {
			continue
		}
		emitted[callee] = true

		edge := Edge{
			Caller:      key,
			Callee:      callee,
			CallerClass: caller.Class,
			CalleeClass: target.Class,
			Confidence:  e.Confidence,
			Method:      e.Method,
			Order:       e.Order,
			Depth:       depth,
		}
		if order, ok := w.hints[w.aliases.Edge(qualified(caller), qualified(target))]; ok {
			edge.ExecutionOrder = order
		}
		w.graph.Edges = append(w.graph.Edges, edge)

		if err := w.visit(ctx, callee, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func qualified(e storage.Entry) string {
	if e.Class != "" {
		return e.Class + "." + e.Name
	}
	return e.Name
}

// Nodes lists every function the graph touches, roots first, in
// traversal order.
func (g *Graph) Nodes() []extractor.Key {
	seen := make(map[extractor.Key]bool)
	var out []extractor.Key
	add := func(k extractor.Key) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range g.RootResolvedTo {
		add(k)
	}
	for _, e := range g.Edges {
		add(e.Caller)
		add(e.Callee)
	}
	return out
}

// SortedUnresolved returns the unresolved callees in name order.
func (g *Graph) SortedUnresolved() []string {
	out := append([]string(nil), g.UnresolvedCallees...)
	sort.Strings(out)
	return out
}
