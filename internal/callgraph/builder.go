package callgraph

import (
	"context"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"trustgraph/internal/extractor"
	"trustgraph/internal/knowledge"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	callRe  = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)
	identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

const (
	minCallNameLen     = 2
	minBareNameLen     = 3
	maxTier2Candidates = 8
)

// Builder derives static call edges from chunk text.
type Builder struct {
	registry *extractor.Registry
	verifier knowledge.Service
	workers  int
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithVerifier enables the tier-2 fallback: callers without lexical edges
// have their co-occurring known names checked by the completion service.
func WithVerifier(s knowledge.Service) Option {
	return func(b *Builder) {
		b.verifier = s
	}
}

func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBuilder(reg *extractor.Registry, opts ...Option) *Builder {
	if reg == nil {
		reg = extractor.DefaultRegistry()
	}
	b := &Builder{
		registry: reg,
		workers:  runtime.GOMAXPROCS(0),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type callerResult struct {
	edges      []Edge
	unresolved []Unresolved
}

// Build scans every caller in parallel. Each worker fills its own result
// slot; the slots are concatenated in caller order.
func (b *Builder) Build(ctx context.Context, chunks []*extractor.CodeChunk) (*Result, error) {
	idx := newNameIndex(chunks)
	results := make([]callerResult, len(idx.nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, n := range idx.nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.scan(gctx, idx, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, r := range results {
		res.Edges = append(res.Edges, r.edges...)
		res.Unresolved = append(res.Unresolved, r.unresolved...)
	}
	b.logger.Info("call graph built",
		zap.Int("callers", len(idx.nodes)),
		zap.Int("edges", len(res.Edges)),
		zap.Int("unresolved", len(res.Unresolved)),
	)
	return res, nil
}

type occurrence struct {
	pos        int
	callee     *node
	method     string
	confidence float64
}

type scanner struct {
	idx        *nameIndex
	profile    *extractor.Profile
	caller     *node
	occ        []occurrence
	unresolved []string
	seen       map[string]bool
}

func (b *Builder) scan(ctx context.Context, idx *nameIndex, n *node) callerResult {
	p, ok := b.registry.Profile(n.first().Language)
	if !ok {
		return callerResult{}
	}
	s := &scanner{idx: idx, profile: p, caller: n, seen: make(map[string]bool)}

	offset := 0
	var bodies []string
	for _, c := range n.chunks {
		if c.IsForm() {
			s.bindings(c, offset)
			offset += len(c.EventHandlers)
			continue
		}
		body := p.StripNonCode(callBody(c))
		bodies = append(bodies, body)
		s.directCalls(body, offset)
		if p.BareIdentifiers {
			s.bareNames(body, offset)
		}
		offset += len(body) + 1
	}

	edges := s.edges()
	if len(edges) == 0 && b.verifier != nil && len(bodies) > 0 {
		edges = b.tier2(ctx, s, strings.Join(bodies, "\n"))
	}

	res := callerResult{edges: edges}
	for _, name := range s.unresolved {
		res.unresolved = append(res.unresolved, Unresolved{Caller: n.key, Name: name})
	}
	return res
}

// callBody drops the declaration line of functions so the caller's own
// name and parameter types are not read as calls.
func callBody(c *extractor.CodeChunk) string {
	if c.Kind == extractor.KindModule {
		return c.Content
	}
	if i := strings.IndexByte(c.Content, '\n'); i >= 0 {
		return c.Content[i+1:]
	}
	return ""
}

// ignored reports keywords and the caller's own name. Builtins and skip
// tokens are not ignored here: a user function may share their name.
func (s *scanner) ignored(name string) bool {
	if s.profile.IsReserved(name) {
		return true
	}
	if s.profile.CaseInsensitive {
		return strings.EqualFold(name, s.caller.key.Name)
	}
	return name == s.caller.key.Name
}

func (s *scanner) addUnresolved(name string) {
	key := name
	if s.profile.CaseInsensitive {
		key = strings.ToUpper(name)
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.unresolved = append(s.unresolved, name)
}

func (s *scanner) add(pos int, callee *node, method string, confidence float64) {
	if callee == nil || callee.key == s.caller.key {
		return
	}
	s.occ = append(s.occ, occurrence{pos: pos, callee: callee, method: method, confidence: confidence})
}

func (s *scanner) candidates(name string) []*node {
	return s.idx.candidates(name, s.caller.first().Language, s.profile.CaseInsensitive)
}

// directCalls finds identifier( sites.
func (s *scanner) directCalls(body string, base int) {
	for _, m := range callRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		if len(name) < minCallNameLen || s.ignored(name) {
			continue
		}
		cands := s.candidates(name)
		if len(cands) == 0 {
			if !s.profile.IsSkipped(name) {
				s.addUnresolved(name)
			}
			continue
		}
		best := pickBest(s.caller.key.Filepath, cands)
		s.add(base+m[2], best, MethodDirectCall, Confidence(MethodDirectCall, len(cands)))
	}
}

// bareNames finds known names used without parentheses, as in
// parameterless calls. Names followed by '.' are qualifiers, not calls.
func (s *scanner) bareNames(body string, base int) {
	for _, m := range identRe.FindAllStringIndex(body, -1) {
		name := body[m[0]:m[1]]
		if len(name) < minBareNameLen || s.ignored(name) || s.idx.forms[strings.ToUpper(name)] {
			continue
		}
		rest := strings.TrimLeft(body[m[1]:], " \t")
		if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "(") {
			continue
		}
		cands := s.candidates(name)
		if len(cands) == 0 {
			continue
		}
		best := pickBest(s.caller.key.Filepath, cands)
		s.add(base+m[0], best, MethodBareName, Confidence(MethodBareName, len(cands)))
	}
}

// bindings links a form's event handlers to their implementations,
// preferring the form's class and then the unit sharing the form's stem.
func (s *scanner) bindings(form *extractor.CodeChunk, base int) {
	for i, h := range form.EventHandlers {
		cands := s.candidates(h)
		if len(cands) == 0 {
			s.addUnresolved(h)
			continue
		}
		var sameClass []*node
		for _, c := range cands {
			if form.Class != "" && strings.EqualFold(c.first().Class, form.Class) {
				sameClass = append(sameClass, c)
			}
		}
		pool := cands
		if len(sameClass) > 0 {
			pool = sameClass
		}
		best := pool[0]
		found := false
		for _, c := range pool {
			if strings.EqualFold(stem(c.key.Filepath), stem(form.Filepath)) {
				best, found = c, true
				break
			}
		}
		if !found {
			best = pickBest(form.Filepath, pool)
		}
		s.add(base+i, best, MethodDeclarative, Confidence(MethodDeclarative, len(cands)))
	}
}

// edges unions occurrences per callee, keeping the highest confidence and
// ranking callees by first occurrence.
func (s *scanner) edges() []Edge {
	sort.SliceStable(s.occ, func(i, j int) bool { return s.occ[i].pos < s.occ[j].pos })

	var edges []Edge
	byCallee := make(map[extractor.Key]int)
	for _, o := range s.occ {
		if i, ok := byCallee[o.callee.key]; ok {
			if o.confidence > edges[i].Confidence {
				edges[i].Confidence = o.confidence
				edges[i].Method = o.method
			}
			continue
		}
		byCallee[o.callee.key] = len(edges)
		edges = append(edges, Edge{
			Caller:     s.caller.key,
			Callee:     o.callee.key,
			Confidence: o.confidence,
			Method:     o.method,
			Order:      len(edges),
		})
	}
	return edges
}

// tier2 asks the completion service about known names that co-occur in a
// caller with no lexical edges. A failed call leaves the name unresolved.
func (b *Builder) tier2(ctx context.Context, s *scanner, body string) []Edge {
	caller := s.caller.first()
	seen := make(map[string]bool)
	var edges []Edge
	asked := 0
	for _, m := range identRe.FindAllStringIndex(body, -1) {
		if asked >= maxTier2Candidates {
			break
		}
		name := body[m[0]:m[1]]
		upper := strings.ToUpper(name)
		if seen[upper] || len(name) < minBareNameLen || s.ignored(name) || s.idx.forms[upper] {
			continue
		}
		seen[upper] = true
		cands := s.candidates(name)
		if len(cands) == 0 {
			continue
		}
		best := pickBest(s.caller.key.Filepath, cands)
		if best.key == s.caller.key {
			continue
		}

		asked++
		resp, err := b.verifier.Verify(ctx, knowledge.VerifyRequest{
			CallerName:      caller.QualifiedName(),
			CallerBody:      caller.Content,
			CandidateCallee: name,
			Language:        caller.Language,
		})
		if err != nil {
			b.logger.Debug("tier-2 verification failed",
				zap.String("caller", s.caller.key.String()),
				zap.String("candidate", name),
				zap.Error(err),
			)
			s.addUnresolved(name)
			continue
		}
		if !resp.Confirmed() {
			continue
		}
		edges = append(edges, Edge{
			Caller:     s.caller.key,
			Callee:     best.key,
			Confidence: Confidence(MethodLLMTier2, len(cands)),
			Method:     MethodLLMTier2,
			Order:      len(edges),
		})
	}
	return edges
}
