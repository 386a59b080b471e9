package reconcile

import (
	"context"
	"runtime"

	"trustgraph/internal/canon"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/reconstruct"

	"go.uber.org/zap"
)

// phantomConfidence is the trust left to an edge only the external graph
// claims.
const phantomConfidence = 0.20

type Engine struct {
	checker  NodeChecker
	aliases  *canon.AliasTable
	semantic knowledge.Service
	bodies   BodySource
	workers  int
	logger   *zap.Logger
}

type Option func(*Engine)

func WithAliases(t *canon.AliasTable) Option {
	return func(e *Engine) {
		e.aliases = t
	}
}

// WithSemantic enables the optional pass that asks the completion service
// about PHANTOM and MISSING edges. It annotates verdicts and adjusts their
// confidence; classes and scores are unaffected.
func WithSemantic(s knowledge.Service, bodies BodySource) Option {
	return func(e *Engine) {
		e.semantic = s
		e.bodies = bodies
	}
}

func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(checker NodeChecker, opts ...Option) *Engine {
	e := &Engine{
		checker: checker,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile always returns a report, even when either side is empty or
// nil.
func (e *Engine) Reconcile(ctx context.Context, truth *groundtruth.Flow, rebuilt *reconstruct.Graph) *TrustReport {
	if truth == nil {
		truth = &groundtruth.Flow{}
	}
	if rebuilt == nil {
		rebuilt = &reconstruct.Graph{}
	}
	report := &TrustReport{FlowID: truth.Root.ExecutionFlowID}
	if report.FlowID == "" {
		report.FlowID = rebuilt.FlowID
	}

	report.EdgeVerdicts = e.partition(truth.Edges, rebuilt.Edges)
	report.NodeVerdicts = e.checkNodes(ctx, truth, rebuilt)
	if e.semantic != nil && e.bodies != nil {
		e.annotate(ctx, report.EdgeVerdicts)
	}
	score(report)

	e.logger.Info("flow reconciled",
		zap.String("flow", report.FlowID),
		zap.Int("confirmed", report.Counts.Confirmed),
		zap.Int("phantom", report.Counts.Phantom),
		zap.Int("missing", report.Counts.Missing),
		zap.Float64("edge_trust", report.EdgeTrust),
		zap.Float64("node_trust", report.NodeTrust),
		zap.Float64("flow_trust", report.FlowTrust),
	)
	return report
}

// partition classifies the canonical union: ground-truth edges in their
// execution order first, then edges only the source exhibits.
func (e *Engine) partition(truth []groundtruth.Edge, rebuilt []reconstruct.Edge) []EdgeVerdict {
	found := make(map[canon.EdgeKey]reconstruct.Edge, len(rebuilt))
	for _, r := range rebuilt {
		k := e.aliases.Edge(qualifiedName(r.CallerClass, r.Caller.Name), qualifiedName(r.CalleeClass, r.Callee.Name))
		if _, dup := found[k]; !dup {
			found[k] = r
		}
	}

	var out []EdgeVerdict
	claimed := make(map[canon.EdgeKey]bool, len(truth))
	for _, t := range truth {
		k := e.aliases.Edge(t.Caller, t.Callee)
		if claimed[k] {
			continue
		}
		claimed[k] = true
		v := EdgeVerdict{
			Key:            k,
			Caller:         t.Caller,
			Callee:         t.Callee,
			CallerFile:     t.CallerFile,
			CalleeFile:     t.CalleeFile,
			Verdict:        Phantom,
			Confidence:     phantomConfidence,
			ExecutionOrder: t.Order,
		}
		if r, ok := found[k]; ok {
			v.Verdict = Confirmed
			v.CallerFile = r.Caller.Filepath
			v.CalleeFile = r.Callee.Filepath
			v.Confidence = r.Confidence
			v.Method = r.Method
		}
		out = append(out, v)
	}

	for _, r := range rebuilt {
		k := e.aliases.Edge(qualifiedName(r.CallerClass, r.Caller.Name), qualifiedName(r.CalleeClass, r.Callee.Name))
		if claimed[k] {
			continue
		}
		claimed[k] = true
		out = append(out, EdgeVerdict{
			Key:            k,
			Caller:         r.Caller.Name,
			Callee:         r.Callee.Name,
			CallerFile:     r.Caller.Filepath,
			CalleeFile:     r.Callee.Filepath,
			Verdict:        Missing,
			Confidence:     r.Confidence,
			Method:         r.Method,
			ExecutionOrder: r.ExecutionOrder,
		})
	}
	return out
}

func qualifiedName(class, name string) string {
	if class == "" {
		return name
	}
	return class + "." + name
}

type nodeRef struct {
	function string
	file     string
}

// checkNodes checks every canonical function named by either graph. The
// reconstructed side's file wins since it is relative to the codebase.
func (e *Engine) checkNodes(ctx context.Context, truth *groundtruth.Flow, rebuilt *reconstruct.Graph) []NodeVerdict {
	var order []string
	refs := make(map[string]*nodeRef)
	add := func(function, file string, preferred bool) {
		if function == "" {
			return
		}
		name := e.aliases.Name(function)
		ref, ok := refs[name]
		if !ok {
			refs[name] = &nodeRef{function: function, file: file}
			order = append(order, name)
			return
		}
		if file != "" && (preferred || ref.file == "") {
			ref.file = file
		}
	}

	for _, t := range truth.Edges {
		add(t.Caller, t.CallerFile, false)
		add(t.Callee, t.CalleeFile, false)
	}
	classes := make(map[string]string)
	for _, r := range rebuilt.Edges {
		classes[r.Caller.String()] = r.CallerClass
		classes[r.Callee.String()] = r.CalleeClass
	}
	for _, k := range rebuilt.Nodes() {
		add(qualifiedName(classes[k.String()], k.Name), k.Filepath, true)
	}

	out := make([]NodeVerdict, 0, len(order))
	for _, name := range order {
		ref := refs[name]
		state, detail := e.checker.Check(ctx, ref.function, ref.file)
		out = append(out, NodeVerdict{
			Name:     name,
			Function: ref.function,
			File:     ref.file,
			State:    state,
			Detail:   detail,
		})
	}
	return out
}

// score fills the counts and trust scores. An empty denominator scores 1.
func score(r *TrustReport) {
	c := Counts{Nodes: len(r.NodeVerdicts)}
	for _, v := range r.EdgeVerdicts {
		switch v.Verdict {
		case Confirmed:
			c.Confirmed++
		case Phantom:
			c.Phantom++
		case Missing:
			c.Missing++
		}
	}
	for _, n := range r.NodeVerdicts {
		switch n.State {
		case NodeValid:
			c.ValidNodes++
		case NodeDrifted:
			c.DriftedNodes++
		case NodeMissing:
			c.MissingNodes++
		}
	}
	r.Counts = c
	r.EdgeTrust = ratio(c.Confirmed, c.Confirmed+c.Phantom+c.Missing)
	r.NodeTrust = ratio(c.ValidNodes, c.Nodes)
	r.FlowTrust = min(r.EdgeTrust, r.NodeTrust)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(n) / float64(total)
}
