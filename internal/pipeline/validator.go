package pipeline

import (
	"context"
	"fmt"
	"time"

	"trustgraph/internal/groundtruth"
	"trustgraph/internal/reconcile"
	"trustgraph/internal/reconstruct"
	"trustgraph/internal/report"

	"go.uber.org/zap"
)

// Validator runs one flow through reconstruction and reconciliation.
// Every dependency is passed in; nothing is shared between validators.
type Validator struct {
	provider      groundtruth.GraphProvider
	reconstructor *reconstruct.Reconstructor
	engine        *reconcile.Engine
	runID         string
	logger        *zap.Logger
}

func NewValidator(provider groundtruth.GraphProvider, r *reconstruct.Reconstructor, e *reconcile.Engine, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		provider:      provider,
		reconstructor: r,
		engine:        e,
		logger:        logger,
	}
}

// WithRunID records which index build the reports were made against.
func (v *Validator) WithRunID(id string) *Validator {
	v.runID = id
	return v
}

// ValidateFlow returns a report even when the root cannot be resolved.
// Errors mean the flow is unknown or the index is unusable.
func (v *Validator) ValidateFlow(ctx context.Context, id string) (*report.FlowReport, error) {
	start := time.Now()

	flow, err := v.loadFlowStage(ctx, id)
	if err != nil {
		return nil, err
	}
	graph, err := v.reconstructStage(ctx, flow)
	if err != nil {
		return nil, err
	}
	trust := v.reconcileStage(ctx, flow, graph)

	v.logger.Debug("flow validated",
		zap.String("flow", id),
		zap.String("verdict", string(graph.Diagnostics.Verdict)),
		zap.Float64("flow_trust", trust.FlowTrust),
		zap.Duration("took", time.Since(start)),
	)
	return &report.FlowReport{
		FlowID:      flow.Root.ExecutionFlowID,
		FlowName:    flow.Name,
		RunID:       v.runID,
		GeneratedAt: time.Now().UTC(),
		Diagnostics: graph.Diagnostics,
		Unresolved:  graph.SortedUnresolved(),
		Trust:       trust,
	}, nil
}

// ValidateAll validates every flow the provider knows, in its order.
func (v *Validator) ValidateAll(ctx context.Context) ([]*report.FlowReport, error) {
	roots, err := v.provider.Flows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	out := make([]*report.FlowReport, 0, len(roots))
	for _, root := range roots {
		r, err := v.ValidateFlow(ctx, root.ExecutionFlowID)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (v *Validator) loadFlowStage(ctx context.Context, id string) (*groundtruth.Flow, error) {
	flow, err := v.provider.Flow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load flow: %w", err)
	}
	return flow, nil
}

func (v *Validator) reconstructStage(ctx context.Context, flow *groundtruth.Flow) (*reconstruct.Graph, error) {
	g, err := v.reconstructor.Reconstruct(ctx, reconstruct.Request{
		Root:       flow.Root,
		OrderHints: flow.Edges,
	})
	if err != nil {
		return nil, fmt.Errorf("reconstruct %s: %w", flow.Root.ExecutionFlowID, err)
	}
	if err := g.Err(); err != nil {
		v.logger.Info("flow root unresolved; every recorded edge will be phantom",
			zap.String("flow", flow.Root.ExecutionFlowID),
			zap.Error(err),
		)
	}
	return g, nil
}

func (v *Validator) reconcileStage(ctx context.Context, flow *groundtruth.Flow, g *reconstruct.Graph) *reconcile.TrustReport {
	return v.engine.Reconcile(ctx, flow, g)
}
