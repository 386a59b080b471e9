// Package analysis maps source changes onto execution flows that need to
// be validated again.
package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"trustgraph/internal/extractor"
	"trustgraph/internal/git"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/reconstruct"
	"trustgraph/internal/storage"

	"go.uber.org/zap"
)

// FlowImpact is a flow whose reconstructed graph reaches changed code.
type FlowImpact struct {
	FlowID  string          `json:"flow_id"`
	Touched []extractor.Key `json:"touched"`
}

// ImpactReport summarizes the functions and flows affected by changes.
type ImpactReport struct {
	DirectlyAffected   []extractor.Key `json:"directly_affected"`
	IndirectlyAffected []extractor.Key `json:"indirectly_affected"`
	StaleFlows         []FlowImpact    `json:"stale_flows"`
}

// Analyzer performs impact analysis against the Function Index.
type Analyzer struct {
	index    storage.IndexReader
	rebuild  *reconstruct.Reconstructor
	provider groundtruth.GraphProvider
	logger   *zap.Logger
}

func NewAnalyzer(index storage.IndexReader, r *reconstruct.Reconstructor, provider groundtruth.GraphProvider, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{index: index, rebuild: r, provider: provider, logger: logger}
}

// AnalyzeImpact finds the indexed functions overlapping the changed lines,
// their static callers, and every flow whose graph contains one of them.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, changes []git.ChangedFile) (*ImpactReport, error) {
	entries, err := a.index.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}
	byFile := make(map[string][]storage.Entry)
	for _, e := range entries {
		path := filepath.ToSlash(e.Filepath)
		byFile[path] = append(byFile[path], e)
	}

	report := &ImpactReport{
		DirectlyAffected:   []extractor.Key{},
		IndirectlyAffected: []extractor.Key{},
		StaleFlows:         []FlowImpact{},
	}
	direct := make(map[extractor.Key]bool)
	for _, change := range changes {
		for _, e := range byFile[filepath.ToSlash(change.Path)] {
			if direct[e.Key()] || !isAffected(e, change.ChangedLines) {
				continue
			}
			direct[e.Key()] = true
			report.DirectlyAffected = append(report.DirectlyAffected, e.Key())
		}
	}
	if len(direct) == 0 {
		return report, nil
	}

	edges, err := a.index.Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	indirect := make(map[extractor.Key]bool)
	for _, e := range edges {
		if direct[e.Callee] && !direct[e.Caller] && !indirect[e.Caller] {
			indirect[e.Caller] = true
			report.IndirectlyAffected = append(report.IndirectlyAffected, e.Caller)
		}
	}
	sortKeys(report.IndirectlyAffected)

	roots, err := a.provider.Flows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	for _, root := range roots {
		g, err := a.rebuild.Reconstruct(ctx, reconstruct.Request{Root: root})
		if err != nil {
			return nil, fmt.Errorf("reconstruct %s: %w", root.ExecutionFlowID, err)
		}
		var touched []extractor.Key
		for _, k := range g.Nodes() {
			if direct[k] {
				touched = append(touched, k)
			}
		}
		if len(touched) > 0 {
			report.StaleFlows = append(report.StaleFlows, FlowImpact{FlowID: root.ExecutionFlowID, Touched: touched})
		}
	}

	a.logger.Info("impact analyzed",
		zap.Int("changed_files", len(changes)),
		zap.Int("direct", len(report.DirectlyAffected)),
		zap.Int("indirect", len(report.IndirectlyAffected)),
		zap.Int("stale_flows", len(report.StaleFlows)),
	)
	return report, nil
}

func isAffected(e storage.Entry, lines []int) bool {
	for _, line := range lines {
		if line >= e.StartLine && line <= e.EndLine {
			return true
		}
	}
	return false
}

func sortKeys(keys []extractor.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Filepath != keys[j].Filepath {
			return keys[i].Filepath < keys[j].Filepath
		}
		return keys[i].Name < keys[j].Name
	})
}
