// Package report renders flow validation results for operators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"trustgraph/internal/reconcile"
	"trustgraph/internal/reconstruct"
)

// FlowReport is everything one validated flow produced.
type FlowReport struct {
	FlowID      string                  `json:"flow_id"`
	FlowName    string                  `json:"flow_name,omitempty"`
	RunID       string                  `json:"index_run_id,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
	Diagnostics reconstruct.Diagnostics `json:"diagnostics"`
	Unresolved  []string                `json:"unresolved_callees"`
	Trust       *reconcile.TrustReport  `json:"trust"`
}

// RootNotFound reports whether reconstruction could not place the root.
func (r *FlowReport) RootNotFound() bool {
	return r.Diagnostics.Verdict == reconstruct.VerdictRootNotFound
}

// JSON writes the reports as one indented array.
func JSON(w io.Writer, reports ...*FlowReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if reports == nil {
		reports = []*FlowReport{}
	}
	return enc.Encode(reports)
}

// Markdown writes one section per report.
func Markdown(w io.Writer, reports ...*FlowReport) error {
	var sb strings.Builder
	for i, r := range reports {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		writeFlow(&sb, r)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFlow(sb *strings.Builder, r *FlowReport) {
	title := r.FlowID
	if r.FlowName != "" {
		title += " (" + r.FlowName + ")"
	}
	fmt.Fprintf(sb, "# Trust report: %s\n\n", title)

	d := r.Diagnostics
	if r.RootNotFound() {
		fmt.Fprintf(sb, "> **Verdict: root not found.** `%s` matched no function in scope `%s` (%d functions).\n\n",
			d.RootName, scopeLabel(d.ScopePrefix), d.ScopedFunctions)
	} else {
		fmt.Fprintf(sb, "Root `%s` resolved via **%s** in scope `%s` to %s.\n\n",
			d.RootName, d.Resolution, scopeLabel(d.ScopePrefix), strings.Join(d.Roots, ", "))
	}

	t := r.Trust
	if t == nil {
		t = &reconcile.TrustReport{}
	}
	sb.WriteString("| Score | Value |\n|---|---|\n")
	fmt.Fprintf(sb, "| Flow trust | %.2f |\n", t.FlowTrust)
	fmt.Fprintf(sb, "| Edge trust | %.2f (%d confirmed, %d phantom, %d missing) |\n",
		t.EdgeTrust, t.Counts.Confirmed, t.Counts.Phantom, t.Counts.Missing)
	fmt.Fprintf(sb, "| Node trust | %.2f (%d valid, %d drifted, %d missing) |\n\n",
		t.NodeTrust, t.Counts.ValidNodes, t.Counts.DriftedNodes, t.Counts.MissingNodes)

	sb.WriteString("## Edges\n\n")
	if len(t.EdgeVerdicts) == 0 {
		sb.WriteString("No edges on either side.\n\n")
	} else {
		sb.WriteString("| Verdict | Caller | Callee | Confidence | Method | Semantic |\n|---|---|---|---|---|---|\n")
		for _, e := range t.EdgeVerdicts {
			semantic := string(e.Semantic)
			if e.Rationale != "" {
				semantic += ": " + e.Rationale
			}
			fmt.Fprintf(sb, "| %s | %s | %s | %.2f | %s | %s |\n",
				e.Verdict, cell(e.Caller), cell(e.Callee), e.Confidence, cell(e.Method), cell(semantic))
		}
		sb.WriteString("\n")
		sb.WriteString(Mermaid(t.EdgeVerdicts))
		sb.WriteString("\n")
	}

	if len(t.NodeVerdicts) > 0 {
		sb.WriteString("## Nodes\n\n| Function | File | State | Detail |\n|---|---|---|---|\n")
		for _, n := range t.NodeVerdicts {
			fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", cell(n.Function), cell(n.File), n.State, cell(n.Detail))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Diagnostics\n\n")
	fmt.Fprintf(sb, "- Cross-project edges skipped: %d (rescoped: %d)\n", d.CrossProjectSkipped, d.RescopedCallees)
	fmt.Fprintf(sb, "- Depth reached: %d of %d (limit hits: %d)\n", d.DepthReached, d.MaxDepth, d.DepthLimitHits)
	fmt.Fprintf(sb, "- Index: %d functions, %d edges, %d in scope\n", d.IndexFunctions, d.IndexEdges, d.ScopedFunctions)
	if len(r.Unresolved) > 0 {
		fmt.Fprintf(sb, "- Unresolved callees (%d): %s\n", len(r.Unresolved), strings.Join(d.UnresolvedSamples, ", "))
	}
}

func scopeLabel(prefix string) string {
	if prefix == "" {
		return "*"
	}
	return prefix
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
