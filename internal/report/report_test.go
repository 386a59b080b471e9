package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"trustgraph/internal/canon"
	"trustgraph/internal/reconcile"
	"trustgraph/internal/reconstruct"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *FlowReport {
	return &FlowReport{
		FlowID:      "EF-1",
		FlowName:    "Save button",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Diagnostics: reconstruct.Diagnostics{
			Verdict:           reconstruct.VerdictResolved,
			Resolution:        reconstruct.ResolutionQualified,
			RootName:          "TForm1.Button1Click",
			ScopePrefix:       "015-MVC",
			Roots:             []string{"015-MVC/src/Unit1.pas::Button1Click"},
			MaxDepth:          50,
			DepthReached:      2,
			UnresolvedSamples: []string{"WriteLn"},
		},
		Unresolved: []string{"WriteLn"},
		Trust: &reconcile.TrustReport{
			FlowID: "EF-1",
			EdgeVerdicts: []reconcile.EdgeVerdict{
				{Key: canon.EdgeKey{Caller: "A", Callee: "B"}, Caller: "A", Callee: "B", Verdict: reconcile.Confirmed, Confidence: 0.9, Method: "direct_call"},
				{Key: canon.EdgeKey{Caller: "A", Callee: "C"}, Caller: "A", Callee: "C|D", Verdict: reconcile.Phantom, Confidence: 0.2},
			},
			NodeVerdicts: []reconcile.NodeVerdict{{Name: "A", Function: "A", File: "src/A.pas", State: reconcile.NodeValid}},
			EdgeTrust:    0.5,
			NodeTrust:    1,
			FlowTrust:    0.5,
			Counts:       reconcile.Counts{Confirmed: 1, Phantom: 1, Nodes: 1, ValidNodes: 1},
		},
	}
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, sample()))
	out := buf.String()

	assert.Contains(t, out, "# Trust report: EF-1 (Save button)")
	assert.Contains(t, out, "resolved via **qualified** in scope `015-MVC`")
	assert.Contains(t, out, "| Flow trust | 0.50 |")
	assert.Contains(t, out, "| Edge trust | 0.50 (1 confirmed, 1 phantom, 0 missing) |")
	assert.Contains(t, out, "| PHANTOM | A | C\\|D | 0.20 |")
	assert.Contains(t, out, "| A | src/A.pas | VALID |")
	assert.Contains(t, out, "- Unresolved callees (1): WriteLn")
}

func TestMarkdown_RootNotFound(t *testing.T) {
	r := &FlowReport{
		FlowID: "EF-404",
		Diagnostics: reconstruct.Diagnostics{
			Verdict:    reconstruct.VerdictRootNotFound,
			Resolution: reconstruct.ResolutionNone,
			RootName:   "Nowhere",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, r, sample()))
	out := buf.String()
	assert.Contains(t, out, "**Verdict: root not found.** `Nowhere` matched no function in scope `*`")
	assert.Contains(t, out, "No edges on either side.")
	assert.Contains(t, out, "\n---\n")
	assert.True(t, r.RootNotFound())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sample()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "EF-1", decoded[0]["flow_id"])
	trust := decoded[0]["trust"].(map[string]any)
	assert.Equal(t, 0.5, trust["flow_trust"])
	edges := trust["edge_verdicts"].([]any)
	assert.Equal(t, "PHANTOM", edges[1].(map[string]any)["verdict"])

	buf.Reset()
	require.NoError(t, JSON(&buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestMermaid(t *testing.T) {
	out := Mermaid([]reconcile.EdgeVerdict{
		{Caller: "TForm1.Button1Click", Callee: "Helper", Verdict: reconcile.Confirmed},
		{Caller: "TForm1.Button1Click", Callee: `Say"Hi"`, Verdict: reconcile.Phantom},
		{Caller: "Helper", Callee: "SaveAll", Verdict: reconcile.Missing},
	})

	want := "```mermaid\nflowchart TD\n" +
		"    n0[\"TForm1.Button1Click\"]\n" +
		"    n1[\"Helper\"]\n" +
		"    n0 --> n1\n" +
		"    n2[\"Say#quot;Hi#quot;\"]\n" +
		"    n0 -.-> n2\n" +
		"    n3[\"SaveAll\"]\n" +
		"    n1 ==> n3\n" +
		"    linkStyle 1 stroke:#d33\n" +
		"    linkStyle 2 stroke:#e90\n" +
		"```\n"
	assert.Equal(t, want, out)
}
