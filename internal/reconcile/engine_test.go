package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"trustgraph/internal/canon"
	"trustgraph/internal/extractor"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/reconstruct"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// stateChecker answers from a fixed table keyed by bare function name.
type stateChecker map[string]NodeState

func (s stateChecker) Check(_ context.Context, function, _ string) (NodeState, string) {
	if st, ok := s[canon.Bare(function)]; ok {
		return st, ""
	}
	return NodeValid, ""
}

func truthFlow(id string, edges ...[2]string) *groundtruth.Flow {
	f := &groundtruth.Flow{Root: groundtruth.RootDescriptor{ExecutionFlowID: id}}
	for i, e := range edges {
		f.Edges = append(f.Edges, groundtruth.Edge{Caller: e[0], Callee: e[1], Order: i + 1})
	}
	return f
}

func rebuiltGraph(edges ...[2]string) *reconstruct.Graph {
	g := &reconstruct.Graph{}
	for _, e := range edges {
		g.Edges = append(g.Edges, reconstruct.Edge{
			Caller:     extractor.Key{Name: e[0], Filepath: "src/" + e[0] + ".pas"},
			Callee:     extractor.Key{Name: e[1], Filepath: "src/" + e[1] + ".pas"},
			Confidence: 0.9,
			Method:     "direct_call",
		})
	}
	return g
}

func keys(vs []EdgeVerdict) []canon.EdgeKey {
	out := make([]canon.EdgeKey, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Key)
	}
	return out
}

func TestReconcile_Partition(t *testing.T) {
	e := New(stateChecker{})
	report := e.Reconcile(context.Background(),
		truthFlow("EF-1", [2]string{"A", "B"}, [2]string{"A", "C"}),
		rebuiltGraph([2]string{"A", "B"}, [2]string{"A", "D"}),
	)

	assert.Equal(t, "EF-1", report.FlowID)
	assert.Equal(t, []canon.EdgeKey{{Caller: "A", Callee: "B"}}, keys(report.Edges(Confirmed)))
	assert.Equal(t, []canon.EdgeKey{{Caller: "A", Callee: "C"}}, keys(report.Edges(Phantom)))
	assert.Equal(t, []canon.EdgeKey{{Caller: "A", Callee: "D"}}, keys(report.Edges(Missing)))
	assert.InDelta(t, 1.0/3.0, report.EdgeTrust, 1e-9)
	assert.Equal(t, 1.0, report.NodeTrust)
	assert.InDelta(t, 1.0/3.0, report.FlowTrust, 1e-9)

	confirmed := report.Edges(Confirmed)[0]
	assert.Equal(t, "src/A.pas", confirmed.CallerFile)
	assert.Equal(t, "direct_call", confirmed.Method)
	assert.Equal(t, 1, confirmed.ExecutionOrder)
	assert.InDelta(t, phantomConfidence, report.Edges(Phantom)[0].Confidence, 1e-9)

	want := []NodeVerdict{
		{Name: "A", Function: "A", File: "src/A.pas", State: NodeValid},
		{Name: "B", Function: "B", File: "src/B.pas", State: NodeValid},
		{Name: "C", Function: "C", State: NodeValid},
		{Name: "D", Function: "D", File: "src/D.pas", State: NodeValid},
	}
	if diff := cmp.Diff(want, report.NodeVerdicts); diff != "" {
		t.Errorf("node verdicts mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_CanonicalNames(t *testing.T) {
	aliases := canon.NewAliasTable(map[string][]string{"SaveAll": {"PersistAll"}})
	e := New(stateChecker{}, WithAliases(aliases))

	g := rebuiltGraph([2]string{"Button1Click", "SaveAll"}, [2]string{"Button1Click", "helper"})
	g.Edges[0].CallerClass = "TForm1"
	report := e.Reconcile(context.Background(),
		truthFlow("EF-2",
			[2]string{"TForm1.Button1Click", "TData.PersistAll"},
			[2]string{" button1click ", "Helper"},
			[2]string{"TForm1.Button1Click", "Helper"},
		),
		g,
	)
	assert.Len(t, report.Edges(Confirmed), 2)
	assert.Empty(t, report.Edges(Phantom))
	assert.Empty(t, report.Edges(Missing))
	assert.Equal(t, 1.0, report.EdgeTrust)
}

func TestReconcile_PartitionComplete(t *testing.T) {
	var truth, rebuilt [][2]string
	union := make(map[canon.EdgeKey]bool)
	for i := 0; i < 12; i++ {
		te := [2]string{fmt.Sprintf("f%d", i%4), fmt.Sprintf("g%d", i%5)}
		re := [2]string{fmt.Sprintf("F%d", i%3), fmt.Sprintf("G%d", i%7)}
		truth = append(truth, te)
		rebuilt = append(rebuilt, re)
		union[canon.EdgeKey{Caller: canon.Name(te[0]), Callee: canon.Name(te[1])}] = true
		union[canon.EdgeKey{Caller: canon.Name(re[0]), Callee: canon.Name(re[1])}] = true
	}

	report := New(stateChecker{}).Reconcile(context.Background(), truthFlow("EF-3", truth...), rebuiltGraph(rebuilt...))
	c := report.Counts
	assert.Equal(t, len(union), c.Confirmed+c.Phantom+c.Missing)
	assert.Equal(t, len(union), len(report.EdgeVerdicts))

	seen := make(map[canon.EdgeKey]bool)
	for _, v := range report.EdgeVerdicts {
		assert.False(t, seen[v.Key], "duplicate %s", v.Key)
		seen[v.Key] = true
		assert.True(t, union[v.Key])
	}
	for _, s := range []float64{report.EdgeTrust, report.NodeTrust, report.FlowTrust} {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestReconcile_Empty(t *testing.T) {
	e := New(stateChecker{})
	for name, report := range map[string]*TrustReport{
		"both empty":     e.Reconcile(context.Background(), truthFlow("EF-4"), &reconstruct.Graph{}),
		"nil inputs":     e.Reconcile(context.Background(), nil, nil),
		"root not found": e.Reconcile(context.Background(), truthFlow("EF-5"), &reconstruct.Graph{FlowID: "EF-5"}),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, report.EdgeVerdicts)
			assert.Equal(t, 1.0, report.EdgeTrust)
			assert.Equal(t, 1.0, report.NodeTrust)
			assert.Equal(t, 1.0, report.FlowTrust)
		})
	}
}

func TestReconcile_NodeTrust(t *testing.T) {
	e := New(stateChecker{"B": NodeDrifted, "C": NodeMissing})
	report := e.Reconcile(context.Background(),
		truthFlow("EF-6", [2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "D"}),
		rebuiltGraph([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "D"}),
	)
	assert.Equal(t, 1.0, report.EdgeTrust)
	assert.Equal(t, 0.5, report.NodeTrust)
	assert.Equal(t, 0.5, report.FlowTrust)
	assert.Equal(t, Counts{Confirmed: 3, Nodes: 4, ValidNodes: 2, DriftedNodes: 1, MissingNodes: 1}, report.Counts)
}

type stubBodies struct{}

func (stubBodies) Body(_ context.Context, function, _ string) (string, string, bool) {
	if function == "Orphan" {
		return "", "", false
	}
	return "begin " + function + " end;", "delphi", true
}

type stubService func(req knowledge.VerifyRequest) (knowledge.VerifyResponse, error)

func (s stubService) Verify(_ context.Context, req knowledge.VerifyRequest) (knowledge.VerifyResponse, error) {
	return s(req)
}

func TestReconcile_Semantic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	svc := stubService(func(req knowledge.VerifyRequest) (knowledge.VerifyResponse, error) {
		switch req.CandidateCallee {
		case "C":
			return knowledge.VerifyResponse{Verdict: knowledge.VerdictConfirmed, Rationale: "called in a loop"}, nil
		case "D":
			return knowledge.VerifyResponse{}, knowledge.ErrServiceTimeout
		}
		return knowledge.VerifyResponse{Verdict: knowledge.VerdictUnconfirmed}, nil
	})
	e := New(stateChecker{}, WithSemantic(svc, stubBodies{}), WithWorkers(2))
	report := e.Reconcile(context.Background(),
		truthFlow("EF-7", [2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"Orphan", "X"}),
		rebuiltGraph([2]string{"A", "B"}, [2]string{"A", "D"}, [2]string{"A", "E"}),
	)

	byCallee := make(map[string]EdgeVerdict)
	for _, v := range report.EdgeVerdicts {
		byCallee[v.Key.Callee] = v
	}
	assert.Empty(t, byCallee["B"].Semantic)

	assert.Equal(t, Phantom, byCallee["C"].Verdict)
	assert.Equal(t, knowledge.VerdictConfirmed, byCallee["C"].Semantic)
	assert.Equal(t, "called in a loop", byCallee["C"].Rationale)
	assert.InDelta(t, semanticConfirmed, byCallee["C"].Confidence, 1e-9)

	assert.Equal(t, Missing, byCallee["D"].Verdict)
	assert.Equal(t, knowledge.VerdictUnconfirmed, byCallee["D"].Semantic)
	assert.Contains(t, byCallee["D"].Rationale, "verification failed")
	assert.InDelta(t, 0.45, byCallee["D"].Confidence, 1e-9)

	assert.Equal(t, knowledge.VerdictUnconfirmed, byCallee["E"].Semantic)
	assert.Empty(t, byCallee["X"].Semantic)

	assert.InDelta(t, 1.0/5.0, report.EdgeTrust, 1e-9)
}

func TestFSChecker(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "proj", "src")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Unit1.pas"),
		[]byte("procedure TForm1.Button1Click(Sender: TObject);\nbegin\nend;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"),
		[]byte("function $init() {\n  return boot$();\n}\n"), 0o644))

	c := NewFSChecker(root)
	ctx := context.Background()
	tests := []struct {
		function, file string
		want           NodeState
	}{
		{"TForm1.Button1Click", "proj/src/Unit1.pas", NodeValid},
		{"button1click", `D:\mnt\repos\proj\src\Unit1.pas`, NodeValid},
		{"Button1", "/mnt/other/proj/src/Unit1.pas", NodeDrifted},
		{"FormCreate", "proj/src/Unit1.pas", NodeDrifted},
		{"Button1Click", "proj/src/Unit2.pas", NodeMissing},
		{"Button1Click", "", NodeMissing},
		{"$init", "proj/src/app.js", NodeValid},
		{"boot$", "proj/src/app.js", NodeValid},
		{"init", "proj/src/app.js", NodeDrifted},
		{"boot", "proj/src/app.js", NodeDrifted},
	}
	for _, tt := range tests {
		t.Run(tt.function+"@"+tt.file, func(t *testing.T) {
			got, detail := c.Check(ctx, tt.function, tt.file)
			assert.Equal(t, tt.want, got, detail)
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	got, detail := c.Check(cancelled, "Button1Click", "proj/src/Unit1.pas")
	assert.Equal(t, NodeMissing, got)
	assert.Contains(t, detail, context.Canceled.Error())
	assert.True(t, errors.Is(cancelled.Err(), context.Canceled))
}
