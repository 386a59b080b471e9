package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trustgraph/internal/callgraph"
	"trustgraph/internal/crawler"
	"trustgraph/internal/extractor"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/index"
	"trustgraph/internal/reconcile"
	"trustgraph/internal/reconstruct"
	"trustgraph/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unit1 = `unit Unit1;

interface

implementation

procedure TForm1.Button1Click(Sender: TObject);
begin
  Helper;
  SaveAll();
end;

procedure Helper;
begin
end;

procedure SaveAll;
begin
end;
`

const flows = `
flows:
  - id: EF-1
    name: Button click
    root: {function: TForm1.Button1Click, file: /mnt/x/demo/src/Unit1.dfm, class: TForm1}
    edges:
      - {caller: TForm1.Button1Click, callee: Helper, order: 1}
      - {caller: TForm1.Button1Click, callee: Ghost, order: 2}
  - id: EF-2
    root: {function: Nowhere}
    edges:
      - {caller: Nowhere, callee: Helper, order: 1}
`

func setup(t *testing.T) *Validator {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "demo", "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Unit1.pas"), []byte(unit1), 0o644))

	ctx := context.Background()
	ext := extractor.NewExtractor(nil, 0)
	storePath := filepath.Join(t.TempDir(), "index.db")
	_, err := index.NewIndexer(crawler.NewCrawler(ext), callgraph.NewBuilder(ext.Registry()), nil).Run(ctx, root, storePath)
	require.NoError(t, err)

	idx, err := storage.OpenIndex(storePath)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	provider, err := groundtruth.Parse([]byte(flows))
	require.NoError(t, err)

	engine := reconcile.New(reconcile.NewIndexedChecker(reconcile.NewFSChecker(root), idx))
	return NewValidator(provider, reconstruct.New(idx), engine, nil).WithRunID("run-1")
}

func TestValidator_ValidateFlow(t *testing.T) {
	v := setup(t)
	r, err := v.ValidateFlow(context.Background(), "EF-1")
	require.NoError(t, err)

	assert.Equal(t, "EF-1", r.FlowID)
	assert.Equal(t, "Button click", r.FlowName)
	assert.Equal(t, "run-1", r.RunID)
	assert.False(t, r.RootNotFound())
	assert.Equal(t, "demo", r.Diagnostics.ScopePrefix)
	assert.Equal(t, reconstruct.ResolutionQualified, r.Diagnostics.Resolution)

	trust := r.Trust
	assert.Equal(t, reconcile.Counts{
		Confirmed: 1, Phantom: 1, Missing: 1,
		Nodes: 4, ValidNodes: 3, MissingNodes: 1,
	}, trust.Counts)
	assert.Equal(t, "HELPER", trust.Edges(reconcile.Confirmed)[0].Key.Callee)
	assert.Equal(t, "GHOST", trust.Edges(reconcile.Phantom)[0].Key.Callee)
	assert.Equal(t, "SAVEALL", trust.Edges(reconcile.Missing)[0].Key.Callee)
	assert.InDelta(t, 1.0/3.0, trust.EdgeTrust, 1e-9)
	assert.InDelta(t, 0.75, trust.NodeTrust, 1e-9)
	assert.InDelta(t, 1.0/3.0, trust.FlowTrust, 1e-9)
}

func TestValidator_RootNotFoundStillReports(t *testing.T) {
	v := setup(t)
	r, err := v.ValidateFlow(context.Background(), "EF-2")
	require.NoError(t, err)
	assert.True(t, r.RootNotFound())
	assert.Equal(t, 1, r.Trust.Counts.Phantom)
	assert.Equal(t, 0.0, r.Trust.EdgeTrust)
	assert.Equal(t, 0.5, r.Trust.NodeTrust)
}

func TestValidator_ValidateAll(t *testing.T) {
	v := setup(t)
	reports, err := v.ValidateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "EF-1", reports[0].FlowID)
	assert.Equal(t, "EF-2", reports[1].FlowID)

	_, err = v.ValidateFlow(context.Background(), "EF-9")
	assert.ErrorIs(t, err, groundtruth.ErrFlowNotFound)
}
