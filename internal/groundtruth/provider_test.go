package groundtruth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportYAML = `
flows:
  - id: EF-2
    name: Save button
    root:
      function: TForm1.Button1Click
      file: /mnt/storage/repos/011-MultiLevelList/src/Unit1.dfm
      class: TForm1
    edges:
      - caller: TForm1.Button1Click
        callee: SaveAll
        order: 2
      - caller: TForm1.Button1Click
        callee: Validate
        callee_file: /mnt/storage/repos/011-MultiLevelList/src/Utils.pas
        order: 1
  - id: EF-1
    root:
      function: main
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(exportYAML))
	require.NoError(t, err)
	ctx := context.Background()

	roots, err := p.Flows(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "EF-2", roots[0].ExecutionFlowID)
	assert.Equal(t, "TForm1", roots[0].RootClassHint)
	assert.Equal(t, "EF-1", roots[1].ExecutionFlowID)

	flow, err := p.Flow(ctx, "EF-2")
	require.NoError(t, err)
	assert.Equal(t, "Save button", flow.Name)
	require.Len(t, flow.Edges, 2)
	assert.Equal(t, "Validate", flow.Edges[0].Callee)
	assert.Equal(t, "SaveAll", flow.Edges[1].Callee)

	flow.Edges[0].Callee = "changed"
	again, err := p.Flow(ctx, "EF-2")
	require.NoError(t, err)
	assert.Equal(t, "Validate", again.Edges[0].Callee)

	_, err = p.Flow(ctx, "EF-9")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestParse_JSON(t *testing.T) {
	doc := `{"flows": [{"id": "EF-7", "root": {"function": "run", "class": "Job"},
	  "edges": [{"caller": "run", "callee": "step", "order": 1}]}]}`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	flow, err := p.Flow(context.Background(), "EF-7")
	require.NoError(t, err)
	assert.Equal(t, "run", flow.Root.RootFunctionName)
	assert.Equal(t, []Edge{{Caller: "run", Callee: "step", Order: 1}}, flow.Edges)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"no id":        "flows:\n  - root: {function: a}\n",
		"duplicate id": "flows:\n  - {id: x, root: {function: a}}\n  - {id: x, root: {function: b}}\n",
		"no root":      "flows:\n  - {id: x}\n",
		"not yaml":     "flows: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exportYAML), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Schema(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"no flows":         "exports: []\n",
		"edge sans callee": "flows:\n  - {id: x, root: {function: a}, edges: [{caller: a}]}\n",
		"negative order":   "flows:\n  - {id: x, root: {function: a}, edges: [{caller: a, callee: b, order: -1}]}\n",
		"root not a map":   "flows:\n  - {id: x, root: a}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidExport)
		})
	}
}
