package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trustgraph/internal/callgraph"
	"trustgraph/internal/crawler"
	"trustgraph/internal/extractor"
	"trustgraph/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeCodebase(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newIndexer() *Indexer {
	ext := extractor.NewExtractor(nil, 0)
	return NewIndexer(
		crawler.NewCrawler(ext, crawler.WithWorkers(2)),
		callgraph.NewBuilder(ext.Registry(), callgraph.WithWorkers(2)),
		nil,
	)
}

func TestIndexer_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	root := writeCodebase(t, map[string]string{
		"orders/Orders.pas": "unit Orders;\ninterface\nimplementation\n" +
			"constructor TOrder.Create;\nbegin\n  Validate;\nend;\n\n" +
			"procedure Validate;\nbegin\nend;\n",
		"customers/Customers.pas": "unit Customers;\ninterface\nimplementation\n" +
			"constructor TCustomer.Create;\nbegin\n  Audit();\nend;\n",
	})
	storePath := filepath.Join(t.TempDir(), "idx.db")

	stats, err := newIndexer().Run(context.Background(), root, storePath)
	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 5, stats.Chunks)
	assert.Equal(t, 5, stats.Functions)
	assert.Equal(t, map[string]int{"delphi": 5}, stats.Languages)
	assert.GreaterOrEqual(t, stats.Edges, 1)

	idx, err := storage.OpenIndex(storePath)
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	creates, err := idx.LookupByBareName(ctx, "Create")
	require.NoError(t, err)
	assert.Len(t, creates, 2)

	edges, err := idx.Edges(ctx)
	require.NoError(t, err)
	assert.Contains(t, edges, storage.EdgeRecord{
		Caller:     extractor.Key{Name: "Create", Filepath: "orders/Orders.pas"},
		Callee:     extractor.Key{Name: "Validate", Filepath: "orders/Orders.pas"},
		Confidence: callgraph.Confidence(callgraph.MethodBareName, 1),
		Method:     callgraph.MethodBareName,
		Order:      0,
	})

	unresolved, err := idx.Unresolved(ctx)
	require.NoError(t, err)
	assert.Contains(t, unresolved, storage.UnresolvedRecord{
		Caller: extractor.Key{Name: "Create", Filepath: "customers/Customers.pas"},
		Name:   "Audit",
	})

	root2, err := idx.Meta(ctx, storage.MetaRoot)
	require.NoError(t, err)
	assert.Equal(t, root, root2)
}

func TestIndexer_ZeroChunksKeepsLiveIndex(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	storePath := filepath.Join(t.TempDir(), "idx.db")
	good := writeCodebase(t, map[string]string{"main.py": "def main():\n    pass\n"})
	_, err := newIndexer().Run(context.Background(), good, storePath)
	require.NoError(t, err)

	empty := writeCodebase(t, map[string]string{"README.md": "nothing here\n"})
	_, err = newIndexer().Run(context.Background(), empty, storePath)
	require.ErrorIs(t, err, ErrNoChunks)

	idx, err := storage.OpenIndex(storePath)
	require.NoError(t, err)
	defer idx.Close()
	entries, err := idx.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main", entries[0].Name)
}
