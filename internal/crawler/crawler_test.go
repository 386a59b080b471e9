package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"trustgraph/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func sampleCodebase(t *testing.T) string {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app/main.py":          "def main():\n    run()\n\ndef run():\n    pass\n",
		"app/util.py":          "def helper():\n    return 1\n",
		"app/constants.py":     "",
		"lib/Unit1.pas":        "unit Unit1;\ninterface\nimplementation\nprocedure Go;\nbegin\nend;\nend.\n",
		"docs/README.md":       "# docs\n",
		"node_modules/x/a.js":  "function ignored() {}\n",
		".hidden/secret.py":    "def hidden():\n    pass\n",
		"testdata/fixture.py":  "def fixture():\n    pass\n",
		"web/static/app.js":    "function boot() {\n  start();\n}\n",
		"web/static/style.css": "body {}\n",
	})
	return root
}

func TestCrawler_ScanProject(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := sampleCodebase(t)
	c := NewCrawler(extractor.NewExtractor(nil, 0), WithWorkers(3))

	var got []string
	report, err := c.ScanProject(context.Background(), root, func(ch *extractor.CodeChunk) error {
		got = append(got, ch.Key().String())
		return nil
	})
	require.NoError(t, err)
	sort.Strings(got)

	t.Run("Chunks", func(t *testing.T) {
		assert.Equal(t, []string{
			"app/main.py::main",
			"app/main.py::run",
			"app/util.py::helper",
			"lib/Unit1.pas::Go",
			"lib/Unit1.pas::Unit1",
			"web/static/app.js::boot",
		}, got)
		assert.Equal(t, len(got), report.Chunks)
	})

	t.Run("Report", func(t *testing.T) {
		assert.Equal(t, 5, report.FilesScanned)
		assert.Equal(t, 2, report.FilesSkipped)
		assert.Equal(t, []string{"app/constants.py"}, report.EmptyFiles)
		assert.Empty(t, report.Failed)
		assert.Equal(t, 3, report.Languages["python"])
		assert.Equal(t, 2, report.Languages["delphi"])
	})
}

func TestCrawler_SinkErrorStopsScan(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := sampleCodebase(t)
	c := NewCrawler(extractor.NewExtractor(nil, 0), WithWorkers(1))

	boom := errors.New("disk full")
	calls := 0
	_, err := c.ScanProject(context.Background(), root, func(*extractor.CodeChunk) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestCrawler_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := sampleCodebase(t)
	c := NewCrawler(extractor.NewExtractor(nil, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ScanProject(ctx, root, func(*extractor.CodeChunk) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawler_MissingRoot(t *testing.T) {
	c := NewCrawler(extractor.NewExtractor(nil, 0))
	_, err := c.ScanProject(context.Background(), filepath.Join(t.TempDir(), "nope"), func(*extractor.CodeChunk) error { return nil })
	assert.Error(t, err)
}
