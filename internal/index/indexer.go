package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trustgraph/internal/callgraph"
	"trustgraph/internal/crawler"
	"trustgraph/internal/extractor"
	"trustgraph/internal/storage"

	"go.uber.org/zap"
)

// ErrNoChunks means the codebase produced zero chunks. The live index is
// left untouched.
var ErrNoChunks = errors.New("zero chunks for this codebase")

const defaultBatchSize = 256

// Stats describes one indexing run.
type Stats struct {
	RunID       string
	Root        string
	StorePath   string
	Files       int
	EmptyFiles  []string
	FailedFiles []crawler.FileError
	Chunks      int
	Functions   int
	Edges       int
	Unresolved  int
	Languages   map[string]int
	Duration    time.Duration
}

// Indexer orchestrates a full rebuild: crawl, single-writer inserts,
// static edges, atomic swap.
type Indexer struct {
	source  crawler.ChunkSource
	builder *callgraph.Builder
	batch   int
	logger  *zap.Logger
}

// NewIndexer creates a new indexer.
func NewIndexer(src crawler.ChunkSource, b *callgraph.Builder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		source:  src,
		builder: b,
		batch:   defaultBatchSize,
		logger:  logger,
	}
}

// Run rebuilds the index for root into storePath.
func (i *Indexer) Run(ctx context.Context, root, storePath string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Root: root, StorePath: storePath}

	runID, err := storage.Rebuild(ctx, storePath, root, func(ctx context.Context, idx *storage.SQLiteIndex) error {
		chunks, report, err := i.ingest(ctx, root, idx)
		if err != nil {
			return err
		}
		stats.Files = report.FilesScanned
		stats.EmptyFiles = report.EmptyFiles
		stats.FailedFiles = report.Failed
		stats.Languages = report.Languages
		stats.Chunks = len(chunks)
		if len(chunks) == 0 {
			return fmt.Errorf("%w: %s", ErrNoChunks, root)
		}

		res, err := i.builder.Build(ctx, chunks)
		if err != nil {
			return fmt.Errorf("build call graph: %w", err)
		}
		if err := idx.ReplaceEdges(ctx, edgeRecords(res.Edges), unresolvedRecords(res.Unresolved)); err != nil {
			return fmt.Errorf("save call graph: %w", err)
		}

		st, err := idx.Stats(ctx)
		if err != nil {
			return err
		}
		stats.Functions = st.Functions
		stats.Edges = st.Edges
		stats.Unresolved = st.Unresolved
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, err
	}
	stats.RunID = runID

	i.logger.Info("index rebuilt",
		zap.String("run_id", runID),
		zap.String("root", root),
		zap.String("store", storePath),
		zap.Int("files", stats.Files),
		zap.Int("functions", stats.Functions),
		zap.Int("edges", stats.Edges),
		zap.Duration("took", stats.Duration),
	)
	return stats, nil
}

// ingest streams chunks to a single writer goroutine, which performs every
// insert of the run in batches.
func (i *Indexer) ingest(ctx context.Context, root string, w storage.IndexWriter) ([]*extractor.CodeChunk, *crawler.Report, error) {
	queue := make(chan *extractor.CodeChunk, i.batch)
	writeErr := make(chan error, 1)

	go func() {
		var err error
		batch := make([]*extractor.CodeChunk, 0, i.batch)
		for c := range queue {
			if err != nil {
				continue
			}
			batch = append(batch, c)
			if len(batch) == cap(batch) {
				err = w.InsertAll(ctx, batch)
				batch = batch[:0]
			}
		}
		if err == nil && len(batch) > 0 {
			err = w.InsertAll(ctx, batch)
		}
		writeErr <- err
	}()

	var chunks []*extractor.CodeChunk
	report, scanErr := i.source.ScanProject(ctx, root, func(c *extractor.CodeChunk) error {
		chunks = append(chunks, c)
		select {
		case queue <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(queue)
	if err := <-writeErr; err != nil {
		return nil, nil, fmt.Errorf("write index: %w", err)
	}
	if scanErr != nil {
		return nil, nil, fmt.Errorf("scan failed: %w", scanErr)
	}
	return chunks, report, nil
}

func edgeRecords(edges []callgraph.Edge) []storage.EdgeRecord {
	out := make([]storage.EdgeRecord, 0, len(edges))
	for _, e := range edges {
		out = append(out, storage.EdgeRecord{
			Caller:     e.Caller,
			Callee:     e.Callee,
			Confidence: e.Confidence,
			Method:     e.Method,
			Order:      e.Order,
		})
	}
	return out
}

func unresolvedRecords(us []callgraph.Unresolved) []storage.UnresolvedRecord {
	out := make([]storage.UnresolvedRecord, 0, len(us))
	for _, u := range us {
		out = append(out, storage.UnresolvedRecord{Caller: u.Caller, Name: u.Name})
	}
	return out
}
