package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	"trustgraph/internal/extractor"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChunkSource streams the chunks of a codebase.
type ChunkSource interface {
	ScanProject(ctx context.Context, root string, onChunk func(*extractor.CodeChunk) error) (*Report, error)
}

// FileError records a file that could not be chunked.
type FileError struct {
	Path string
	Err  error
}

// Report summarises one scan.
type Report struct {
	Root         string
	FilesScanned int
	FilesSkipped int
	Chunks       int
	// EmptyFiles are supported files that produced no chunks.
	EmptyFiles []string
	Failed     []FileError
	Languages  map[string]int
}

// Crawler scans a directory for source files and chunks them in parallel.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   []string
	workers   int
	logger    *zap.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers bounds the number of files chunked concurrently.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIgnored adds directory names that are never descended into.
func WithIgnored(names ...string) Option {
	return func(c *Crawler) {
		c.ignored = append(c.ignored, names...)
	}
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, opts ...Option) *Crawler {
	c := &Crawler{
		extractor: ext,
		ignored:   []string{".git", ".svn", "vendor", "node_modules", "testdata", "__pycache__", "__history", "__recovery"},
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sourceFile struct {
	abs string
	rel string
}

type fileResult struct {
	file   sourceFile
	chunks []*extractor.CodeChunk
	err    error
}

// ScanProject walks root and chunks every supported file on a bounded
// worker pool. onChunk is always called from the calling goroutine, so it
// may write to a single-writer sink without locking. A file that fails to
// chunk is recorded in the report and does not stop the scan; an error
// from onChunk does.
func (c *Crawler) ScanProject(ctx context.Context, root string, onChunk func(*extractor.CodeChunk) error) (*Report, error) {
	files, skipped, err := c.collect(root)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Root:         root,
		FilesScanned: len(files),
		FilesSkipped: skipped,
		Languages:    make(map[string]int),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	results := make(chan fileResult, c.workers)

	var waitErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, f := range files {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				chunks, err := c.extractor.ExtractFromFile(f.abs, f.rel)
				select {
				case results <- fileResult{file: f, chunks: chunks, err: err}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr = g.Wait()
		close(results)
	}()

	var sinkErr error
	for res := range results {
		if sinkErr != nil {
			continue
		}
		if res.err != nil {
			c.logger.Warn("chunking failed", zap.String("file", res.file.rel), zap.Error(res.err))
			report.Failed = append(report.Failed, FileError{Path: res.file.rel, Err: res.err})
			continue
		}
		if len(res.chunks) == 0 {
			c.logger.Debug("no functions found", zap.String("file", res.file.rel))
			report.EmptyFiles = append(report.EmptyFiles, res.file.rel)
			continue
		}
		for _, ch := range res.chunks {
			if err := onChunk(ch); err != nil {
				sinkErr = fmt.Errorf("consume chunk %s: %w", ch.Key(), err)
				cancel()
				break
			}
			report.Chunks++
			report.Languages[ch.Language]++
		}
	}
	<-done

	if sinkErr != nil {
		return report, sinkErr
	}
	if waitErr != nil {
		return report, waitErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	c.logger.Info("scan finished",
		zap.String("root", root),
		zap.Int("files", report.FilesScanned),
		zap.Int("chunks", report.Chunks),
		zap.Int("empty_files", len(report.EmptyFiles)),
		zap.Int("failed_files", len(report.Failed)),
	)
	return report, nil
}

// collect lists supported files under root with slash-separated paths
// relative to root.
func (c *Crawler) collect(root string) ([]sourceFile, int, error) {
	var (
		files   []sourceFile
		skipped int
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !c.extractor.Supports(path) {
			skipped++
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{abs: path, rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, skipped, nil
}
