package main

import (
	"fmt"

	"trustgraph/internal/callgraph"
	"trustgraph/internal/crawler"
	"trustgraph/internal/extractor"
	"trustgraph/internal/index"
	"trustgraph/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Rebuild the function index and static call graph for a codebase",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root := rootPath(args)
		storePath, err := storage.PathForRoot(cfg.Index.DataDir, root)
		if err != nil {
			return err
		}

		ext := extractor.NewExtractor(nil, cfg.Index.MaxChunkLines)
		crawlOpts := []crawler.Option{crawler.WithLogger(logger)}
		buildOpts := []callgraph.Option{callgraph.WithLogger(logger)}
		if cfg.Index.Workers > 0 {
			crawlOpts = append(crawlOpts, crawler.WithWorkers(cfg.Index.Workers))
			buildOpts = append(buildOpts, callgraph.WithWorkers(cfg.Index.Workers))
		}
		if cfg.AI.Tier2Fallback {
			svc, err := completionService(ctx)
			if err != nil {
				return err
			}
			if svc != nil {
				buildOpts = append(buildOpts, callgraph.WithVerifier(svc))
			}
		}

		indexer := index.NewIndexer(
			crawler.NewCrawler(ext, crawlOpts...),
			callgraph.NewBuilder(ext.Registry(), buildOpts...),
			logger,
		)
		stats, err := indexer.Run(ctx, root, storePath)
		if err != nil {
			return err
		}
		for _, f := range stats.FailedFiles {
			logger.Warn("file skipped", zap.String("file", f.Path), zap.Error(f.Err))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %s (run %s)\n", root, stats.RunID)
		fmt.Fprintf(out, "  files:      %d (%d without functions, %d failed)\n",
			stats.Files, len(stats.EmptyFiles), len(stats.FailedFiles))
		fmt.Fprintf(out, "  functions:  %d\n", stats.Functions)
		fmt.Fprintf(out, "  edges:      %d\n", stats.Edges)
		fmt.Fprintf(out, "  unresolved: %d\n", stats.Unresolved)
		fmt.Fprintf(out, "  store:      %s\n", storePath)
		return nil
	},
}
