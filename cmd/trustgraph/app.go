package main

import (
	"context"
	"fmt"

	"trustgraph/internal/groundtruth"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/storage"
)

func rootPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Project.Root
}

func openIndex(root string) (*storage.SQLiteIndex, error) {
	path, err := storage.PathForRoot(cfg.Index.DataDir, root)
	if err != nil {
		return nil, err
	}
	return storage.OpenIndex(path)
}

func loadFlows() (*groundtruth.FileProvider, error) {
	return groundtruth.LoadFile(cfg.GroundTruth.Path)
}

// completionService builds the configured service behind the in-flight
// limit. Nil means the service is disabled.
func completionService(ctx context.Context) (knowledge.Service, error) {
	if !cfg.AI.Enabled() {
		return nil, nil
	}
	svc, err := knowledge.NewService(ctx, knowledge.Options{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("completion service: %w", err)
	}
	return knowledge.NewBounded(svc, cfg.AI.MaxConcurrent, cfg.AI.Timeout), nil
}
