package main

import (
	"fmt"

	"trustgraph/internal/canon"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/pipeline"
	"trustgraph/internal/reconcile"
	"trustgraph/internal/reconstruct"
	"trustgraph/internal/report"
	"trustgraph/internal/storage"

	"github.com/spf13/cobra"
)

var (
	reportFormat string
	semantic     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow-id...]",
	Short: "Reconcile execution flows against the indexed source",
	Long: `Reconstructs each flow from the function index, diffs it against the
ground-truth export and prints a trust report. Without flow ids every flow
in the export is validated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if reportFormat != "markdown" && reportFormat != "json" {
			return fmt.Errorf("unknown format %q (want markdown or json)", reportFormat)
		}

		provider, err := loadFlows()
		if err != nil {
			return err
		}
		root := cfg.Project.Root
		idx, err := openIndex(root)
		if err != nil {
			return err
		}
		defer idx.Close()
		runID, err := idx.Meta(ctx, storage.MetaRunID)
		if err != nil {
			return err
		}

		aliases := canon.NewAliasTable(cfg.Aliases)
		engineOpts := []reconcile.Option{reconcile.WithAliases(aliases), reconcile.WithLogger(logger)}
		if semantic || cfg.AI.SemanticVerify {
			svc, err := completionService(ctx)
			if err != nil {
				return err
			}
			if svc == nil {
				return fmt.Errorf("semantic verification needs ai.provider to be set")
			}
			cached := knowledge.NewCached(svc, idx, logger)
			engineOpts = append(engineOpts,
				reconcile.WithSemantic(cached, reconcile.NewIndexBodies(idx)),
				reconcile.WithWorkers(cfg.AI.MaxConcurrent),
			)
		}

		validator := pipeline.NewValidator(
			provider,
			reconstruct.New(idx,
				reconstruct.WithMaxDepth(cfg.Traversal.MaxDepth),
				reconstruct.WithAliases(aliases),
				reconstruct.WithLogger(logger),
			),
			reconcile.New(reconcile.NewIndexedChecker(reconcile.NewFSChecker(root), idx), engineOpts...),
			logger,
		).WithRunID(runID)

		var reports []*report.FlowReport
		if len(args) == 0 {
			reports, err = validator.ValidateAll(ctx)
			if err != nil {
				return err
			}
		} else {
			for _, id := range args {
				r, err := validator.ValidateFlow(ctx, id)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}
		}

		if reportFormat == "json" {
			return report.JSON(cmd.OutOrStdout(), reports...)
		}
		return report.Markdown(cmd.OutOrStdout(), reports...)
	},
}

func init() {
	validateCmd.Flags().StringVarP(&reportFormat, "format", "f", "markdown", "Report format: markdown or json")
	validateCmd.Flags().BoolVar(&semantic, "semantic", false, "Ask the completion service about phantom and missing edges")
}
