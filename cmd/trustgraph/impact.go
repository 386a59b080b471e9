package main

import (
	"encoding/json"
	"fmt"

	"trustgraph/internal/analysis"
	"trustgraph/internal/canon"
	"trustgraph/internal/git"
	"trustgraph/internal/reconstruct"

	"github.com/spf13/cobra"
)

var impactJSON bool

var impactCmd = &cobra.Command{
	Use:   "impact [base-ref]",
	Short: "List flows whose reconstructed graph reaches code changed since base-ref",
	Long: `Diffs the project root against a git ref (HEAD by default), maps the
changed lines onto indexed functions and reports the execution flows that
should be validated again. Rebuild the index first so line ranges match.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		baseRef := "HEAD"
		if len(args) > 0 {
			baseRef = args[0]
		}

		root := cfg.Project.Root
		changes, err := git.ChangedFiles(ctx, root, baseRef)
		if err != nil {
			return err
		}
		provider, err := loadFlows()
		if err != nil {
			return err
		}
		idx, err := openIndex(root)
		if err != nil {
			return err
		}
		defer idx.Close()

		r := reconstruct.New(idx,
			reconstruct.WithMaxDepth(cfg.Traversal.MaxDepth),
			reconstruct.WithAliases(canon.NewAliasTable(cfg.Aliases)),
			reconstruct.WithLogger(logger),
		)
		rep, err := analysis.NewAnalyzer(idx, r, provider, logger).AnalyzeImpact(ctx, changes)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if impactJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		fmt.Fprintf(out, "Changed functions: %d (callers: %d)\n", len(rep.DirectlyAffected), len(rep.IndirectlyAffected))
		for _, k := range rep.DirectlyAffected {
			fmt.Fprintf(out, "  %s\n", k)
		}
		if len(rep.StaleFlows) == 0 {
			fmt.Fprintln(out, "No execution flow reaches the changed code.")
			return nil
		}
		fmt.Fprintf(out, "Flows to validate again: %d\n", len(rep.StaleFlows))
		for _, f := range rep.StaleFlows {
			fmt.Fprintf(out, "  %s (%d changed functions)\n", f.FlowID, len(f.Touched))
		}
		return nil
	},
}

func init() {
	impactCmd.Flags().BoolVar(&impactJSON, "json", false, "Print the impact report as JSON")
}
