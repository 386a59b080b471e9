package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the execution flows in the ground-truth export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := loadFlows()
		if err != nil {
			return err
		}
		roots, err := provider.Flows(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROOT\tCLASS\tFILE")
		for _, r := range roots {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ExecutionFlowID, r.RootFunctionName, r.RootClassHint, r.RootFileHint)
		}
		return w.Flush()
	},
}
