package main

import (
	"fmt"
	"text/tabwriter"

	"trustgraph/internal/storage"

	"github.com/spf13/cobra"
)

var lookupFile string

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Find functions in the index by bare name, or by name and file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx, err := openIndex(cfg.Project.Root)
		if err != nil {
			return err
		}
		defer idx.Close()

		var entries []storage.Entry
		if lookupFile != "" {
			e, err := idx.LookupByQualified(ctx, args[0], lookupFile)
			if err != nil {
				return err
			}
			if e != nil {
				entries = append(entries, *e)
			}
		} else {
			entries, err = idx.LookupByBareName(ctx, args[0])
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintf(out, "no function named %s\n", args[0])
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCLASS\tFILE\tLINES\tKIND\tLANGUAGE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%s\t%s\n", e.Name, e.Class, e.Filepath, e.StartLine, e.EndLine, e.Kind, e.Language)
		}
		return w.Flush()
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFile, "file", "", "Restrict the lookup to one indexed file path")
}
