package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/docxref/pkg/docxref/config"
)

func newPatternsCmd(a *app) *cobra.Command {
	var patternsPath string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the entity patterns used for extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.Loader{PatternsPath: patternsPath}
			comp, err := loader.Load()
			if err != nil {
				return err
			}
			a.logger.Debug("listing patterns", zap.Int("count", comp.Registry.Len()))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tLABEL\tCASE\tREGEX")
			for _, d := range comp.Registry.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.TypeName, d.Label, d.Case, d.Regex)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&patternsPath, "patterns", "", "YAML pattern catalog (default: built-in)")
	return cmd
}
