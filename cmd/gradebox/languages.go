package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported solution languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LANGUAGE\tRUNTIME\tIMAGE")
		for _, l := range languages.All() {
			cfg := languages.ConfigFor(l)
			fmt.Fprintf(w, "%s\t%s\t%s\n", l, cfg.RunCommand, cfg.Image)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
