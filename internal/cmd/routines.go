package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odavl/insight/pkg/analyze"
	"github.com/odavl/insight/pkg/analyze/routines"
)

var routinesCmd = &cobra.Command{
	Use:   "routines",
	Short: "List registered analysis routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := analyze.NewRegistry()
		routines.Register(registry)

		for _, name := range registry.Names() {
			routine, err := registry.Resolve(name)
			if err != nil {
				return err
			}
			exts := "all files"
			if e := routine.Extensions(); len(e) > 0 {
				exts = strings.Join(e, ", ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", name, exts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routinesCmd)
}
