package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tickJSON bool

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one escalation sweep",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		runtime, err := newRuntime()
		if err != nil {
			return err
		}
		defer runtime.Database.Connection().Close()

		domain, err := openDomain(cmd, runtime)
		if err != nil {
			return err
		}

		res, err := domain.Escalation.Tick(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		if tickJSON {
			return printJSON(cmd, res)
		}

		cmd.Printf("escalated: %d\n", len(res.Escalated))
		cmd.Printf("skipped:   %d\n", res.Skipped)
		cmd.Printf("failed:    %d\n", len(res.Failures))
		for _, f := range res.Failures {
			cmd.Printf("  %s: %s\n", f.VectorID, f.Error)
		}
		return nil
	},
}

func init() {
	tickCmd.Flags().BoolVar(&tickJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(tickCmd)
}
