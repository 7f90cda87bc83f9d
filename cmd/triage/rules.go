package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/triage/pkg/pagination"
)

var (
	rulesNamespace string
	rulesPage      int
	rulesPageSize  int
	rulesJSON      bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List learned sender overrides",
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

		page := pagination.PageRequest{Page: rulesPage, PageSize: rulesPageSize}
		res, err := domain.Rules.List(cmd.Context(), page, rulesNamespace)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}

		if rulesJSON {
			return printJSON(cmd, res)
		}

		if len(res.Data) == 0 {
			cmd.Println("No overrides found.")
			return nil
		}
		for _, r := range res.Data {
			cmd.Printf("  %-20s %-40s %-10s v%d\n", r.Namespace, r.Sender, r.Zone, r.Version)
		}
		cmd.Printf("\npage %d of %d (%d total)\n", res.Page, res.TotalPages, res.Total)
		return nil
	},
}

func init() {
	f := rulesCmd.Flags()
	f.StringVar(&rulesNamespace, "namespace", "", "only overrides for this grant")
	f.IntVar(&rulesPage, "page", 1, "page number")
	f.IntVar(&rulesPageSize, "page-size", 0, "page size (config default when 0)")
	f.BoolVar(&rulesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(rulesCmd)
}
