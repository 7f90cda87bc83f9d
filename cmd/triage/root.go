package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/triage/internal/api"
	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/infrastructure"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "triage",
	Short:        "Classify messages and manage escalation state vectors",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to TRIAGE_CONFIG or config.toml)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// newRuntime builds the runtime without starting background work.
func newRuntime() (*api.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	return api.NewRuntime(cfg, infra), nil
}

// openDomain returns a domain over PostgreSQL after confirming the database is reachable.
func openDomain(cmd *cobra.Command, runtime *api.Runtime) (*api.Domain, error) {
	if err := runtime.Database.Ping(cmd.Context()); err != nil {
		return nil, err
	}
	return api.NewDomain(runtime)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
