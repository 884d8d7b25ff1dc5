package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/quorum/internal/cli"
	"github.com/aretw0/quorum/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Quorum runs approval flows",
	Long: `Quorum routes requests through risk assessment, branching and concurrent
sign-off. Flows are JSON, YAML or HCL documents.

Settings come from QUORUM_* environment variables (and an optional .env file);
the global flags below override them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env-file", ".env", "Env file read before the environment")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.String("store", "", "Storage backend: memory, file, redis or sqlite")
	flags.String("dir", "", "Base directory of the file and sqlite stores")
	flags.String("oracle", "", "Risk oracle: heuristic, deepseek, openai or ollama")
}

func loadSettings(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")

	loaded, err := config.Load(envFile)
	if err != nil {
		return err
	}
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("log-level", &loaded.LogLevel)
	override("store", &loaded.Store)
	override("dir", &loaded.Dir)
	override("oracle", &loaded.Oracle.Provider)
	if err := loaded.Validate(); err != nil {
		return err
	}

	jsonLogs, _ := flags.GetBool("log-json")
	l, err := cli.NewLogger(loaded, os.Stderr, jsonLogs)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	return nil
}
