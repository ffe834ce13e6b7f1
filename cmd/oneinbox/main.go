package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"oneinbox/internal/config"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "oneinbox",
		Short: "OneInBox: one inbox for WhatsApp, Instagram and Facebook",
		Long:  "OneInBox answers customer messages from several platforms with a rule-based assistant and keeps every thread in one place.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (defaults plus environment when empty)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	load := configLoader(func() (*config.Config, error) {
		if configPath == "" {
			return config.FromEnv()
		}
		return config.Load(configPath)
	})

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newSimulateCmd(load))
	cmd.AddCommand(newChatCmd(load))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "oneinbox %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// configLoader returns the configuration selected by the root flags.
type configLoader func() (*config.Config, error)

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
