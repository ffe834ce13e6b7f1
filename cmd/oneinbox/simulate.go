package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"oneinbox/internal/app"
	"oneinbox/internal/domain"
)

func newSimulateCmd(load configLoader) *cobra.Command {
	var (
		count    int
		platform string
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate demo traffic and print the conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.New("--count must be at least 1")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if seed != 0 {
				cfg.Dialogue.Seed = seed
			}
			inboxApp, err := app.Build(cfg, slog.Default())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for range count {
				msgs, err := inboxApp.Service.Generate(cmd.Context(), platform)
				if err != nil {
					return err
				}
				printTurn(out, msgs)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of inbound messages to generate")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "restrict traffic to one platform")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (overrides dialogue.seed)")
	return cmd
}

func printTurn(w io.Writer, msgs []domain.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %-10s %-12s %s\n", m.Timestamp, m.Platform, m.User+":", m.Text)
	}
}
