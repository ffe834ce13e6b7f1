package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"oneinbox/internal/app"
	"oneinbox/internal/repository"
	"oneinbox/internal/usecase"
)

func newChatCmd(load configLoader) *cobra.Command {
	var (
		platform string
		user     string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long:  "Reads one message per line from stdin and prints the assistant's reply. An empty line or EOF ends the session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			var opts []usecase.InboxOption
			if path := cfg.Archive.SQLitePath; path != "" {
				archive, err := repository.OpenSQLite(path)
				if err != nil {
					return err
				}
				defer func() { _ = archive.Close() }()
				opts = append(opts, usecase.WithArchiver(archive))
			}

			inboxApp, err := app.Build(cfg, slog.Default(), opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					return nil
				}
				msgs, err := inboxApp.Service.Send(cmd.Context(), usecase.SendInput{Platform: platform, User: user, Text: text})
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", msgs[1].User, msgs[1].Text)
			}
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "whatsapp", "platform the messages arrive on")
	cmd.Flags().StringVarP(&user, "user", "u", "", "customer name")
	return cmd
}
