package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"darkroom/internal/errstore"
)

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect recorded capture failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listErrors(ctx, cmd)
		},
	}

	errorsCmd.AddCommand(newErrorsClearCommand(ctx))
	return errorsCmd
}

func listErrors(ctx *commandContext, cmd *cobra.Command) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := errstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open failure store: %w", err)
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list failures: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No recorded failures")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Identifier,
			entry.Reason,
			entry.CreatedAt.Local().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Identifier", "Reason", "Recorded"}, rows, stdoutIsTerminal()))
	return nil
}

func newErrorsClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear [identifier...]",
		Short: "Clear recorded capture failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearAll && len(args) == 0 {
				return fmt.Errorf("provide at least one identifier or --all")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := errstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open failure store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list failures: %w", err)
				}
				for _, entry := range entries {
					if err := store.Clear(cmd.Context(), entry.Identifier); err != nil {
						return fmt.Errorf("clear %s: %w", entry.Identifier, err)
					}
				}
				fmt.Fprintf(out, "Cleared %d recorded failure(s)\n", len(entries))
				return nil
			}

			for _, id := range args {
				id = strings.TrimSpace(id)
				if id == "" {
					continue
				}
				if err := store.Clear(cmd.Context(), id); err != nil {
					return fmt.Errorf("clear %s: %w", id, err)
				}
				fmt.Fprintf(out, "Cleared %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Clear every recorded failure")
	return cmd
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
