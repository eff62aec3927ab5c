package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"darkroom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session root:   %s\n", cfg.Paths.SessionRoot)
			fmt.Fprintf(out, "Media dir:      %s\n", cfg.Paths.MediaDir)
			fmt.Fprintf(out, "Spool dir:      %s\n", cfg.Paths.SpoolDir)
			fmt.Fprintf(out, "Log dir:        %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Log format:     %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "Log level:      %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "Ingest:         %s (settle %ds)\n", yesNo(cfg.Ingest.Enabled), cfg.Ingest.SettleSeconds)
			topic := cfg.Notifications.NtfyTopic
			if topic == "" {
				topic = "(disabled)"
			}
			fmt.Fprintf(out, "Ntfy topic:     %s\n", topic)
			fmt.Fprintf(out, "Push progress:  %s (step %d%%)\n", yesNo(cfg.Notifications.Progress), cfg.Notifications.ProgressStep)
			fmt.Fprintf(out, "Push errors:    %s\n", yesNo(cfg.Notifications.Errors))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
