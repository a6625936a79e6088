package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	initURL     string
	initAnonKey string
)

func registerConfigCommands(root *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bazaar configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file pointing at a backend project",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().StringVar(&initURL, "url", "", "Backend project URL (https://<ref>.supabase.co)")
	initCmd.Flags().StringVar(&initAnonKey, "anon-key", "", "Public anon key of the project")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(initCmd, showCmd)
	root.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if initURL != "" {
		cfg.Backend.URL = initURL
	}
	if initAnonKey != "" {
		cfg.Backend.AnonKey = initAnonKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	key := "(not set)"
	if cfg.Backend.AnonKey != "" {
		key = "(set)"
	}
	url := cfg.Backend.URL
	if url == "" {
		url = "(not set)"
	}
	fmt.Fprintf(out, "config:   %s\n", configPath)
	fmt.Fprintf(out, "backend:  %s\n", url)
	fmt.Fprintf(out, "anon key: %s\n", key)
	fmt.Fprintf(out, "timeout:  %s\n", cfg.GetTimeout())
	fmt.Fprintf(out, "notify:   %d attempt(s), %s backoff\n", cfg.GetNotifyAttempts(), cfg.GetNotifyBackoff())
	fmt.Fprintf(out, "session:  %s\n", cfg.SessionPath())
	fmt.Fprintf(out, "outbox:   %s\n", cfg.OutboxPath())
	fmt.Fprintf(out, "log:      %s (%s)\n", cfg.LogPath(), cfg.Logging.Level)
	return nil
}
