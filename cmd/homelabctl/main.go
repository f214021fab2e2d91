package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"homelabctl/internal/archive"
	"homelabctl/internal/config"
	"homelabctl/internal/dockercli"
	"homelabctl/internal/gravity"
	"homelabctl/internal/inspect"
	"homelabctl/internal/lock"
	"homelabctl/internal/logging"
	"homelabctl/internal/patch"
	"homelabctl/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	DryRun     bool
}

func main() {
	root := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "homelabctl",
		Short:         "Host-side automation for a small self-hosted Docker deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")
	rootCmd.PersistentFlags().BoolVar(&root.DryRun, "dry-run", false, "Show intended changes without applying them")

	rootCmd.AddCommand(newAdlistsCmd(root))
	rootCmd.AddCommand(newPatchBackupCmd(root))
	rootCmd.AddCommand(newInspectImageCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func newAdlistsCmd(root *rootFlags) *cobra.Command {
	var container string
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "adlists",
		Short: "Ensure the configured Pi-hole adlists are present and enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			runtime, err := dockercli.New()
			if err != nil {
				return err
			}
			if container != "" {
				cfg.Gravity.Container = container
			}
			prov := &gravity.Provisioner{
				Runtime: runtime,
				Cfg:     cfg.Gravity,
				Log:     logger,
				Out:     cmd.OutOrStdout(),
				DryRun:  root.DryRun,
			}
			ctx := context.Background()
			if listOnly {
				target, err := prov.ResolveContainer(ctx)
				if err != nil {
					return err
				}
				return prov.List(ctx, target)
			}
			return prov.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&container, "container", "", "Pi-hole container name (default: auto-detect)")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List current adlists and exit")
	return cmd
}

func newPatchBackupCmd(root *rootFlags) *cobra.Command {
	var backup string
	var containers []string
	var extraPrefixes []string
	var rebuildImage bool

	cmd := &cobra.Command{
		Use:   "patch-backup",
		Short: "Add missing bind-mount archives to the latest backup snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			runtime, err := dockercli.New()
			if err != nil {
				return err
			}

			if !root.DryRun {
				guard, err := lock.Acquire(cfg.Global.LockFile)
				if err != nil {
					return err
				}
				defer guard.Release()
			}

			patcher := &patch.Patcher{
				Runtime:  runtime,
				Archiver: &archive.HostArchiver{},
				Cfg:      cfg.Patch,
				Log:      logger,
				Out:      cmd.OutOrStdout(),
				DryRun:   root.DryRun,
			}
			return patcher.Run(context.Background(), backup, containers, extraPrefixes, rebuildImage)
		},
	}

	cmd.Flags().StringVar(&backup, "backup", "", "Path to an existing backup directory (default: latest snapshot)")
	cmd.Flags().StringSliceVar(&containers, "containers", nil, "Containers to inspect (default: from config)")
	cmd.Flags().StringArrayVar(&extraPrefixes, "extra-prefix", nil, "Extra host path prefixes to allow for archiving (repeatable)")
	cmd.Flags().BoolVar(&rebuildImage, "rebuild-image", false, "Rebuild the backup image after patching")
	return cmd
}

func newInspectImageCmd(root *rootFlags) *cobra.Command {
	var image string
	var auto bool
	var expect []string

	cmd := &cobra.Command{
		Use:   "inspect-image",
		Short: "Inspect a packaged backup image for completeness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			runtime, err := dockercli.New()
			if err != nil {
				return err
			}
			insp := &inspect.Inspector{
				Runtime: runtime,
				Cfg:     cfg.Inspect,
				Log:     logger,
				Out:     cmd.OutOrStdout(),
			}
			return insp.Run(context.Background(), image, expect)
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "Exact image tag, e.g. homelab-backup:2025-08-12_201735")
	cmd.Flags().BoolVar(&auto, "auto", false, "Auto-pick the latest backup image (default when --image is omitted)")
	cmd.Flags().StringSliceVar(&expect, "expect", nil, "Highlight these containers first (default: from config)")
	cmd.MarkFlagsMutuallyExclusive("image", "auto")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "homelabctl %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func setup(root *rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}
	return cfg, logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat), nil
}
