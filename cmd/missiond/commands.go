package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/missionengine/internal/app"
	"github.com/yungbote/missionengine/internal/missions/catalog"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "missiond",
		Short:         "Mission progress tracking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newDrainCommand())
	cmd.AddCommand(newCatalogCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, action dispatcher and background worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()

			a.Start()
			return a.Run(ctx)
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired incomplete missions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, "reaped", func(ctx context.Context, a *app.App) (int, error) {
				return a.Sweep(ctx)
			})
		},
	}
}

func newDrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Apply every due progress outbox row once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, "applied", func(ctx context.Context, a *app.App) (int, error) {
				return a.Drain(ctx)
			})
		},
	}
}

func runOnce(cmd *cobra.Command, label string, fn func(ctx context.Context, a *app.App) (int, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	n, err := fn(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", label, n)
	return nil
}

func newCatalogCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print the requirement catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = os.Getenv("MISSION_CATALOG_PATH")
			}
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}
			printCatalog(cmd, cat)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "YAML catalog override (defaults to MISSION_CATALOG_PATH)")
	return cmd
}

func printCatalog(cmd *cobra.Command, cat *catalog.Catalog) {
	out := cmd.OutOrStdout()
	for _, action := range cat.Actions() {
		marker := ""
		if cat.IsImmediate(action) {
			marker = " (immediate)"
		}
		keys := cat.RequirementsFor(action)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			rule := cat.RuleFor(k)
			parts = append(parts, fmt.Sprintf("%s[%s]", k, rule.Kind))
		}
		fmt.Fprintf(out, "%s%s: %s\n", action, marker, strings.Join(parts, ", "))
	}
}
