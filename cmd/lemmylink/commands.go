package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"lemmylink/internal/database"
	"lemmylink/internal/migrations"
	"lemmylink/internal/models"

	"github.com/spf13/cobra"
)

// mappingReader is what the status command needs from the store
type mappingReader interface {
	Stats(ctx context.Context) (*models.StoreStats, error)
	AllThreadMappings(ctx context.Context) ([]*models.ThreadMapping, error)
}

// withDatabase loads the configuration, opens the store and hands it to fn
func withDatabase(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, db *database.Database) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger()
	applyLogLevel(logger, cfg.LogLevel, opts.verbose)

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, db)
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bridged threads and mapping counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(ctx context.Context, db *database.Database) error {
				return printStatus(ctx, db, cmd.OutOrStdout())
			})
		},
	}
}

func printStatus(ctx context.Context, store mappingReader, out io.Writer) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read mapping counts: %w", err)
	}
	mappings, err := store.AllThreadMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to list thread mappings: %w", err)
	}

	fmt.Fprintf(out, "Thread mappings:  %d\nComment mappings: %d\n", stats.ThreadMappings, stats.CommentMappings)
	if len(mappings) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORIGIN THREAD\tTRIGGER\tMIRROR THREAD\tCREATED")
	for _, m := range mappings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.OriginThreadID, m.OriginTriggerID, m.MirrorThreadID, m.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the mapping tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(ctx context.Context, db *database.Database) error {
				files, err := migrations.Files()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", f)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date.")
				return nil
			})
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Delete every thread and comment mapping",
		Long: "Drops and recreates both mapping tables. Bridged threads stop syncing and\n" +
			"comments already copied would be copied again if their threads are re-bridged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !assumeYes && !confirmReset(cmd.InOrStdin(), cmd.OutOrStdout()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled.")
				return nil
			}
			return withDatabase(cmd, opts, func(ctx context.Context, db *database.Database) error {
				if err := db.ResetAll(ctx); err != nil {
					return fmt.Errorf("failed to reset database: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&assumeYes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

// confirmReset asks until it reads Y or N. EOF counts as no.
func confirmReset(in io.Reader, out io.Writer) bool {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "This deletes every mapping. Continue? [Y]/[N] ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToUpper(strings.TrimSpace(scanner.Text())) {
		case "Y", "YES":
			return true
		case "N", "NO":
			return false
		}
		fmt.Fprintln(out, "Please answer Y or N.")
	}
}
