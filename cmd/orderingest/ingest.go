package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/JonMunkholm/orderingest/internal/logging"
	"github.com/JonMunkholm/orderingest/internal/source"
	"github.com/JonMunkholm/orderingest/internal/store"
	"github.com/spf13/cobra"
)

type ingestOptions struct {
	csvPath string
	label   string
	dbURL   string
	driver  string
	workers int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest --csv <file>",
		Short: "Load one CSV file into the order tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "path to input CSV")
	cmd.Flags().StringVar(&opts.label, "label", "", "source label stored with every row (default: the CSV path)")
	cmd.Flags().StringVar(&opts.dbURL, "db", "", "database URL or SQLite file path (overrides DATABASE_URL)")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "database driver: sqlite or postgres (overrides DB_DRIVER)")
	cmd.Flags().IntVar(&opts.workers, "workers", -1, "canonicalization workers (default: INGEST_WORKERS)")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}

// runIngest processes one file and prints stage progress to out.
func runIngest(ctx context.Context, out io.Writer, opts ingestOptions) error {
	cfg, err := loadConfig(opts.dbURL, opts.driver)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	fmt.Fprintf(out, "▶ Reading CSV: %s\n", opts.csvPath)
	batch, err := source.ReadFile(opts.csvPath)
	if err != nil {
		return userError(err)
	}

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return userError(err)
	}
	defer st.Close()

	label := opts.label
	if label == "" {
		label = opts.csvPath
	}
	workers := cfg.Ingest.Workers
	if opts.workers >= 0 {
		workers = opts.workers
	}

	fmt.Fprintln(out, "▶ Writing to staging …")
	fmt.Fprintln(out, "▶ Canonicalizing & validating …")

	in := core.NewIngester(st, workers).OnProgress(func(stage core.Stage, s core.Stats) {
		if stage != core.StageClassified {
			return
		}
		fmt.Fprintf(out, "   - exact duplicates dropped: %d\n", s.ExactDuplicates)
		fmt.Fprintf(out, "   - conflicting duplicates routed to rejects: %d\n", s.ConflictingDuplicates)
		fmt.Fprintf(out, "   - valid rows: %d ; rejects: %d\n", s.Clean, s.Rejected)
		fmt.Fprintln(out, "▶ Loading final & rejects …")
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Ingest.Timeout)
	defer cancel()

	report, err := in.Run(ctx, label, batch.Rows)
	if err != nil {
		return userError(err)
	}

	slog.Info("batch ingested",
		"batch_id", report.Meta.ID,
		"source", label,
		"bytes", batch.Bytes,
		"duration_ms", report.Duration.Milliseconds(),
	)
	fmt.Fprintln(out, "✅ Done.")
	return nil
}

// userError logs the technical error and returns the mapped message with
// its code and suggested action.
func userError(err error) error {
	slog.Error("ingest failed", "error", err)
	return errors.New(core.FormatUserError(err))
}
