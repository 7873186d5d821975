package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/common"
	"github.com/MeKo-Tech/pixkit/internal/config"
)

// reportOptions controls how a batch command reports its result.
type reportOptions struct {
	Format   string
	File     string
	Progress string
	Stats    bool
	Quiet    bool
}

// addBatchFlags registers the worker, progress and report flags shared by
// the batch commands.
func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 1, fmt.Sprintf("number of parallel workers (up to %d useful)", runtime.NumCPU()))
	cmd.Flags().String("progress", "none", "progress display: none, bar, log or bar,log")
	cmd.Flags().StringP("format", "f", "text", "report format: text, json, csv")
	cmd.Flags().StringP("output", "o", "", "report file (default: stdout)")
	cmd.Flags().Bool("stats", false, "show processing statistics")
	cmd.Flags().Bool("quiet", false, "suppress the report and progress output")
}

// applyBatchFlags overrides the batch section of cfg with changed flags.
func applyBatchFlags(cfg *config.Config, cmd *cobra.Command) reportOptions {
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("progress") {
		cfg.Batch.Progress, _ = cmd.Flags().GetString("progress")
	}
	if cmd.Flags().Changed("format") {
		cfg.Batch.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		cfg.Batch.ReportFile, _ = cmd.Flags().GetString("output")
	}

	opts := reportOptions{
		Format:   cfg.Batch.Format,
		File:     cfg.Batch.ReportFile,
		Progress: cfg.Batch.Progress,
	}
	opts.Stats, _ = cmd.Flags().GetBool("stats")
	opts.Quiet, _ = cmd.Flags().GetBool("quiet")
	if opts.Format == "" {
		opts.Format = "text"
	}
	if opts.Quiet {
		opts.Progress = "none"
	}
	return opts
}

// progress returns the progress callback for the command's stderr.
func (o reportOptions) progress(cmd *cobra.Command, prefix string) batch.ProgressCallback {
	return batch.NewProgress(o.Progress, cmd.ErrOrStderr(), prefix)
}

// write saves the report and prints statistics. A report file is written
// even in quiet mode.
func (o reportOptions) write(cmd *cobra.Command, result *batch.Result, timer *common.Timer) error {
	if result == nil {
		return nil
	}
	if !o.Quiet || o.File != "" {
		if err := result.Save(o.Format, o.File, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}
	if o.Stats && !o.Quiet {
		result.PrintStats(cmd.OutOrStdout())
		timer.Stop()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Wall time: %s\n  Memory: %s (+%s during run)\n",
			timer.Duration().Round(time.Millisecond), timer.Memory(), common.FormatBytes(timer.AllocatedBytes()))
		slog.Debug("Run finished", "timer", timer)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
