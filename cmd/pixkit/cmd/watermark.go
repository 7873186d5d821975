package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/common"
	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/watermark"
)

// watermarkCmd watermarks every supported image of a source directory.
var watermarkCmd = &cobra.Command{
	Use:   "watermark [source-dir]",
	Short: "Watermark every image in a directory",
	Long: `Draw a text watermark in the bottom-right corner of every supported image
in the source directory and store the results in the destination.

The destination is a local directory, s3://bucket/prefix or mem:// (discard).
Without --continue-on-error the first failing file stops the batch.

Examples:
  pixkit watermark --source photos --dest marked
  pixkit watermark photos --text "© ACME" --opacity 128 --color "#ff8800"
  pixkit watermark --dest s3://bucket/marked --workers 4 --progress bar
  pixkit watermark --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatermarkCommand,
}

// configToWatermarkConfig applies changed flags to the watermark section of
// cfg. Positional source directories win over --source.
func configToWatermarkConfig(cfg *config.Config, cmd *cobra.Command, args []string) {
	wm := &cfg.Watermark
	f := cmd.Flags()

	if f.Changed("source") {
		wm.SourceDir, _ = f.GetString("source")
	}
	if len(args) == 1 {
		wm.SourceDir = args[0]
	}
	if f.Changed("dest") {
		wm.DestDir, _ = f.GetString("dest")
	}
	if f.Changed("text") {
		wm.Text, _ = f.GetString("text")
	}
	if f.Changed("font") {
		wm.FontPath, _ = f.GetString("font")
	}
	if f.Changed("opacity") {
		wm.Opacity, _ = f.GetInt("opacity")
	}
	if f.Changed("color") {
		wm.Color, _ = f.GetString("color")
	}
	if f.Changed("margin") {
		wm.Margin, _ = f.GetInt("margin")
	}
	if f.Changed("divisor") {
		wm.SizeDivisor, _ = f.GetFloat64("divisor")
	}
	if f.Changed("extensions") {
		wm.Extensions, _ = f.GetStringSlice("extensions")
	}
	if f.Changed("output-format") {
		wm.OutputFormat, _ = f.GetString("output-format")
	}
	if f.Changed("recursive") {
		wm.Recursive, _ = f.GetBool("recursive")
	}
	if f.Changed("continue-on-error") {
		wm.ContinueOnError, _ = f.GetBool("continue-on-error")
	}
	if f.Changed("pdf-bundle") {
		wm.PDFBundle, _ = f.GetString("pdf-bundle")
	}
	if f.Changed("debounce") {
		wm.WatchDebounceMS, _ = f.GetInt("debounce")
	}
}

func runWatermarkCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	configToWatermarkConfig(cfg, cmd, args)
	report := applyBatchFlags(cfg, cmd)

	proc, err := watermark.NewFromConfig(cfg, slog.Default())
	if err != nil {
		return err
	}
	proc.WithProgress(report.progress(cmd, "Watermarking"))

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return watchDirectory(cmd, proc)
	}

	timer := common.NewNamedTimer("watermark")
	result, err := proc.ProcessDir(commandContext(cmd))
	if errors.Is(err, batch.ErrNoFiles) {
		if !report.Quiet {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No images found in %s\n", cfg.Watermark.SourceDir)
		}
		return nil
	}
	if werr := report.write(cmd, result, timer); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("watermark failed: %w", err)
	}
	return nil
}

// watchDirectory runs the processor in watch mode until SIGINT/SIGTERM.
func watchDirectory(cmd *cobra.Command, proc *watermark.Processor) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan watermark.WatchEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", ev.Path, ev.Err)
				continue
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", ev.Path, ev.Output)
		}
	}()

	err := proc.Watch(ctx, events)
	close(events)
	<-done
	return err
}

func init() {
	rootCmd.AddCommand(watermarkCmd)

	d := config.DefaultConfig().Watermark
	watermarkCmd.Flags().String("source", d.SourceDir, "source directory")
	watermarkCmd.Flags().String("dest", d.DestDir, "destination directory, s3://bucket/prefix or mem://")
	watermarkCmd.Flags().String("text", d.Text, "watermark text")
	watermarkCmd.Flags().String("font", d.FontPath, "TrueType/OpenType font file or builtin:regular|italic|bold")
	watermarkCmd.Flags().Int("opacity", d.Opacity, "text opacity (0-255)")
	watermarkCmd.Flags().String("color", d.Color, "text color name or #rrggbb")
	watermarkCmd.Flags().Int("margin", d.Margin, "distance from the bottom-right corner in pixels")
	watermarkCmd.Flags().Float64("divisor", d.SizeDivisor, "font size is image height divided by this value")
	watermarkCmd.Flags().StringSlice("extensions", d.Extensions, "file extensions to process")
	watermarkCmd.Flags().String("output-format", d.OutputFormat, "output format: png, jpg, gif, tif, bmp")
	watermarkCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	watermarkCmd.Flags().Bool("continue-on-error", false, "keep going after a file fails")
	watermarkCmd.Flags().String("pdf-bundle", "", "also bundle the outputs into this PDF (local destinations only)")
	watermarkCmd.Flags().Bool("watch", false, "keep running and watermark new files as they appear")
	watermarkCmd.Flags().Int("debounce", d.WatchDebounceMS, "watch mode debounce in milliseconds")
	addBatchFlags(watermarkCmd)
}
