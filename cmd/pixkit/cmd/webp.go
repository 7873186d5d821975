package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/common"
	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/webp"
)

// webpCmd converts a directory tree to WebP.
var webpCmd = &cobra.Command{
	Use:   "webp [dir]",
	Short: "Convert the images below a directory to WebP",
	Long: `Walk a directory recursively and write a .webp next to every image.
By default the originals are removed after a successful conversion.
Files that fail to decode or encode are logged and the walk continues.

Examples:
  pixkit webp ./images
  pixkit webp ./images --keep-originals --types png,jpg
  pixkit webp ./images --encoder cwebp --quality 90`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWebPCommand,
}

func configToWebPConfig(cfg *config.Config, cmd *cobra.Command, args []string) error {
	w := &cfg.WebP
	f := cmd.Flags()

	if f.Changed("dir") {
		w.Dir, _ = f.GetString("dir")
	}
	if len(args) == 1 {
		w.Dir = args[0]
	}
	if f.Changed("keep-originals") {
		keep, _ := f.GetBool("keep-originals")
		w.ReplaceFiles = !keep
	}
	if f.Changed("types") {
		w.ConvertImageTypes, _ = f.GetStringSlice("types")
	}
	if f.Changed("quality") {
		w.Quality, _ = f.GetInt("quality")
	}
	if f.Changed("lossless") {
		w.Lossless, _ = f.GetBool("lossless")
	}
	if f.Changed("encoder") {
		w.Encoder, _ = f.GetString("encoder")
	}
	if f.Changed("cwebp-path") {
		w.CWebPPath, _ = f.GetString("cwebp-path")
	}
	return w.Validate()
}

func runWebPCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := configToWebPConfig(cfg, cmd, args); err != nil {
		return err
	}
	report := applyBatchFlags(cfg, cmd)

	enc, err := webp.NewEncoder(cfg.WebP.Encoder, cfg.WebP.CWebPPath)
	if err != nil {
		return err
	}
	conv, err := webp.NewConverter(webp.ConfigFromApp(cfg.WebP, cfg.Batch.Workers), enc, slog.Default())
	if err != nil {
		return err
	}
	conv.WithProgress(report.progress(cmd, "Converting"))

	timer := common.NewNamedTimer("webp")
	result, err := conv.Run(commandContext(cmd))
	if errors.Is(err, batch.ErrNoFiles) {
		if !report.Quiet {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No files found in %s\n", cfg.WebP.Dir)
		}
		return nil
	}
	if werr := report.write(cmd, result, timer); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("webp conversion failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(webpCmd)

	d := config.DefaultConfig().WebP
	webpCmd.Flags().String("dir", d.Dir, "directory to convert")
	webpCmd.Flags().Bool("keep-originals", !d.ReplaceFiles, "keep the source files next to the .webp output")
	webpCmd.Flags().StringSlice("types", d.ConvertImageTypes, "extensions to convert (default: every file)")
	webpCmd.Flags().IntP("quality", "q", d.Quality, "lossy quality (0-100)")
	webpCmd.Flags().Bool("lossless", d.Lossless, "encode losslessly")
	webpCmd.Flags().String("encoder", d.Encoder, "encoder: native or cwebp")
	webpCmd.Flags().String("cwebp-path", d.CWebPPath, "cwebp binary used by the cwebp encoder")
	addBatchFlags(webpCmd)
}
