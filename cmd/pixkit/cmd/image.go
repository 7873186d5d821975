package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pixkit/internal/common"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

// imageCmd groups the single-image helpers.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Process images one at a time",
	Long: `Process images with the single-image helpers. Every subcommand reads one
input and writes the result to --out; the output format follows the
extension of --out.

Examples:
  pixkit image resize in.jpg --height 600 --out small.jpg
  pixkit image crop in.png --width 400 --height 400 --out square.png
  pixkit image fit in.jpg
  pixkit image enhance in.jpg --brightness 1.2 --out bright.jpg
  pixkit image text in.png --text "Hello" --y 40 --center --out hello.png
  pixkit image list in.png --item one --item two --gap 30 --out list.png
  pixkit image overlay bg.png logo.png --x 10 --y 10 --out branded.png
  pixkit image info *.jpg --format json`,
}

var imageResizeCmd = &cobra.Command{
	Use:   "resize <input>",
	Short: "Resize an image (keeps the aspect ratio when only --height is set)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		svc := imageService(cmd)

		size := imageops.Size{Width: width, Height: height}
		switch {
		case width == 0 && height == 0:
			size = svc.ResizeSize(img)
		case width == 0:
			size = imageops.ResizeSizeForHeight(img, height)
		case height == 0:
			return errors.New("--height is required when --width is set")
		}

		out, err := svc.Resize(img, size)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "resize", args[0], out)
	},
}

var imageCropCmd = &cobra.Command{
	Use:   "crop <input>",
	Short: "Cut a centered box of --width x --height out of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		out, err := imageService(cmd).Crop(img)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "crop", args[0], out)
	},
}

var imageFitCmd = &cobra.Command{
	Use:   "fit <input>",
	Short: "Resize to the target height and center-crop to the target size",
	Long: `Resize to the target height and center-crop to the target size. Without
--out the input file is rewritten in place; nothing is written when the
image already has the target size.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := imageService(cmd)
		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			changed, err := svc.FitFile(args[0])
			if err != nil {
				return err
			}
			if changed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: fitted to %s\n", args[0], svc.Size())
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: already %s\n", args[0], svc.Size())
			}
			return nil
		}

		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		out, _, err := svc.Fit(img)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "fit", args[0], out)
	},
}

var imageEnhanceCmd = &cobra.Command{
	Use:   "enhance <input>",
	Short: "Adjust brightness and saturation (1 keeps the image unchanged)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		factor := GetConfig().Image.EnhanceFactor
		brightness, saturation := factor, factor
		if cmd.Flags().Changed("brightness") {
			brightness, _ = cmd.Flags().GetFloat64("brightness")
		}
		if cmd.Flags().Changed("saturation") {
			saturation, _ = cmd.Flags().GetFloat64("saturation")
		}

		out, err := imageops.Brightness(img, brightness)
		if err != nil {
			return err
		}
		if out, err = imageops.Saturation(out, saturation); err != nil {
			return err
		}
		return writeOutput(cmd, "enhance", args[0], out)
	},
}

var imageTextCmd = &cobra.Command{
	Use:   "text <input>",
	Short: "Draw a line of text onto an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		col, size, fontPath, err := textStyle(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")
		center, _ := cmd.Flags().GetBool("center")

		out, err := imageops.WriteText(img, imageops.TextOptions{
			Text:               text,
			Position:           image.Pt(x, y),
			Color:              col,
			Size:               size,
			FontPath:           fontPath,
			CenterHorizontally: center,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd, "text", args[0], out)
	},
}

var imageListCmd = &cobra.Command{
	Use:   "list <input>",
	Short: "Draw a list of items at evenly spaced positions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadInput(args[0])
		if err != nil {
			return err
		}
		col, size, fontPath, err := textStyle(cmd)
		if err != nil {
			return err
		}
		items, _ := cmd.Flags().GetStringArray("item")
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")
		gap, _ := cmd.Flags().GetInt("gap")
		dirName, _ := cmd.Flags().GetString("direction")
		dir, err := imageops.ParseDirection(dirName)
		if err != nil {
			return err
		}

		out, err := imageops.WriteList(img, items, imageops.ListOptions{
			Start:     image.Pt(x, y),
			Gap:       gap,
			Direction: dir,
			Color:     col,
			Size:      size,
			FontPath:  fontPath,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd, "list", args[0], out)
	},
}

var imageOverlayCmd = &cobra.Command{
	Use:   "overlay <background> <overlay>",
	Short: "Paste an image onto another using its alpha channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bg, err := loadInput(args[0])
		if err != nil {
			return err
		}
		fg, err := loadInput(args[1])
		if err != nil {
			return err
		}
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")

		out, err := imageops.Overlay(bg, fg, image.Pt(x, y))
		if err != nil {
			return err
		}
		return writeOutput(cmd, "overlay", args[0], out)
	},
}

var imageInfoCmd = &cobra.Command{
	Use:   "info <input>...",
	Short: "Print format, size and dimensions of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		infos := make([]imageops.ImageMetadata, 0, len(args))
		for _, path := range args {
			_, meta, err := imageops.LoadImage(path)
			if err != nil {
				return err
			}
			infos = append(infos, meta)
		}

		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		case "text", "":
			for _, m := range infos {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %dx%d, %d bytes\n",
					m.Path, m.Format, m.Width, m.Height, m.SizeBytes)
			}
			return nil
		default:
			return fmt.Errorf("unsupported format: %s", format)
		}
	},
}

// imageService builds a service for the target size from --width/--height
// falling back to the image section of the config.
func imageService(cmd *cobra.Command) *imageops.Service {
	cfg := GetConfig()
	size := imageops.Size{Width: cfg.Image.Width, Height: cfg.Image.Height}
	if cmd.Flags().Changed("width") {
		size.Width, _ = cmd.Flags().GetInt("width")
	}
	if cmd.Flags().Changed("height") {
		size.Height, _ = cmd.Flags().GetInt("height")
	}
	return imageops.NewService(size)
}

func textStyle(cmd *cobra.Command) (col color.NRGBA, size float64, fontPath string, err error) {
	colorName, _ := cmd.Flags().GetString("color")
	if col, err = imageops.ParseColor(colorName); err != nil {
		return col, 0, "", err
	}
	size, _ = cmd.Flags().GetFloat64("size")
	fontPath = GetConfig().Image.FontPath
	if cmd.Flags().Changed("font") {
		fontPath, _ = cmd.Flags().GetString("font")
	}
	return col, size, fontPath, nil
}

func loadInput(path string) (image.Image, error) {
	img, _, err := imageops.LoadImage(path)
	return img, err
}

// writeOutput saves img to --out in the format given by its extension.
func writeOutput(cmd *cobra.Command, op, input string, img image.Image) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return errors.New("--out is required")
	}
	format, err := imageops.FormatFromName(filepath.Ext(out))
	if err != nil {
		return err
	}

	timer := common.NewNamedTimer(op)
	if err := imageops.SaveImage(img, out, format); err != nil {
		return err
	}
	timer.Stop()

	b := img.Bounds()
	slog.Debug("Saved image", "operation", op, "source", input, "target", out, "timer", timer)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (%dx%d)\n", op, input, out, b.Dx(), b.Dy())
	return nil
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imageResizeCmd, imageCropCmd, imageFitCmd, imageEnhanceCmd,
		imageTextCmd, imageListCmd, imageOverlayCmd, imageInfoCmd)

	for _, c := range []*cobra.Command{
		imageResizeCmd, imageCropCmd, imageFitCmd, imageEnhanceCmd,
		imageTextCmd, imageListCmd, imageOverlayCmd,
	} {
		c.Flags().String("out", "", "output file; the extension selects the format")
	}

	for _, c := range []*cobra.Command{imageResizeCmd, imageCropCmd, imageFitCmd} {
		c.Flags().Int("width", 0, "target width (default: image.width from config)")
		c.Flags().Int("height", 0, "target height (default: image.height from config)")
	}

	imageEnhanceCmd.Flags().Float64("brightness", 0, "brightness factor (default: image.enhance_factor)")
	imageEnhanceCmd.Flags().Float64("saturation", 0, "saturation factor (default: image.enhance_factor)")

	for _, c := range []*cobra.Command{imageTextCmd, imageListCmd} {
		c.Flags().String("color", "black", "text color name or #rrggbb")
		c.Flags().Float64("size", 24, "font size in points")
		c.Flags().String("font", "", "font file or builtin:regular|italic|bold")
		c.Flags().Int("x", 0, "left edge of the (first) text box")
		c.Flags().Int("y", 0, "top edge of the (first) text box")
	}
	imageTextCmd.Flags().String("text", "", "text to draw")
	imageTextCmd.Flags().Bool("center", false, "center horizontally and use only --y")
	imageListCmd.Flags().StringArray("item", nil, "list item (repeatable)")
	imageListCmd.Flags().Int("gap", 30, "distance between items in pixels")
	imageListCmd.Flags().String("direction", "vertical", "vertical or horizontal")

	imageOverlayCmd.Flags().Int("x", 0, "x offset of the overlay")
	imageOverlayCmd.Flags().Int("y", 0, "y offset of the overlay")

	imageInfoCmd.Flags().StringP("format", "f", "text", "output format: text, json")
}
