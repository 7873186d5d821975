package main

import (
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/testutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generatePhotos  = flag.Bool("photos", true, "Generate a folder of sample photos")
		generateFormats = flag.Bool("formats", true, "Generate one sample per supported format")
		out             = flag.String("out", "testdata/images", "Output directory relative to the project root")
		verbose         = flag.Bool("v", false, "Verbose output")
		help            = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate sample images for pixkit testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                   # Generate all sample images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -formats=false    # Generate only the photo folder\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Options", "root", root, "photos", *generatePhotos, "formats", *generateFormats)
	}

	base := filepath.Join(root, *out)

	if *generatePhotos {
		n, err := generatePhotoFolder(filepath.Join(base, "photos"))
		if err != nil {
			slog.Error("Failed to generate photos", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated sample photos", "count", n)
	}

	if *generateFormats {
		n, err := generateFormatSamples(filepath.Join(base, "formats"))
		if err != nil {
			slog.Error("Failed to generate format samples", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated format samples", "count", n)
	}
}

// generatePhotoFolder writes landscape, portrait and square images with a
// caption, the mix a watermark run usually sees.
func generatePhotoFolder(dir string) (int, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("failed to create photo directory: %w", err)
	}

	cfg := testutil.DefaultTestImageConfig()
	samples := []struct {
		name string
		size testutil.ImageSize
	}{
		{"landscape", testutil.MediumSize},
		{"portrait", testutil.ImageSize{Width: 480, Height: 640}},
		{"square", testutil.ImageSize{Width: 512, Height: 512}},
		{"large", testutil.LargeSize},
		{"thumbnail", testutil.SmallSize},
	}

	for _, s := range samples {
		cfg.Text = s.name
		cfg.Size = s.size
		path := filepath.Join(dir, s.name+".png")
		if err := imageops.SaveImage(testutil.GenerateTextImage(cfg), path, imaging.PNG); err != nil {
			return 0, err
		}
	}
	return len(samples), nil
}

// generateFormatSamples writes the same gradient in every writable format.
func generateFormatSamples(dir string) (int, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("failed to create format directory: %w", err)
	}

	var img image.Image = testutil.CreateGradientImage(testutil.SmallSize.Width, testutil.SmallSize.Height)
	formats := []imaging.Format{imaging.PNG, imaging.JPEG, imaging.GIF, imaging.TIFF, imaging.BMP}
	for _, f := range formats {
		path := filepath.Join(dir, "gradient"+imageops.ExtensionFor(f))
		if err := imageops.SaveImage(img, path, f); err != nil {
			return 0, err
		}
	}
	return len(formats), nil
}
