package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/file-converter/cmd/file-converter/ui"
	"github.com/spherical/file-converter/internal/download"
	"github.com/spherical/file-converter/internal/raster"
)

var resizeOpts struct {
	width         string
	height        string
	quality       string
	interpolation string
	outputDir     string
}

var resizeCmd = &cobra.Command{
	Use:   "resize <image>",
	Short: "Resize an image and recompress it as JPEG",
	Long: `Resize decodes an image, redraws it at the requested size and writes it as
compressed-image.jpg. Width and height default to the image's native size;
quality is a fraction between 0 and 1.`,
	Args: cobra.ExactArgs(1),
	RunE: runResize,
}

func init() {
	resizeCmd.Flags().StringVar(&resizeOpts.width, "width", "", "target width in pixels (default: native)")
	resizeCmd.Flags().StringVar(&resizeOpts.height, "height", "", "target height in pixels (default: native)")
	resizeCmd.Flags().StringVarP(&resizeOpts.quality, "quality", "q", "", "JPEG quality between 0 and 1 (default from config)")
	resizeCmd.Flags().StringVar(&resizeOpts.interpolation, "interpolation", "", "nearest, bilinear, catmullrom or lanczos3")
	resizeCmd.Flags().StringVarP(&resizeOpts.outputDir, "output", "o", "", "output directory (default from config)")
}

func runResize(cmd *cobra.Command, args []string) error {
	method := cfg.Resize.Interpolation
	if resizeOpts.interpolation != "" {
		method = resizeOpts.interpolation
	}
	interp, err := raster.ParseInterpolation(method)
	if err != nil {
		return err
	}

	pipeline := raster.NewPipeline(raster.Options{
		FileName:       cfg.Resize.FileName,
		DefaultQuality: cfg.Resize.DefaultQuality,
		Interpolation:  interp,
		MaxPixels:      cfg.Resize.MaxPixels,
		Logger:         logger,
	})

	f, err := os.Open(args[0])
	if err != nil {
		ui.Error("Error reading image: %s", args[0])
		return err
	}
	defer f.Close()

	if err := pipeline.Load(f); err != nil {
		ui.Error("Error reading image: %s", args[0])
		return err
	}
	if err := pipeline.Update(resizeOpts.width, resizeOpts.height, resizeOpts.quality); err != nil {
		ui.Error("Invalid resize parameters")
		return err
	}

	out, err := pipeline.Export()
	if err != nil {
		return err
	}

	sink, err := download.NewDirSink(outputDir(resizeOpts.outputDir), logger)
	if err != nil {
		return err
	}
	if err := sink.Deliver(cmd.Context(), out); err != nil {
		return err
	}

	p := pipeline.Params()
	ui.Success("Saved %s (%dx%d, quality %.2f, %d bytes)", out.Name, p.Width, p.Height, p.Quality, out.Size())
	for _, path := range sink.Written() {
		ui.Detail("%s", path)
	}
	return nil
}

func outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Output.Dir
}
