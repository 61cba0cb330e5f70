package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/file-converter/cmd/file-converter/ui"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/download"
)

var convertOpts struct {
	kind      string
	outputDir string
}

var convertCmd = &cobra.Command{
	Use:   "convert --type <kind> [files...]",
	Short: "Convert files between images, PDF and DOCX",
	Long: `Convert runs one conversion over the given files and writes the results to
the output directory:

  img2pdf   images to images.pdf, one page per image
  img2docx  PNG/JPEG images to images.docx
  pdf2img   the first PDF to page1.png ... pageN.png
  docx2img  every image in the first DOCX to docx_img1.png ...`,
	Args: cobra.ArbitraryArgs,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOpts.kind, "type", "t", "", "conversion kind (see 'file-converter kinds')")
	convertCmd.Flags().StringVarP(&convertOpts.outputDir, "output", "o", "", "output directory (default from config)")
	_ = convertCmd.MarkFlagRequired("type")
}

func runConvert(cmd *cobra.Command, args []string) error {
	kind, err := convert.ParseKind(convertOpts.kind)
	if err != nil {
		ui.Error("%s", convert.UnsupportedKindMessage(convertOpts.kind))
		return err
	}

	files := make([]domain.InputFile, 0, len(args))
	for _, path := range args {
		f, err := domain.ReadInputFile(path)
		if err != nil {
			ui.Error("Error reading file: %s", path)
			return err
		}
		files = append(files, f)
	}

	sink, err := download.NewDirSink(outputDir(convertOpts.outputDir), logger)
	if err != nil {
		return err
	}

	dispatcher := convert.NewDefaultDispatcher(cfg, logger)

	eventCh := make(chan domain.StreamEvent, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		showProgress(kind, eventCh)
	}()

	res := dispatcher.Dispatch(cmd.Context(), kind, files, sink, eventCh)
	close(eventCh)
	<-done

	status := convert.StatusMessage(res)
	switch {
	case res.Err != nil:
		ui.Error("%s", status)
	case res.Notice != "":
		ui.Warning("%s", status)
	default:
		ui.Success("%s", status)
	}
	for _, path := range sink.Written() {
		ui.Detail("%s", path)
	}

	if res.Err != nil {
		return res.Failure()
	}
	return nil
}

// showProgress renders dispatch events until the channel is closed. Page
// rendering has no known total, so it gets a spinner instead of a bar.
// Verbose runs print one line per event instead.
func showProgress(kind convert.Kind, events <-chan domain.StreamEvent) {
	if ui.Verbose() {
		logEvents(events)
		return
	}

	if kind == convert.KindPDFToImages {
		spin := ui.NewSpinner("Rendering pages")
		spin.Start()
		defer spin.Stop()

		for e := range events {
			if e.Type == domain.EventOutputReady {
				spin.UpdateMessage(fmt.Sprintf("Rendered %s", e.FileName))
			}
		}
		return
	}

	var bar *ui.ProgressBar
	for e := range events {
		switch e.Type {
		case domain.EventFileProcessing:
			if bar == nil {
				bar = ui.NewProgressBar(int64(e.Total), kind.String())
			}
			bar.SetTotal(int64(e.Total))
			bar.Describe(e.FileName)
			bar.Set(int64(e.Index))
		case domain.EventError:
			if e.Index > 0 {
				ui.Detail("failed: %s: %v", e.FileName, e.Payload)
			}
		}
	}
	if bar != nil {
		bar.Finish()
	}
}

func logEvents(events <-chan domain.StreamEvent) {
	for e := range events {
		switch e.Type {
		case domain.EventFileProcessing:
			ui.Detail("processing %s (%d/%d)", e.FileName, e.Index, e.Total)
		case domain.EventOutputReady:
			ui.Detail("ready %s (%v bytes)", e.FileName, e.Payload)
		case domain.EventError:
			ui.Detail("failed: %s: %v", e.FileName, e.Payload)
		}
	}
}
