// Package convert dispatches a conversion kind over a set of input files to
// the routine that handles it.
package convert

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/file-converter/internal/docx"
	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// Components are the collaborators the routines need. A nil component makes
// the routines that depend on it fail with a missing-dependency error.
type Components struct {
	PDFBuilder  domain.DocumentBuilder
	DOCXBuilder domain.DocumentBuilder
	PDFRenderer domain.PageRenderer
	DOCXImages  domain.ImageLocator
	Fetcher     domain.Fetcher
}

// availability is implemented by components that may be compiled out
type availability interface {
	Available() bool
}

// Dispatcher runs one conversion per call
type Dispatcher struct {
	components  Components
	maxParallel int
	logger      *observability.Logger
}

// NewDispatcher creates a dispatcher. maxParallel bounds the concurrent image
// fetches of the DOCX routine.
func NewDispatcher(components Components, maxParallel int, logger *observability.Logger) *Dispatcher {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Dispatcher{
		components:  components,
		maxParallel: maxParallel,
		logger:      logger.WithComponent("dispatcher"),
	}
}

// Dispatch runs the routine for kind over files and delivers every output to
// sink. Progress is reported on eventCh when it is non-nil; a full channel
// drops events rather than blocking the conversion.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, files []domain.InputFile, sink domain.Sink, eventCh chan<- domain.StreamEvent) Result {
	dispatchID := observability.DispatchIDFromContext(ctx)
	if dispatchID == "" {
		dispatchID = uuid.New().String()
		ctx = observability.ContextWithDispatchID(ctx, dispatchID)
	}
	logger := d.logger.WithContext(ctx).WithOperation(kind.String())
	run := &dispatch{
		Dispatcher: d,
		id:         dispatchID,
		kind:       kind,
		sink:       sink,
		events:     eventCh,
		logger:     logger,
	}

	startTime := time.Now()
	run.emit(domain.StreamEvent{
		Type:    domain.EventStart,
		Total:   len(files),
		Payload: fmt.Sprintf("Starting %s on %d file(s)", kind, len(files)),
	})

	var result Result
	switch {
	case len(files) == 0:
		result = failed(kind, domain.ValidationError("no files selected", ErrNoFiles))
	case sink == nil:
		result = failed(kind, domain.MissingDependencyError("Download sink", nil))
	default:
		result = run.route(ctx, files)
	}
	result.Kind = kind
	result.Delivered = len(result.Outputs)

	if result.Err != nil {
		run.emit(domain.StreamEvent{Type: domain.EventError, FileName: result.Err.File, Payload: result.Err.Error()})
		logger.Error().
			Err(result.Err).
			Int("delivered", result.Delivered).
			Dur("duration", time.Since(startTime)).
			Msg("Conversion failed")
	} else {
		logger.Info().
			Int("files", len(files)).
			Int("delivered", result.Delivered).
			Dur("duration", time.Since(startTime)).
			Msg("Conversion complete")
	}

	run.emit(domain.StreamEvent{
		Type:    domain.EventComplete,
		Total:   result.Delivered,
		Payload: StatusMessage(result),
	})
	return result
}

// dispatch holds the state of one Dispatch call
type dispatch struct {
	*Dispatcher
	id     string
	kind   Kind
	sink   domain.Sink
	events chan<- domain.StreamEvent
	logger *observability.Logger

	mu      sync.Mutex
	outputs map[int]domain.OutputFile
}

func (r *dispatch) route(ctx context.Context, files []domain.InputFile) Result {
	switch r.kind {
	case KindImagesToPDF:
		return r.buildDocument(ctx, files, r.components.PDFBuilder, "PDF library")
	case KindImagesToDOCX:
		return r.buildDocument(ctx, files, r.components.DOCXBuilder, "DOCX library")
	case KindPDFToImages:
		return r.renderPages(ctx, files[0])
	case KindDOCXToImages:
		return r.extractImages(ctx, files[0])
	default:
		return failed(r.kind, domain.ValidationError(fmt.Sprintf("unsupported conversion type %q", r.kind), ErrUnsupportedKind))
	}
}

// buildDocument packs every file into one document and delivers it
func (r *dispatch) buildDocument(ctx context.Context, files []domain.InputFile, builder domain.DocumentBuilder, component string) Result {
	if missing(builder) {
		return failed(r.kind, domain.MissingDependencyError(component, nil))
	}

	for i, f := range files {
		r.emit(domain.StreamEvent{Type: domain.EventFileProcessing, Index: i + 1, Total: len(files), FileName: f.Name})
	}

	out, err := builder.Build(ctx, files)
	if err != nil {
		return failed(r.kind, err)
	}

	if err := r.deliver(ctx, 1, out); err != nil {
		return r.result(err)
	}
	return r.result(nil)
}

// renderPages rasterizes the first file page by page
func (r *dispatch) renderPages(ctx context.Context, file domain.InputFile) Result {
	renderer := r.components.PDFRenderer
	if missing(renderer) {
		return failed(r.kind, domain.MissingDependencyError("PDF renderer", nil))
	}

	r.emit(domain.StreamEvent{Type: domain.EventFileProcessing, Index: 1, Total: 1, FileName: file.Name})

	page := 0
	_, err := renderer.Render(ctx, file, func(out domain.OutputFile) error {
		page++
		return r.deliver(ctx, page, out)
	})
	return r.result(err)
}

// extractImages locates every image of the first file, then fetches and
// delivers them concurrently, numbered by discovery order
func (r *dispatch) extractImages(ctx context.Context, file domain.InputFile) Result {
	locator, fetcher := r.components.DOCXImages, r.components.Fetcher
	if missing(locator) {
		return failed(r.kind, domain.MissingDependencyError("DOCX reader", nil))
	}
	if missing(fetcher) {
		return failed(r.kind, domain.MissingDependencyError("Image fetcher", nil))
	}

	r.emit(domain.StreamEvent{Type: domain.EventFileProcessing, Index: 1, Total: 1, FileName: file.Name})

	sources, err := locator.Locate(ctx, file)
	if err != nil {
		return failed(r.kind, err)
	}
	if len(sources) == 0 {
		return Result{Kind: r.kind, Notice: NoticeNoImages}
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures int
		firstErr error
	)
	g.SetLimit(r.maxParallel)

	for i, src := range sources {
		src := src
		index := i + 1
		g.Go(func() error {
			name := docx.ImageFileName(index)
			r.emit(domain.StreamEvent{Type: domain.EventFileProcessing, Index: index, Total: len(sources), FileName: name})

			err := r.fetchAndDeliver(ctx, fetcher, index, name, src)
			if err != nil {
				r.logger.Warn().Err(err).Int("image", index).Msg("Image extraction failed")
				r.emit(domain.StreamEvent{Type: domain.EventError, Index: index, Total: len(sources), FileName: name, Payload: err.Error()})

				mu.Lock()
				failures++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			// failures are collected, never propagated, so siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	res := r.result(nil)
	res.Attempted = len(sources)
	res.Failed = failures
	if failures > 0 {
		res.Err = domain.ConversionError(fmt.Sprintf("failed to extract %d of %d images", failures, len(sources)), firstErr)
	}
	return res
}

func (r *dispatch) fetchAndDeliver(ctx context.Context, fetcher domain.Fetcher, index int, name, src string) error {
	data, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return domain.FetchError("image is empty", nil).WithFile(name)
	}
	return r.deliver(ctx, index, domain.OutputFile{
		Name:        name,
		ContentType: sniffMediaType(data),
		Data:        data,
	})
}

// deliver hands out to the sink and records it under its output index
func (r *dispatch) deliver(ctx context.Context, index int, out domain.OutputFile) error {
	if err := r.sink.Deliver(ctx, out); err != nil {
		if _, ok := domain.AsDomainError(err); ok {
			return err
		}
		return domain.IOError("cannot deliver output", err).WithFile(out.Name)
	}

	r.mu.Lock()
	if r.outputs == nil {
		r.outputs = make(map[int]domain.OutputFile)
	}
	r.outputs[index] = out
	r.mu.Unlock()

	r.emit(domain.StreamEvent{Type: domain.EventOutputReady, Index: index, FileName: out.Name, Payload: out.Size()})
	return nil
}

// result collects the recorded outputs in index order
func (r *dispatch) result(err error) Result {
	r.mu.Lock()
	indexes := make([]int, 0, len(r.outputs))
	for i := range r.outputs {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	outputs := make([]domain.OutputFile, 0, len(indexes))
	for _, i := range indexes {
		outputs = append(outputs, r.outputs[i])
	}
	r.mu.Unlock()

	return Result{Kind: r.kind, Outputs: outputs, Err: toDomainError(err)}
}

// emit sends an event without blocking the conversion
func (r *dispatch) emit(event domain.StreamEvent) {
	if r.events == nil {
		return
	}
	event.DispatchID = r.id
	event.Timestamp = time.Now()
	select {
	case r.events <- event:
	default:
		r.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
	}
}

// missing reports whether a collaborator is absent or compiled out
func missing(component any) bool {
	if component == nil {
		return true
	}
	if a, ok := component.(availability); ok && !a.Available() {
		return true
	}
	return false
}

func sniffMediaType(data []byte) string {
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}
