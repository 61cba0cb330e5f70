package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/download"
	"github.com/spherical/file-converter/internal/observability"
	"github.com/spherical/file-converter/internal/raster"
)

// headerStatus carries the user-facing status line of a conversion
const headerStatus = "X-Conversion-Status"

// multipartMemory is how much of an upload is kept in memory before spilling to disk
const multipartMemory = 32 << 20

// Handler serves the resize and convert endpoints
type Handler struct {
	cfg        *config.Config
	dispatcher *convert.Dispatcher
	logger     *observability.Logger
}

// KindDTO describes one conversion kind
type KindDTO struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

// StatusDTO is returned when a conversion produced no files
type StatusDTO struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Outputs int    `json:"outputs"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "file-converter"})
}

// Kinds handles GET /api/v1/kinds.
func (h *Handler) Kinds(w http.ResponseWriter, r *http.Request) {
	kinds := make([]KindDTO, 0, len(convert.AllKinds()))
	for _, k := range convert.AllKinds() {
		kinds = append(kinds, KindDTO{Tag: k.String(), Description: k.Description()})
	}
	h.writeJSON(w, http.StatusOK, kinds)
}

// Resize handles POST /api/v1/resize.
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "missing image", err.Error())
		return
	}
	defer file.Close()

	interp, err := raster.ParseInterpolation(h.cfg.Resize.Interpolation)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pipeline := raster.NewPipeline(raster.Options{
		FileName:       h.cfg.Resize.FileName,
		DefaultQuality: h.cfg.Resize.DefaultQuality,
		Interpolation:  interp,
		MaxPixels:      h.cfg.Resize.MaxPixels,
		Logger:         h.logger,
	})
	if err := pipeline.Load(file); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := pipeline.Update(r.FormValue("width"), r.FormValue("height"), r.FormValue("quality")); err != nil {
		h.writeDomainError(w, err)
		return
	}

	out, err := pipeline.Export()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	params := pipeline.Params()
	w.Header().Set("X-Image-Width", fmt.Sprint(params.Width))
	w.Header().Set("X-Image-Height", fmt.Sprint(params.Height))
	h.writeAttachment(w, http.StatusOK, out)
}

// Convert handles POST /api/v1/convert/{kind}.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "kind")
	kind, err := convert.ParseKind(tag)
	if err != nil {
		msg := convert.UnsupportedKindMessage(tag)
		w.Header().Set(headerStatus, msg)
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), msg, "")
		return
	}

	if !h.parseUpload(w, r) {
		return
	}

	files, err := readFiles(r.MultipartForm, "files")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	ctx := observability.ContextWithDispatchID(r.Context(), chimiddleware.GetReqID(r.Context()))
	sink := download.NewMemorySink()
	res := h.dispatcher.Dispatch(ctx, kind, files, sink, nil)
	status := convert.StatusMessage(res)
	w.Header().Set(headerStatus, status)

	outputs := sink.Files()
	if res.Err != nil && len(outputs) == 0 {
		h.writeError(w, statusCode(res.Err.Type), string(res.Err.Type), status, res.Err.Error())
		return
	}
	if res.Err != nil {
		w.Header().Set("X-Conversion-Error", string(res.Err.Type))
	}

	switch len(outputs) {
	case 0:
		h.writeJSON(w, http.StatusOK, StatusDTO{Kind: kind.String(), Status: status})
	case 1:
		h.writeAttachment(w, http.StatusOK, outputs[0])
	default:
		h.writeMultipart(w, outputs)
	}
}

// parseUpload bounds the body and parses the multipart form
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, string(domain.ErrorTypeValidation), "upload too large", err.Error())
			return false
		}
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "invalid multipart form", err.Error())
		return false
	}
	return true
}

// readFiles loads every upload of a form field, keeping the order sent
func readFiles(form *multipart.Form, field string) ([]domain.InputFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	files := make([]domain.InputFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, domain.IOError("cannot open upload", err).WithFile(fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, domain.IOError("cannot read upload", err).WithFile(fh.Filename)
		}

		contentType := fh.Header.Get("Content-Type")
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			contentType = mt
		} else {
			contentType = domain.DeclaredMediaType(fh.Filename, data)
		}

		files = append(files, domain.InputFile{Name: fh.Filename, ContentType: contentType, Data: data})
	}
	return files, nil
}

// statusCode maps an error type to its HTTP status
func statusCode(t domain.ErrorType) int {
	switch t {
	case domain.ErrorTypeValidation, domain.ErrorTypeUnsupportedFormat:
		return http.StatusBadRequest
	case domain.ErrorTypeIO, domain.ErrorTypePackaging, domain.ErrorTypeConversion, domain.ErrorTypeFetch:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeMissingDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeAttachment(w http.ResponseWriter, status int, out domain.OutputFile) {
	w.Header().Set("Content-Type", contentTypeOf(out))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
	w.Header().Set("Content-Length", fmt.Sprint(out.Size()))
	w.WriteHeader(status)
	if _, err := w.Write(out.Data); err != nil {
		h.logger.Warn().Err(err).Str("file", out.Name).Msg("Failed to write response")
	}
}

func (h *Handler) writeMultipart(w http.ResponseWriter, outputs []domain.OutputFile) {
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)

	for _, out := range outputs {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentTypeOf(out))
		header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
		part, err := mw.CreatePart(header)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write multipart response")
			return
		}
		if _, err := part.Write(out.Data); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write multipart response")
			return
		}
	}
	if err := mw.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write multipart response")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	de, ok := domain.AsDomainError(err)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", err.Error())
		return
	}
	h.writeError(w, statusCode(de.Type), string(de.Type), de.Message, de.Error())
}

// writeError writes {error, message, detail}; code is the machine-readable error type
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, detail string) {
	resp := map[string]string{
		"error":   code,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}

func contentTypeOf(out domain.OutputFile) string {
	if out.ContentType != "" {
		return out.ContentType
	}
	return "application/octet-stream"
}
