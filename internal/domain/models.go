package domain

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Media types used across routines
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// InputFile is one user-selected file. ContentType is the declared media
// type (from the upload header or the file extension), not a sniffed one.
type InputFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// OutputFile is one produced file, ready to be offered for download
type OutputFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes
func (o OutputFile) Size() int {
	return len(o.Data)
}

// ReadInputFile loads a file from disk and declares its media type from the
// extension, falling back to content sniffing when the extension is unknown.
func ReadInputFile(path string) (InputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return InputFile{}, IOError(fmt.Sprintf("cannot read file: %s", path), err).WithFile(filepath.Base(path))
	}
	return InputFile{
		Name:        filepath.Base(path),
		ContentType: DeclaredMediaType(path, data),
		Data:        data,
	}, nil
}

// DeclaredMediaType mimics what a browser file picker reports for a file
func DeclaredMediaType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".docx":
		return MediaTypeDOCX
	case ".jpg", ".jpeg":
		return MediaTypeJPEG
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mt, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mt
		}
		return t
	}
	if len(data) == 0 {
		return ""
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventFileProcessing EventType = "file_processing"
	EventOutputReady    EventType = "output_ready"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during a dispatch.
// Index is 1-based and refers to the input file, page or image being handled.
type StreamEvent struct {
	Type       EventType   `json:"type"`
	DispatchID string      `json:"dispatch_id,omitempty"`
	Index      int         `json:"index,omitempty"`
	Total      int         `json:"total,omitempty"`
	FileName   string      `json:"file_name,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
