package convert

import (
	"context"
	"errors"

	"github.com/spherical/file-converter/internal/domain"
)

var (
	// ErrNoFiles marks a dispatch over an empty file set
	ErrNoFiles = errors.New("no files selected")
	// ErrUnsupportedKind marks a tag or Kind with no routine
	ErrUnsupportedKind = errors.New("unsupported conversion type")
)

// Result is the outcome of one dispatch. Outputs lists what reached the sink,
// in output order, even when Err is set.
type Result struct {
	Kind      Kind
	Outputs   []domain.OutputFile
	Delivered int
	// Notice is an informational outcome that is not a failure
	Notice string
	Err    *domain.DomainError
	// Attempted and Failed count per-image tasks of a fan-out routine
	Attempted int
	Failed    int
}

// OK reports whether the dispatch succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Failure returns Err as an error, nil on success
func (r Result) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

func failed(kind Kind, err error) Result {
	return Result{Kind: kind, Err: toDomainError(err)}
}

// toDomainError keeps typed errors and classifies everything else as a
// conversion failure
func toDomainError(err error) *domain.DomainError {
	if err == nil {
		return nil
	}
	if de, ok := domain.AsDomainError(err); ok {
		return de
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ConversionError("conversion cancelled", err)
	}
	return domain.ConversionError(err.Error(), err)
}
