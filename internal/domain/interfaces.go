package domain

import "context"

// Sink receives finished output files. It is the programmatic equivalent of
// offering a file for download and must be safe for concurrent use.
type Sink interface {
	Deliver(ctx context.Context, out OutputFile) error
}

// DocumentBuilder packs an ordered set of images into one document
type DocumentBuilder interface {
	// Build produces exactly one output file or fails without producing any
	Build(ctx context.Context, files []InputFile) (OutputFile, error)
}

// PageRenderer rasterizes every page of a paged document
type PageRenderer interface {
	// Render calls deliver once per page, in increasing page order, as soon
	// as each page is ready. It returns the number of pages delivered.
	Render(ctx context.Context, file InputFile, deliver func(OutputFile) error) (int, error)
}

// ImageLocator finds image references inside a document
type ImageLocator interface {
	// Locate returns image sources in discovery order
	Locate(ctx context.Context, file InputFile) ([]string, error)
}

// Fetcher resolves an image source (data URL or remote URL) to its bytes
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}
