// Package fetch resolves image sources found in document markup into bytes.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// maxBodyBytes bounds a single remote image
const maxBodyBytes = 64 << 20

// Fetcher resolves data: URLs in place and, when remote fetching is
// enabled, downloads http(s) URLs from public addresses.
type Fetcher struct {
	httpClient  *http.Client
	retry       RetryConfig
	allowRemote bool
	logger      *observability.Logger
}

// NewFetcher creates a fetcher with the given per-request timeout and retry
// policy. Remote fetching starts disabled.
func NewFetcher(timeout time.Duration, retry RetryConfig, logger *observability.Logger) *Fetcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout, Transport: publicTransport()},
		retry:      retry,
		logger:     logger.WithComponent("fetcher"),
	}
}

// WithRemote enables or disables downloading http(s) sources
func (f *Fetcher) WithRemote(allow bool) *Fetcher {
	f.allowRemote = allow
	return f
}

// WithHTTPClient replaces the underlying client, mainly for tests
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.httpClient = c
	return f
}

// Fetch returns the bytes behind src
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURL(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if !f.allowRemote {
			return nil, domain.FetchError("remote images are disabled", nil)
		}
		return f.fetchRemote(ctx, src)
	default:
		return nil, domain.FetchError(fmt.Sprintf("unsupported image source %q", schemeOf(src)), nil)
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, src string) ([]byte, error) {
	resp, err := f.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		return f.httpClient.Do(req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, ErrBlockedAddress) {
			return nil, domain.FetchError("address not allowed", err)
		}
		if _, ok := domain.AsDomainError(err); ok {
			return nil, err
		}
		return nil, domain.FetchError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.FetchError(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.FetchError("failed to read response", err)
	}
	if len(data) > maxBodyBytes {
		return nil, domain.FetchError("response too large", nil)
	}

	f.logger.Debug().Str("url", src).Int("bytes", len(data)).Msg("Image fetched")
	return data, nil
}

// DecodeDataURL decodes an RFC 2397 data URL, base64 or percent-encoded
func DecodeDataURL(src string) ([]byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, domain.FetchError("not a data URL", nil)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, domain.FetchError("malformed data URL", nil)
	}

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some writers drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, domain.FetchError("invalid base64 payload", err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, domain.FetchError("invalid percent-encoded payload", err)
	}
	return []byte(data), nil
}

func schemeOf(src string) string {
	if scheme, _, ok := strings.Cut(src, ":"); ok && len(scheme) < 16 {
		return scheme + ":"
	}
	if len(src) > 32 {
		return src[:32] + "..."
	}
	return src
}
