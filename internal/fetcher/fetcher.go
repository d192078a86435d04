// Package fetcher downloads remote documents and reads the tabular formats
// the registry publishes.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the remote answers 404.
var ErrNotFound = eris.New("fetcher: not found")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// GetJSON fetches the URL and decodes the JSON body into v.
	GetJSON(ctx context.Context, url string, v any) error

	// PostFormToFile posts form to the URL and writes the response body to
	// path. Returns bytes written.
	PostFormToFile(ctx context.Context, url string, form url.Values, path string) (int64, error)
}
