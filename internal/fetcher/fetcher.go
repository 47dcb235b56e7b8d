// Package fetcher reads remote and local tabular sources: HTTP downloads,
// streamed JSON arrays, XLSX workbooks and CSV files.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
