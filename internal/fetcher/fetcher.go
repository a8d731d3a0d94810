// Package fetcher downloads Census Bureau and CDC release artifacts over
// HTTP and the Bureau's FTP mirror, and unpacks the containers those
// releases ship in (ZIP archives, XLSX workbooks).
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves one remote artifact per call.
type Fetcher interface {
	// Download fetches url and returns its body for streaming. The caller
	// closes the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches url into path, reporting bytes written. The
	// file appears atomically: a failed download leaves no partial file.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
