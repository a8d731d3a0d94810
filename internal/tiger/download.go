package tiger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/fetcher"
)

// fileDownloader is the subset of the fetcher API Download needs.
type fileDownloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Download fetches a boundary ZIP over HTTP or FTP and extracts it.
// Returns the path to the extracted .shp file. An existing non-empty ZIP in
// destDir is reused without touching the network.
func Download(ctx context.Context, f fetcher.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	zipName := url[strings.LastIndex(url, "/")+1:]
	zipPath := filepath.Join(destDir, zipName)

	switch info, err := os.Stat(zipPath); {
	case err == nil && info.Size() > 0:
		log.Debug("boundary zip cached on disk", zap.String("path", zipPath))
	default:
		log.Info("downloading boundary zip")
		if _, err := downloader(f, url).DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "tiger: download boundary zip")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create extract dir")
	}
	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "tiger: extract boundary zip")
	}

	// The sidecar set extracts flat; the .shp is the entry point go-shp needs.
	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: locate shapefile")
	}
	return shpPath, nil
}

// downloader picks the transport for a URL. The FTP mirror carries the same
// tree as www2.census.gov under /geo/tiger.
func downloader(f fetcher.Fetcher, url string) fileDownloader {
	if strings.HasPrefix(url, "ftp://") {
		return fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: 2 * time.Minute})
	}
	return f
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
