package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher retrieves files from anonymous FTP mirrors such as
// ftp2.census.gov, which serves the same GENZ tree as www2.census.gov.
// One connection is dialed per download and torn down with the reader.
type FTPFetcher struct {
	timeout time.Duration
}

// NewFTPFetcher builds an FTP fetcher.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &FTPFetcher{timeout: timeout}
}

// splitFTPURL breaks an ftp:// URL into a dialable host:port and a
// server path.
func splitFTPURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "fetcher: parse ftp url %s", rawURL)
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: %s is not an ftp url", rawURL)
	}
	if u.Path == "" {
		return "", "", eris.Errorf("fetcher: ftp url %s has no path", rawURL)
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	return host, u.Path, nil
}

// ftpBody keeps the control connection alive while the transfer reader is
// open and quits it on close.
type ftpBody struct {
	io.Reader
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	respErr := b.resp.Close()
	if quitErr := b.conn.Quit(); respErr == nil {
		respErr = quitErr
	}
	return respErr
}

// Download retrieves an ftp:// URL. Closing the returned reader releases
// the connection.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host, path, err := splitFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: ftp retrieve", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: dial %s", host)
	}

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: login %s", host)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: retrieve %s", path)
	}

	return &ftpBody{Reader: resp, resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves an ftp:// URL into path, temp-file-then-rename
// like the HTTP fetcher.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: write %s", path)
	}

	if err := tmp.Close(); err != nil {
		return 0, eris.Wrap(err, "fetcher: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, eris.Wrapf(err, "fetcher: move into place %s", path)
	}
	return n, nil
}
