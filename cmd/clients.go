package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/fetcher"
	"github.com/sells-group/censusmap/internal/store"
	"github.com/sells-group/censusmap/internal/tiger"
	"github.com/sells-group/censusmap/internal/transform"
	"github.com/sells-group/censusmap/pkg/census"
)

// openStore opens the SQLite cache and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	path := cfg.Cache.DatabasePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "create cache dir %s", dir)
		}
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}
	return st, nil
}

// newFetcher builds the shared HTTP fetcher from config.
func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

// newCensus builds the Census API client backed by the given catalog cache.
func newCensus(cs census.CatalogStore) census.Client {
	opts := []census.Option{
		census.WithBaseURL(cfg.Census.BaseURL),
		census.WithRateLimit(cfg.Fetch.RateLimit),
	}
	if cfg.Census.APIKey != "" {
		opts = append(opts, census.WithAPIKey(cfg.Census.APIKey))
	}
	if cs != nil {
		opts = append(opts, census.WithCatalogStore(cs, catalogTTL()))
	}
	return census.NewClient(opts...)
}

func catalogTTL() time.Duration {
	if cfg.Cache.TTLHours <= 0 {
		return store.DefaultCatalogTTL
	}
	return time.Duration(cfg.Cache.TTLHours) * time.Hour
}

// downloadPlaces fetches the configured PLACES release CSV into the cache
// directory and returns its path. An existing non-empty download is reused.
func downloadPlaces(ctx context.Context) (string, error) {
	if cfg.Places.URL == "" {
		return "", eris.New("places.url is not configured")
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "create cache dir %s", cfg.Cache.Dir)
	}

	dest := filepath.Join(cfg.Cache.Dir, fmt.Sprintf("places_%s.csv", cfg.Places.Release))
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		zap.L().Debug("reusing cached places release", zap.String("path", dest))
		return dest, nil
	}

	zap.L().Info("downloading places release",
		zap.String("url", cfg.Places.URL),
		zap.String("release", cfg.Places.Release),
	)
	if _, err := newFetcher().DownloadToFile(ctx, cfg.Places.URL, dest); err != nil {
		return "", eris.Wrapf(err, "download places release from %s", cfg.Places.URL)
	}
	return dest, nil
}

// resolveState accepts a postal abbreviation (NY) or a FIPS code (36) and
// returns the two-digit FIPS code.
func resolveState(s string) (string, error) {
	in := strings.ToUpper(strings.TrimSpace(s))
	if in == "" {
		return "", nil
	}
	if fips, ok := tiger.FIPSCodes[in]; ok {
		return fips, nil
	}
	if len(in) <= 2 && strings.Trim(in, "0123456789") == "" {
		return transform.NormalizeFIPSState(in), nil
	}
	return "", eris.Errorf("unknown state %q (want a postal abbreviation or FIPS code)", s)
}

// splitAndTrim splits a comma-separated flag value into trimmed parts.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
