package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/censusmap/internal/config"
	"github.com/sells-group/censusmap/internal/frame"
	"github.com/sells-group/censusmap/internal/store"
	"github.com/sells-group/censusmap/pkg/census"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"catalog", "fetch", "render", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "censusmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestFetchCommand_Flags(t *testing.T) {
	for _, name := range []string{"year", "state", "county", "geography", "variables", "geometry", "out"} {
		flag := fetchCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "fetch should have --%s flag", name)
	}

	assert.Equal(t, "tract", fetchCmd.Flags().Lookup("geography").DefValue)
}

func TestRenderCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"state", "variables", "places", "measure", "min-match-rate",
		"select", "title", "palette", "low-color", "high-color",
		"classes", "trim-quantile", "out", "geojson",
	} {
		flag := renderCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "render should have --%s flag", name)
	}

	assert.Equal(t, "0", renderCmd.Flags().Lookup("min-match-rate").DefValue)
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"status", "clear", "prune"} {
		assert.True(t, names[name], "cache should have subcommand %q", name)
	}
}

func TestResolveState(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NY", "36"},
		{"ny", "36"},
		{" ca ", "06"},
		{"36", "36"},
		{"6", "06"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := resolveState(tt.in)
		require.NoError(t, err, "resolveState(%q)", tt.in)
		assert.Equal(t, tt.want, got, "resolveState(%q)", tt.in)
	}

	_, err := resolveState("ZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"income", "CHD"}, splitAndTrim("income, CHD"))
	assert.Equal(t, []string{"a"}, splitAndTrim("a,,  ,"))
	assert.Empty(t, splitAndTrim(""))
}

func TestFormatVariables(t *testing.T) {
	vars := []census.Variable{
		{Name: "B06011_001E", Label: "Estimate!!Median income in the past 12 months", Concept: "MEDIAN INCOME"},
		{Name: "B06009_001E", Label: "Estimate!!Total:", Concept: "PLACE OF BIRTH BY EDUCATIONAL ATTAINMENT IN THE UNITED STATES"},
	}

	var buf bytes.Buffer
	formatVariables(&buf, vars)

	output := buf.String()
	assert.Contains(t, output, "CODE")
	assert.Contains(t, output, "B06011_001E")
	assert.Contains(t, output, "MEDIAN INCOME")
	assert.Contains(t, output, "...", "long concepts are truncated")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "2.0 KiB", humanBytes(2048))
	assert.Equal(t, "5.0 MiB", humanBytes(5<<20))
}

func TestFormatCacheStats(t *testing.T) {
	var buf bytes.Buffer
	formatCacheStats(&buf, &store.CacheStats{
		Path:         "/tmp/cache.db",
		Catalogs:     2,
		CatalogBytes: 4096,
		BoundarySets: 3,
		Boundaries:   4918,
	})

	output := buf.String()
	assert.Contains(t, output, "/tmp/cache.db")
	assert.Contains(t, output, "4.0 KiB")
	assert.Contains(t, output, "4918")
}

func TestRenderOptions_PaletteFromConfig(t *testing.T) {
	cfg = testConfig()

	opts, err := renderOptions(renderCmd)
	require.NoError(t, err)

	assert.Equal(t, "#440154", opts.Scale.LowColor)
	assert.Equal(t, "#FDE725", opts.Scale.HighColor)
	assert.Equal(t, 980, opts.Width)
	assert.Equal(t, 2, opts.Columns)
}

func TestRenderOptions_UnknownPalette(t *testing.T) {
	cfg = testConfig()
	cfg.Render.Palette = "neon"

	_, err := renderOptions(renderCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown palette")
}

func TestPalettes_IncludeConfigDefault(t *testing.T) {
	_, ok := palettes["viridis"]
	assert.True(t, ok, "the config default palette must resolve")
}

func TestWriteFrame(t *testing.T) {
	f := frame.New([]census.Unit{
		{GEOID: "36001000100", Name: "Tract 1", Values: map[string]census.Value{
			"income": {Estimate: 50000, Valid: true},
		}},
	}, []string{"income"})

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeFrame(path, f))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geoid,name,income")
	assert.Contains(t, string(data), "36001000100")
}

func TestWriteFrame_UnsupportedExtension(t *testing.T) {
	err := writeFrame(filepath.Join(t.TempDir(), "out.txt"), frame.New(nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output extension")
}

func TestDownloadPlaces_FetchesConfiguredRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("LocationID,Data_Value\n36001000100,5.5\n"))
	}))
	defer srv.Close()

	cfg = testConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.Places = config.Places{URL: srv.URL, Release: "2024"}

	path, err := downloadPlaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Cache.Dir, "places_2024.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "36001000100")
}

func TestDownloadPlaces_ReusesCachedFile(t *testing.T) {
	cfg = testConfig()
	cfg.Cache.Dir = t.TempDir()
	// Unroutable URL: a cache hit must not touch the network.
	cfg.Places = config.Places{URL: "http://127.0.0.1:1", Release: "2024"}

	cached := filepath.Join(cfg.Cache.Dir, "places_2024.csv")
	require.NoError(t, os.WriteFile(cached, []byte("LocationID,Data_Value\n"), 0o644))

	path, err := downloadPlaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, path)
}

func TestDownloadPlaces_NoURLConfigured(t *testing.T) {
	cfg = testConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.Places = config.Places{}

	_, err := downloadPlaces(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "places.url")
}

func testConfig() *config.Config {
	return &config.Config{
		Census: config.Census{Dataset: "acs/acs5", Year: 2022},
		Cache:  config.Cache{Dir: "/tmp/censusmap"},
		Fetch:  config.Fetch{TimeoutSecs: 120, RateLimit: 2},
		Render: config.Render{Width: 980, Columns: 2, Palette: "viridis", OutputDir: "."},
		Log:    config.Log{Level: "info", Format: "json"},
	}
}
