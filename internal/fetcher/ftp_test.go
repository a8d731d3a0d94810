package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "genz mirror",
			url:      "ftp://ftp2.census.gov/geo/tiger/GENZ2023/shp/cb_2023_us_county_500k.zip",
			wantHost: "ftp2.census.gov:21",
			wantPath: "/geo/tiger/GENZ2023/shp/cb_2023_us_county_500k.zip",
		},
		{
			name:     "explicit port",
			url:      "ftp://mirror.example.com:2121/pub/data.zip",
			wantHost: "mirror.example.com:2121",
			wantPath: "/pub/data.zip",
		},
		{name: "http scheme rejected", url: "https://www2.census.gov/geo/tiger/x.zip", wantErr: true},
		{name: "no path", url: "ftp://ftp2.census.gov", wantErr: true},
		{name: "unparseable", url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := splitFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_DefaultTimeout(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.NotZero(t, f.timeout)
}
