package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFetchBoundary_PlainFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := FetchBoundary(context.Background(), srv.URL+"/gis/wards.geojson?v=3", dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wards.geojson"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}

func TestFetchBoundary_ZippedShapefile(t *testing.T) {
	payload := zipBytes(t, map[string]string{
		"wards/README.txt": "ward boundaries",
		"wards/wards.shp":  "shp",
		"wards/wards.dbf":  "dbf",
		"wards/wards.shx":  "shx",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := FetchBoundary(context.Background(), srv.URL+"/wards.zip", dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extracted", "wards", "wards.shp"), path)

	_, err = os.Stat(filepath.Join(dir, "extracted", "wards", "wards.dbf"))
	assert.NoError(t, err)
}

func TestFetchBoundary_ZipWithoutBoundary(t *testing.T) {
	payload := zipBytes(t, map[string]string{"notes.txt": "nothing here"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	_, err := FetchBoundary(context.Background(), srv.URL+"/wards.zip", t.TempDir(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .geojson")
}

func TestFetchBoundary_UnsupportedScheme(t *testing.T) {
	_, err := FetchBoundary(context.Background(), "s3://bucket/wards.geojson", t.TempDir(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestPickBoundary_Preference(t *testing.T) {
	got, ok := pickBoundary([]string{"b/wards.shp", "a/wards.json", "c/wards.GeoJSON"})
	require.True(t, ok)
	assert.Equal(t, "c/wards.GeoJSON", got)

	_, ok = pickBoundary([]string{"readme.md"})
	assert.False(t, ok)
}

func TestRemoteName(t *testing.T) {
	assert.Equal(t, "wards.zip", remoteName("https://gis.example.org/files/wards.zip?token=x"))
	assert.Equal(t, "boundary", remoteName("https://gis.example.org"))
	assert.Equal(t, "wards.shp", remoteName("ftp://ftp.city.gov/pub/wards.shp"))
}

func TestIsRemoteAndForURL(t *testing.T) {
	assert.True(t, IsRemote("https://gis.example.org/wards.geojson"))
	assert.True(t, IsRemote("FTP://ftp.city.gov/wards.zip"))
	assert.False(t, IsRemote("/srv/data/wards.shp"))
	assert.False(t, IsRemote("wards.geojson"))

	f, err := ForURL("https://gis.example.org/wards.geojson", Options{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = ForURL("ftp://ftp.city.gov/wards.zip", Options{})
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, f)

	_, err = ForURL("file:///tmp/wards.geojson", Options{})
	assert.Error(t, err)
}
