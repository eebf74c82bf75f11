package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// boundaryExts are the file kinds the ward layer can read, in preference
// order.
var boundaryExts = []string{".geojson", ".json", ".shp"}

// FetchBoundary downloads a boundary file into destDir and returns the local
// path of a readable boundary file. A .zip download is extracted and searched
// for a GeoJSON file or shapefile; a shapefile keeps its sibling .dbf so ward
// names survive.
func FetchBoundary(ctx context.Context, rawURL, destDir string, opts Options) (string, error) {
	f, err := ForURL(rawURL, opts)
	if err != nil {
		return "", err
	}

	name := remoteName(rawURL)
	local := filepath.Join(destDir, name)
	n, err := f.DownloadToFile(ctx, rawURL, local)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	zap.L().Info("fetcher: boundary downloaded", zap.String("url", rawURL), zap.Int64("bytes", n))

	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return local, nil
	}

	extractDir := filepath.Join(destDir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create extract dir")
	}
	files, err := ExtractZIP(local, extractDir)
	if err != nil {
		return "", err
	}
	found, ok := pickBoundary(files)
	if !ok {
		return "", eris.Errorf("fetcher: no .geojson, .json or .shp file in %s", name)
	}
	return found, nil
}

// pickBoundary returns the first file with the most preferred extension.
func pickBoundary(files []string) (string, bool) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, ext := range boundaryExts {
		for _, f := range sorted {
			if strings.EqualFold(filepath.Ext(f), ext) {
				return f, true
			}
		}
	}
	return "", false
}

// remoteName is the last segment of the URL path, or "boundary" when the
// path is empty.
func remoteName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "boundary"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "boundary"
	}
	return name
}
