package main

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/density"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/report"
	"github.com/sells-group/dispatch-console/internal/ward"
)

var (
	snapshotFormat string
	snapshotOut    string
	snapshotBBox   string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load map data once and write a ward density report",
	Long:  "Fetches shelters, teams and the configured point collection, counts points per ward and writes the result as JSON, YAML or an xlsx workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("snapshot"); err != nil {
			return err
		}
		bands, err := cfg.Density.Bands()
		if err != nil {
			return err
		}

		vp := loader.Viewport{Zoom: cfg.Map.Zoom}
		if snapshotBBox != "" {
			b, err := parseBBox(snapshotBBox)
			if err != nil {
				return err
			}
			vp.Bounds = b
		}

		ld := initLoader(initBackend())
		return runSnapshot(cmd.Context(), ld, bands, vp, snapshotFormat, snapshotOut, cmd.OutOrStdout())
	},
}

// runSnapshot loads once, builds the report and writes it. xlsx output
// requires a file path; the text formats go to w when out is empty.
func runSnapshot(ctx context.Context, ld *loader.Loader, bands density.Bands, vp loader.Viewport, format, out string, w io.Writer) error {
	if ld.Dynamic() && vp.Bounds == (ward.Bounds{}) {
		return eris.New("snapshot: dynamic boundaries need --bbox")
	}
	if format == report.FormatXLSX && out == "" {
		return eris.New("snapshot: xlsx output needs --out")
	}

	res := ld.Load(ctx)
	var polys []ward.Polygon
	b, err := ld.Boundaries(ctx, vp)
	if err != nil {
		zap.L().Warn("ward boundaries unavailable", zap.Error(err))
		res.Errors[loader.SourceBoundaries] = err
	} else {
		polys = b.Polygons
	}

	s := report.Build(res, ld.PointSource(), polys, bands)
	zap.L().Info("snapshot built",
		zap.Int("points", s.Points),
		zap.Int("wards", len(s.Wards)),
		zap.Strings("failed", s.Failed),
	)

	switch {
	case format == report.FormatXLSX:
		return report.WriteXLSX(out, s)
	case out != "":
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "snapshot: create output")
		}
		defer f.Close() //nolint:errcheck
		return report.Write(f, s, format)
	default:
		return report.Write(w, s, format)
	}
}

// parseBBox reads "south,west,north,east".
func parseBBox(s string) (ward.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return ward.Bounds{}, eris.Errorf("snapshot: bbox %q must be south,west,north,east", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ward.Bounds{}, eris.Wrapf(err, "snapshot: bbox value %q", p)
		}
		v[i] = f
	}
	if v[2] < v[0] {
		return ward.Bounds{}, eris.Errorf("snapshot: bbox north %v is below south %v", v[2], v[0])
	}
	return ward.Bounds{South: v[0], West: v[1], North: v[2], East: v[3]}, nil
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", report.FormatJSON, "output format: json, yaml or xlsx")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "output file (default stdout; required for xlsx)")
	snapshotCmd.Flags().StringVar(&snapshotBBox, "bbox", "", "viewport for dynamic boundaries: south,west,north,east")
	rootCmd.AddCommand(snapshotCmd)
}
