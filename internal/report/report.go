// Package report renders a one-shot snapshot of the map data: entity totals
// and the per-ward density table, as JSON, YAML or an XLSX workbook.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dispatch-console/internal/density"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/ward"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// WardRow is one ward's density.
type WardRow struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
	Color string `json:"color" yaml:"color"`
	Rank  int    `json:"rank" yaml:"rank"`
}

// Snapshot summarises one load.
type Snapshot struct {
	GeneratedAt   time.Time `json:"generated_at" yaml:"generated_at"`
	PointSource   string    `json:"point_source" yaml:"point_source"`
	Shelters      int       `json:"shelters" yaml:"shelters"`
	Teams         int       `json:"teams" yaml:"teams"`
	AssignedTeams int       `json:"assigned_teams" yaml:"assigned_teams"`
	Points        int       `json:"points" yaml:"points"`
	InWards       int       `json:"points_in_wards" yaml:"points_in_wards"`
	Failed        []string  `json:"failed_sources,omitempty" yaml:"failed_sources,omitempty"`
	Wards         []WardRow `json:"wards" yaml:"wards"`
}

// Build aggregates res over polys. Wards are ordered by count, highest
// first, then by index.
func Build(res loader.Result, source model.PointSource, polys []ward.Polygon, bands density.Bands) Snapshot {
	points := res.Bundle.Points(source)
	counts := density.Aggregate(polys, points)

	s := Snapshot{
		GeneratedAt: res.LoadedAt,
		PointSource: string(source),
		Shelters:    len(res.Bundle.Shelters),
		Teams:       len(res.Bundle.Teams),
		Points:      len(points),
		Failed:      res.Failed(),
		Wards:       make([]WardRow, 0, len(polys)),
	}
	for _, t := range res.Bundle.Teams {
		if t.Assigned() {
			s.AssignedTeams++
		}
	}
	for _, p := range polys {
		c := counts[p.Index]
		s.InWards += c
		s.Wards = append(s.Wards, WardRow{
			Index: p.Index,
			Name:  p.Name,
			Count: c,
			Color: bands.Color(c),
			Rank:  bands.Rank(c),
		})
	}
	sort.SliceStable(s.Wards, func(i, j int) bool {
		if s.Wards[i].Count != s.Wards[j].Count {
			return s.Wards[i].Count > s.Wards[j].Count
		}
		return s.Wards[i].Index < s.Wards[j].Index
	})
	return s
}

// Write encodes s as JSON or YAML.
func Write(w io.Writer, s Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(s), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml")
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

// Sheet names in the workbook written by WriteXLSX.
const (
	SheetWards   = "Wards"
	SheetSummary = "Summary"
)

// WriteXLSX saves s as a workbook with a ward table and a summary sheet.
func WriteXLSX(path string, s Snapshot) error {
	f := xlsx.NewFile()

	wards, err := f.AddSheet(SheetWards)
	if err != nil {
		return eris.Wrap(err, "report: add wards sheet")
	}
	addRow(wards, "Index", "Ward", "Count", "Color", "Rank")
	for _, w := range s.Wards {
		row := wards.AddRow()
		row.AddCell().SetInt(w.Index)
		row.AddCell().SetString(w.Name)
		row.AddCell().SetInt(w.Count)
		row.AddCell().SetString(w.Color)
		row.AddCell().SetInt(w.Rank)
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, "Generated at", s.GeneratedAt.UTC().Format(time.RFC3339))
	addRow(summary, "Point source", s.PointSource)
	for _, kv := range []struct {
		label string
		n     int
	}{
		{"Shelters", s.Shelters},
		{"Teams", s.Teams},
		{"Assigned teams", s.AssignedTeams},
		{"Points", s.Points},
		{"Points in wards", s.InWards},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.label)
		row.AddCell().SetInt(kv.n)
	}
	if len(s.Failed) > 0 {
		addRow(summary, "Failed sources", strings.Join(s.Failed, ", "))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
