// Package export writes trail listings as CSV or XLSX spreadsheets.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/trailscout/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet name used for XLSX exports.
const SheetName = "Trails"

// Columns are the ordered export columns.
var Columns = []string{
	"id",
	"name",
	"source",
	"source_id",
	"difficulty",
	"route_type",
	"length_km",
	"elevation_gain_m",
	"start_lat",
	"start_lng",
	"tags",
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("export: unknown format %q (want csv or xlsx)", s)
}

// Write encodes trails to w in the given format.
func Write(w io.Writer, format Format, trails []model.Trail) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, trails)
	case FormatXLSX:
		return writeXLSX(w, trails)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

func writeCSV(w io.Writer, trails []model.Trail) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range trails {
		if err := cw.Write(row(&trails[i])); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

func writeXLSX(w io.Writer, trails []model.Trail) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}

	for i := range trails {
		t := &trails[i]
		r := sheet.AddRow()
		r.AddCell().SetString(t.ID)
		r.AddCell().SetString(t.Name)
		r.AddCell().SetString(t.Source)
		r.AddCell().SetString(t.SourceID)
		r.AddCell().SetString(string(t.Difficulty))
		r.AddCell().SetString(string(t.RouteType))
		r.AddCell().SetFloat(round(t.LengthKM, 3))
		if t.ElevationGainM != nil {
			r.AddCell().SetFloat(round(*t.ElevationGainM, 1))
		} else {
			r.AddCell()
		}
		r.AddCell().SetFloat(t.StartLat)
		r.AddCell().SetFloat(t.StartLng)
		r.AddCell().SetString(strings.Join(t.Tags, ";"))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// row formats one trail as CSV fields in Columns order.
func row(t *model.Trail) []string {
	gain := ""
	if t.ElevationGainM != nil {
		gain = formatFloat(round(*t.ElevationGainM, 1))
	}
	return []string{
		t.ID,
		t.Name,
		t.Source,
		t.SourceID,
		string(t.Difficulty),
		string(t.RouteType),
		formatFloat(round(t.LengthKM, 3)),
		gain,
		formatFloat(t.StartLat),
		formatFloat(t.StartLng),
		strings.Join(t.Tags, ";"),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func round(f float64, places int) float64 {
	p, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', places, 64), 64)
	if err != nil {
		return f
	}
	return p
}
