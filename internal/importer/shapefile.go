package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

// FieldMapping names the DBF attributes that carry trail fields.
type FieldMapping struct {
	NameField       string // default "NAME"
	DifficultyField string // optional
	IDField         string // optional; record number when empty
}

func (m FieldMapping) withDefaults() FieldMapping {
	if m.NameField == "" {
		m.NameField = "NAME"
	}
	return m
}

// ImportShapefile loads PolyLine records from the shapefile at path.
// Records without a name or line geometry are skipped.
func (im *Importer) ImportShapefile(ctx context.Context, path string, mapping FieldMapping) (*model.ImportRun, error) {
	mapping = mapping.withDefaults()
	start := time.Now()
	log := zap.L().With(
		zap.String("component", "importer.shapefile"),
		zap.String("path", path),
	)

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	if reader.GeometryType != shp.POLYLINE && reader.GeometryType != shp.POLYLINEZ && reader.GeometryType != shp.POLYLINEM {
		return nil, eris.Errorf("importer: shapefile %s has geometry type %d, want polyline", path, reader.GeometryType)
	}

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldNames[i] = name
		fieldIdx[strings.ToLower(name)] = i
	}
	if _, ok := fieldIdx[strings.ToLower(mapping.NameField)]; !ok {
		return nil, eris.Errorf("importer: shapefile %s has no field %q", path, mapping.NameField)
	}

	run, err := im.runs.CreateRun(ctx, model.SourceShapefile, filepath.Base(path))
	if err != nil {
		return nil, eris.Wrap(err, "importer: create run")
	}
	if err := im.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return run, eris.Wrap(err, "importer: mark run running")
	}
	run.Status = model.RunStatusRunning

	attr := func(field string) string {
		if field == "" {
			return ""
		}
		idx, ok := fieldIdx[strings.ToLower(field)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	b := &batcher{im: im, source: model.SourceShapefile}
	progress := model.RunProgress{TilesTotal: 1}
	seen := make(map[string]bool)

	fail := func(cause error) (*model.ImportRun, error) {
		applyProgress(run, progress, b.imported)
		if err := im.finish(ctx, run, b, model.RunStatusFailed, cause.Error()); err != nil {
			log.Error("importer: finish failed run", zap.Error(err))
		}
		return run, cause
	}

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return fail(eris.Wrap(err, "importer: cancelled"))
		}

		n, shape := reader.Shape()
		name := attr(mapping.NameField)
		mls := polyLineToMultiLine(shape)
		if name == "" || mls == nil {
			progress.TrailsSkipped++
			continue
		}

		sourceID := attr(mapping.IDField)
		if sourceID == "" {
			sourceID = fmt.Sprintf("%s/%d", base, n)
		}
		if seen[sourceID] {
			progress.TrailsSkipped++
			continue
		}
		seen[sourceID] = true

		t, err := shapeTrail(mls, name, sourceID)
		if err != nil {
			log.Debug("skipping record", zap.Int("record", n), zap.Error(err))
			progress.TrailsSkipped++
			continue
		}
		if d, err := model.ParseDifficulty(attr(mapping.DifficultyField)); err == nil {
			t.Difficulty = d
		}

		props := make(map[string]string, len(fieldNames))
		for i, fn := range fieldNames {
			if v := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00")); v != "" {
				props[fn] = v
			}
		}
		if data, err := json.Marshal(props); err == nil {
			t.Properties = data
		}

		im.enrich(ctx, &t)
		if err := b.add(ctx, t); err != nil {
			return fail(eris.Wrap(err, "importer: upsert trails"))
		}
	}
	if err := b.flush(ctx); err != nil {
		return fail(eris.Wrap(err, "importer: upsert trails"))
	}

	progress.TilesDone = 1
	applyProgress(run, progress, b.imported)
	if err := im.runs.UpdateRunProgress(ctx, run.ID, withImported(progress, b.imported)); err != nil {
		return fail(eris.Wrap(err, "importer: update progress"))
	}
	if err := im.finish(ctx, run, b, model.RunStatusComplete, ""); err != nil {
		return run, eris.Wrap(err, "importer: finish run")
	}

	log.Info("shapefile import finished",
		zap.Int("trails_imported", b.imported),
		zap.Int("trails_skipped", progress.TrailsSkipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

// polyLineToMultiLine converts PolyLine parts to a MultiLineString. Other
// shapes and empty lines yield nil.
func polyLineToMultiLine(shape shp.Shape) *geom.MultiLineString {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.PolyLine:
		parts, points = s.Parts, s.Points
	case *shp.PolyLineZ:
		parts, points = s.Parts, s.Points
	case *shp.PolyLineM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	chains := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		coords := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			coords = append(coords, geom.Coord{p.X, p.Y})
		}
		chains = append(chains, coords)
	}

	mls, err := geo.NewMultiLine(chains)
	if err != nil || mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func shapeTrail(mls *geom.MultiLineString, name, sourceID string) (model.Trail, error) {
	wkb, err := geo.EncodeEWKB(mls)
	if err != nil {
		return model.Trail{}, err
	}
	longest := geo.Longest(mls)
	start := longest.Coord(0)

	rt := model.RouteTypeUnknown
	if mls.NumLineStrings() == 1 {
		rt = model.RouteTypePointToPoint
		if last := longest.Coord(longest.NumCoords() - 1); start.Equal(geom.XY, last) {
			rt = model.RouteTypeLoop
		}
	}

	return model.Trail{
		Name:      name,
		SearchKey: model.SearchKey(name),
		Source:    model.SourceShapefile,
		SourceID:  sourceID,
		RouteType: rt,
		LengthKM:  geo.MultiLineLengthKM(mls),
		StartLat:  start.Y(),
		StartLng:  start.X(),
		BBox:      geo.BBoxOf(mls),
		Tags:      []string{},
		Geometry:  wkb,
	}, nil
}
