// Package importer loads trails from OpenStreetMap and shapefiles into the
// trail store, tracking each load as an import run.
package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/elevation"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/metrics"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/osm"
	"github.com/sells-group/trailscout/internal/store"
	"github.com/sells-group/trailscout/internal/trails"
)

const (
	defaultBatchSize   = 500
	defaultTileSizeDeg = 0.25
)

// TrailWriter persists trails.
type TrailWriter interface {
	UpsertTrails(ctx context.Context, trails []model.Trail) (int64, error)
}

// Invalidator drops cached tiles of a layer that overlap area.
type Invalidator interface {
	InvalidateArea(layer string, area geo.BBox)
}

// Importer runs trail imports.
type Importer struct {
	fetcher   osm.Fetcher
	trails    TrailWriter
	runs      store.Store
	elev      elevation.Profiler
	cache     Invalidator
	tileSize  float64
	batchSize int
}

// Option configures an Importer.
type Option func(*Importer)

// WithElevation enables elevation enrichment for trails lacking ascent data.
func WithElevation(p elevation.Profiler) Option {
	return func(im *Importer) { im.elev = p }
}

// WithInvalidator sets the tile cache to clear after each import.
func WithInvalidator(inv Invalidator) Option {
	return func(im *Importer) { im.cache = inv }
}

// WithTileSize sets the Overpass tile edge in degrees.
func WithTileSize(deg float64) Option {
	return func(im *Importer) {
		if deg > 0 {
			im.tileSize = deg
		}
	}
}

// WithBatchSize sets the number of trails per upsert.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// New creates an Importer. fetcher may be nil for shapefile-only use.
func New(fetcher osm.Fetcher, tw TrailWriter, runs store.Store, opts ...Option) *Importer {
	im := &Importer{
		fetcher:   fetcher,
		trails:    tw,
		runs:      runs,
		tileSize:  defaultTileSizeDeg,
		batchSize: defaultBatchSize,
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// batcher buffers trails and upserts them in fixed-size batches. extent
// grows to cover every trail written so far.
type batcher struct {
	im       *Importer
	source   string
	pending  []model.Trail
	imported int
	extent   geo.BBox
}

func (b *batcher) add(ctx context.Context, t model.Trail) error {
	b.pending = append(b.pending, t)
	if len(b.pending) >= b.im.batchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	n, err := b.im.trails.UpsertTrails(ctx, b.pending)
	if err != nil {
		return err
	}
	// imported counts trails sent, not rows affected.
	for _, t := range b.pending {
		if b.imported == 0 {
			b.extent = t.BBox
		} else {
			b.extent = b.extent.Union(t.BBox)
		}
		b.imported++
	}
	metrics.RecordTrailsImported(b.source, len(b.pending))
	zap.L().Debug("importer: batch upserted",
		zap.String("source", b.source),
		zap.Int("trails", len(b.pending)),
		zap.Int64("rows", n),
	)
	b.pending = b.pending[:0]
	return nil
}

// enrich fills elevation gain and loss from the profiler. Failures are
// logged and leave the trail unchanged.
func (im *Importer) enrich(ctx context.Context, t *model.Trail) {
	if im.elev == nil || t.ElevationGainM != nil {
		return
	}
	mls, err := geo.DecodeMultiLine(t.Geometry)
	if err != nil {
		zap.L().Warn("importer: decode geometry for elevation", zap.String("source_id", t.SourceID), zap.Error(err))
		return
	}
	line := geo.Longest(mls)
	if line == nil {
		return
	}
	prof, err := im.elev.Profile(ctx, line)
	if err != nil {
		zap.L().Warn("importer: elevation lookup failed", zap.String("source_id", t.SourceID), zap.Error(err))
		return
	}
	if prof.Samples == 0 {
		return
	}
	t.ElevationGainM = model.Float64Ptr(prof.GainM)
	if t.ElevationLossM == nil {
		t.ElevationLossM = model.Float64Ptr(prof.LossM)
	}
}

// invalidate drops cached tiles under the trails b wrote.
func (im *Importer) invalidate(b *batcher) {
	if im.cache == nil || b.imported == 0 {
		return
	}
	im.cache.InvalidateArea(trails.LayerTrails, b.extent)
	im.cache.InvalidateArea(trails.LayerTrailheads, b.extent)
}

// finish records the terminal state of a run. It uses a context detached
// from cancellation so a cancelled import is still recorded.
func (im *Importer) finish(ctx context.Context, run *model.ImportRun, b *batcher, status model.RunStatus, errMsg string) error {
	ctx = context.WithoutCancel(ctx)
	if err := im.runs.FinishRun(ctx, run.ID, status, errMsg); err != nil {
		return err
	}
	run.Status = status
	run.Error = errMsg
	im.invalidate(b)
	return nil
}
