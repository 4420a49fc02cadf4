package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/metrics"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/osm"
)

// StartOSM validates bbox and creates a queued run for it. The caller runs
// it with RunOSM.
func (im *Importer) StartOSM(ctx context.Context, bbox geo.BBox) (*model.ImportRun, error) {
	if im.fetcher == nil {
		return nil, eris.New("importer: no overpass fetcher configured")
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	run, err := im.runs.CreateRun(ctx, model.SourceOSM, bbox.String())
	if err != nil {
		return nil, eris.Wrap(err, "importer: create run")
	}
	return run, nil
}

// ImportOSM imports every hiking trail inside bbox and returns the finished
// run.
func (im *Importer) ImportOSM(ctx context.Context, bbox geo.BBox) (*model.ImportRun, error) {
	run, err := im.StartOSM(ctx, bbox)
	if err != nil {
		return nil, err
	}
	return im.RunOSM(ctx, run, bbox)
}

// RunOSM processes a queued run tile by tile. A tile that still fails after
// retries is counted and skipped; store errors and cancellation end the run
// as failed.
func (im *Importer) RunOSM(ctx context.Context, run *model.ImportRun, bbox geo.BBox) (*model.ImportRun, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("component", "importer.osm"),
		zap.String("run_id", run.ID),
		zap.String("bbox", bbox.String()),
	)

	if err := im.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return run, eris.Wrap(err, "importer: mark run running")
	}
	run.Status = model.RunStatusRunning

	tiles := geo.Tiles(bbox, im.tileSize)
	progress := model.RunProgress{TilesTotal: len(tiles)}
	seen := make(map[string]bool)
	b := &batcher{im: im, source: model.SourceOSM}

	fail := func(cause error) (*model.ImportRun, error) {
		applyProgress(run, progress, b.imported)
		if err := im.runs.UpdateRunProgress(context.WithoutCancel(ctx), run.ID, withImported(progress, b.imported)); err != nil {
			log.Warn("importer: record progress", zap.Error(err))
		}
		if err := im.finish(ctx, run, b, model.RunStatusFailed, cause.Error()); err != nil {
			log.Error("importer: finish failed run", zap.Error(err))
		}
		log.Error("import failed", zap.Error(cause))
		return run, cause
	}

	log.Info("import started", zap.Int("tiles", len(tiles)))

	for i, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return fail(eris.Wrap(err, "importer: cancelled"))
		}

		resp, err := im.fetcher.Fetch(ctx, tile)
		if err != nil {
			if ctx.Err() != nil {
				return fail(eris.Wrap(ctx.Err(), "importer: cancelled"))
			}
			progress.TilesFailed++
			metrics.RecordTile(false)
			log.Warn("tile failed",
				zap.Int("tile", i),
				zap.String("tile_bbox", tile.String()),
				zap.Error(err),
			)
		} else {
			found, stats := osm.Assemble(resp)
			progress.TrailsSkipped += stats.Skipped()
			for _, t := range found {
				if seen[t.SourceID] {
					continue
				}
				seen[t.SourceID] = true
				im.enrich(ctx, &t)
				if err := b.add(ctx, t); err != nil {
					return fail(eris.Wrap(err, "importer: upsert trails"))
				}
			}
			if err := b.flush(ctx); err != nil {
				return fail(eris.Wrap(err, "importer: upsert trails"))
			}
			progress.TilesDone++
			metrics.RecordTile(true)
			log.Debug("tile done",
				zap.Int("tile", i),
				zap.Int("trails", stats.Emitted),
				zap.Int("skipped", stats.Skipped()),
			)
		}

		if err := im.runs.UpdateRunProgress(ctx, run.ID, withImported(progress, b.imported)); err != nil {
			if ctx.Err() != nil {
				return fail(eris.Wrap(ctx.Err(), "importer: cancelled"))
			}
			return fail(eris.Wrap(err, "importer: update progress"))
		}
	}

	applyProgress(run, progress, b.imported)

	status, msg := finalStatus(progress)
	if err := im.finish(ctx, run, b, status, msg); err != nil {
		return run, eris.Wrap(err, "importer: finish run")
	}

	log.Info("import finished",
		zap.String("status", string(status)),
		zap.Int("tiles_done", progress.TilesDone),
		zap.Int("tiles_failed", progress.TilesFailed),
		zap.Int("trails_imported", b.imported),
		zap.Int("trails_skipped", progress.TrailsSkipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

// finalStatus is complete with no failed tiles, failed when every tile
// failed, and partial otherwise.
func finalStatus(p model.RunProgress) (model.RunStatus, string) {
	switch {
	case p.TilesFailed == 0:
		return model.RunStatusComplete, ""
	case p.TilesFailed >= p.TilesTotal:
		return model.RunStatusFailed, fmt.Sprintf("all %d tiles failed", p.TilesTotal)
	default:
		return model.RunStatusPartial, fmt.Sprintf("%d of %d tiles failed", p.TilesFailed, p.TilesTotal)
	}
}

func withImported(p model.RunProgress, imported int) model.RunProgress {
	p.TrailsImported = imported
	return p
}

func applyProgress(run *model.ImportRun, p model.RunProgress, imported int) {
	run.TilesTotal = p.TilesTotal
	run.TilesDone = p.TilesDone
	run.TilesFailed = p.TilesFailed
	run.TrailsImported = imported
	run.TrailsSkipped = p.TrailsSkipped
}
