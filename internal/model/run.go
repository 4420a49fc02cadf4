package model

import "time"

// RunStatus represents the current state of an import run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusPartial || s == RunStatusFailed
}

// ImportRun tracks one import job.
type ImportRun struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Region         string     `json:"region"`
	Status         RunStatus  `json:"status"`
	TilesTotal     int        `json:"tiles_total"`
	TilesDone      int        `json:"tiles_done"`
	TilesFailed    int        `json:"tiles_failed"`
	TrailsImported int        `json:"trails_imported"`
	TrailsSkipped  int        `json:"trails_skipped"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RunProgress is an incremental progress update for a run.
type RunProgress struct {
	TilesTotal     int
	TilesDone      int
	TilesFailed    int
	TrailsImported int
	TrailsSkipped  int
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status RunStatus
	Source string
	Limit  int
	Offset int
}
