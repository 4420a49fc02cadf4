package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trailscout/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect import run history",
	Long:  "Commands for listing and viewing trail import runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initRunStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, model.RunFilter{
			Status: model.RunStatus(status),
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initRunStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate import statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initRunStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.ListRuns(ctx, model.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs, time.Now().Add(-since)))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, partial, failed)")
	runsListCmd.Flags().String("source", "", "filter by source (osm, shapefile)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 7*24*time.Hour, "time window for stats (e.g. 24h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total          int
	Complete       int
	Partial        int
	Failed         int
	Active         int
	TilesFailed    int
	TrailsImported int
	AvgDurSecs     float64
}

// computeRunStats aggregates runs created at or after since.
func computeRunStats(runs []model.ImportRun, since time.Time) runStats {
	var s runStats
	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		if r.CreatedAt.Before(since) {
			continue
		}
		s.Total++
		s.TilesFailed += r.TilesFailed
		s.TrailsImported += r.TrailsImported

		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
		case model.RunStatusPartial:
			s.Partial++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Active++
		}
		if r.StartedAt != nil && r.FinishedAt != nil {
			totalDur += r.FinishedAt.Sub(*r.StartedAt)
			durCount++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Partial:\t%d\n", s.Partial)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Queued/running:\t%d\n", s.Active)
	_, _ = fmt.Fprintf(w, "Failed tiles:\t%d\n", s.TilesFailed)
	_, _ = fmt.Fprintf(w, "Trails imported:\t%d\n", s.TrailsImported)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.ImportRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tREGION\tSTATUS\tTILES\tTRAILS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t------\t-----\t------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Source,
			truncate(r.Region, 30),
			r.Status,
			tileSummary(r),
			r.TrailsImported,
			r.CreatedAt.Format("2006-01-02 15:04"),
			runDuration(r),
		)
	}
	_ = w.Flush()
}

// tileSummary formats done/total tiles, noting failures.
func tileSummary(r model.ImportRun) string {
	s := fmt.Sprintf("%d/%d", r.TilesDone, r.TilesTotal)
	if r.TilesFailed > 0 {
		s += fmt.Sprintf(" (%d failed)", r.TilesFailed)
	}
	return s
}

// runDuration is the wall time of a started run, or "-" for queued runs.
func runDuration(r model.ImportRun) string {
	if r.StartedAt == nil {
		return "-"
	}
	end := r.UpdatedAt
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(*r.StartedAt).Round(time.Second).String()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
