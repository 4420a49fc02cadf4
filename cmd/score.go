package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/recommend"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank nearby trails against hiking preferences",
	Long: `Loads candidate trails around a location and ranks them with the
weighted recommendation scorer.

Examples:
  # Moderate loops near Gatlinburg
  trailscout score --lat 35.71 --lng -83.51 --difficulty moderate --route-type loop

  # Family profile, JSON output with per-component breakdown
  trailscout score --lat 35.71 --lng -83.51 --profile family --format json

  # Use a user's stored preferences
  trailscout score --lat 35.71 --lng -83.51 --user hiker-42`,
	RunE: runScore,
}

func init() {
	addScoreFlags(scoreCmd.Flags())
	_ = scoreCmd.MarkFlagRequired("lat")
	_ = scoreCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(scoreCmd)
}

// addScoreFlags registers the preference flags on f.
func addScoreFlags(f *pflag.FlagSet) {
	f.Float64("lat", 0, "latitude of the starting point (required)")
	f.Float64("lng", 0, "longitude of the starting point (required)")
	f.Float64("max-distance", 0, "search radius in km (0=config default)")
	f.String("difficulty", "", "preferred difficulty: easy, moderate, hard or expert")
	f.Float64("min-length", 0, "minimum trail length in km")
	f.Float64("max-length", 0, "maximum trail length in km (0=no limit)")
	f.Float64("max-gain", 0, "maximum elevation gain in meters (0=no limit)")
	f.String("route-type", "", "preferred route type: loop, out_and_back, point_to_point or network")
	f.String("tags", "", "comma-separated wanted tags (e.g., waterfall,summit)")
	f.String("profile", "", "scoring profile (default, family, challenge, ...)")
	f.Int("limit", 0, "maximum number of results (0=config default)")
	f.String("user", "", "load stored preferences for this user; other flags are ignored")
	f.String("format", "table", "output format: table or json")
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return eris.Errorf("score: --format must be table or json (got %q)", format)
	}
	prefs, err := preferencesFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	env, err := initEnv(ctx, "score", false)
	if err != nil {
		return err
	}
	defer env.Close()

	svc := recommend.NewService(env.Trails, profiles)

	var resp *recommend.Response
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		resp, err = svc.ForUser(ctx, user, prefs.Lat, prefs.Lng)
	} else {
		resp, err = svc.Recommend(ctx, prefs)
	}
	if err != nil {
		return eris.Wrap(err, "score")
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	formatResults(os.Stdout, resp)
	return nil
}

// preferencesFromFlags builds preferences from the score flags.
func preferencesFromFlags(f *pflag.FlagSet) (*model.Preferences, error) {
	p := &model.Preferences{}
	p.Lat, _ = f.GetFloat64("lat")
	p.Lng, _ = f.GetFloat64("lng")
	p.MaxDistanceKM, _ = f.GetFloat64("max-distance")
	p.MinLengthKM, _ = f.GetFloat64("min-length")
	p.MaxLengthKM, _ = f.GetFloat64("max-length")
	p.MaxElevationGainM, _ = f.GetFloat64("max-gain")
	p.Profile, _ = f.GetString("profile")
	p.Limit, _ = f.GetInt("limit")

	var err error
	d, _ := f.GetString("difficulty")
	if p.Difficulty, err = model.ParseDifficulty(d); err != nil {
		return nil, err
	}
	rt, _ := f.GetString("route-type")
	if p.RouteType, err = model.ParseRouteType(rt); err != nil {
		return nil, err
	}
	if tags, _ := f.GetString("tags"); tags != "" {
		p.Tags = splitAndTrim(tags)
	}
	return p, nil
}

// formatResults writes ranked results as a table.
func formatResults(out io.Writer, resp *recommend.Response) {
	_, _ = fmt.Fprintf(out, "Profile: %s  Candidates: %d  Results: %d\n\n", resp.Profile, resp.Candidates, len(resp.Results))
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(out, "No trails matched.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSCORE\tNAME\tDIFFICULTY\tLENGTH_KM\tDIST_KM\tRATING")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t----------\t---------\t-------\t------")
	for i, r := range resp.Results {
		name := truncate(r.Trail.Name, 40)
		difficulty := string(r.Trail.Difficulty)
		if difficulty == "" {
			difficulty = "-"
		}
		rating := "-"
		if r.Rating.Count > 0 {
			rating = fmt.Sprintf("%.1f (%d)", r.Rating.Average, r.Rating.Count)
		}
		_, _ = fmt.Fprintf(w, "%d\t%.1f\t%s\t%s\t%.1f\t%.1f\t%s\n",
			i+1, r.Score, name, difficulty, r.Trail.LengthKM, r.DistanceKM, rating)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
