package osm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/trailscout/internal/model"
)

// DifficultyFromSACScale maps an OSM sac_scale value to a difficulty grade.
func DifficultyFromSACScale(v string) model.Difficulty {
	switch v = strings.TrimSpace(strings.ToLower(v)); {
	case v == "hiking":
		return model.DifficultyEasy
	case v == "mountain_hiking":
		return model.DifficultyModerate
	case v == "demanding_mountain_hiking":
		return model.DifficultyHard
	case strings.HasSuffix(v, "alpine_hiking"):
		return model.DifficultyExpert
	default:
		return model.DifficultyUnknown
	}
}

// hardest returns the higher-ranked of two difficulties.
func hardest(a, b model.Difficulty) model.Difficulty {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// isClosed reports whether tags mark the route as inaccessible or retired.
func isClosed(tags map[string]string) bool {
	switch tags["access"] {
	case "no", "private":
		return true
	}
	for k := range tags {
		if strings.HasPrefix(k, "disused:") || strings.HasPrefix(k, "abandoned:") {
			return true
		}
	}
	return false
}

// displayName returns name, falling back to ref.
func displayName(tags map[string]string) string {
	if n := strings.TrimSpace(tags["name"]); n != "" {
		return n
	}
	return strings.TrimSpace(tags["ref"])
}

// parseMeters reads values like "850", "850 m" or "1,200m".
func parseMeters(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimSuffix(v, "m")
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// deriveTags builds the searchable tag set for a trail.
func deriveTags(tags map[string]string, rt model.RouteType, waterfall bool) []string {
	set := map[string]struct{}{}
	add := func(s string) { set[s] = struct{}{} }

	if rt == model.RouteTypeLoop {
		add("loop")
	}
	if s := tags["surface"]; s != "" {
		add("surface:" + strings.ToLower(s))
	}
	switch tags["dog"] {
	case "yes", "leashed":
		add("dog_friendly")
	}
	if tags["wheelchair"] == "yes" {
		add("wheelchair")
	}
	if tags["lit"] == "yes" {
		add("lit")
	}
	if waterfall || strings.Contains(strings.ToLower(tags["name"]), "waterfall") ||
		strings.Contains(strings.ToLower(tags["name"]), "falls") {
		add("waterfall")
	}
	switch tags["network"] {
	case "iwn", "nwn", "rwn", "lwn":
		add("network:" + tags["network"])
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
