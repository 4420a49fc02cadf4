package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/recommend"
	"github.com/sells-group/trailscout/internal/scorer"
	"github.com/sells-group/trailscout/internal/trails"
)

func scoreFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("score", pflag.ContinueOnError)
	addScoreFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestPreferencesFromFlags(t *testing.T) {
	fs := scoreFlags(t,
		"--lat", "35.71", "--lng", "-83.51",
		"--difficulty", "Moderate", "--route-type", "loop",
		"--tags", "waterfall, summit,,", "--max-length", "12",
		"--profile", "family", "--limit", "5",
	)

	p, err := preferencesFromFlags(fs)
	require.NoError(t, err)
	assert.InDelta(t, 35.71, p.Lat, 1e-9)
	assert.InDelta(t, -83.51, p.Lng, 1e-9)
	assert.Equal(t, model.DifficultyModerate, p.Difficulty)
	assert.Equal(t, model.RouteTypeLoop, p.RouteType)
	assert.Equal(t, []string{"waterfall", "summit"}, p.Tags)
	assert.InDelta(t, 12, p.MaxLengthKM, 1e-9)
	assert.Equal(t, "family", p.Profile)
	assert.Equal(t, 5, p.Limit)
}

func TestPreferencesFromFlags_Invalid(t *testing.T) {
	_, err := preferencesFromFlags(scoreFlags(t, "--difficulty", "brutal"))
	assert.Error(t, err)

	_, err = preferencesFromFlags(scoreFlags(t, "--route-type", "spiral"))
	assert.Error(t, err)
}

type nearbyStore struct {
	trails.Store
	found []model.Trail
}

func (s *nearbyStore) Nearby(context.Context, float64, float64, float64, int) ([]model.Trail, error) {
	return s.found, nil
}

func (s *nearbyStore) RatingSummaries(context.Context, []string) (map[string]model.RatingSummary, error) {
	return map[string]model.RatingSummary{"t1": {Count: 4, Average: 4.5}}, nil
}

func TestFormatResults(t *testing.T) {
	profiles, err := scorer.NewProfiles(scorer.DefaultConfig(), "")
	require.NoError(t, err)
	st := &nearbyStore{found: []model.Trail{{
		ID: "t1", Name: "Chimney Tops", Difficulty: model.DifficultyHard, LengthKM: 6.4,
		StartLat: 35.63, StartLng: -83.47,
		BBox: geo.BBox{MinLng: -83.48, MinLat: 35.62, MaxLng: -83.46, MaxLat: 35.64},
	}}}

	resp, err := recommend.NewService(st, profiles).Recommend(context.Background(), &model.Preferences{Lat: 35.65, Lng: -83.5})
	require.NoError(t, err)

	var buf bytes.Buffer
	formatResults(&buf, resp)
	output := buf.String()
	assert.Contains(t, output, "Profile: default  Candidates: 1  Results: 1")
	assert.Contains(t, output, "Chimney Tops")
	assert.Contains(t, output, "hard")
	assert.Contains(t, output, "4.5 (4)")
}

func TestFormatResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatResults(&buf, &recommend.Response{Profile: "family"})
	assert.Contains(t, buf.String(), "No trails matched.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Laurel Falls", truncate("Laurel Falls", 40))
	assert.Equal(t, "Sentier du...", truncate("Sentier du Mont-Blanc", 13))

	long := strings.Repeat("é", 45)
	got := truncate(long, 40)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 40, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", 37)+"...", got)
}

func TestFormatResults_MultibyteName(t *testing.T) {
	name := strings.Repeat("山", 50)
	var buf bytes.Buffer
	formatResults(&buf, &recommend.Response{
		Profile: "default",
		Results: []scorer.Result{{Trail: model.Trail{ID: "t1", Name: name}}},
	})
	output := buf.String()
	assert.True(t, utf8.ValidString(output))
	assert.Contains(t, output, strings.Repeat("山", 37)+"...")
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a ,b,, "))
	assert.Empty(t, splitAndTrim(""))
}
