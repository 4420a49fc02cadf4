package scorer

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trailscout/internal/config"
)

// DefaultProfile is the profile name that uses the configured weights as-is.
const DefaultProfile = "default"

// Weights is a named set of component weight overrides.
type Weights struct {
	Distance   float64 `yaml:"distance_weight" json:"distance"`
	Difficulty float64 `yaml:"difficulty_weight" json:"difficulty"`
	Length     float64 `yaml:"length_weight" json:"length"`
	Elevation  float64 `yaml:"elevation_weight" json:"elevation"`
	Rating     float64 `yaml:"rating_weight" json:"rating"`
	Tags       float64 `yaml:"tags_weight" json:"tags"`
	RouteType  float64 `yaml:"route_type_weight" json:"route_type"`
	Popularity float64 `yaml:"popularity_weight" json:"popularity"`
}

// WeightsOf extracts the component weights of cfg.
func WeightsOf(cfg config.ScorerConfig) Weights {
	return Weights{
		Distance:   cfg.DistanceWeight,
		Difficulty: cfg.DifficultyWeight,
		Length:     cfg.LengthWeight,
		Elevation:  cfg.ElevationWeight,
		Rating:     cfg.RatingWeight,
		Tags:       cfg.TagsWeight,
		RouteType:  cfg.RouteTypeWeight,
		Popularity: cfg.PopularityWeight,
	}
}

// Apply returns a copy of cfg with w's weights.
func (w Weights) Apply(cfg config.ScorerConfig) config.ScorerConfig {
	cfg.DistanceWeight = w.Distance
	cfg.DifficultyWeight = w.Difficulty
	cfg.LengthWeight = w.Length
	cfg.ElevationWeight = w.Elevation
	cfg.RatingWeight = w.Rating
	cfg.TagsWeight = w.Tags
	cfg.RouteTypeWeight = w.RouteType
	cfg.PopularityWeight = w.Popularity
	return cfg
}

// builtinProfiles ship with the binary.
var builtinProfiles = map[string]Weights{
	// Short, close, easy outings.
	"family": {
		Distance: 25, Difficulty: 25, Length: 20, Elevation: 15,
		Rating: 10, Tags: 5,
	},
	// Long days with real climbing.
	"challenge": {
		Distance: 10, Difficulty: 30, Length: 20, Elevation: 20,
		Rating: 10, Tags: 5, Popularity: 5,
	},
}

type profileFile struct {
	Profiles map[string]Weights `yaml:"profiles"`
}

// Profiles resolves named scoring profiles on top of a base config.
type Profiles struct {
	base     config.ScorerConfig
	profiles map[string]Weights
}

// NewProfiles builds the profile set from the built-in profiles plus those
// in path, if set. File entries override built-ins of the same name. Every
// resulting profile must pass ValidateConfig.
func NewProfiles(base config.ScorerConfig, path string) (*Profiles, error) {
	p := &Profiles{base: base, profiles: make(map[string]Weights, len(builtinProfiles))}
	for name, w := range builtinProfiles {
		p.profiles[name] = w
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: read profiles %s", path)
		}
		var f profileFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrapf(err, "scorer: parse profiles %s", path)
		}
		for name, w := range f.Profiles {
			if name == DefaultProfile {
				return nil, eris.Errorf("scorer: profile name %q is reserved", name)
			}
			p.profiles[name] = w
		}
	}

	if err := ValidateConfig(base); err != nil {
		return nil, err
	}
	for name, w := range p.profiles {
		if err := ValidateConfig(w.Apply(base)); err != nil {
			return nil, eris.Wrapf(err, "scorer: profile %q", name)
		}
	}
	return p, nil
}

// Resolve returns the scorer config for profile name. An empty name selects
// the default profile.
func (p *Profiles) Resolve(name string) (config.ScorerConfig, error) {
	if name == "" || name == DefaultProfile {
		return p.base, nil
	}
	w, ok := p.profiles[name]
	if !ok {
		return config.ScorerConfig{}, eris.Errorf("scorer: unknown profile %q", name)
	}
	return w.Apply(p.base), nil
}

// Names returns all profile names, sorted, including the default.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.profiles)+1)
	names = append(names, DefaultProfile)
	for name := range p.profiles {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}
