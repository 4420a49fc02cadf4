package osm

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

// Member roles that are side branches rather than the main route.
var skippedRoles = map[string]bool{
	"alternative": true,
	"excursion":   true,
	"approach":    true,
	"connection":  true,
}

// Stats counts what Assemble did with the elements it was given.
type Stats struct {
	Candidates      int `json:"candidates"`
	Emitted         int `json:"emitted"`
	SkippedClosed   int `json:"skipped_closed"`
	SkippedNameless int `json:"skipped_nameless"`
	SkippedGeometry int `json:"skipped_geometry"`
}

// Skipped returns the total number of rejected candidates.
func (s Stats) Skipped() int {
	return s.SkippedClosed + s.SkippedNameless + s.SkippedGeometry
}

// segment is a run of coordinates with the node IDs they came from.
type segment struct {
	ids    []int64
	coords []geom.Coord
}

func (s segment) first() int64 { return s.ids[0] }
func (s segment) last() int64  { return s.ids[len(s.ids)-1] }

func (s segment) reversed() segment {
	r := segment{ids: slices.Clone(s.ids), coords: slices.Clone(s.coords)}
	slices.Reverse(r.ids)
	slices.Reverse(r.coords)
	return r
}

type assembler struct {
	nodes map[int64]*Element
	ways  map[int64]*Element
}

// Assemble reconstructs trails from an Overpass response. Route relations
// come first, in response order, followed by standalone paths that are not
// members of an emitted relation.
func Assemble(resp *Response) ([]model.Trail, Stats) {
	var stats Stats
	if resp == nil {
		return nil, stats
	}

	a := &assembler{
		nodes: make(map[int64]*Element),
		ways:  make(map[int64]*Element),
	}
	for i := range resp.Elements {
		e := &resp.Elements[i]
		switch e.Type {
		case TypeNode:
			a.nodes[e.ID] = e
		case TypeWay:
			a.ways[e.ID] = e
		}
	}

	var trails []model.Trail
	claimed := make(map[int64]bool)

	for i := range resp.Elements {
		e := &resp.Elements[i]
		if e.Type != TypeRelation || !isRouteRelation(e.Tags) {
			continue
		}
		stats.Candidates++
		t, ok := a.relation(e, &stats)
		if !ok {
			continue
		}
		for _, m := range e.Members {
			if m.Type == TypeWay {
				claimed[m.Ref] = true
			}
		}
		trails = append(trails, t)
	}

	for i := range resp.Elements {
		e := &resp.Elements[i]
		if e.Type != TypeWay || claimed[e.ID] || !isTrailWay(e.Tags) {
			continue
		}
		stats.Candidates++
		if t, ok := a.way(e, &stats); ok {
			trails = append(trails, t)
		}
	}

	stats.Emitted = len(trails)
	return trails, stats
}

func isRouteRelation(tags map[string]string) bool {
	switch tags["route"] {
	case "hiking", "foot":
		return true
	}
	return false
}

func isTrailWay(tags map[string]string) bool {
	return tags["highway"] == "path" && tags["sac_scale"] != "" && tags["name"] != ""
}

func (a *assembler) relation(e *Element, stats *Stats) (model.Trail, bool) {
	if !a.accept(e.Tags, stats) {
		return model.Trail{}, false
	}

	difficulty := DifficultyFromSACScale(e.Tags["sac_scale"])
	waterfall := false
	var segs []segment
	for _, m := range e.Members {
		if m.Type == TypeNode && a.isWaterfall(m.Ref) {
			waterfall = true
		}
		if m.Type != TypeWay || skippedRoles[m.Role] {
			continue
		}
		w, ok := a.ways[m.Ref]
		if !ok {
			continue
		}
		difficulty = hardest(difficulty, DifficultyFromSACScale(w.Tags["sac_scale"]))
		if s, ok := a.resolve(w); ok {
			segs = append(segs, s)
		}
		if !waterfall {
			waterfall = a.wayTouchesWaterfall(w)
		}
	}

	return a.build(e, "relation/"+strconv.FormatInt(e.ID, 10), segs, difficulty, waterfall, stats)
}

func (a *assembler) way(e *Element, stats *Stats) (model.Trail, bool) {
	if !a.accept(e.Tags, stats) {
		return model.Trail{}, false
	}
	var segs []segment
	if s, ok := a.resolve(e); ok {
		segs = append(segs, s)
	}
	return a.build(e, "way/"+strconv.FormatInt(e.ID, 10), segs,
		DifficultyFromSACScale(e.Tags["sac_scale"]), a.wayTouchesWaterfall(e), stats)
}

func (a *assembler) accept(tags map[string]string, stats *Stats) bool {
	if isClosed(tags) {
		stats.SkippedClosed++
		return false
	}
	if displayName(tags) == "" {
		stats.SkippedNameless++
		return false
	}
	return true
}

// resolve turns a way into a segment, dropping nodes missing from the response.
func (a *assembler) resolve(w *Element) (segment, bool) {
	var s segment
	for _, id := range w.Nodes {
		n, ok := a.nodes[id]
		if !ok {
			continue
		}
		s.ids = append(s.ids, id)
		s.coords = append(s.coords, geom.Coord{n.Lon, n.Lat})
	}
	return s, len(s.coords) >= 2
}

func (a *assembler) isWaterfall(nodeID int64) bool {
	n, ok := a.nodes[nodeID]
	return ok && n.Tags["waterway"] == "waterfall"
}

func (a *assembler) wayTouchesWaterfall(w *Element) bool {
	for _, id := range w.Nodes {
		if a.isWaterfall(id) {
			return true
		}
	}
	return false
}

func (a *assembler) build(e *Element, sourceID string, segs []segment, difficulty model.Difficulty, waterfall bool, stats *Stats) (model.Trail, bool) {
	chains := cleanChains(stitch(segs))
	if len(chains) == 0 {
		stats.SkippedGeometry++
		return model.Trail{}, false
	}

	coords := make([][]geom.Coord, len(chains))
	for i, c := range chains {
		coords[i] = c.coords
	}
	mls, err := geo.NewMultiLine(coords)
	if err != nil {
		zap.L().Warn("osm: build geometry", zap.String("source_id", sourceID), zap.Error(err))
		stats.SkippedGeometry++
		return model.Trail{}, false
	}
	wkb, err := geo.EncodeEWKB(mls)
	if err != nil {
		zap.L().Warn("osm: encode geometry", zap.String("source_id", sourceID), zap.Error(err))
		stats.SkippedGeometry++
		return model.Trail{}, false
	}

	rt := routeType(e.Tags, chains)
	start := geo.Longest(mls).Coord(0)
	name := displayName(e.Tags)

	t := model.Trail{
		Name:       name,
		SearchKey:  model.SearchKey(name),
		Source:     model.SourceOSM,
		SourceID:   sourceID,
		Difficulty: difficulty,
		RouteType:  rt,
		LengthKM:   geo.MultiLineLengthKM(mls),
		StartLat:   start.Y(),
		StartLng:   start.X(),
		BBox:       geo.BBoxOf(mls),
		Surface:    e.Tags["surface"],
		Tags:       deriveTags(e.Tags, rt, waterfall),
		Geometry:   wkb,
	}
	if v, ok := parseMeters(e.Tags["ascent"]); ok {
		t.ElevationGainM = model.Float64Ptr(v)
	}
	if v, ok := parseMeters(e.Tags["descent"]); ok {
		t.ElevationLossM = model.Float64Ptr(v)
	}
	if len(e.Tags) > 0 {
		if props, err := json.Marshal(e.Tags); err == nil {
			t.Properties = props
		}
	}
	return t, true
}

func routeType(tags map[string]string, chains []segment) model.RouteType {
	if tags["roundtrip"] == "yes" {
		return model.RouteTypeLoop
	}
	if len(chains) > 1 {
		return model.RouteTypeNetwork
	}
	c := chains[0]
	if c.first() == c.last() || c.coords[0].Equal(geom.XY, c.coords[len(c.coords)-1]) {
		return model.RouteTypeLoop
	}
	return model.RouteTypePointToPoint
}

// stitch greedily joins segments that share end nodes into chains,
// reversing segments as needed.
func stitch(segs []segment) []segment {
	used := make([]bool, len(segs))
	var chains []segment
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		chain := segment{ids: slices.Clone(segs[i].ids), coords: slices.Clone(segs[i].coords)}

		for attached := true; attached; {
			attached = false
			for j := range segs {
				if used[j] {
					continue
				}
				s := segs[j]
				switch {
				case chain.last() == s.first():
					chain = appendSeg(chain, s)
				case chain.last() == s.last():
					chain = appendSeg(chain, s.reversed())
				case chain.first() == s.last():
					chain = appendSeg(s, chain)
				case chain.first() == s.first():
					chain = appendSeg(s.reversed(), chain)
				default:
					continue
				}
				used[j] = true
				attached = true
			}
		}
		chains = append(chains, chain)
	}
	return chains
}

// appendSeg joins b onto a, where a's last node is b's first node.
func appendSeg(a, b segment) segment {
	return segment{
		ids:    append(slices.Clone(a.ids), b.ids[1:]...),
		coords: append(slices.Clone(a.coords), b.coords[1:]...),
	}
}

// cleanChains drops consecutive duplicate coordinates and degenerate chains.
func cleanChains(chains []segment) []segment {
	out := chains[:0]
	for _, c := range chains {
		var cleaned segment
		for i, coord := range c.coords {
			if n := len(cleaned.coords); n > 0 && cleaned.coords[n-1].Equal(geom.XY, coord) {
				continue
			}
			cleaned.ids = append(cleaned.ids, c.ids[i])
			cleaned.coords = append(cleaned.coords, coord)
		}
		if len(cleaned.coords) >= 2 {
			out = append(out, cleaned)
		}
	}
	return out
}
