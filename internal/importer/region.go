package importer

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/geo"
)

// ResolveBBox picks the import area from an explicit bbox or a named region.
// Exactly one of bbox and region must be set.
func ResolveBBox(bbox, region string, regions map[string]string) (geo.BBox, error) {
	bbox = strings.TrimSpace(bbox)
	region = strings.TrimSpace(region)
	switch {
	case bbox != "" && region != "":
		return geo.BBox{}, eris.New("importer: give either a bbox or a region, not both")
	case bbox != "":
		return geo.ParseBBox(bbox)
	case region != "":
		value, ok := regions[region]
		if !ok {
			return geo.BBox{}, eris.Errorf("importer: unknown region %q (known: %s)", region, strings.Join(regionNames(regions), ", "))
		}
		b, err := geo.ParseBBox(value)
		if err != nil {
			return geo.BBox{}, eris.Wrapf(err, "importer: region %q", region)
		}
		return b, nil
	default:
		return geo.BBox{}, eris.New("importer: a bbox or a region is required")
	}
}

func regionNames(regions map[string]string) []string {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
