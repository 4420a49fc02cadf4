package osm

import (
	"fmt"
	"strings"

	"github.com/sells-group/trailscout/internal/geo"
)

// BuildQuery returns the Overpass QL that selects hiking and foot route
// relations plus named mountain paths in bbox, with their member ways and
// nodes.
func BuildQuery(bbox geo.BBox, timeoutSecs int) string {
	b := bbox.Overpass()
	var q strings.Builder
	fmt.Fprintf(&q, "[out:json][timeout:%d];\n", timeoutSecs)
	q.WriteString("(\n")
	fmt.Fprintf(&q, "  relation[\"type\"=\"route\"][\"route\"~\"^(hiking|foot)$\"](%s);\n", b)
	fmt.Fprintf(&q, "  way[\"highway\"=\"path\"][\"sac_scale\"][\"name\"](%s);\n", b)
	q.WriteString(");\n")
	q.WriteString("(._;>>;);\n")
	q.WriteString("out body;\n")
	return q.String()
}
