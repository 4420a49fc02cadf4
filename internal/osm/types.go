package osm

// Response is the JSON document returned by the Overpass API.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Remark    string    `json:"remark,omitempty"`
	Elements  []Element `json:"elements"`
}

// Element is an OSM node, way or relation.
type Element struct {
	Type    string            `json:"type"`
	ID      int64             `json:"id"`
	Lat     float64           `json:"lat,omitempty"`
	Lon     float64           `json:"lon,omitempty"`
	Nodes   []int64           `json:"nodes,omitempty"`
	Members []Member          `json:"members,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// Member is a relation member reference.
type Member struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// Element types.
const (
	TypeNode     = "node"
	TypeWay      = "way"
	TypeRelation = "relation"
)
