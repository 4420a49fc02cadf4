package trails

import (
	"container/list"
	"sync"
	"time"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/metrics"
)

// tileID addresses one rendered tile.
type tileID struct {
	layer   string
	z, x, y int
}

type cachedTile struct {
	id       tileID
	data     []byte
	storedAt time.Time
}

// TileCache holds rendered MVT tiles in LRU order. Entries older than the TTL
// are treated as misses. Imports drop the tiles they touch with
// InvalidateArea.
type TileCache struct {
	mu    sync.Mutex
	index map[tileID]*list.Element
	order *list.List // front is most recently used
	limit int
	ttl   time.Duration
	now   func() time.Time
}

// NewTileCache creates a cache of at most limit tiles. A zero ttl keeps tiles
// until they are evicted or invalidated.
func NewTileCache(limit int, ttl time.Duration) *TileCache {
	return &TileCache{
		index: make(map[tileID]*list.Element),
		order: list.New(),
		limit: max(limit, 1),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached tile, or nil.
func (c *TileCache) Get(layer string, z, x, y int) []byte {
	id := tileID{layer, z, x, y}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[id]
	if !ok {
		metrics.RecordTileLookup(layer, "miss")
		return nil
	}
	t := el.Value.(*cachedTile)
	if c.ttl > 0 && c.now().Sub(t.storedAt) > c.ttl {
		c.drop(el)
		metrics.RecordTileLookup(layer, "expired")
		return nil
	}
	c.order.MoveToFront(el)
	metrics.RecordTileLookup(layer, "hit")
	return t.data
}

// Put stores a tile, evicting the least recently used ones over the limit.
func (c *TileCache) Put(layer string, z, x, y int, data []byte) {
	id := tileID{layer, z, x, y}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[id]; ok {
		t := el.Value.(*cachedTile)
		t.data, t.storedAt = data, c.now()
		c.order.MoveToFront(el)
		return
	}

	evicted := 0
	for c.order.Len() >= c.limit {
		c.drop(c.order.Back())
		evicted++
	}
	metrics.RecordTileEvictions("capacity", evicted)
	c.index[id] = c.order.PushFront(&cachedTile{id: id, data: data, storedAt: c.now()})
}

// InvalidateArea drops every cached tile of layer whose bounds overlap area.
func (c *TileCache) InvalidateArea(layer string, area geo.BBox) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for id, el := range c.index {
		if id.layer == layer && geo.TileBBox(id.z, id.x, id.y).Intersects(area) {
			c.drop(el)
			dropped++
		}
	}
	metrics.RecordTileEvictions("invalidated", dropped)
}

// Len returns the number of cached tiles.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *TileCache) drop(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*cachedTile).id)
}
