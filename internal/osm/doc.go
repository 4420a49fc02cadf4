// Package osm fetches hiking routes from the Overpass API and rebuilds them
// into trails with stitched MultiLineString geometry.
package osm
