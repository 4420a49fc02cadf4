// Package geo provides WGS84 geometry helpers: great-circle distances, line
// lengths, bounding boxes, tiling and point sampling along lines.
package geo
