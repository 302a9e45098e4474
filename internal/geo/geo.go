package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometres using the Haversine formula. No special handling for
// antimeridian or pole wraparound.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance returns the distance in kilometres between two points.
func Distance(a, b Point) float64 {
	return DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// SortByDistance orders items ascending by distance from origin. The coords
// callback reports each item's location; items without one sort after every
// located item. Ties keep their original relative order.
func SortByDistance[T any](items []T, origin Point, coords func(T) (Point, bool)) {
	distances := make([]float64, len(items))
	for i, item := range items {
		p, ok := coords(item)
		if !ok {
			distances[i] = math.Inf(1)
			continue
		}
		distances[i] = Distance(origin, p)
	}
	indexes := make([]int, len(items))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return distances[indexes[a]] < distances[indexes[b]]
	})
	sorted := make([]T, len(items))
	for i, idx := range indexes {
		sorted[i] = items[idx]
	}
	copy(items, sorted)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
