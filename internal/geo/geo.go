// Package geo contains pure geographic computation helpers.
package geo

import (
	"fmt"
	"math"

	"compass/internal/types"
)

const (
	earthRadiusKm = 6371.0
	// mercatorRadiusM is the sphere radius used by web mercator map units.
	mercatorRadiusM = 6378137.0
	// maxMercatorLat clips latitudes that web mercator cannot represent.
	maxMercatorLat = 85.05112878

	metresPerYard = 0.9144
	metresPerMile = 1609.344
)

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// DistanceM returns the distance in metres between two degree points.
func DistanceM(a, b types.Point) float64 {
	return HaversineKm(a.Lat(), a.Lng(), b.Lat(), b.Lng()) * 1000
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// ToMercator converts a degree point to web mercator metres.
func ToMercator(p types.Point) types.Point {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat()))
	x := mercatorRadiusM * degreesToRadians(p.Lng())
	y := mercatorRadiusM * math.Log(math.Tan(math.Pi/4+degreesToRadians(lat)/2))
	return types.Point{X: x, Y: y, Coord: types.CoordMap}
}

// FromMercator converts web mercator metres to a degree point.
func FromMercator(p types.Point) types.Point {
	lng := radiansToDegrees(p.X / mercatorRadiusM)
	lat := radiansToDegrees(2*math.Atan(math.Exp(p.Y/mercatorRadiusM)) - math.Pi/2)
	return types.Degrees(lat, lng)
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

// FormatDistance renders a length for display or speech. Metric uses metres
// below one kilometre; imperial uses yards below a quarter mile.
func FormatDistance(meters float64, metric, abbreviate bool) string {
	if meters < 0 {
		meters = 0
	}
	if metric {
		if meters < 1000 {
			return fmt.Sprintf("%d %s", roundTo(meters, 10), unit(abbreviate, "m", "metres"))
		}
		return fmt.Sprintf("%.1f %s", meters/1000, unit(abbreviate, "km", "kilometres"))
	}
	if meters < metresPerMile/4 {
		return fmt.Sprintf("%d %s", roundTo(meters/metresPerYard, 10), unit(abbreviate, "yd", "yards"))
	}
	return fmt.Sprintf("%.1f %s", meters/metresPerMile, unit(abbreviate, "mi", "miles"))
}

func roundTo(v float64, step int) int {
	return int(math.Round(v/float64(step))) * step
}

func unit(abbreviate bool, short, long string) string {
	if abbreviate {
		return short
	}
	return long
}
