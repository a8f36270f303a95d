// Package swissgrid converts Swiss national grid coordinates and the
// register IDs of the Federal Statistical Office into WGS 84 geometry.
package swissgrid

import "github.com/golang/geo/s2"

// GridToLatLng converts Swiss grid coordinates (https://epsg.io/21781) in
// meters to WGS 84. y is the easting, x the northing.
//
// Approximation from: Swiss Confederation, Federal Office of Topography.
// Formeln und Konstanten für die Berechnung der Schweizerischen
// schiefachsigen Zylinderprojektion und der Transformation zwischen
// Koordinatensystemen. October 2018.
func GridToLatLng(y, x float64) s2.LatLng {
	y = (y - 600000) / 1000000.0
	x = (x - 200000) / 1000000.0
	lat := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x
	lng := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y
	// The formula yields units of 10000".
	return s2.LatLngFromDegrees(lat*100.0/36.0, lng*100.0/36.0)
}
