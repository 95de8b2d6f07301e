package raster

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257223563
	utmScale      = 0.9996
	utmFalseEast  = 500000.0
	utmFalseNorth = 10000000.0
)

// projectPoint converts a WGS84 lat/lon pair into the coordinate system
// identified by epsg. Supported systems are geographic WGS84 (4326) and the
// WGS84 UTM zones (326xx north, 327xx south), which cover every collection
// served by the raster backend.
func projectPoint(lat, lon float64, epsg int) (x, y float64, err error) {
	switch {
	case epsg == 4326:
		return lon, lat, nil
	case epsg > 32600 && epsg <= 32660:
		x, y = latLonToUTM(lat, lon, epsg-32600)
		return x, y, nil
	case epsg > 32700 && epsg <= 32760:
		x, y = latLonToUTM(lat, lon, epsg-32700)
		if lat < 0 {
			y += utmFalseNorth
		}
		return x, y, nil
	default:
		return 0, 0, fmt.Errorf("unsupported raster CRS: EPSG:%d", epsg)
	}
}

// latLonToUTM is the standard Transverse Mercator series expansion for the
// WGS84 ellipsoid. Accuracy is well under a metre inside the zone, which is
// far below the ~10m resolution of the rasters it addresses.
func latLonToUTM(lat, lon float64, zone int) (easting, northing float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	lambda0 := float64(zone*6-183) * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := sinPhi / cosPhi

	n := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lambda - lambda0)

	m := semiMajorAxis * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	easting = utmScale*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120) + utmFalseEast

	northing = utmScale * (m + n*tanPhi*(a*a/2+
		(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))

	return easting, northing
}

// checkZoneCoverage rejects UTM codes whose zone lies more than one zone away
// from the longitude being projected. The series in latLonToUTM loses
// accuracy fast outside its zone, so a mismatched catalog CRS must fail loud
// instead of producing a plausible-looking window in the wrong place.
func checkZoneCoverage(epsg int, lon float64) error {
	var zone int
	switch {
	case epsg > 32600 && epsg <= 32660:
		zone = epsg - 32600
	case epsg > 32700 && epsg <= 32760:
		zone = epsg - 32700
	default:
		return nil
	}

	want := utmZoneFor(lon)
	d := zone - want
	if d < 0 {
		d = -d
	}
	if d > 30 {
		d = 60 - d
	}
	if d > 1 {
		return fmt.Errorf("raster CRS EPSG:%d (zone %d) does not cover longitude %.4f (zone %d)", epsg, zone, lon, want)
	}
	return nil
}

// utmZoneFor returns the UTM zone number covering a longitude.
func utmZoneFor(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}
