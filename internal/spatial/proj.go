// Package spatial resolves geographic points to cadastral parcels. Input
// coordinates are WGS84; parcel geometry is stored in the Slovenian national
// grid (D96/TM, EPSG:3794), so both directions of the transverse Mercator
// projection are implemented here and shared by every store backend.
package spatial

import "math"

// D96/TM projection constants: GRS80 ellipsoid, central meridian 15°E,
// scale 0.9999, false easting 500 km, false northing -5000 km.
const (
	grs80A          = 6378137.0
	grs80Flattening = 1 / 298.257222101

	d96CentralMeridianDeg = 15.0
	d96ScaleFactor        = 0.9999
	d96FalseEasting       = 500000.0
	d96FalseNorthing      = -5000000.0
)

var (
	e2  = grs80Flattening * (2 - grs80Flattening)
	e4  = e2 * e2
	e6  = e4 * e2
	ep2 = e2 / (1 - e2)

	// Meridian arc series coefficients.
	m0c = 1 - e2/4 - 3*e4/64 - 5*e6/256
	m2c = 3*e2/8 + 3*e4/32 + 45*e6/1024
	m4c = 15*e4/256 + 45*e6/1024
	m6c = 35 * e6 / 3072
)

// meridianArc returns the ellipsoidal arc length from the equator to lat.
func meridianArc(lat float64) float64 {
	return grs80A * (m0c*lat - m2c*math.Sin(2*lat) + m4c*math.Sin(4*lat) - m6c*math.Sin(6*lat))
}

// ToD96TM projects WGS84 degrees to D96/TM easting/northing in meters.
// WGS84 and the D96 realization of ETRS89 agree to well under cadastral
// precision, so no datum shift is applied.
func ToD96TM(lon, lat float64) (east, north float64) {
	phi := lat * math.Pi / 180
	dLam := (lon - d96CentralMeridianDeg) * math.Pi / 180

	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := sinPhi / cosPhi

	nu := grs80A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := dLam * cosPhi

	a2 := a * a
	a3 := a2 * a
	a4 := a2 * a2
	a5 := a4 * a
	a6 := a4 * a2

	east = d96FalseEasting + d96ScaleFactor*nu*(a+
		(1-t+c)*a3/6+
		(5-18*t+t*t+72*c-58*ep2)*a5/120)

	north = d96FalseNorthing + d96ScaleFactor*(meridianArc(phi)+
		nu*tanPhi*(a2/2+
			(5-t+9*c+4*c*c)*a4/24+
			(61-58*t+t*t+600*c-330*ep2)*a6/720))
	return east, north
}

// ToWGS84 inverts ToD96TM, returning degrees.
func ToWGS84(east, north float64) (lon, lat float64) {
	m := (north - d96FalseNorthing) / d96ScaleFactor
	mu := m / (grs80A * m0c)

	sqrt1e2 := math.Sqrt(1 - e2)
	e1 := (1 - sqrt1e2) / (1 + sqrt1e2)
	e1sq := e1 * e1

	phi1 := mu +
		(3*e1/2-27*e1*e1sq/32)*math.Sin(2*mu) +
		(21*e1sq/16-55*e1sq*e1sq/32)*math.Sin(4*mu) +
		(151*e1*e1sq/96)*math.Sin(6*mu) +
		(1097*e1sq*e1sq/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := sinPhi1 / cosPhi1

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	oneMinus := 1 - e2*sinPhi1*sinPhi1
	nu1 := grs80A / math.Sqrt(oneMinus)
	rho1 := grs80A * (1 - e2) / (oneMinus * math.Sqrt(oneMinus))
	d := (east - d96FalseEasting) / (nu1 * d96ScaleFactor)

	d2 := d * d
	d3 := d2 * d
	d4 := d2 * d2
	d5 := d4 * d
	d6 := d4 * d2

	phi := phi1 - (nu1 * tanPhi1 / rho1) * (d2/2 -
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24 +
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)

	lam := (d -
		(1+2*t1+c1)*d3/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120) / cosPhi1

	lat = phi * 180 / math.Pi
	lon = d96CentralMeridianDeg + lam*180/math.Pi
	return lon, lat
}
