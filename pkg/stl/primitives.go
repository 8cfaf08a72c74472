package stl

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid returns a closed axis-aligned ellipsoid mesh. resolution is the
// number of latitude bands; longitude uses twice as many segments.
func Ellipsoid(center, radii [3]float64, resolution int) []Triangle {
	if resolution < 3 {
		resolution = 3
	}
	bands, segments := resolution, resolution*2

	point := func(band, seg int) [3]float64 {
		theta := math.Pi * float64(band) / float64(bands)
		phi := 2 * math.Pi * float64(seg) / float64(segments)
		return [3]float64{
			center[0] + radii[0]*math.Sin(theta)*math.Cos(phi),
			center[1] + radii[1]*math.Sin(theta)*math.Sin(phi),
			center[2] + radii[2]*math.Cos(theta),
		}
	}

	var tris []Triangle
	for b := 0; b < bands; b++ {
		for s := 0; s < segments; s++ {
			p00 := point(b, s)
			p01 := point(b, s+1)
			p10 := point(b+1, s)
			p11 := point(b+1, s+1)
			if b != 0 {
				tris = append(tris, NewTriangle(p00, p10, p01))
			}
			if b != bands-1 {
				tris = append(tris, NewTriangle(p01, p10, p11))
			}
		}
	}
	return tris
}

// Sphere returns a closed sphere mesh
func Sphere(center [3]float64, radius float64, resolution int) []Triangle {
	return Ellipsoid(center, [3]float64{radius, radius, radius}, resolution)
}

// Tube returns a cylinder of the given radius from a to b with sides facets
// around its axis. Capped tubes are closed at both ends. A zero-length
// segment yields no triangles.
func Tube(a, b [3]float64, radius float64, sides int, capped bool) []Triangle {
	axis := r3.Sub(Vec(b), Vec(a))
	if r3.Norm(axis) == 0 {
		return nil
	}
	if sides < 3 {
		sides = 3
	}

	u, v := perpendicularBasis(r3.Unit(axis))
	ring := func(origin [3]float64, k int) [3]float64 {
		angle := 2 * math.Pi * float64(k) / float64(sides)
		offset := r3.Add(r3.Scale(math.Cos(angle)*radius, u), r3.Scale(math.Sin(angle)*radius, v))
		return Point(r3.Add(Vec(origin), offset))
	}

	tris := make([]Triangle, 0, sides*4)
	for k := 0; k < sides; k++ {
		a0, a1 := ring(a, k), ring(a, k+1)
		b0, b1 := ring(b, k), ring(b, k+1)
		tris = append(tris, NewTriangle(a0, a1, b1), NewTriangle(a0, b1, b0))
		if capped {
			tris = append(tris, NewTriangle(a, a1, a0), NewTriangle(b, b0, b1))
		}
	}
	return tris
}

// perpendicularBasis returns two unit vectors orthogonal to axis and each other
func perpendicularBasis(axis r3.Vec) (r3.Vec, r3.Vec) {
	ref := r3.Vec{X: 1}
	if math.Abs(axis.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	u := r3.Unit(r3.Cross(axis, ref))
	return u, r3.Cross(axis, u)
}
