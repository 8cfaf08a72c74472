package stl

import "gonum.org/v1/gonum/spatial/r3"

// Vec converts a point to an r3 vector
func Vec(p [3]float64) r3.Vec { return r3.Vec{X: p[0], Y: p[1], Z: p[2]} }

// Point converts an r3 vector back to a point
func Point(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Unit is r3.Unit with the zero vector mapped to itself instead of NaN
func Unit(v r3.Vec) r3.Vec {
	if v == (r3.Vec{}) {
		return v
	}
	return r3.Unit(v)
}
