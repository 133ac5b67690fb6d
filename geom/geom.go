// Package geom holds the vector and quaternion helpers used by the skeleton
// model and the BVH codec. Angles are radians unless a name says otherwise.
package geom

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the default tolerance for CompareVecs.
const Epsilon = 1e-5

// gimbalThreshold is the |sin(y)| above which QuatToEuler treats Y as ±90°.
const gimbalThreshold = 1 - 1e-12

// ErrDegenerate is returned when a direction cannot produce a rotation.
var ErrDegenerate = errors.New("degenerate direction")

// Identity returns the identity rotation.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// Degrees converts a vector of radians to degrees.
func Degrees(v r3.Vec) r3.Vec {
	return r3.Scale(180/math.Pi, v)
}

// Radians converts a vector of degrees to radians.
func Radians(v r3.Vec) r3.Vec {
	return r3.Scale(math.Pi/180, v)
}

// DegToRad converts a single angle from degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// AxisQuat returns the rotation of rad radians about a single axis.
// axis is one of 'X', 'Y' or 'Z'; anything else yields the identity.
func AxisQuat(axis byte, rad float64) quat.Number {
	s, c := math.Sincos(rad / 2)
	switch axis {
	case 'X', 'x':
		return quat.Number{Real: c, Imag: s}
	case 'Y', 'y':
		return quat.Number{Real: c, Jmag: s}
	case 'Z', 'z':
		return quat.Number{Real: c, Kmag: s}
	}
	return Identity()
}

// EulerToQuat builds qx·qy·qz from a vector of radians.
// This matches a CHANNELS line declaring Xrotation Yrotation Zrotation.
func EulerToQuat(e r3.Vec) quat.Number {
	q := quat.Mul(AxisQuat('X', e.X), AxisQuat('Y', e.Y))
	return quat.Mul(q, AxisQuat('Z', e.Z))
}

// QuatToEuler is the inverse of EulerToQuat: it decomposes R = Rx·Ry·Rz and
// returns the angles in radians. Y is kept in [-π/2, π/2]; at gimbal lock Z
// is pinned to zero.
func QuatToEuler(q quat.Number) r3.Vec {
	if n := quat.Abs(q); n != 0 && n != 1 {
		q = quat.Scale(1/n, q)
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	r02 := 2 * (x*z + w*y)
	if math.Abs(r02) >= gimbalThreshold {
		r21 := 2 * (y*z + w*x)
		r11 := 1 - 2*(x*x+z*z)
		return r3.Vec{
			X: math.Atan2(r21, r11),
			Y: math.Copysign(math.Pi/2, r02),
			Z: 0,
		}
	}

	r00 := 1 - 2*(y*y+z*z)
	r01 := 2 * (x*y - w*z)
	r12 := 2 * (y*z - w*x)
	r22 := 1 - 2*(x*x+y*y)
	return r3.Vec{
		X: math.Atan2(-r12, r22),
		Y: math.Asin(Clamp(r02, 1)),
		Z: math.Atan2(-r01, r00),
	}
}

// RotateVector rotates v by q (q·v·q*).
func RotateVector(v r3.Vec, q quat.Number) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// ShortestArc returns the rotation carrying the direction of a onto the
// direction of b.
func ShortestArc(a, b r3.Vec) quat.Number {
	dot := r3.Dot(a, b)
	cross := r3.Cross(a, b)
	crossSqr := r3.Dot(cross, cross)

	if dot*dot+crossSqr == 0 {
		return Identity()
	}

	if crossSqr > 0 {
		sqr := math.Sqrt(dot*dot+crossSqr) + dot
		mag := 1 / math.Sqrt(crossSqr+sqr*sqr)
		return quat.Number{Real: sqr * mag, Imag: cross.X * mag, Jmag: cross.Y * mag, Kmag: cross.Z * mag}
	}

	if dot < 0 {
		// Anti-parallel: any perpendicular axis works, pick one from the XY projection.
		c := r3.Sub(a, b)
		mag := math.Hypot(c.X, c.Y)
		if mag > 1e-7 {
			return quat.Number{Imag: -c.Y / mag, Jmag: c.X / mag}
		}
		return quat.Number{Imag: 1}
	}

	return Identity()
}

// UpVector returns the unit vector for an axis name ("x", "y" or "z").
func UpVector(axis string) (r3.Vec, bool) {
	switch strings.ToLower(axis) {
	case "x":
		return r3.Vec{X: 1}, true
	case "y":
		return r3.Vec{Y: 1}, true
	case "z":
		return r3.Vec{Z: 1}, true
	}
	return r3.Vec{}, false
}

// DirToQuat returns the orientation of a look-at view from the origin towards
// dir, using the named up axis.
func DirToQuat(dir r3.Vec, up string) (quat.Number, error) {
	upVec, ok := UpVector(up)
	if !ok {
		return quat.Number{}, fmt.Errorf("up axis %q: %w", up, ErrDegenerate)
	}
	if r3.Norm(dir) == 0 {
		return quat.Number{}, fmt.Errorf("zero direction: %w", ErrDegenerate)
	}
	unit := r3.Unit(dir)
	if r3.Norm(r3.Cross(unit, upVec)) < 1e-9 {
		return quat.Number{}, fmt.Errorf("direction parallel to up axis %q: %w", up, ErrDegenerate)
	}

	m := mgl64.LookAtV(
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{unit.X, unit.Y, unit.Z},
		mgl64.Vec3{upVec.X, upVec.Y, upVec.Z},
	)
	q := mgl64.Mat4ToQuat(m).Normalize()
	return quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}, nil
}

// Magnitude returns the Euclidean length of v.
func Magnitude(v r3.Vec) float64 {
	return r3.Norm(v)
}

// Distance3D returns the distance between two points.
func Distance3D(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Clamp restricts num to [-lim, lim].
func Clamp(num, lim float64) float64 {
	return math.Max(-lim, math.Min(num, lim))
}

// CompareVecs reports whether a and b agree component-wise within eps.
func CompareVecs(a, b r3.Vec, eps float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, eps) &&
		scalar.EqualWithinAbs(a.Y, b.Y, eps) &&
		scalar.EqualWithinAbs(a.Z, b.Z, eps)
}

// SameRotation reports whether p and q describe the same rotation within eps.
// q and -q are the same rotation.
func SameRotation(p, q quat.Number, eps float64) bool {
	dot := p.Real*q.Real + p.Imag*q.Imag + p.Jmag*q.Jmag + p.Kmag*q.Kmag
	return scalar.EqualWithinAbs(math.Abs(dot), 1, eps)
}

// FormatVec renders v for diagnostics.
func FormatVec(v r3.Vec) string {
	return fmt.Sprintf("( %.2f, %.2f, %.2f )", v.X, v.Y, v.Z)
}
