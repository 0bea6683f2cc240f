package physics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Vector2 is a 2D vector. It shares its layout with r2.Point so the
// algebra is delegated to golang/geo without copying.
type Vector2 r2.Point

// Zero is the zero vector.
var Zero = Vector2{}

// equalThreshold is the per-axis tolerance used by Equal.
const equalThreshold = 0.01

// normalizeThreshold is the length below which Normalize yields Zero.
const normalizeThreshold = 1e-5

// Vec returns the vector (x, y).
func Vec(x, y float64) Vector2 { return Vector2{X: x, Y: y} }

func (v Vector2) point() r2.Point { return r2.Point(v) }

// Add returns v + w.
func (v Vector2) Add(w Vector2) Vector2 { return Vector2(v.point().Add(w.point())) }

// Sub returns v - w.
func (v Vector2) Sub(w Vector2) Vector2 { return Vector2(v.point().Sub(w.point())) }

// Scale returns v * s.
func (v Vector2) Scale(s float64) Vector2 { return Vector2(v.point().Mul(s)) }

// Neg returns -v.
func (v Vector2) Neg() Vector2 { return Vector2{X: -v.X, Y: -v.Y} }

// Dot returns the dot product of v and w.
func (v Vector2) Dot(w Vector2) float64 { return v.point().Dot(w.point()) }

// Perp returns v rotated by +90 degrees, (-y, x).
func (v Vector2) Perp() Vector2 { return Vector2(v.point().Ortho()) }

// AbsSq returns the squared length of v.
func (v Vector2) AbsSq() float64 { return v.Dot(v) }

// Abs returns the length of v.
func (v Vector2) Abs() float64 { return v.point().Norm() }

// Normalize returns the unit vector along v. Vectors shorter than 1e-5
// normalize to Zero instead of producing NaNs.
func (v Vector2) Normalize() Vector2 {
	if v.Abs() > normalizeThreshold {
		return Vector2(v.point().Normalize())
	}
	return Zero
}

// Equal reports whether v and w are within 0.01 of each other on the X
// axis OR on the Y axis. It is neither symmetric in tolerance nor
// transitive; points far apart on one axis still compare equal when the
// other axis matches.
func (v Vector2) Equal(w Vector2) bool {
	return math.Abs(v.X-w.X) < equalThreshold || math.Abs(v.Y-w.Y) < equalThreshold
}

// IsFinite reports whether both components are finite numbers.
func (v Vector2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

func (v Vector2) String() string {
	return fmt.Sprintf("(%g,%g)", v.X, v.Y)
}
