package physics

// Epsilon is the tolerance used by the geometric predicates.
const Epsilon = 0.00001

// Sqr returns x squared.
func Sqr(x float64) float64 { return x * x }

// Det returns the determinant of the 2x2 matrix with rows a and b,
// i.e. the z component of the cross product.
func Det(a, b Vector2) float64 { return a.point().Cross(b.point()) }

// LeftOf returns a positive value when c lies to the left of the line
// through a and b, negative when to the right and zero when collinear.
func LeftOf(a, b, c Vector2) float64 {
	return Det(a.Sub(c), b.Sub(a))
}

// DistSqPointLineSegment returns the squared distance from c to the
// segment ab.
func DistSqPointLineSegment(a, b, c Vector2) float64 {
	ab := b.Sub(a)
	r := c.Sub(a).Dot(ab) / ab.AbsSq()

	switch {
	case r < 0:
		return c.Sub(a).AbsSq()
	case r > 1:
		return c.Sub(b).AbsSq()
	default:
		return c.Sub(a.Add(ab.Scale(r))).AbsSq()
	}
}
