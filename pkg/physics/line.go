package physics

// Line is a directed line. The permitted half-plane lies to the left of
// Direction when standing on Point; Direction is unit length.
type Line struct {
	Point     Vector2 `json:"point"`
	Direction Vector2 `json:"direction"`
}

// Violation returns how far v lies on the forbidden (right) side of the
// line. Values <= 0 mean v is permitted.
func (l Line) Violation(v Vector2) float64 {
	return Det(l.Direction, l.Point.Sub(v))
}
