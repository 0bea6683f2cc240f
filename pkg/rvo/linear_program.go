package rvo

import (
	"math"

	"github.com/zeusync/orca/pkg/physics"
)

// linearProgram1 solves a 1-D program on lines[lineNo] bounded by the disc
// of the given radius and the half-planes of all earlier lines. It returns
// false when the line is infeasible.
func linearProgram1(lines []physics.Line, lineNo int, radius float64, optVelocity physics.Vector2, directionOpt bool) (physics.Vector2, bool) {
	line := lines[lineNo]

	dotProduct := line.Point.Dot(line.Direction)
	discriminant := physics.Sqr(dotProduct) + physics.Sqr(radius) - line.Point.AbsSq()
	if discriminant < 0 {
		// Max speed circle fully invalidates the line.
		return physics.Zero, false
	}

	sqrtDiscriminant := math.Sqrt(discriminant)
	tLeft := -dotProduct - sqrtDiscriminant
	tRight := -dotProduct + sqrtDiscriminant

	for i := 0; i < lineNo; i++ {
		denominator := physics.Det(line.Direction, lines[i].Direction)
		numerator := physics.Det(lines[i].Direction, line.Point.Sub(lines[i].Point))

		if math.Abs(denominator) <= physics.Epsilon {
			// Almost parallel.
			if numerator < 0 {
				return physics.Zero, false
			}
			continue
		}

		t := numerator / denominator
		if denominator >= 0 {
			tRight = math.Min(tRight, t)
		} else {
			tLeft = math.Max(tLeft, t)
		}

		if tLeft > tRight {
			return physics.Zero, false
		}
	}

	at := func(t float64) physics.Vector2 {
		return line.Point.Add(line.Direction.Scale(t))
	}

	if directionOpt {
		if optVelocity.Dot(line.Direction) > 0 {
			return at(tRight), true
		}
		return at(tLeft), true
	}

	t := line.Direction.Dot(optVelocity.Sub(line.Point))
	switch {
	case t < tLeft:
		return at(tLeft), true
	case t > tRight:
		return at(tRight), true
	default:
		return at(t), true
	}
}

// linearProgram2 finds the velocity closest to optVelocity (or furthest
// along it when directionOpt is set, optVelocity then being a unit vector)
// inside the disc and all half-planes. It returns the index of the first
// line it could not satisfy, len(lines) on success, together with the best
// result found so far.
func linearProgram2(lines []physics.Line, radius float64, optVelocity physics.Vector2, directionOpt bool) (physics.Vector2, int) {
	var result physics.Vector2

	switch {
	case directionOpt:
		result = optVelocity.Scale(radius)
	case optVelocity.AbsSq() > physics.Sqr(radius):
		result = optVelocity.Normalize().Scale(radius)
	default:
		result = optVelocity
	}

	for i := range lines {
		if lines[i].Violation(result) <= 0 {
			continue
		}

		next, ok := linearProgram1(lines, i, radius, optVelocity, directionOpt)
		if !ok {
			return result, i
		}
		result = next
	}

	return result, len(lines)
}

// linearProgram3 minimises the largest violation of the agent lines from
// beginLine on, keeping the first numObstLines obstacle lines hard.
func linearProgram3(lines []physics.Line, numObstLines, beginLine int, radius float64, result physics.Vector2) physics.Vector2 {
	distance := 0.0
	projLines := make([]physics.Line, 0, len(lines))

	for i := beginLine; i < len(lines); i++ {
		if lines[i].Violation(result) <= distance {
			continue
		}

		projLines = append(projLines[:0], lines[:numObstLines]...)

		for j := numObstLines; j < i; j++ {
			var line physics.Line

			determinant := physics.Det(lines[i].Direction, lines[j].Direction)
			if math.Abs(determinant) <= physics.Epsilon {
				if lines[i].Direction.Dot(lines[j].Direction) > 0 {
					// Same direction.
					continue
				}
				line.Point = lines[i].Point.Add(lines[j].Point).Scale(0.5)
			} else {
				t := physics.Det(lines[j].Direction, lines[i].Point.Sub(lines[j].Point)) / determinant
				line.Point = lines[i].Point.Add(lines[i].Direction.Scale(t))
			}

			line.Direction = lines[j].Direction.Sub(lines[i].Direction).Normalize()
			projLines = append(projLines, line)
		}

		// The current result is feasible for projLines by construction;
		// failure here is floating point noise and keeps it.
		if next, failed := linearProgram2(projLines, radius, lines[i].Direction.Perp(), true); failed == len(projLines) {
			result = next
		}

		distance = lines[i].Violation(result)
	}

	return result
}
