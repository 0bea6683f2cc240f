package rvo

import (
	"math"

	"github.com/zeusync/orca/pkg/physics"
)

// computeNewVelocity builds the agent's ORCA lines, obstacles first, and
// solves for the velocity closest to its preferred one.
func (a *Agent) computeNewVelocity(obstacles []Obstacle, timeStep float64) {
	a.orcaLines = a.orcaLines[:0]

	for _, n := range a.obstacleNeighbors {
		a.addObstacleLine(obstacles, n.obstacle)
	}
	numObstLines := len(a.orcaLines)

	for _, n := range a.agentNeighbors {
		a.addAgentLine(n.agent, timeStep)
	}

	result, lineFail := linearProgram2(a.orcaLines, a.maxSpeed, a.prefVelocity, false)
	if lineFail < len(a.orcaLines) {
		result = linearProgram3(a.orcaLines, numObstLines, lineFail, a.maxSpeed, result)
	}
	if !result.IsFinite() {
		// A NaN preferred velocity must not leak into neighbours' lines.
		result = physics.Zero
	}
	a.newVelocity = result
}

// legDirections returns the left and right tangent directions from the
// agent to a disc of its own radius centred at relative position rel.
func (a *Agent) legDirections(rel physics.Vector2, distSq float64) (left, right physics.Vector2) {
	leg := math.Sqrt(distSq - physics.Sqr(a.radius))
	left = physics.Vec(rel.X*leg-rel.Y*a.radius, rel.X*a.radius+rel.Y*leg).Scale(1 / distSq)
	right = physics.Vec(rel.X*leg+rel.Y*a.radius, -rel.X*a.radius+rel.Y*leg).Scale(1 / distSq)
	return left, right
}

func (a *Agent) addObstacleLine(obstacles []Obstacle, id int) {
	invTimeHorizonObst := 1 / a.timeHorizonObst

	obstacle1 := &obstacles[id]
	obstacle2 := &obstacles[obstacle1.Next]

	relativePosition1 := obstacle1.Point.Sub(a.position)
	relativePosition2 := obstacle2.Point.Sub(a.position)

	// Skip edges whose velocity obstacle an earlier line already covers.
	for _, l := range a.orcaLines {
		if physics.Det(relativePosition1.Scale(invTimeHorizonObst).Sub(l.Point), l.Direction)-invTimeHorizonObst*a.radius >= -physics.Epsilon &&
			physics.Det(relativePosition2.Scale(invTimeHorizonObst).Sub(l.Point), l.Direction)-invTimeHorizonObst*a.radius >= -physics.Epsilon {
			return
		}
	}

	distSq1 := relativePosition1.AbsSq()
	distSq2 := relativePosition2.AbsSq()
	radiusSq := physics.Sqr(a.radius)

	obstacleVector := obstacle2.Point.Sub(obstacle1.Point)
	s := relativePosition1.Neg().Dot(obstacleVector) / obstacleVector.AbsSq()
	distSqLine := relativePosition1.Neg().Sub(obstacleVector.Scale(s)).AbsSq()

	switch {
	case s < 0 && distSq1 <= radiusSq:
		// Collision with the left vertex; non-convex vertices are ignored.
		if obstacle1.Convex {
			a.orcaLines = append(a.orcaLines, physics.Line{
				Direction: physics.Vec(-relativePosition1.Y, relativePosition1.X).Normalize(),
			})
		}
		return
	case s > 1 && distSq2 <= radiusSq:
		// Collision with the right vertex, unless the next edge handles it.
		if obstacle2.Convex && physics.Det(relativePosition2, obstacle2.Direction) >= 0 {
			a.orcaLines = append(a.orcaLines, physics.Line{
				Direction: physics.Vec(-relativePosition2.Y, relativePosition2.X).Normalize(),
			})
		}
		return
	case s >= 0 && s < 1 && distSqLine <= radiusSq:
		// Collision with the segment.
		a.orcaLines = append(a.orcaLines, physics.Line{Direction: obstacle1.Direction.Neg()})
		return
	}

	var leftLegDirection, rightLegDirection physics.Vector2

	switch {
	case s < 0 && distSqLine <= radiusSq:
		// Viewed obliquely: the left vertex alone defines the obstacle.
		if !obstacle1.Convex {
			return
		}
		obstacle2 = obstacle1
		leftLegDirection, rightLegDirection = a.legDirections(relativePosition1, distSq1)
	case s > 1 && distSqLine <= radiusSq:
		// Viewed obliquely: the right vertex alone defines the obstacle.
		if !obstacle2.Convex {
			return
		}
		obstacle1 = obstacle2
		leftLegDirection, rightLegDirection = a.legDirections(relativePosition2, distSq2)
	default:
		if obstacle1.Convex {
			leftLegDirection, _ = a.legDirections(relativePosition1, distSq1)
		} else {
			// Left leg extends the cut-off line.
			leftLegDirection = obstacle1.Direction.Neg()
		}
		if obstacle2.Convex {
			_, rightLegDirection = a.legDirections(relativePosition2, distSq2)
		} else {
			// Right leg extends the cut-off line.
			rightLegDirection = obstacle1.Direction
		}
	}

	single := obstacle1 == obstacle2

	// A leg of a convex vertex never points into the neighbouring edge; use
	// that edge's cut-off line instead and add nothing if the velocity
	// projects onto it.
	leftNeighbor := &obstacles[obstacle1.Previous]
	isLeftLegForeign := false
	isRightLegForeign := false

	if obstacle1.Convex && physics.Det(leftLegDirection, leftNeighbor.Direction.Neg()) >= 0 {
		leftLegDirection = leftNeighbor.Direction.Neg()
		isLeftLegForeign = true
	}
	if obstacle2.Convex && physics.Det(rightLegDirection, obstacle2.Direction) <= 0 {
		rightLegDirection = obstacle2.Direction
		isRightLegForeign = true
	}

	leftCutOff := obstacle1.Point.Sub(a.position).Scale(invTimeHorizonObst)
	rightCutOff := obstacle2.Point.Sub(a.position).Scale(invTimeHorizonObst)
	cutOffVector := rightCutOff.Sub(leftCutOff)

	t := 0.5
	if !single {
		t = a.velocity.Sub(leftCutOff).Dot(cutOffVector) / cutOffVector.AbsSq()
	}
	tLeft := a.velocity.Sub(leftCutOff).Dot(leftLegDirection)
	tRight := a.velocity.Sub(rightCutOff).Dot(rightLegDirection)

	switch {
	case (t < 0 && tLeft < 0) || (single && tLeft < 0 && tRight < 0):
		a.addCutOffCircleLine(leftCutOff, invTimeHorizonObst)
		return
	case t > 1 && tRight < 0:
		a.addCutOffCircleLine(rightCutOff, invTimeHorizonObst)
		return
	}

	distSqCutoff := math.Inf(1)
	if t >= 0 && t <= 1 && !single {
		distSqCutoff = a.velocity.Sub(leftCutOff.Add(cutOffVector.Scale(t))).AbsSq()
	}
	distSqLeft := math.Inf(1)
	if tLeft >= 0 {
		distSqLeft = a.velocity.Sub(leftCutOff.Add(leftLegDirection.Scale(tLeft))).AbsSq()
	}
	distSqRight := math.Inf(1)
	if tRight >= 0 {
		distSqRight = a.velocity.Sub(rightCutOff.Add(rightLegDirection.Scale(tRight))).AbsSq()
	}

	switch {
	case distSqCutoff <= distSqLeft && distSqCutoff <= distSqRight:
		a.addLegLine(leftCutOff, obstacle1.Direction.Neg(), invTimeHorizonObst)
	case distSqLeft <= distSqRight:
		if !isLeftLegForeign {
			a.addLegLine(leftCutOff, leftLegDirection, invTimeHorizonObst)
		}
	default:
		if !isRightLegForeign {
			a.addLegLine(rightCutOff, rightLegDirection.Neg(), invTimeHorizonObst)
		}
	}
}

func (a *Agent) addCutOffCircleLine(center physics.Vector2, invTimeHorizonObst float64) {
	unitW := a.velocity.Sub(center).Normalize()
	a.orcaLines = append(a.orcaLines, physics.Line{
		Point:     center.Add(unitW.Scale(a.radius * invTimeHorizonObst)),
		Direction: physics.Vec(unitW.Y, -unitW.X),
	})
}

func (a *Agent) addLegLine(origin, direction physics.Vector2, invTimeHorizonObst float64) {
	a.orcaLines = append(a.orcaLines, physics.Line{
		Point:     origin.Add(direction.Perp().Scale(a.radius * invTimeHorizonObst)),
		Direction: direction,
	})
}

// optimalVelocity is the velocity an agent is assumed to keep when paired
// with a neighbour holding the given share of the pair's mass. A share of
// at least one half pulls it towards the combined velocity, a smaller one
// blends it towards its preferred velocity.
func optimalVelocity(velocity, prefVelocity physics.Vector2, share float64) physics.Vector2 {
	if share >= 0.5 {
		return velocity.Sub(velocity.Scale(share)).Scale(2)
	}
	return prefVelocity.Add(velocity.Sub(prefVelocity).Scale(share * 2))
}

func (a *Agent) addAgentLine(other *Agent, timeStep float64) {
	invTimeHorizon := 1 / a.timeHorizon

	relativePosition := other.position.Sub(a.position)

	// massRatio is the neighbour's share; heavier neighbours make this
	// agent yield more.
	massRatio := other.mass / (a.mass + other.mass)
	neighborMassRatio := a.mass / (a.mass + other.mass)

	velocityOpt := optimalVelocity(a.velocity, a.prefVelocity, massRatio)
	var neighborVelocityOpt physics.Vector2
	if neighborMassRatio >= 0.5 {
		neighborVelocityOpt = other.velocity.Scale(2 * (1 - neighborMassRatio))
	} else {
		neighborVelocityOpt = other.prefVelocity.Add(other.velocity.Sub(other.prefVelocity).Scale(neighborMassRatio * 2))
	}

	relativeVelocity := velocityOpt.Sub(neighborVelocityOpt)
	distSq := relativePosition.AbsSq()
	combinedRadius := a.radius + other.radius
	combinedRadiusSq := physics.Sqr(combinedRadius)

	var line physics.Line
	var u physics.Vector2

	if distSq > combinedRadiusSq {
		w := relativeVelocity.Sub(relativePosition.Scale(invTimeHorizon))
		wLengthSq := w.AbsSq()
		dotProduct1 := w.Dot(relativePosition)

		if dotProduct1 < 0 && physics.Sqr(dotProduct1) > combinedRadiusSq*wLengthSq {
			// Project on the cut-off circle.
			wLength := math.Sqrt(wLengthSq)
			unitW := w.Scale(1 / wLength)
			line.Direction = physics.Vec(unitW.Y, -unitW.X)
			u = unitW.Scale(combinedRadius*invTimeHorizon - wLength)
		} else {
			leg := math.Sqrt(distSq - combinedRadiusSq)
			if physics.Det(relativePosition, w) > 0 {
				line.Direction = physics.Vec(
					relativePosition.X*leg-relativePosition.Y*combinedRadius,
					relativePosition.X*combinedRadius+relativePosition.Y*leg,
				).Scale(1 / distSq)
			} else {
				line.Direction = physics.Vec(
					relativePosition.X*leg+relativePosition.Y*combinedRadius,
					-relativePosition.X*combinedRadius+relativePosition.Y*leg,
				).Scale(-1 / distSq)
			}
			u = line.Direction.Scale(relativeVelocity.Dot(line.Direction)).Sub(relativeVelocity)
		}
	} else {
		// Already overlapping: resolve within one step.
		invTimeStep := 1 / timeStep
		w := relativeVelocity.Sub(relativePosition.Scale(invTimeStep))
		wLength := w.Abs()
		// Coincident agents with matching velocities separate along the x
		// axis, the lower id towards -x.
		unitW := physics.Vec(1, 0)
		if a.id < other.id {
			unitW = physics.Vec(-1, 0)
		}
		if wLength > physics.Epsilon {
			unitW = w.Scale(1 / wLength)
		}
		line.Direction = physics.Vec(unitW.Y, -unitW.X)
		u = unitW.Scale(combinedRadius*invTimeStep - wLength)
	}

	line.Point = velocityOpt.Add(u.Scale(massRatio))
	a.orcaLines = append(a.orcaLines, line)
}
