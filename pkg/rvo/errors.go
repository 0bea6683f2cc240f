package rvo

import "errors"

// World errors
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrNotAGroup          = errors.New("agent is not a group")
	ErrAgentInGroup       = errors.New("agent already belongs to a group")
	ErrAgentNotInGroup    = errors.New("agent is not a member of the group")
	ErrNestedGroup        = errors.New("groups cannot be nested")
	ErrObstacleNotFound   = errors.New("obstacle vertex not found")
	ErrTooFewVertices     = errors.New("obstacle needs at least two vertices")
	ErrNoAgentDefaults    = errors.New("agent defaults have not been set")
	ErrObstaclesProcessed = errors.New("obstacles were already processed")
	ErrStepInProgress     = errors.New("simulation step in progress")
	ErrInvalidTimeStep    = errors.New("time step must be positive")
)
