package scheduler

import (
	"errors"
	"fmt"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// ErrInvalidTransition is returned for a state change the machine does not allow.
var ErrInvalidTransition = errors.New("invalid assignment transition")

var allowedTransitions = map[types.AssignmentStatus][]types.AssignmentStatus{
	types.AssignmentPending: {types.AssignmentReady},
	types.AssignmentReady:   {types.AssignmentRunning},
	types.AssignmentRunning: {types.AssignmentCompleted, types.AssignmentFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to types.AssignmentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves step from one state to another in states. It fails when
// the step is not currently in from or the change is not allowed.
func Transition(states map[int]types.AssignmentStatus, step int, from, to types.AssignmentStatus) error {
	cur, ok := states[step]
	if !ok {
		return fmt.Errorf("%w: unknown step %d", ErrInvalidTransition, step)
	}
	if cur != from {
		return fmt.Errorf("%w: step %d is %s, not %s", ErrInvalidTransition, step, cur, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	states[step] = to
	return nil
}
