package provenance

import (
	"fmt"

	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
)

// LifecycleState is the closed set of artifact states. Transitions only move
// forward; the full table is declared in lifecycleTransitions below rather
// than scattered across call sites.
type LifecycleState string

const (
	StateIntermediate LifecycleState = "intermediate"
	StateCandidate    LifecycleState = "candidate"
	StatePublished    LifecycleState = "published"
	StateArchived     LifecycleState = "archived"
)

// LifecycleStates lists every state in forward order.
var LifecycleStates = []LifecycleState{
	StateIntermediate,
	StateCandidate,
	StatePublished,
	StateArchived,
}

var lifecycleTransitions = map[LifecycleState]map[LifecycleState]bool{
	StateIntermediate: {
		StateCandidate: true,
		StateArchived:  true,
	},
	StateCandidate: {
		StatePublished: true,
		StateArchived:  true,
	},
	StatePublished: {
		StateArchived: true,
	},
	StateArchived: {},
}

func (s LifecycleState) Valid() bool {
	_, ok := lifecycleTransitions[s]
	return ok
}

// Index returns the forward position of s, for monotonicity checks.
// Unknown states sort before everything.
func (s LifecycleState) Index() int {
	for i, st := range LifecycleStates {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransitionTo reports whether target is directly reachable from s.
func (s LifecycleState) CanTransitionTo(target LifecycleState) bool {
	return lifecycleTransitions[s][target]
}

// InvalidTransitionError reports an illegal lifecycle move. It unwraps to
// apperrors.ErrInvalidTransition so callers can match with errors.Is.
type InvalidTransitionError struct {
	From LifecycleState
	To   LifecycleState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return apperrors.ErrInvalidTransition
}
