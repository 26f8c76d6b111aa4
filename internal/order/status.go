package order

import (
	"fmt"

	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

type Effect int

const (
	EffectNone Effect = iota
	// EffectDeplete posts one OUT movement per catalog line.
	EffectDeplete
)

// transitions lists every permitted move. Non-terminal states may move to
// any state, terminal states to none.
var transitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusCreated:       true,
		StatusConfirmed:     true,
		StatusInPreparation: true,
		StatusReady:         true,
		StatusFulfilled:     true,
		StatusCancelled:     true,
	},
	StatusConfirmed: {
		StatusCreated:       true,
		StatusConfirmed:     true,
		StatusInPreparation: true,
		StatusReady:         true,
		StatusFulfilled:     true,
		StatusCancelled:     true,
	},
	StatusInPreparation: {
		StatusCreated:       true,
		StatusConfirmed:     true,
		StatusInPreparation: true,
		StatusReady:         true,
		StatusFulfilled:     true,
		StatusCancelled:     true,
	},
	StatusReady: {
		StatusCreated:       true,
		StatusConfirmed:     true,
		StatusInPreparation: true,
		StatusReady:         true,
		StatusFulfilled:     true,
		StatusCancelled:     true,
	},
	StatusFulfilled: {},
	StatusCancelled: {},
}

// Evaluate decides whether current may move to requested and which side
// effect the move carries. It never mutates anything.
func Evaluate(current, requested Status) (Effect, error) {
	if !requested.Valid() {
		return EffectNone, fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidArgument, requested)
	}

	if current.Terminal() {
		return EffectNone, fmt.Errorf("%w: %s is terminal", apperr.ErrInvalidTransition, current)
	}

	allowed, ok := transitions[current]
	if !ok || !allowed[requested] {
		return EffectNone, fmt.Errorf("%w: from %s to %s", apperr.ErrInvalidTransition, current, requested)
	}

	if requested == StatusConfirmed && current != StatusConfirmed {
		return EffectDeplete, nil
	}
	return EffectNone, nil
}
