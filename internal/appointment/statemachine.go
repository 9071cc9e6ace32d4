package appointment

import "fmt"

// allowedTransitions is the lifecycle table. Creation lands in PENDING with
// capacity already reserved; COMPLETED and CANCELLED are terminal.
//
//	PENDING   -> APPROVED (staff approval)
//	APPROVED  -> CONFIRMED (payment dispatched here)
//	CONFIRMED -> COMPLETED (post-visit)
//	PENDING/APPROVED/CONFIRMED -> CANCELLED (releases capacity, fires promotion)
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusCancelled: true,
	},
	StatusApproved: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether from -> to is listed in the lifecycle table.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// CheckTransition returns ErrInvalidTransition for any move not listed in
// the lifecycle table. Callers must not mutate state when it fails.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
