package delivery

import (
	"errors"
	"fmt"

	"haulr/internal/types"
)

var (
	ErrNotFound   = errors.New("delivery not found")
	ErrBadRequest = errors.New("bad request")
	// ErrDeliveryAlreadyAssigned is the expected outcome for every driver that
	// loses an accept race.
	ErrDeliveryAlreadyAssigned = errors.New("delivery already assigned to another driver")
	ErrActorNotPermitted       = errors.New("actor not permitted for this transition")
	ErrDriverUnavailable       = errors.New("driver is not available")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	// ErrConflict means the delivery changed between read and guarded write.
	ErrConflict = errors.New("delivery state conflict")
)

type IllegalTransitionError struct {
	From   Status
	To     Status
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot %s a delivery in %s (to %s)", e.Action, e.From, e.To)
}

// PayoutComputationError blocks a delivery's completion until it is reconciled.
type PayoutComputationError struct {
	DeliveryID types.ID
	Fee        types.Money
	Err        error
}

func (e *PayoutComputationError) Error() string {
	return fmt.Sprintf("payout for delivery %s (fee %s): %v", e.DeliveryID, e.Fee, e.Err)
}

func (e *PayoutComputationError) Unwrap() error { return e.Err }

func illegal(from Status, a Action) error {
	to, _ := a.Target()
	return &IllegalTransitionError{From: from, To: to, Action: a}
}
