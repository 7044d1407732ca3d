package services

import (
	"errors"
	"fmt"

	"github.com/harvestlink/api/internal/repositories"
)

var (
	// ErrNotFound indicates the entity could not be located.
	ErrNotFound = errors.New("lifecycle: not found")
	// ErrForbidden indicates the actor may not act on the entity.
	ErrForbidden = errors.New("lifecycle: forbidden")
	// ErrInvalidTransition indicates an illegal status edge was requested.
	ErrInvalidTransition = errors.New("lifecycle: invalid status transition")
	// ErrSlotConflict indicates the requested booking slot is already held.
	ErrSlotConflict = errors.New("lifecycle: slot conflict")
	// ErrPastSchedule indicates the requested schedule is not in the future.
	ErrPastSchedule = errors.New("lifecycle: schedule is in the past")
	// ErrTooLateToModify indicates the modification window before the current
	// schedule has closed.
	ErrTooLateToModify = errors.New("lifecycle: too late to modify")
	// ErrValidation indicates malformed or unacceptable input.
	ErrValidation = errors.New("lifecycle: validation failed")
	// ErrConflict indicates an optimistic concurrency collision or duplicate.
	ErrConflict = errors.New("lifecycle: conflict")
	// ErrUnavailable indicates the backing store could not serve the request.
	ErrUnavailable = errors.New("lifecycle: storage unavailable")
)

// mapRepositoryError lifts categorised repository failures into the service
// error taxonomy. Unrecognised errors pass through unchanged.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}
