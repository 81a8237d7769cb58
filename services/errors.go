package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses by the handlers.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Registration and check-in preconditions.
	ErrRegistrationNotOpen  = errors.New("tournament registration is not open")
	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrRegistrationConflict = errors.New("user is already registered for this tournament")
	ErrCheckInNotOpen       = errors.New("tournament check-in is not open")

	// Bracket generation preconditions.
	ErrNotEnoughParticipants   = errors.New("at least 2 checked-in participants are required")
	ErrBracketAlreadyGenerated = errors.New("bracket has already been generated for this tournament")
	ErrTournamentNotInProgress = errors.New("tournament is not in progress")

	// Result reporting preconditions.
	ErrScoresTied            = errors.New("scores cannot tie")
	ErrInvalidScore          = errors.New("scores must be non-negative integers")
	ErrMatchNotReady         = errors.New("match is not ready: both participants must be assigned")
	ErrMatchAlreadyCompleted = errors.New("match result has already been recorded")

	// Consistency conflicts, surfaced to the caller to retry.
	ErrConflict = errors.New("the resource was modified concurrently, retry the operation")

	// ErrAlreadyFinalized reports a finalization that lost the status
	// race: another finalizer, or a cancellation, got there first.
	// Callers skip their own completion handling when they see it.
	ErrAlreadyFinalized = errors.New("tournament has already left the in_progress state")

	ErrForbiddenOperation       = errors.New("operation not allowed for the current user")
	ErrTournamentNotCancellable = errors.New("tournament is already in a terminal state")

	// Fatal: the persisted advancement graph contradicts itself. Requires
	// organizer/admin intervention, never auto-repaired.
	ErrAdvancementGraphCorrupt = errors.New("advancement graph is inconsistent")
)
