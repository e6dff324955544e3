package domain

import "errors"

var (
	// ErrInvalidDuel is returned when a duel would violate its invariants on creation.
	ErrInvalidDuel = errors.New("invalid duel")
	// ErrNotFound is returned when a duel does not exist.
	ErrNotFound = errors.New("duel not found")
	// ErrNotAllowed covers acting on a terminal duel or from the wrong side.
	ErrNotAllowed = errors.New("operation not allowed")
	// ErrAlreadySubmitted is returned when a side submits a second time.
	ErrAlreadySubmitted = errors.New("answers already submitted")
	// ErrMalformedSubmission indicates the answers do not match the duel's questions.
	ErrMalformedSubmission = errors.New("malformed submission")
	// ErrConflict is the store's compare-and-set failure. The coordinator retries it.
	ErrConflict = errors.New("duel changed concurrently")
	// ErrUnavailable wraps failures reaching the store or the question bank.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrCorruptedDuel means more writers than the two sides touched one duel.
	ErrCorruptedDuel = errors.New("duel corrupted by concurrent writers")
	// ErrInvalidTransition is raised by stores when a write breaks an invariant.
	ErrInvalidTransition = errors.New("invalid duel transition")
	// ErrAccountNotFound indicates an unknown account id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrQuestionNotFound indicates a question id missing from the bank.
	ErrQuestionNotFound = errors.New("question not found")
)
