package domain

import (
	"fmt"
	"slices"
)

// Validate checks the invariants a freshly created duel must hold.
func (d Duel) Validate() error {
	switch {
	case d.ChallengerID == "" || d.OpponentID == "":
		return fmt.Errorf("%w: both sides are required", ErrInvalidDuel)
	case d.ChallengerID == d.OpponentID:
		return fmt.Errorf("%w: challenger and opponent are the same account", ErrInvalidDuel)
	case d.SubjectID == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidDuel)
	case len(d.QuestionIDs) == 0:
		return fmt.Errorf("%w: no questions", ErrInvalidDuel)
	case !d.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDuel, d.Status)
	}
	seen := make(map[string]struct{}, len(d.QuestionIDs))
	for _, id := range d.QuestionIDs {
		if id == "" {
			return fmt.Errorf("%w: empty question id", ErrInvalidDuel)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: question %s sampled twice", ErrInvalidDuel, id)
		}
		seen[id] = struct{}{}
	}
	return d.checkFields()
}

// checkFields holds the rules every stored duel satisfies, new or not.
func (d Duel) checkFields() error {
	for _, side := range []Side{SideChallenger, SideOpponent} {
		if a := d.Answers(side); a != nil && len(a) != len(d.QuestionIDs) {
			return fmt.Errorf("%w: %s answered %d of %d questions", ErrInvalidTransition, side, len(a), len(d.QuestionIDs))
		}
	}
	if d.WinnerID != "" {
		if d.Status != StatusCompleted {
			return fmt.Errorf("%w: winner set on %s duel", ErrInvalidTransition, d.Status)
		}
		if _, ok := d.SideOf(d.WinnerID); !ok {
			return fmt.Errorf("%w: winner %s is not a participant", ErrInvalidTransition, d.WinnerID)
		}
	}
	if d.Status == StatusCompleted && (d.ChallengerAnswers == nil || d.OpponentAnswers == nil) {
		return fmt.Errorf("%w: completed without both answer sets", ErrInvalidTransition)
	}
	return nil
}

// CheckTransition verifies that next is a legal successor of prev. Stores
// call it inside their compare-and-set before anything is written.
func CheckTransition(prev, next Duel) error {
	if !prev.Status.CanAdvanceTo(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}
	if next.ID != prev.ID ||
		next.ChallengerID != prev.ChallengerID ||
		next.OpponentID != prev.OpponentID ||
		next.SubjectID != prev.SubjectID ||
		!next.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("%w: immutable field changed", ErrInvalidTransition)
	}
	if !slices.Equal(prev.QuestionIDs, next.QuestionIDs) {
		return fmt.Errorf("%w: question set changed", ErrInvalidTransition)
	}
	for _, side := range []Side{SideChallenger, SideOpponent} {
		before := prev.Answers(side)
		if before != nil && !slices.Equal(before, next.Answers(side)) {
			return fmt.Errorf("%w: %s answers rewritten", ErrInvalidTransition, side)
		}
	}
	return next.checkFields()
}
