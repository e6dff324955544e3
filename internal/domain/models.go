package domain

import "time"

// Status is the lifecycle state of a duel.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined
}

// CanAdvanceTo reports whether next is a legal move from s. Staying put is
// allowed so a write can touch other fields without a status change.
func (s Status) CanAdvanceTo(next Status) bool {
	if s == next {
		return !s.Terminal()
	}
	switch s {
	case StatusPending:
		return next == StatusOngoing || next == StatusDeclined
	case StatusOngoing:
		return next == StatusCompleted || next == StatusDeclined
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOngoing, StatusCompleted, StatusDeclined:
		return true
	}
	return false
}

// Side identifies one participant of a duel.
type Side int

const (
	SideChallenger Side = iota + 1
	SideOpponent
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideChallenger {
		return SideOpponent
	}
	return SideChallenger
}

func (s Side) String() string {
	switch s {
	case SideChallenger:
		return "challenger"
	case SideOpponent:
		return "opponent"
	}
	return "unknown"
}

// Choice is an option label such as "A". The empty choice means unanswered.
type Choice string

// Duel is one asynchronous two-player quiz challenge.
type Duel struct {
	ID                string    `json:"id"`
	ChallengerID      string    `json:"challengerId"`
	OpponentID        string    `json:"opponentId"`
	SubjectID         string    `json:"subjectId"`
	QuestionIDs       []string  `json:"questionIds"`
	Status            Status    `json:"status"`
	ChallengerAnswers []Choice  `json:"challengerAnswers,omitempty"`
	OpponentAnswers   []Choice  `json:"opponentAnswers,omitempty"`
	WinnerID          string    `json:"winnerId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Revision          int64     `json:"revision"`
}

// SideOf returns the side accountID plays in the duel.
func (d Duel) SideOf(accountID string) (Side, bool) {
	switch accountID {
	case "":
		return 0, false
	case d.ChallengerID:
		return SideChallenger, true
	case d.OpponentID:
		return SideOpponent, true
	}
	return 0, false
}

// AccountOf returns the account id playing side.
func (d Duel) AccountOf(side Side) string {
	if side == SideChallenger {
		return d.ChallengerID
	}
	return d.OpponentID
}

// Answers returns the stored answers for side; nil means not yet submitted.
func (d Duel) Answers(side Side) []Choice {
	if side == SideChallenger {
		return d.ChallengerAnswers
	}
	return d.OpponentAnswers
}

// SetAnswers stores answers for side.
func (d *Duel) SetAnswers(side Side, answers []Choice) {
	if side == SideChallenger {
		d.ChallengerAnswers = answers
		return
	}
	d.OpponentAnswers = answers
}

// Clone returns a deep copy so mutations never alias stored slices.
func (d Duel) Clone() Duel {
	out := d
	out.QuestionIDs = cloneSlice(d.QuestionIDs)
	out.ChallengerAnswers = cloneSlice(d.ChallengerAnswers)
	out.OpponentAnswers = cloneSlice(d.OpponentAnswers)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Answer is one submitted choice keyed by question id.
type Answer struct {
	QuestionID string `json:"questionId"`
	Choice     Choice `json:"choice"`
}

// SubmitResult is returned to the side that just submitted.
type SubmitResult struct {
	DuelID         string   `json:"duelId"`
	Correct        []bool   `json:"correct"`
	CorrectAnswers []Choice `json:"correctAnswers"`
	Score          int      `json:"score"`
	Total          int      `json:"total"`
	Status         Status   `json:"status"`
	WinnerID       string   `json:"winnerId,omitempty"`
}

// Option is a selectable answer for a question.
type Option struct {
	ID   Choice `json:"id"`
	Text string `json:"text"`
}

// Question is a multiple choice item from the bank.
type Question struct {
	ID        string   `json:"id" yaml:"id"`
	SubjectID string   `json:"subjectId" yaml:"subjectId"`
	Grade     string   `json:"grade,omitempty" yaml:"grade"`
	Prompt    string   `json:"prompt" yaml:"prompt"`
	Options   []Option `json:"options" yaml:"options"`
	Correct   Choice   `json:"-" yaml:"correct"`
}

// Subject groups questions in the bank.
type Subject struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Account is the subset of a profile the arena needs.
type Account struct {
	ID       string `json:"id" yaml:"id"`
	FullName string `json:"fullName" yaml:"fullName"`
	Grade    string `json:"grade,omitempty" yaml:"grade"`
}

// Change is an invalidation signal for a watched key. It carries no state.
type Change struct {
	Key string `json:"key"`
}

// DuelKey is the change key for a single duel.
func DuelKey(duelID string) string {
	return "duel:" + duelID
}

// AccountKey is the change key for an account's duel list.
func AccountKey(accountID string) string {
	return "account:" + accountID
}

// ChangeKeys lists every key a write to d invalidates.
func ChangeKeys(d Duel) []string {
	return []string{DuelKey(d.ID), AccountKey(d.ChallengerID), AccountKey(d.OpponentID)}
}
