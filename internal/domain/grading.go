package domain

// Grade compares answers with the canonical correct sequence position by
// position. An empty choice never counts as correct.
func Grade(correct, answers []Choice) ([]bool, int) {
	marks := make([]bool, len(correct))
	score := 0
	for i, want := range correct {
		if i >= len(answers) {
			break
		}
		if answers[i] != "" && answers[i] == want {
			marks[i] = true
			score++
		}
	}
	return marks, score
}

// Winner returns the account with the strictly higher score, or "" on a tie.
func Winner(d Duel, correct []Choice) string {
	_, challenger := Grade(correct, d.ChallengerAnswers)
	_, opponent := Grade(correct, d.OpponentAnswers)
	switch {
	case challenger > opponent:
		return d.ChallengerID
	case opponent > challenger:
		return d.OpponentID
	}
	return ""
}
