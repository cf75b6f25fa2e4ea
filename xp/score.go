// Package xp implements the award pipeline: scoring completed tasks,
// matching free-text completion messages to open tasks, and orchestrating
// fetch, match, score, persist, and ledger logging for one request.
package xp

import "time"

// Scoring constants. An award is always in [MinScore, MaxScore].
const (
	baseScore     = 15
	earlyBonusCap = 5
	latePenalty   = 3
	lateFloor     = 2

	MinScore = 1
	MaxScore = 50
)

// Score computes the reward for completing a task with the given due
// date. No due date earns the base score. Finishing early earns one bonus
// point per full day of margin, capped at earlyBonusCap. Finishing late
// costs latePenalty per full day late, floored at lateFloor. The result
// is clamped to [MinScore, MaxScore].
//
// Score is pure: the caller supplies now, nothing here reads the clock.
func Score(due *time.Time, now time.Time) int {
	score := baseScore
	if due != nil {
		if due.After(now) {
			bonus := int(due.Sub(now).Hours() / 24)
			if bonus > earlyBonusCap {
				bonus = earlyBonusCap
			}
			score += bonus
		} else {
			daysLate := int(now.Sub(*due).Hours() / 24)
			score -= latePenalty * daysLate
			if score < lateFloor {
				score = lateFloor
			}
		}
	}

	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}
