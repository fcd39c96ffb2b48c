package review

// NextLevel computes the spacing interval after a successful answer.
// A new card starts its schedule at one day. An established card
// doubles its interval only when the review happened at or past the
// due date; passing a card early leaves the interval untouched so an
// eager review never shrinks the schedule.
func NextLevel(level int, daysSinceReviewed float64) int {
	if level <= 0 {
		return 1
	}
	if daysSinceReviewed >= float64(level) {
		return level * 2
	}
	return level
}
