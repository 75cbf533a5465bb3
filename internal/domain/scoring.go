package domain

// MaxRoundScore is awarded for a correct answer given within the first second.
const MaxRoundScore = 10

// Score returns the points for one answer. Correct answers lose a point per
// full second elapsed but never drop below one; wrong answers score zero.
func Score(correct bool, elapsedMs int64) int {
	if !correct {
		return 0
	}
	seconds := elapsedMs / 1000
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= MaxRoundScore-1 {
		return 1
	}
	return MaxRoundScore - int(seconds)
}
