package scoring

// Grade maps a percentage to a letter grade and reports whether it meets passingPercent.
func Grade(percentage, passingPercent float64) (string, bool) {
	passed := percentage >= passingPercent

	switch {
	case percentage >= 90:
		return "A+", passed
	case percentage >= 80:
		return "A", passed
	case percentage >= 70:
		return "B", passed
	case percentage >= 60:
		return "C", passed
	case percentage >= 50:
		return "D", passed
	default:
		return "F", passed
	}
}
