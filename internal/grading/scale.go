package grading

// bucket is the lower bound of a letter grade.
type bucket struct {
	min    float64
	letter string
	points float64
}

var scale = [...]bucket{
	{90, "A+", 4.0},
	{85, "A", 4.0},
	{80, "A-", 3.7},
	{75, "B+", 3.3},
	{70, "B", 3.0},
	{65, "B-", 2.7},
	{60, "C+", 2.3},
	{55, "C", 2.0},
	{50, "C-", 1.7},
	{45, "D", 1.0},
}

// LetterGrade maps a percentage to its letter. Lower bounds are inclusive.
func LetterGrade(pct float64) string {
	for _, b := range scale {
		if pct >= b.min {
			return b.letter
		}
	}
	return "F"
}

// GradePoints returns the 4.0-scale points of a letter. Unknown letters,
// including F, are worth 0.
func GradePoints(letter string) float64 {
	for _, b := range scale {
		if b.letter == letter {
			return b.points
		}
	}
	return 0
}

// DefaultWeights is the share of the course grade carried by each standard
// assessment.
var DefaultWeights = map[string]float64{
	"Quiz 1":       5,
	"Quiz 2":       5,
	"Quiz 3":       5,
	"Assignment 1": 5,
	"Assignment 2": 5,
	"Assignment 3": 5,
	"Midterm":      25,
	"Final":        45,
}
