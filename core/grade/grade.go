// Package grade maps marks to letter grades and letter grades to grade points,
// and computes credit-weighted averages (GPA, CGPA) from graded records.
//
// It holds the only copy of the grading tables; every other package goes through it.
package grade

import (
	"math"
	"strings"
)

// Letter is a symbolic grade: A+, A, B+, B, C+, C, D or F.
type Letter string

const (
	APlus Letter = "A+"
	A     Letter = "A"
	BPlus Letter = "B+"
	B     Letter = "B"
	CPlus Letter = "C+"
	C     Letter = "C"
	D     Letter = "D"
	F     Letter = "F"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Band is the lowest score (inclusive) earning a Letter.
type Band struct {
	MinScore float64 `json:"min_score"`
	Letter   Letter  `json:"letter"`
}

// Scale is ordered highest threshold first. Its last band is the catch-all.
type Scale []Band

// DefaultScale is the grading policy of the institution.
var DefaultScale = Scale{
	{MinScore: 90, Letter: APlus},
	{MinScore: 80, Letter: A},
	{MinScore: 70, Letter: BPlus},
	{MinScore: 60, Letter: B},
	{MinScore: 50, Letter: CPlus},
	{MinScore: 40, Letter: C},
	{MinScore: 35, Letter: D},
	{MinScore: 0, Letter: F},
}

// FromScore returns the Letter of the highest band whose threshold is <= score.
// Out of range scores are not rejected: anything above 100 is A+, negatives and NaN are F.
func (s Scale) FromScore(score float64) Letter {
	for _, band := range s {
		if score >= band.MinScore {
			return band.Letter
		}
	}
	return s[len(s)-1].Letter
}

// Letters returns the scale's letters, best first.
func (s Scale) Letters() []Letter {
	letters := make([]Letter, 0, len(s))
	for _, band := range s {
		letters = append(letters, band.Letter)
	}
	return letters
}

// FromScore grades score on the DefaultScale.
func FromScore(score float64) Letter {
	return DefaultScale.FromScore(score)
}

// ValidScore reports whether score is a mark that can be recorded.
func ValidScore(score float64) bool {
	return !math.IsNaN(score) && score >= MinScore && score <= MaxScore
}

// ParseLetter normalizes s ("  b+ " -> "B+") and checks it has a point value.
func ParseLetter(s string) (Letter, error) {
	l := Letter(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := PointsFromLetter(l); err != nil {
		return "", err
	}
	return l, nil
}

// IsPass reports whether l earns credits.
func (l Letter) IsPass() bool {
	return l != F
}

func (l Letter) String() string { return string(l) }
