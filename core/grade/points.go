package grade

import "fmt"

// UnknownGradeError is returned when a letter grade has no point value.
// It means a grade was recorded without going through the Scale.
type UnknownGradeError struct {
	Letter Letter
}

func (err *UnknownGradeError) Error() string {
	return fmt.Sprintf("unknown letter grade %q", string(err.Letter))
}

// PointTable maps letter grades to grade points.
type PointTable map[Letter]int

var DefaultPoints = PointTable{
	APlus: 10,
	A:     9,
	BPlus: 8,
	B:     7,
	CPlus: 6,
	C:     5,
	D:     4,
	F:     0,
}

const MaxPoints = 10

func (t PointTable) Points(l Letter) (int, error) {
	pts, ok := t[l]
	if !ok {
		return 0, &UnknownGradeError{Letter: l}
	}
	return pts, nil
}

// PointsFromLetter looks l up in the DefaultPoints.
func PointsFromLetter(l Letter) (int, error) {
	return DefaultPoints.Points(l)
}

// Grade is a scored mark: its letter and points.
type Grade struct {
	Letter Letter `json:"letter"`
	Points int    `json:"points"`
}

// FromMarks grades marks on the DefaultScale and looks up its points.
func FromMarks(marks float64) (Grade, error) {
	l := FromScore(marks)
	pts, err := PointsFromLetter(l)
	if err != nil {
		return Grade{}, err
	}
	return Grade{Letter: l, Points: pts}, nil
}
