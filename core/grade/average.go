package grade

import (
	"encoding/json"
	"math"
	"strconv"
)

// Average is a GPA or CGPA. An Average with Valid == false is undefined ("N/A"):
// there was nothing to average. It is not the same as 0.00.
type Average struct {
	Value float64
	Valid bool
}

func NewAverage(v float64) Average {
	return Average{Value: Round2(v), Valid: true}
}

func (a Average) String() string {
	if !a.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

// MarshalJSON encodes an undefined Average as null.
func (a Average) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.String()), nil
}

func (a *Average) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Average{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = NewAverage(v)
	return nil
}

// Round2 rounds v to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Weighted is one entry of a credit-weighted average.
type Weighted struct {
	Credits int `json:"credits"`
	Points  int `json:"points"`
}

// WeightedAverage returns sum(credits*points) / sum(credits) rounded to 2 decimals.
// It is undefined when items is empty or carries no credits. Entries with non-positive
// credits carry no weight.
func WeightedAverage(items []Weighted) Average {
	var weighted, credits int
	for _, it := range items {
		if it.Credits <= 0 {
			continue
		}
		weighted += it.Credits * it.Points
		credits += it.Credits
	}
	if credits == 0 {
		return Average{}
	}
	return NewAverage(float64(weighted) / float64(credits))
}

// Record is a graded course as seen by aggregations.
type Record struct {
	CourseID string
	Credits  int
	Letter   Letter
	Term     int
}

func (r Record) weighted() (Weighted, error) {
	pts, err := PointsFromLetter(r.Letter)
	if err != nil {
		return Weighted{}, err
	}
	return Weighted{Credits: r.Credits, Points: pts}, nil
}

// Cumulative returns the CGPA of records.
func Cumulative(records []Record) (Average, error) {
	items := make([]Weighted, 0, len(records))
	for _, r := range records {
		w, err := r.weighted()
		if err != nil {
			return Average{}, err
		}
		items = append(items, w)
	}
	return WeightedAverage(items), nil
}

// AggregateByTerm returns the GPA of the records of the given term.
func AggregateByTerm(records []Record, term int) (Average, error) {
	termRecords := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Term == term {
			termRecords = append(termRecords, r)
		}
	}
	return Cumulative(termRecords)
}
