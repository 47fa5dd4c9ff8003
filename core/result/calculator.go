package result

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

// CalcEntry is one course of the grade point calculator.
// Marks take precedence over Letter.
type CalcEntry struct {
	Credits int      `json:"credits" validate:"required,min=1,max=30"`
	Term    int      `json:"term" validate:"omitempty,min=1,max=20"`
	Marks   *float64 `json:"marks" validate:"omitempty,marks"`
	Letter  string   `json:"letter"` // checked by calcEntryStructValidation
}

type CalcRequest struct {
	Entries []CalcEntry `json:"entries" validate:"required,min=1,dive"`
}

type (
	CalcEntryResult struct {
		Credits int          `json:"credits"`
		Term    int          `json:"term"`
		Letter  grade.Letter `json:"letter"`
		Points  int          `json:"points"`
	}

	CalcTerm struct {
		Term    int           `json:"term"`
		Credits int           `json:"credits"`
		GPA     grade.Average `json:"gpa"`
	}

	Calculation struct {
		Entries []CalcEntryResult `json:"entries"`
		Terms   []CalcTerm        `json:"terms"`
		CGPA    grade.Average     `json:"cgpa"`
	}
)

// Calculate grades the entries and aggregates them per term and overall.
// It does not store anything.
func (svc *Service) Calculate(req CalcRequest) (Calculation, error) {
	if err := svc.validate.Struct(req); err != nil {
		return Calculation{}, err
	}
	return Calculate(req.Entries)
}

// Calculate grades entries without validating them first.
// An entry without a term is counted in term 1.
func Calculate(entries []CalcEntry) (Calculation, error) {
	calc := Calculation{Entries: make([]CalcEntryResult, 0, len(entries))}
	recs := make([]grade.Record, 0, len(entries))
	credits := make(map[int]int)

	for i, entry := range entries {
		term := entry.Term
		if term == 0 {
			term = 1
		}

		var letter grade.Letter
		if entry.Marks != nil {
			letter = grade.FromScore(*entry.Marks)
		} else {
			l, err := grade.ParseLetter(entry.Letter)
			if err != nil {
				field := fmt.Sprintf("entries[%d].letter", i)
				return Calculation{}, core.NewFieldValidationError(field, err)
			}
			letter = l
		}
		pts, err := grade.PointsFromLetter(letter)
		if err != nil {
			return Calculation{}, errors.Wrap(err, "result.Calculate")
		}

		calc.Entries = append(calc.Entries, CalcEntryResult{Credits: entry.Credits, Term: term, Letter: letter, Points: pts})
		recs = append(recs, grade.Record{Credits: entry.Credits, Letter: letter, Term: term})
		credits[term] += entry.Credits
	}

	terms := make([]int, 0, len(credits))
	for term := range credits {
		terms = append(terms, term)
	}
	sort.Ints(terms)
	for _, term := range terms {
		gpa, err := grade.AggregateByTerm(recs, term)
		if err != nil {
			return Calculation{}, err
		}
		calc.Terms = append(calc.Terms, CalcTerm{Term: term, Credits: credits[term], GPA: gpa})
	}

	cgpa, err := grade.Cumulative(recs)
	if err != nil {
		return Calculation{}, err
	}
	calc.CGPA = cgpa
	return calc, nil
}
