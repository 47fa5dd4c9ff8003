package result

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

// Result is the graded outcome of a student in a course.
// Marks, Letter and Points are fixed when the result is submitted.
type Result struct {
	ID          string       `json:"id"`
	StudentID   string       `json:"student_id"`
	CourseID    string       `json:"course_id"`
	CourseCode  string       `json:"course_code"`
	CourseName  string       `json:"course_name"`
	Credits     int          `json:"credits"`
	Term        int          `json:"term"`
	Marks       float64      `json:"marks"`
	Letter      grade.Letter `json:"letter"`
	Points      int          `json:"points"`
	SubmittedBy string       `json:"submitted_by"`
	SubmittedAt time.Time    `json:"submitted_at"` // UTC
}

func (r Result) Record() grade.Record {
	return grade.Record{CourseID: r.CourseID, Credits: r.Credits, Letter: r.Letter, Term: r.Term}
}

func records(results []Result) []grade.Record {
	recs := make([]grade.Record, 0, len(results))
	for _, r := range results {
		recs = append(recs, r.Record())
	}
	return recs
}

type NewResult struct {
	StudentID string   `json:"student_id" validate:"required"`
	CourseID  string   `json:"course_id" validate:"required"`
	Marks     *float64 `json:"marks" validate:"required,marks"`
}

func (nr NewResult) Validate(validate *validator.Validate) error {
	return validate.Struct(nr)
}

type BatchEntry struct {
	StudentID string   `json:"student_id" validate:"required"`
	Marks     *float64 `json:"marks" validate:"required,marks"`
}

// BatchSubmission holds the marks of several students in one course.
// It is saved entirely or not at all.
type BatchSubmission struct {
	CourseID string       `json:"course_id" validate:"required"`
	Entries  []BatchEntry `json:"entries" validate:"required,min=1,dive"`
}

func (bs BatchSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(bs)
}

type QueryFilter struct {
	StudentID   string       `query:"student_id"`
	CourseID    string       `query:"course_id"`
	Term        int          `query:"term"`
	SubmittedBy string       `query:"submitted_by"`
	Letter      grade.Letter `query:"letter"`
	// CourseIDs restricts results to any of the given courses.
	CourseIDs []string `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.Term == 0 &&
		qf.SubmittedBy == "" && qf.Letter == "" && qf.CourseIDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.CourseID = core.CleanString(qf.CourseID)
	qf.SubmittedBy = core.CleanString(qf.SubmittedBy)
}

// Orderings maps the orderable fields of a Result to their column.
var Orderings = map[string]string{
	"marks":        "marks",
	"letter":       "letter",
	"points":       "points",
	"term":         "term",
	"credits":      "credits",
	"course_code":  "course_code",
	"submitted_at": "submitted_at",
}
