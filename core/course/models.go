package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// Course is a graded unit of study taught in a given term (semester).
type Course struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Credits   int       `json:"credits"`
	Term      int       `json:"term"`
	Programme string    `json:"programme"`
	FacultyID string    `json:"faculty_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewCourse struct {
	Code      string `json:"code" validate:"required,max=20,alphanum_"`
	Name      string `json:"name" validate:"required,notblank"`
	Credits   int    `json:"credits" validate:"required,min=1,max=30"`
	Term      int    `json:"term" validate:"required,min=1,max=20"`
	Programme string `json:"programme"`
	FacultyID string `json:"faculty_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc *Service) error {
	nc.Code = core.CleanCode(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Programme = core.CleanString(nc.Programme)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if err := svc.checkCode(nc.Code); err != nil {
		return err
	}
	return svc.checkFaculty(nc.FacultyID)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Zero values keep the current ones.
type UpdateCourse struct {
	Code      string  `json:"code" validate:"omitempty,max=20,alphanum_"`
	Name      string  `json:"name"`
	Credits   int     `json:"credits" validate:"omitempty,min=1,max=30"`
	Term      int     `json:"term" validate:"omitempty,min=1,max=20"`
	Programme *string `json:"programme"`
	// FacultyID set to "" unassigns the course.
	FacultyID *string `json:"faculty_id" validate:"omitempty"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate, svc *Service) error {
	code := core.CleanCode(uc.Code)
	if code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}

	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	if uc.Credits == 0 {
		uc.Credits = orig.Credits
	}
	if uc.Term == 0 {
		uc.Term = orig.Term
	}
	if uc.Programme == nil {
		uc.Programme = &orig.Programme
	} else {
		prog := core.CleanString(*uc.Programme)
		uc.Programme = &prog
	}
	if uc.FacultyID == nil {
		uc.FacultyID = &orig.FacultyID
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Code != orig.Code {
		if err := svc.checkCode(uc.Code); err != nil {
			return err
		}
	}
	if *uc.FacultyID != orig.FacultyID {
		return svc.checkFaculty(*uc.FacultyID)
	}
	return nil
}

type QueryFilter struct {
	Search    string `query:"search"`
	Term      int    `query:"term"`
	Programme string `query:"programme"`
	FacultyID string `query:"faculty_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Term == 0 && qf.Programme == "" && qf.FacultyID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Programme = core.CleanString(qf.Programme)
	qf.FacultyID = core.CleanString(qf.FacultyID)
}

// Orderings maps the orderable fields of a Course to their column.
var Orderings = map[string]string{
	"code":       "code",
	"name":       "name",
	"credits":    "credits",
	"term":       "term",
	"programme":  "programme",
	"created_at": "created_at",
}
