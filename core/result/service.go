package result

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("result not found")
	ErrNotStudent  = errors.New("user is not a student")
	ErrNotEnrolled = errors.New("student is not enrolled in the programme of this course")
	ErrForbidden   = errors.New("you are not assigned to this course")
	ErrDuplicate   = errors.New("student appears more than once in the batch")
)

type (
	Repository interface {
		// SaveResults upserts results on (StudentID, CourseID), all or none.
		// An overwritten result keeps its ID.
		SaveResults(ctx context.Context, results ...Result) ([]Result, error)
		// QueryResults fills in CourseCode and CourseName from the course.
		QueryResults(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Result, error)
		CountResults(ctx context.Context, filter *QueryFilter) (int, error)
		GetResultByID(ctx context.Context, id string) (Result, error)
	}

	Service struct {
		repo     Repository
		users    *user.Service
		courses  *course.Service
		mailSvc  core.EmailService
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	users *user.Service,
	courses *course.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, users: users, courses: courses, mailSvc: mailSvc, validate: validate}
}

// gradable loads a course and checks that submitter may grade it.
func (svc *Service) gradable(ctx context.Context, submitter user.User, courseID string) (course.Course, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return course.Course{}, core.NewFieldValidationError("course_id", err)
		}
		return course.Course{}, err
	}
	if !submitter.IsAdmin() && !course.IsTaughtBy(crs, submitter) {
		return course.Course{}, ErrForbidden
	}
	return crs, nil
}

// student loads the student identified by id and checks they can be graded in crs.
func (svc *Service) student(ctx context.Context, id string, crs course.Course) (user.User, error) {
	stud, err := svc.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !stud.IsStudent() {
		return user.User{}, ErrNotStudent
	}
	if crs.Programme != "" && stud.Profile.Programme != "" && crs.Programme != stud.Profile.Programme {
		return user.User{}, ErrNotEnrolled
	}
	return stud, nil
}

// newResult grades marks as stored (rounded to 2 decimals) so that the letter always matches them.
func newResult(stud user.User, crs course.Course, marks float64, submitter user.User, now time.Time) (Result, error) {
	marks = grade.Round2(marks)
	grd, err := grade.FromMarks(marks)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ID:          uuid.NewString(),
		StudentID:   stud.ID,
		CourseID:    crs.ID,
		CourseCode:  crs.Code,
		CourseName:  crs.Name,
		Credits:     crs.Credits,
		Term:        crs.Term,
		Marks:       marks,
		Letter:      grd.Letter,
		Points:      grd.Points,
		SubmittedBy: submitter.ID,
		SubmittedAt: now,
	}, nil
}

// Submit grades the marks of a student in a course and records them.
// A previous result of the student in the course is overwritten.
func (svc *Service) Submit(ctx context.Context, submitter user.User, nr NewResult) (Result, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Result{}, err
	}
	crs, err := svc.gradable(ctx, submitter, nr.CourseID)
	if err != nil {
		return Result{}, err
	}
	stud, err := svc.student(ctx, nr.StudentID, crs)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, ErrNotStudent) || errors.Is(err, ErrNotEnrolled) {
			return Result{}, core.NewFieldValidationError("student_id", err)
		}
		return Result{}, err
	}

	res, err := newResult(stud, crs, *nr.Marks, submitter, time.Now().UTC())
	if err != nil {
		return Result{}, err
	}
	saved, err := svc.repo.SaveResults(ctx, res)
	if err != nil {
		return Result{}, errors.Wrap(err, "result.Service.Submit")
	}

	svc.notify(map[string]user.User{stud.ID: stud}, crs, saved...)
	return saved[0], nil
}

// SubmitBatch grades and records the marks of several students in one course.
// Every entry is checked before anything is saved.
func (svc *Service) SubmitBatch(ctx context.Context, submitter user.User, bs BatchSubmission) ([]Result, error) {
	if err := bs.Validate(svc.validate); err != nil {
		return nil, err
	}
	crs, err := svc.gradable(ctx, submitter, bs.CourseID)
	if err != nil {
		return nil, err
	}

	var (
		now      = time.Now().UTC()
		results  = make([]Result, 0, len(bs.Entries))
		students = make(map[string]user.User, len(bs.Entries))
		fldErrs  []core.FieldError
	)
	for i, entry := range bs.Entries {
		field := fmt.Sprintf("entries[%d].student_id", i)
		if _, seen := students[entry.StudentID]; seen {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: ErrDuplicate.Error()})
			continue
		}
		stud, err := svc.student(ctx, entry.StudentID, crs)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) || errors.Is(err, ErrNotStudent) || errors.Is(err, ErrNotEnrolled) {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: err.Error()})
				continue
			}
			return nil, err
		}
		students[stud.ID] = stud

		res, err := newResult(stud, crs, *entry.Marks, submitter, now)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	saved, err := svc.repo.SaveResults(ctx, results...)
	if err != nil {
		return nil, errors.Wrap(err, "result.Service.SubmitBatch")
	}

	svc.notify(students, crs, saved...)
	return saved, nil
}

// notify emails the students of their published results.
func (svc *Service) notify(students map[string]user.User, crs course.Course, results ...Result) {
	msgs := make([]*core.EmailMessage, 0, len(results))
	for _, res := range results {
		stud := students[res.StudentID]
		if stud.Email == "" || !stud.IsActive {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: stud.Name, Address: stud.Email}},
			Subject:      fmt.Sprintf("Result published: %s", crs.Code),
			TemplateName: "result_published",
			TemplateData: map[string]interface{}{
				"StudentName": stud.Name,
				"CourseCode":  crs.Code,
				"CourseName":  crs.Name,
				"Term":        res.Term,
				"Marks":       res.Marks,
				"Letter":      string(res.Letter),
				"Points":      res.Points,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Result, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryResults(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Result, error) {
	return svc.repo.GetResultByID(ctx, id)
}
