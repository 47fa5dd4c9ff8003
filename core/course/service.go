package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
	ErrNotFaculty = errors.New("assigned user is not a faculty member")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		CountCourses(ctx context.Context, filter *QueryFilter) (int, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		GetCourseByCode(ctx context.Context, code string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo  Repository
		users *user.Service
	}
)

func NewService(repo Repository, users *user.Service) *Service {
	return &Service{repo: repo, users: users}
}

func (svc *Service) checkCode(code string) error {
	_, err := svc.repo.GetCourseByCode(context.Background(), code)
	switch {
	case err == nil:
		return core.NewFieldValidationError("code", ErrCodeExists)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

func (svc *Service) checkFaculty(id string) error {
	if id == "" {
		return nil
	}
	usr, err := svc.users.GetByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return core.NewFieldValidationError("faculty_id", err)
		}
		return err
	}
	if !usr.IsFaculty() {
		return core.NewFieldValidationError("faculty_id", ErrNotFaculty)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		ID:        uuid.NewString(),
		Code:      nc.Code,
		Name:      nc.Name,
		Credits:   nc.Credits,
		Term:      nc.Term,
		Programme: nc.Programme,
		FacultyID: nc.FacultyID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountCourses(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// Update applies a validated UpdateCourse to crs.
func (svc *Service) Update(ctx context.Context, crs Course, uc UpdateCourse) (Course, error) {
	crs.Code = uc.Code
	crs.Name = uc.Name
	crs.Credits = uc.Credits
	crs.Term = uc.Term
	if uc.Programme != nil {
		crs.Programme = *uc.Programme
	}
	if uc.FacultyID != nil {
		crs.FacultyID = *uc.FacultyID
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete removes courses along with their results.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}

// IsTaughtBy reports whether crs is assigned to the faculty member usr.
func IsTaughtBy(crs Course, usr user.User) bool {
	return usr.IsFaculty() && crs.FacultyID != "" && crs.FacultyID == usr.ID
}
