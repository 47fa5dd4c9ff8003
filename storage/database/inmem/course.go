package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

var courseOrderings = map[string]compareFunc[course.Course]{
	"code":       func(a, b course.Course) int { return strings.Compare(a.Code, b.Code) },
	"name":       func(a, b course.Course) int { return strings.Compare(a.Name, b.Name) },
	"credits":    func(a, b course.Course) int { return cmpInt(a.Credits, b.Credits) },
	"term":       func(a, b course.Course) int { return cmpInt(a.Term, b.Term) },
	"programme":  func(a, b course.Course) int { return strings.Compare(a.Programme, b.Programme) },
	"created_at": func(a, b course.Course) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) codeTaken(code, exclID string) bool {
	for _, crs := range repo.db.courses {
		if crs.Code == code && crs.ID != exclID {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(crs.Code, "") {
		return course.Course{}, course.ErrCodeExists
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(crs.Code, filter.Search) && !containsFold(crs.Name, filter.Search) {
		return false
	}
	if filter.Term != 0 && crs.Term != filter.Term {
		return false
	}
	if filter.Programme != "" && !strings.EqualFold(crs.Programme, filter.Programme) {
		return false
	}
	if filter.FacultyID != "" && crs.FacultyID != filter.FacultyID {
		return false
	}
	return true
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if matchCourse(*crs, filter) {
			courses = append(courses, *crs)
		}
	}
	order(courses, ordering, courseOrderings, core.DBOrdering{Field: "code", Ascending: true})
	return courses, nil
}

func (repo *courseRepository) CountCourses(_ context.Context, filter *course.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, crs := range repo.db.courses {
		if matchCourse(*crs, filter) {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseByCode(_ context.Context, code string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Code == code {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	if repo.codeTaken(crs.Code, crs.ID) {
		return course.Course{}, course.ErrCodeExists
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

// DeleteCoursesByID also deletes their results.
func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.courses, id)
		for rid, res := range repo.db.results {
			if res.CourseID == id {
				delete(repo.db.results, rid)
			}
		}
	}
	return nil
}
