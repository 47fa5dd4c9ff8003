package inmemdb

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/result"
)

var resultOrderings = map[string]compareFunc[result.Result]{
	"marks":        func(a, b result.Result) int { return cmpFloat(a.Marks, b.Marks) },
	"letter":       func(a, b result.Result) int { return strings.Compare(string(a.Letter), string(b.Letter)) },
	"points":       func(a, b result.Result) int { return cmpInt(a.Points, b.Points) },
	"term":         func(a, b result.Result) int { return cmpInt(a.Term, b.Term) },
	"credits":      func(a, b result.Result) int { return cmpInt(a.Credits, b.Credits) },
	"course_code":  func(a, b result.Result) int { return strings.Compare(a.CourseCode, b.CourseCode) },
	"submitted_at": func(a, b result.Result) int { return a.SubmittedAt.Compare(b.SubmittedAt) },
}

type resultRepository struct {
	db *DB
}

var _ result.Repository = (*resultRepository)(nil)

func NewResultRepository(db *DB) result.Repository {
	return &resultRepository{db: db}
}

// withCourse fills in the course fields of res. The lock must be held.
func (repo *resultRepository) withCourse(res result.Result) result.Result {
	if crs, ok := repo.db.courses[res.CourseID]; ok {
		res.CourseCode = crs.Code
		res.CourseName = crs.Name
	}
	return res
}

func (repo *resultRepository) SaveResults(_ context.Context, results ...result.Result) ([]result.Result, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// check everything before writing anything
	for _, res := range results {
		if _, ok := repo.db.users[res.StudentID]; !ok {
			return nil, errors.Wrapf(result.ErrNotFound, "student %s", res.StudentID)
		}
		if _, ok := repo.db.courses[res.CourseID]; !ok {
			return nil, errors.Wrapf(result.ErrNotFound, "course %s", res.CourseID)
		}
	}

	saved := make([]result.Result, 0, len(results))
	for _, res := range results {
		for _, existing := range repo.db.results {
			if existing.StudentID == res.StudentID && existing.CourseID == res.CourseID {
				res.ID = existing.ID
				break
			}
		}
		stored := repo.withCourse(res)
		repo.db.results[stored.ID] = &stored
		saved = append(saved, stored)
	}
	return saved, nil
}

func matchResult(res result.Result, filter *result.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.StudentID != "" && res.StudentID != filter.StudentID {
		return false
	}
	if filter.CourseID != "" && res.CourseID != filter.CourseID {
		return false
	}
	if filter.Term != 0 && res.Term != filter.Term {
		return false
	}
	if filter.SubmittedBy != "" && res.SubmittedBy != filter.SubmittedBy {
		return false
	}
	if filter.Letter != "" && res.Letter != filter.Letter {
		return false
	}
	if filter.CourseIDs != nil {
		var found bool
		for _, id := range filter.CourseIDs {
			if res.CourseID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *resultRepository) QueryResults(_ context.Context, filter *result.QueryFilter, ordering []core.DBOrdering) ([]result.Result, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	results := make([]result.Result, 0, len(repo.db.results))
	for _, res := range repo.db.results {
		if matchResult(*res, filter) {
			results = append(results, repo.withCourse(*res))
		}
	}
	order(results, ordering, resultOrderings, core.DBOrdering{Field: "submitted_at"})
	return results, nil
}

func (repo *resultRepository) CountResults(_ context.Context, filter *result.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, res := range repo.db.results {
		if matchResult(*res, filter) {
			count++
		}
	}
	return count, nil
}

func (repo *resultRepository) GetResultByID(_ context.Context, id string) (result.Result, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if res, ok := repo.db.results[id]; ok {
		return repo.withCourse(*res), nil
	}
	return result.Result{}, result.ErrNotFound
}
