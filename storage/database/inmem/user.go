package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

var userOrderings = map[string]compareFunc[user.User]{
	"name":       func(a, b user.User) int { return strings.Compare(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return strings.Compare(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return cmpBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"last_login": func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
	"semester":   func(a, b user.User) int { return cmpInt(a.Profile.Semester, b.Profile.Semester) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, usr user.User, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, u := range repo.db.users {
		if excluded[u.ID] {
			continue
		}
		switch {
		case usr.Username != "" && u.Username == usr.Username:
			return user.ErrUsernameExists
		case usr.Email != "" && u.Email == usr.Email:
			return user.ErrEmailExists
		case usr.Profile.RollNumber != "" && u.Profile.RollNumber == usr.Profile.RollNumber:
			return user.ErrRollNumberExists
		case usr.Profile.EmployeeID != "" && u.Profile.EmployeeID == usr.Profile.EmployeeID:
			return user.ErrEmployeeIDExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; ok {
		return user.User{}, user.ErrUsernameExists
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" &&
		!containsFold(usr.Name, filter.Search) &&
		!containsFold(usr.Username, filter.Search) &&
		!containsFold(usr.Email, filter.Search) {
		return false
	}
	if len(filter.Roles) > 0 {
		var hasRole bool
		for _, role := range filter.Roles {
			for _, r := range usr.Roles {
				if r == role {
					hasRole = true
				}
			}
		}
		if !hasRole {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.Semester != 0 && usr.Profile.Semester != filter.Semester {
		return false
	}
	if filter.Programme != "" && !strings.EqualFold(usr.Profile.Programme, filter.Programme) {
		return false
	}
	if filter.Department != "" && !strings.EqualFold(usr.Profile.Department, filter.Department) {
		return false
	}
	return true
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if matchUser(*usr, filter) {
			users = append(users, *usr)
		}
	}
	order(users, ordering, userOrderings, core.DBOrdering{Field: "name", Ascending: true})
	return users, nil
}

func (repo *userRepository) CountUsers(_ context.Context, filter *user.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, usr := range repo.db.users {
		if matchUser(*usr, filter) {
			count++
		}
	}
	return count, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.UsernameOrEmail != "" &&
			(usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return *usr, nil
		case filter.RollNumber != "" && usr.Profile.RollNumber == filter.RollNumber:
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

// DeleteUsersByID also deletes their results and unassigns their courses.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		for rid, res := range repo.db.results {
			if res.StudentID == id {
				delete(repo.db.results, rid)
			} else if res.SubmittedBy == id {
				res.SubmittedBy = ""
			}
		}
		for _, crs := range repo.db.courses {
			if crs.FacultyID == id {
				crs.FacultyID = ""
			}
		}
	}
	return nil
}
