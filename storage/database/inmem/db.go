// Package inmemdb is a map backed store used by tests and the "memory" database engine.
package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
)

// DB holds every table behind one lock so that cascades and batches are atomic.
type DB struct {
	mutex   sync.RWMutex
	users   map[string]*user.User
	courses map[string]*course.Course
	results map[string]*result.Result
}

func Open() *DB {
	return &DB{
		users:   make(map[string]*user.User),
		courses: make(map[string]*course.Course),
		results: make(map[string]*result.Result),
	}
}

func (db *DB) Close() error { return nil }

// Flush empties all tables.
func (db *DB) Flush() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.results = make(map[string]*result.Result)
}

type compareFunc[T any] func(a, b T) int

// order sorts items by orderings whose fields have a compareFunc, else by dflt.
func order[T any](items []T, orderings []core.DBOrdering, cmps map[string]compareFunc[T], dflt core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := cmps[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	if len(ords) == 0 {
		ords = append(ords, dflt)
	}

	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ords {
			c := cmps[ord.Field](items[i], items[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	}
	return 1
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
