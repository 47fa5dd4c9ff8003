package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
	"github.com/trezcool/alama/storage/database/sqlxrepos"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Store groups the repositories of one database.
type Store struct {
	Users   user.Repository
	Courses course.Repository
	Results result.Repository

	close func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewStore opens the repositories of the configured database engine.
func NewStore(conf *core.Config) (*Store, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		return NewMemoryStore(inmemdb.Open()), nil
	case EnginePostgres:
		db, err := Open(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

// NewSQLStore returns the repositories of a postgres database. Closing the Store closes db.
func NewSQLStore(db *sqlx.DB) *Store {
	return &Store{
		Users:   sqlxrepos.NewUserRepository(db),
		Courses: sqlxrepos.NewCourseRepository(db),
		Results: sqlxrepos.NewResultRepository(db),
		close:   db.Close,
	}
}

func NewMemoryStore(db *inmemdb.DB) *Store {
	return &Store{
		Users:   inmemdb.NewUserRepository(db),
		Courses: inmemdb.NewCourseRepository(db),
		Results: inmemdb.NewResultRepository(db),
		close:   db.Close,
	}
}
