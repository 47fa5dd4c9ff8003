package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

const courseColumns = `id, code, name, credits, term, programme, faculty_id, created_at, updated_at`

var (
	courseConstraints = constraintErr{
		"courses_code_key": course.ErrCodeExists,
	}

	courseColumnsByField = map[string]string{
		"code":       "code",
		"name":       "name",
		"credits":    "credits",
		"term":       "term",
		"programme":  "programme",
		"created_at": "created_at",
	}
)

type courseRow struct {
	ID        string         `db:"id"`
	Code      string         `db:"code"`
	Name      string         `db:"name"`
	Credits   int            `db:"credits"`
	Term      int            `db:"term"`
	Programme string         `db:"programme"`
	FacultyID sql.NullString `db:"faculty_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func toCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:        crs.ID,
		Code:      crs.Code,
		Name:      crs.Name,
		Credits:   crs.Credits,
		Term:      crs.Term,
		Programme: crs.Programme,
		FacultyID: nullString(crs.FacultyID),
		CreatedAt: crs.CreatedAt,
		UpdatedAt: crs.UpdatedAt,
	}
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		Credits:   row.Credits,
		Term:      row.Term,
		Programme: row.Programme,
		FacultyID: row.FacultyID.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db core.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `) VALUES (
		:id, :code, :name, :credits, :term, :programme, :faculty_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toCourseRow(crs)); err != nil {
		return course.Course{}, courseConstraints.translate(err, "creating course")
	}
	return crs, nil
}

func courseWhere(filter *course.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(code ILIKE ? OR name ILIKE ?)", pattern, pattern)
	}
	if filter.Term != 0 {
		w.add("term = ?", filter.Term)
	}
	if filter.Programme != "" {
		w.add("LOWER(programme) = LOWER(?)", filter.Programme)
	}
	if filter.FacultyID != "" {
		w.add("faculty_id::text = ?", filter.FacultyID)
	}
	return w
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	w := courseWhere(filter)
	q := `SELECT ` + courseColumns + ` FROM courses` + w.String() + core.OrderByClause(ordering, courseColumnsByField, "code ASC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.DOLLAR, q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) CountCourses(ctx context.Context, filter *course.QueryFilter) (int, error) {
	w := courseWhere(filter)
	var count int
	if err := repo.db.GetContext(ctx, &count, sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(*) FROM courses`+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}

func (repo *courseRepository) getCourse(ctx context.Context, cond string, arg interface{}) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM courses WHERE `+cond, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrNotFound
	}
	return repo.getCourse(ctx, "id = $1", id)
}

func (repo *courseRepository) GetCourseByCode(ctx context.Context, code string) (course.Course, error) {
	return repo.getCourse(ctx, "code = $1", code)
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET
		code = :code, name = :name, credits = :credits, term = :term, programme = :programme,
		faculty_id = :faculty_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toCourseRow(crs))
	if err != nil {
		return course.Course{}, courseConstraints.translate(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	ids = validIDs(ids...)
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}
