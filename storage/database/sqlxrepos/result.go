package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/result"
)

const resultSelect = `SELECT r.id, r.student_id, r.course_id, c.code AS course_code, c.name AS course_name,
	r.credits, r.term, r.marks, r.letter, r.points, r.submitted_by, r.submitted_at
	FROM results r JOIN courses c ON c.id = r.course_id`

var resultColumnsByField = map[string]string{
	"marks":        "r.marks",
	"letter":       "r.letter",
	"points":       "r.points",
	"term":         "r.term",
	"credits":      "r.credits",
	"course_code":  "c.code",
	"submitted_at": "r.submitted_at",
}

type resultRow struct {
	ID          string         `db:"id"`
	StudentID   string         `db:"student_id"`
	CourseID    string         `db:"course_id"`
	CourseCode  string         `db:"course_code"`
	CourseName  string         `db:"course_name"`
	Credits     int            `db:"credits"`
	Term        int            `db:"term"`
	Marks       float64        `db:"marks"`
	Letter      string         `db:"letter"`
	Points      int            `db:"points"`
	SubmittedBy sql.NullString `db:"submitted_by"`
	SubmittedAt time.Time      `db:"submitted_at"`
}

func toResultRow(res result.Result) resultRow {
	return resultRow{
		ID:          res.ID,
		StudentID:   res.StudentID,
		CourseID:    res.CourseID,
		CourseCode:  res.CourseCode,
		CourseName:  res.CourseName,
		Credits:     res.Credits,
		Term:        res.Term,
		Marks:       res.Marks,
		Letter:      string(res.Letter),
		Points:      res.Points,
		SubmittedBy: nullString(res.SubmittedBy),
		SubmittedAt: res.SubmittedAt,
	}
}

func (row resultRow) toResult() result.Result {
	return result.Result{
		ID:          row.ID,
		StudentID:   row.StudentID,
		CourseID:    row.CourseID,
		CourseCode:  row.CourseCode,
		CourseName:  row.CourseName,
		Credits:     row.Credits,
		Term:        row.Term,
		Marks:       row.Marks,
		Letter:      grade.Letter(row.Letter),
		Points:      row.Points,
		SubmittedBy: row.SubmittedBy.String,
		SubmittedAt: row.SubmittedAt.UTC(),
	}
}

type resultRepository struct {
	db core.DB
}

var _ result.Repository = (*resultRepository)(nil)

func NewResultRepository(db core.DB) result.Repository {
	return &resultRepository{db: db}
}

// SaveResults upserts results in a single transaction.
func (repo *resultRepository) SaveResults(ctx context.Context, results ...result.Result) (saved []result.Result, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "saving results: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO results (
		id, student_id, course_id, credits, term, marks, letter, points, submitted_by, submitted_at
	) VALUES (
		:id, :student_id, :course_id, :credits, :term, :marks, :letter, :points, :submitted_by, :submitted_at
	) ON CONFLICT (student_id, course_id) DO UPDATE SET
		credits = EXCLUDED.credits, term = EXCLUDED.term, marks = EXCLUDED.marks, letter = EXCLUDED.letter,
		points = EXCLUDED.points, submitted_by = EXCLUDED.submitted_by, submitted_at = EXCLUDED.submitted_at
	RETURNING id`)
	if err != nil {
		return nil, errors.Wrap(err, "saving results: prepare")
	}
	defer func() { _ = stmt.Close() }()

	saved = make([]result.Result, 0, len(results))
	for _, res := range results {
		if err = stmt.GetContext(ctx, &res.ID, toResultRow(res)); err != nil {
			return nil, errors.Wrap(err, "saving results")
		}
		saved = append(saved, res)
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "saving results: commit")
	}
	return saved, nil
}

func resultWhere(filter *result.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.StudentID != "" {
		w.add("r.student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("r.course_id::text = ?", filter.CourseID)
	}
	if filter.Term != 0 {
		w.add("r.term = ?", filter.Term)
	}
	if filter.SubmittedBy != "" {
		w.add("r.submitted_by::text = ?", filter.SubmittedBy)
	}
	if filter.Letter != "" {
		w.add("r.letter = ?", string(filter.Letter))
	}
	if filter.CourseIDs != nil {
		w.add("r.course_id::text = ANY(?)", pq.Array(filter.CourseIDs))
	}
	return w
}

func (repo *resultRepository) QueryResults(ctx context.Context, filter *result.QueryFilter, ordering []core.DBOrdering) ([]result.Result, error) {
	w := resultWhere(filter)
	q := resultSelect + w.String() + core.OrderByClause(ordering, resultColumnsByField, "r.submitted_at DESC")

	var rows []resultRow
	if err := repo.db.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.DOLLAR, q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]result.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, nil
}

func (repo *resultRepository) CountResults(ctx context.Context, filter *result.QueryFilter) (int, error) {
	w := resultWhere(filter)
	q := `SELECT COUNT(*) FROM results r` + w.String()
	var count int
	if err := repo.db.GetContext(ctx, &count, sqlx.Rebind(sqlx.DOLLAR, q), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting results")
	}
	return count, nil
}

func (repo *resultRepository) GetResultByID(ctx context.Context, id string) (result.Result, error) {
	if !isUUID(id) {
		return result.Result{}, result.ErrNotFound
	}
	var row resultRow
	if err := repo.db.GetContext(ctx, &row, resultSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result.Result{}, result.ErrNotFound
		}
		return result.Result{}, errors.Wrap(err, "getting result")
	}
	return row.toResult(), nil
}
