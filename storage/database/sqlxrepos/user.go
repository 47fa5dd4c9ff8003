package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at,
	last_login, roll_number, semester, programme, employee_id, department`

var (
	userConstraints = constraintErr{
		"users_username_key":    user.ErrUsernameExists,
		"users_email_key":       user.ErrEmailExists,
		"users_roll_number_key": user.ErrRollNumberExists,
		"users_employee_id_key": user.ErrEmployeeIDExists,
	}

	userColumnsByField = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"is_active":  "is_active",
		"created_at": "created_at",
		"last_login": "last_login",
		"semester":   "semester",
	}
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
	RollNumber   sql.NullString `db:"roll_number"`
	Semester     int            `db:"semester"`
	Programme    string         `db:"programme"`
	EmployeeID   sql.NullString `db:"employee_id"`
	Department   string         `db:"department"`
}

func toUserRow(usr user.User) userRow {
	roles := pq.StringArray(usr.Roles)
	if roles == nil {
		roles = pq.StringArray{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    sql.NullTime{Time: usr.LastLogin, Valid: !usr.LastLogin.IsZero()},
		RollNumber:   nullString(usr.Profile.RollNumber),
		Semester:     usr.Profile.Semester,
		Programme:    usr.Profile.Programme,
		EmployeeID:   nullString(usr.Profile.EmployeeID),
		Department:   usr.Profile.Department,
	}
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		Profile: user.Profile{
			RollNumber: row.RollNumber.String,
			Semester:   row.Semester,
			Programme:  row.Programme,
			EmployeeID: row.EmployeeID.String,
			Department: row.Department,
		},
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	return usr
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, usr user.User, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		exclIDs = append(exclIDs, u.ID)
	}
	row := toUserRow(usr)

	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM users
		WHERE (username = $1 OR email = $2 OR roll_number = $3 OR employee_id = $4)
		AND NOT (id = ANY($5::uuid[]))`
	err := repo.db.SelectContext(ctx, &rows, q, row.Username, row.Email, row.RollNumber, row.EmployeeID, pq.Array(validIDs(exclIDs...)))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	for _, r := range rows {
		switch {
		case row.Username.Valid && r.Username == row.Username:
			return user.ErrUsernameExists
		case row.Email.Valid && r.Email == row.Email:
			return user.ErrEmailExists
		case row.RollNumber.Valid && r.RollNumber == row.RollNumber:
			return user.ErrRollNumberExists
		case row.EmployeeID.Valid && r.EmployeeID == row.EmployeeID:
			return user.ErrEmployeeIDExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at,
		:last_login, :roll_number, :semester, :programme, :employee_id, :department)`
	if _, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		return user.User{}, userConstraints.translate(err, "creating user")
	}
	return usr, nil
}

func userWhere(filter *user.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		w.add("roles && ?", pq.Array(filter.Roles))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.Semester != 0 {
		w.add("semester = ?", filter.Semester)
	}
	if filter.Programme != "" {
		w.add("LOWER(programme) = LOWER(?)", filter.Programme)
	}
	if filter.Department != "" {
		w.add("LOWER(department) = LOWER(?)", filter.Department)
	}
	return w
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	w := userWhere(filter)
	q := `SELECT ` + userColumns + ` FROM users` + w.String() + core.OrderByClause(ordering, userColumnsByField, "name ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.DOLLAR, q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	w := userWhere(filter)
	var count int
	if err := repo.db.GetContext(ctx, &count, sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(*) FROM users`+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		arg  interface{}
	)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		cond, arg = "id = $1", filter.ID
	case filter.UsernameOrEmail != "":
		cond, arg = "(username = $1 OR email = $1)", filter.UsernameOrEmail
	case filter.RollNumber != "":
		cond, arg = "roll_number = $1", filter.RollNumber
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+cond+` LIMIT 1`, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET
		name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login,
		roll_number = :roll_number, semester = :semester, programme = :programme,
		employee_id = :employee_id, department = :department
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		return user.User{}, userConstraints.translate(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	ids = validIDs(ids...)
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
