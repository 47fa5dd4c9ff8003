// Package testutil provides fixtures shared by the test suites.
package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/alama/apps/shared"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	appfs "github.com/trezcool/alama/fs"
	emailsvc "github.com/trezcool/alama/services/email"
	"github.com/trezcool/alama/storage/database"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
)

// Password satisfies the password policy.
const Password = "Sup3r$ecret!"

var (
	bg                 = context.Background()
	parseTemplatesOnce sync.Once
)

func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Alama",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Alama", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Database: core.DatabaseConfig{Engine: database.EngineMemory},
	}
}

// Logger is a core.Logger keeping the messages it logs.
type Logger struct {
	mu   sync.Mutex
	msgs []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, level+": "+msg)
	l.mu.Unlock()
}

func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Env is an application wired over an in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     *Logger
	DB         *inmemdb.DB
	Store      *database.Store
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc   *user.Service
	CourseSvc *course.Service
	ResultSvc *result.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	env := &Env{Conf: NewConfig(), Logger: new(Logger), DB: inmemdb.Open()}
	parseTemplatesOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, env.Logger)
	})
	env.Store = database.NewMemoryStore(env.DB)
	env.Mail = emailsvc.NewConsoleServiceMock(env.Conf, env.Logger)
	env.Validate, env.Translator = shared.NewValidator()

	env.UserSvc = user.NewService(env.Store.Users, env.Mail, env.Conf)
	env.CourseSvc = course.NewService(env.Store.Courses, env.UserSvc)
	env.ResultSvc = result.NewService(env.Store.Results, env.UserSvc, env.CourseSvc, env.Mail, env.Validate)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	return CreateUserWithProfile(t, repo, name, uname, email, pwd, roles, user.Profile{}, isActive, createdAt...)
}

func CreateUserWithProfile(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	profile user.Profile,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		Profile:   profile,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(bg, usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateAdmin(t *testing.T, repo user.Repository, uname string) user.User {
	return CreateUser(t, repo, "Admin "+uname, uname, uname+"@test.com", Password, []string{user.RoleAdmin}, true)
}

func CreateFaculty(t *testing.T, repo user.Repository, uname, employeeID string) user.User {
	return CreateUserWithProfile(
		t, repo, "Faculty "+uname, uname, uname+"@test.com", Password,
		[]string{user.RoleFaculty}, user.Profile{EmployeeID: employeeID, Department: "Science"}, true,
	)
}

func CreateStudent(t *testing.T, repo user.Repository, uname, rollNumber string, semester int) user.User {
	return CreateUserWithProfile(
		t, repo, "Student "+uname, uname, uname+"@test.com", Password,
		[]string{user.RoleStudent}, user.Profile{RollNumber: rollNumber, Semester: semester, Programme: "BSc"}, true,
	)
}

func CreateCourse(t *testing.T, repo course.Repository, code string, credits, term int, facultyID string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(bg, course.Course{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      fmt.Sprintf("Course %s", code),
		Credits:   credits,
		Term:      term,
		Programme: "BSc",
		FacultyID: facultyID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

// CreateResult records marks graded by the Grade Engine, bypassing the service checks.
func CreateResult(
	t *testing.T,
	repo result.Repository,
	stud user.User,
	crs course.Course,
	marks float64,
	submittedBy string,
	submittedAt ...time.Time,
) result.Result {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(submittedAt) > 0 {
		tstamp = submittedAt[0].UTC()
	}
	marks = grade.Round2(marks)
	grd, err := grade.FromMarks(marks)
	if err != nil {
		t.Fatalf("createResult() failed: %v", err)
	}
	saved, err := repo.SaveResults(bg, result.Result{
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
		SubmittedBy: submittedBy,
		SubmittedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("createResult() failed: %v", err)
	}
	return saved[0]
}

// FieldErrors returns the {field: message} map of a validation error.
func FieldErrors(env *Env, err error) map[string]string {
	return shared.FieldErrors(err, env.Translator)
}
