// Package dig_container wires the API dependencies with go.uber.org/dig.
package dig_container

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/alama/apps/shared"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	appfs "github.com/trezcool/alama/fs"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newStore opens the configured database, creating and migrating it first for postgres.
func newStore(conf *core.Config, loggerParam DBLoggerParam) *database.Store {
	setUp := func() (*database.Store, error) {
		if conf.Database.Engine != database.EnginePostgres {
			return database.NewStore(conf)
		}

		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return database.NewSQLStore(db), nil
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newUserService(store *database.Store, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *user.Service {
	user.LoadCommonPasswords(logger, filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz"))
	return user.NewService(store.Users, mailSvc, conf)
}

func newCourseService(store *database.Store, usrSvc *user.Service) *course.Service {
	return course.NewService(store.Courses, usrSvc)
}

func newResultService(
	store *database.Store,
	usrSvc *user.Service,
	courseSvc *course.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
) *result.Service {
	return result.NewService(store.Results, usrSvc, courseSvc, mailSvc, validate)
}

type validatorResult struct {
	dig.Out
	Validate   *validator.Validate
	Translator ut.Translator
}

func newValidator() validatorResult {
	validate, translator := shared.NewValidator()
	return validatorResult{Validate: validate, Translator: translator}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newUserService))
	must(c.Provide(newCourseService))
	must(c.Provide(newResultService))

	must(c.Invoke(func(conf *core.Config, logger core.Logger) {
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.Debug, logger)
	}))
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
