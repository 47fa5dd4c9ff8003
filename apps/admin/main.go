package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/trezcool/alama/apps/shared"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/storage/database"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger = rollbarLogger

	cli := commandLine{out: os.Stdout}

	// set up DB
	var store *database.Store
	if conf.Database.Engine == database.EnginePostgres {
		db, err := database.Open(conf)
		errAndDie(err)
		errAndDie(db.Ping())
		store = database.NewSQLStore(db)
		cli.db = db.DB
	} else {
		var err error
		store, err = database.NewStore(conf)
		errAndDie(err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	user.LoadCommonPasswords(logger, filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz"))

	cli.validate, _ = shared.NewValidator()
	cli.usrSvc = user.NewService(store.Users, mailSvc, conf)
	courseSvc := course.NewService(store.Courses, cli.usrSvc)
	cli.resultSvc = result.NewService(store.Results, cli.usrSvc, courseSvc, mailSvc, cli.validate)

	// start CLI
	err := cli.run(context.Background(), os.Args)
	_ = store.Close()
	rollbarLogger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
