package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/alama/apps"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Migrate  // mockable

	errHelp = errors.New("help provided")

	roleFlags = map[string][]string{
		"admin":   {user.RoleAdmin},
		"faculty": user.FacultyRoles,
		"student": user.StudentRoles,
	}
)

type commandLine struct {
	db        *sql.DB // nil unless the postgres engine is used
	out       io.Writer
	validate  *validator.Validate
	usrSvc    *user.Service
	resultSvc *result.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL -name NAME [-role admin|faculty|student] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command over the database migrations")
	fmt.Fprintln(cli.out, "  transcript -student USERNAME|EMAIL|ROLL_NUMBER - print a student's transcript")
	fmt.Fprintln(cli.out, "  users [-role admin|faculty|student] [-search TEXT] - list users")
	fmt.Fprintln(cli.out, "  stats - print the dashboard figures")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "adduser":
		cmd := cli.newFlagSet("adduser")
		uname := cmd.String("username", "", "The user's username.")
		email := cmd.String("email", "", "The user's email.")
		name := cmd.String("name", "", "The user's full name.")
		role := cmd.String("role", "student", "One of admin, faculty or student.")
		roll := cmd.String("roll", "", "The student's roll number.")
		semester := cmd.Int("semester", 0, "The student's current semester.")
		programme := cmd.String("programme", "", "The student's programme.")
		employeeID := cmd.String("employee-id", "", "The faculty member's employee ID.")
		department := cmd.String("department", "", "The faculty member's department.")

		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if (*uname == "" && *email == "") || *name == "" {
			cmd.Usage()
			return errHelp
		}
		roles, ok := roleFlags[*role]
		if !ok {
			return apps.NewFlagError("role", "unknown role %q", *role)
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *name,
			Username:        *uname,
			Email:           *email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
			Profile: user.Profile{
				RollNumber: *roll,
				Semester:   *semester,
				Programme:  *programme,
				EmployeeID: *employeeID,
				Department: *department,
			},
		})

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")

		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *uname, pwd)

	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: migrate up|up-by-one|up-to|down|down-to|redo|reset|status|version|create|fix [ARGS...]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "transcript":
		cmd := cli.newFlagSet("transcript")
		stud := cmd.String("student", "", "The student's username, email or roll number.")

		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *stud == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.transcript(ctx, *stud)

	case "users":
		cmd := cli.newFlagSet("users")
		role := cmd.String("role", "", "Only list users with this role: admin, faculty or student.")
		search := cmd.String("search", "", "Only list users whose name, username or email contains this text.")

		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		filter := user.QueryFilter{Search: *search}
		if *role != "" {
			roles, ok := roleFlags[*role]
			if !ok {
				return apps.NewFlagError("role", "unknown role %q", *role)
			}
			if *role == "admin" {
				roles = user.AdminRoles
			}
			filter.Roles = roles
		}
		return cli.users(ctx, filter)

	case "stats":
		return cli.stats(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	usr, err := cli.usrSvc.UpdateOrCreate(ctx, nu, cli.validate)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved (id: %s)\n", usr.Username, usr.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err := uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	if _, err := cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q updated\n", usr.Username)
	return nil
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return apps.NewArgumentError("migrations require the postgres database engine")
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
