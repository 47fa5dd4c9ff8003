package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/user"
)

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.Bold)
)

func colorLetter(l grade.Letter) string {
	if l.IsPass() {
		return passColor.Sprint(l)
	}
	return failColor.Sprint(l)
}

func formatMarks(marks float64) string {
	return strconv.FormatFloat(marks, 'f', -1, 64)
}

// findStudent looks a student up by username, email or roll number.
func (cli *commandLine) findStudent(ctx context.Context, key string) (user.User, error) {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, key)
	if errors.Is(err, user.ErrNotFound) {
		usr, err = cli.usrSvc.GetByRollNumber(ctx, key)
	}
	return usr, err
}

func (cli *commandLine) transcript(ctx context.Context, key string) error {
	stud, err := cli.findStudent(ctx, key)
	if err != nil {
		return err
	}
	tr, err := cli.resultSvc.Transcript(ctx, stud.ID)
	if err != nil {
		return err
	}

	headColor.Fprintf(cli.out, "%s (%s)\n", tr.Student.Name, tr.Student.Profile.RollNumber)
	fmt.Fprintf(cli.out, "Programme: %s, semester %d\n", tr.Student.Profile.Programme, tr.Student.Profile.Semester)

	if len(tr.Terms) == 0 {
		fmt.Fprintln(cli.out, "no results")
	}
	for _, term := range tr.Terms {
		fmt.Fprintln(cli.out)
		headColor.Fprintf(cli.out, "Term %d\n", term.Term)

		table := tablewriter.NewWriter(cli.out)
		table.SetHeader([]string{"Code", "Course", "Credits", "Marks", "Grade", "Points"})
		for _, res := range term.Results {
			table.Append([]string{
				res.CourseCode,
				res.CourseName,
				strconv.Itoa(res.Credits),
				formatMarks(res.Marks),
				colorLetter(res.Letter),
				strconv.Itoa(res.Points),
			})
		}
		table.SetFooter([]string{"", "", strconv.Itoa(term.Credits), "", "GPA", term.GPA.String()})
		table.Render()
	}

	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "Credits: %d/%d\n", tr.EarnedCredits, tr.TotalCredits)
	headColor.Fprintf(cli.out, "CGPA: %s\n", tr.CGPA)
	return nil
}

func (cli *commandLine) users(ctx context.Context, filter user.QueryFilter) error {
	users, err := cli.usrSvc.Query(ctx, &filter)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Username", "Name", "Email", "Roles", "Profile", "Active"})
	for _, usr := range users {
		var profile string
		switch {
		case usr.IsStudent():
			profile = fmt.Sprintf("%s, %s sem %d", usr.Profile.RollNumber, usr.Profile.Programme, usr.Profile.Semester)
		case usr.IsFaculty():
			profile = fmt.Sprintf("%s, %s", usr.Profile.EmployeeID, usr.Profile.Department)
		}
		active := passColor.Sprint("yes")
		if !usr.IsActive {
			active = failColor.Sprint("no")
		}
		table.Append([]string{usr.Username, usr.Name, usr.Email, strings.Join(usr.Roles, ","), profile, active})
	}
	table.SetFooter([]string{"", "", "", "", "Total", strconv.Itoa(len(users))})
	table.Render()
	return nil
}

func (cli *commandLine) stats(ctx context.Context) error {
	stats, err := cli.resultSvc.Stats(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Figure", "Value"})
	table.AppendBulk([][]string{
		{"Students", strconv.Itoa(stats.TotalStudents)},
		{"Faculty", strconv.Itoa(stats.TotalFaculty)},
		{"Courses", strconv.Itoa(stats.TotalCourses)},
		{"Results", strconv.Itoa(stats.TotalResults)},
		{"Average CGPA", stats.AverageCGPA.String()},
	})
	table.Render()

	if len(stats.Recent) == 0 {
		return nil
	}
	fmt.Fprintln(cli.out)
	headColor.Fprintln(cli.out, "Recent results")
	recent := tablewriter.NewWriter(cli.out)
	recent.SetHeader([]string{"Course", "Student", "Marks", "Grade", "Submitted"})
	for _, res := range stats.Recent {
		recent.Append([]string{
			res.CourseCode,
			res.StudentID,
			formatMarks(res.Marks),
			colorLetter(res.Letter),
			res.SubmittedAt.Format("2006-01-02 15:04"),
		})
	}
	recent.Render()
	return nil
}
