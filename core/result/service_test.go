package result_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

var ctx = context.Background()

func marks(m float64) *float64 { return &m }

type fixtures struct {
	env            *testutil.Env
	admin, fac     user.User
	otherFac, stud user.User
	crs, otherCrs  course.Course
}

func setup(t *testing.T) fixtures {
	env := testutil.NewEnv(t)
	fx := fixtures{env: env}
	fx.admin = testutil.CreateAdmin(t, env.Store.Users, "admin")
	fx.fac = testutil.CreateFaculty(t, env.Store.Users, "prof", "E-1")
	fx.otherFac = testutil.CreateFaculty(t, env.Store.Users, "other", "E-2")
	fx.stud = testutil.CreateStudent(t, env.Store.Users, "stud", "R-1", 5)
	fx.crs = testutil.CreateCourse(t, env.Store.Courses, "CS101", 4, 5, fx.fac.ID)
	fx.otherCrs = testutil.CreateCourse(t, env.Store.Courses, "MA101", 3, 5, fx.otherFac.ID)
	return fx
}

func TestService_Submit(t *testing.T) {
	fx := setup(t)
	env := fx.env

	otherProg := testutil.CreateUserWithProfile(t, env.Store.Users, "Other Prog", "prog", "prog@test.com",
		testutil.Password, []string{user.RoleStudent}, user.Profile{RollNumber: "R-2", Semester: 5, Programme: "BA"}, true)

	tests := []struct {
		name      string
		submitter user.User
		nr        result.NewResult
		wantErr   error
		wantField string
		wantGrade grade.Grade
	}{
		{
			name:      "marks out of range",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID, Marks: marks(100.5)},
			wantField: "marks",
		},
		{
			name:      "missing marks",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID},
			wantField: "marks",
		},
		{
			name:      "unknown course",
			submitter: fx.admin,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: "nope", Marks: marks(50)},
			wantField: "course_id",
		},
		{
			name:      "not assigned to course",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.otherCrs.ID, Marks: marks(50)},
			wantErr:   result.ErrForbidden,
		},
		{
			name:      "not a student",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: fx.otherFac.ID, CourseID: fx.crs.ID, Marks: marks(50)},
			wantField: "student_id",
		},
		{
			name:      "not enrolled",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: otherProg.ID, CourseID: fx.crs.ID, Marks: marks(50)},
			wantField: "student_id",
		},
		{
			name:      "faculty of the course",
			submitter: fx.fac,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID, Marks: marks(89.99)},
			wantGrade: grade.Grade{Letter: grade.A, Points: 9},
		},
		{
			name:      "admin",
			submitter: fx.admin,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.otherCrs.ID, Marks: marks(34.99)},
			wantGrade: grade.Grade{Letter: grade.F, Points: 0},
		},
		{
			name:      "zero marks",
			submitter: fx.admin,
			nr:        result.NewResult{StudentID: fx.stud.ID, CourseID: fx.otherCrs.ID, Marks: marks(0)},
			wantGrade: grade.Grade{Letter: grade.F, Points: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.ResultSvc.Submit(ctx, tt.submitter, tt.nr)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantField != "":
				assert.Contains(t, testutil.FieldErrors(env, err), tt.wantField)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantGrade, grade.Grade{Letter: res.Letter, Points: res.Points})
				assert.Equal(t, tt.submitter.ID, res.SubmittedBy)
				assert.Equal(t, fx.stud.ID, res.StudentID)
			}
		})
	}
}

func TestService_SubmitOverwrites(t *testing.T) {
	fx := setup(t)
	env := fx.env

	first, err := env.ResultSvc.Submit(ctx, fx.fac, result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID, Marks: marks(40)})
	require.NoError(t, err)
	assert.Equal(t, grade.C, first.Letter)

	second, err := env.ResultSvc.Submit(ctx, fx.fac, result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID, Marks: marks(90)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, grade.APlus, second.Letter)
	assert.Equal(t, 10, second.Points)

	results, err := env.ResultSvc.Query(ctx, &result.QueryFilter{StudentID: fx.stud.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 90.0, results[0].Marks)
	assert.Equal(t, "CS101", results[0].CourseCode)

	// the student is told about each publication
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, fx.stud.Email, sent[1].To[0].Address)
	assert.Equal(t, "Result published: CS101", sent[1].Subject)
	assert.Contains(t, sent[1].TextContent, "Grade: A+ (10 points)")
}

func TestService_SubmitGradesStoredMarks(t *testing.T) {
	fx := setup(t)
	env := fx.env

	tests := []struct {
		name       string
		marks      float64
		wantMarks  float64
		wantLetter grade.Letter
	}{
		{name: "rounded up to the A+ boundary", marks: 89.999, wantMarks: 90, wantLetter: grade.APlus},
		{name: "rounded down below the A+ boundary", marks: 89.994, wantMarks: 89.99, wantLetter: grade.A},
		{name: "half way", marks: 89.995},
		{name: "rounded up to the D boundary", marks: 34.996, wantMarks: 35, wantLetter: grade.D},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.ResultSvc.Submit(ctx, fx.fac, result.NewResult{StudentID: fx.stud.ID, CourseID: fx.crs.ID, Marks: marks(tt.marks)})
			require.NoError(t, err)
			if tt.wantLetter != "" {
				assert.Equal(t, tt.wantMarks, res.Marks)
				assert.Equal(t, tt.wantLetter, res.Letter)
			}

			// the stored marks always grade to the stored letter
			stored, err := env.ResultSvc.GetByID(ctx, res.ID)
			require.NoError(t, err)
			assert.Equal(t, grade.FromScore(stored.Marks), stored.Letter)
			pts, err := grade.PointsFromLetter(stored.Letter)
			require.NoError(t, err)
			assert.Equal(t, pts, stored.Points)
		})
	}

	t.Run("batch", func(t *testing.T) {
		saved, err := env.ResultSvc.SubmitBatch(ctx, fx.fac, result.BatchSubmission{
			CourseID: fx.crs.ID,
			Entries:  []result.BatchEntry{{StudentID: fx.stud.ID, Marks: marks(89.999)}},
		})
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, 90.0, saved[0].Marks)
		assert.Equal(t, grade.APlus, saved[0].Letter)
	})

	t.Run("fixtures", func(t *testing.T) {
		res := testutil.CreateResult(t, env.Store.Results, fx.stud, fx.otherCrs, 79.999, fx.otherFac.ID)
		assert.Equal(t, 80.0, res.Marks)
		assert.Equal(t, grade.A, res.Letter)
	})
}

func TestService_SubmitBatch(t *testing.T) {
	fx := setup(t)
	env := fx.env
	s2 := testutil.CreateStudent(t, env.Store.Users, "stud2", "R-2", 5)

	t.Run("invalid marks", func(t *testing.T) {
		_, err := env.ResultSvc.SubmitBatch(ctx, fx.fac, result.BatchSubmission{
			CourseID: fx.crs.ID,
			Entries: []result.BatchEntry{
				{StudentID: fx.stud.ID, Marks: marks(70)},
				{StudentID: s2.ID, Marks: marks(-1)},
			},
		})
		assert.Equal(t, map[string]string{"entries[1].marks": "Marks must be between 0 and 100"}, testutil.FieldErrors(env, err))
	})

	t.Run("all or nothing", func(t *testing.T) {
		_, err := env.ResultSvc.SubmitBatch(ctx, fx.fac, result.BatchSubmission{
			CourseID: fx.crs.ID,
			Entries: []result.BatchEntry{
				{StudentID: fx.stud.ID, Marks: marks(70)},
				{StudentID: fx.fac.ID, Marks: marks(70)},
				{StudentID: fx.stud.ID, Marks: marks(60)},
			},
		})
		assert.Equal(t, map[string]string{
			"entries[1].student_id": result.ErrNotStudent.Error(),
			"entries[2].student_id": result.ErrDuplicate.Error(),
		}, testutil.FieldErrors(env, err))

		count, err := env.Store.Results.CountResults(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Empty(t, env.Mail.SentMessages())
	})

	t.Run("forbidden", func(t *testing.T) {
		_, err := env.ResultSvc.SubmitBatch(ctx, fx.otherFac, result.BatchSubmission{
			CourseID: fx.crs.ID,
			Entries:  []result.BatchEntry{{StudentID: fx.stud.ID, Marks: marks(70)}},
		})
		assert.Equal(t, result.ErrForbidden, err)
	})

	t.Run("valid", func(t *testing.T) {
		results, err := env.ResultSvc.SubmitBatch(ctx, fx.fac, result.BatchSubmission{
			CourseID: fx.crs.ID,
			Entries: []result.BatchEntry{
				{StudentID: fx.stud.ID, Marks: marks(70)},
				{StudentID: s2.ID, Marks: marks(35)},
			},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, grade.BPlus, results[0].Letter)
		assert.Equal(t, grade.D, results[1].Letter)
		assert.Len(t, env.Mail.SentMessages(), 2)
	})
}

func TestService_Transcript(t *testing.T) {
	fx := setup(t)
	env := fx.env
	users, courses, results := env.Store.Users, env.Store.Courses, env.Store.Results

	// term 5
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T5A", 4, 5, ""), 82, fx.admin.ID) // A
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T5B", 4, 5, ""), 72, fx.admin.ID) // B+
	// term 6
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T6A", 4, 6, ""), 85, fx.admin.ID) // A
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T6B", 4, 6, ""), 95, fx.admin.ID) // A+
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T6C", 3, 6, ""), 75, fx.admin.ID) // B+
	testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T6D", 3, 6, ""), 88, fx.admin.ID) // A

	tr, err := env.ResultSvc.Transcript(ctx, fx.stud.ID)
	require.NoError(t, err)

	require.Len(t, tr.Terms, 2)
	assert.Equal(t, 5, tr.Terms[0].Term)
	assert.Equal(t, grade.NewAverage(8.5), tr.Terms[0].GPA)
	assert.Equal(t, 8, tr.Terms[0].Credits)
	assert.Equal(t, 6, tr.Terms[1].Term)
	assert.Equal(t, grade.NewAverage(9.07), tr.Terms[1].GPA)
	assert.Equal(t, "T6A", tr.Terms[1].Results[0].CourseCode)
	assert.InDelta(t, 8.86, tr.CGPA.Value, 1e-9)
	assert.Equal(t, 22, tr.TotalCredits)
	assert.Equal(t, 22, tr.EarnedCredits)
	assert.Equal(t, []result.LetterCount{
		{Letter: grade.APlus, Count: 1},
		{Letter: grade.A, Count: 3},
		{Letter: grade.BPlus, Count: 2},
		{Letter: grade.B}, {Letter: grade.CPlus}, {Letter: grade.C}, {Letter: grade.D}, {Letter: grade.F},
	}, tr.Distribution)

	t.Run("failed course earns no credit", func(t *testing.T) {
		testutil.CreateResult(t, results, fx.stud, testutil.CreateCourse(t, courses, "T6E", 2, 6, ""), 20, fx.admin.ID)
		tr, err := env.ResultSvc.Transcript(ctx, fx.stud.ID)
		require.NoError(t, err)
		assert.Equal(t, 24, tr.TotalCredits)
		assert.Equal(t, 22, tr.EarnedCredits)
	})

	t.Run("no results", func(t *testing.T) {
		fresh := testutil.CreateStudent(t, users, "fresh", "R-3", 1)
		tr, err := env.ResultSvc.Transcript(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Empty(t, tr.Terms)
		assert.False(t, tr.CGPA.Valid)
		assert.Equal(t, "N/A", tr.CGPA.String())
	})

	t.Run("not a student", func(t *testing.T) {
		_, err := env.ResultSvc.Transcript(ctx, fx.fac.ID)
		assert.Equal(t, result.ErrNotStudent, err)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.ResultSvc.Transcript(ctx, "nope")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestBuildTranscript_UnknownGrade(t *testing.T) {
	_, err := result.BuildTranscript(user.User{}, []result.Result{{Credits: 3, Term: 1, Letter: "E"}})
	var gErr *grade.UnknownGradeError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, grade.Letter("E"), gErr.Letter)
}

func TestService_CourseSummary(t *testing.T) {
	fx := setup(t)
	env := fx.env

	sum, err := env.ResultSvc.CourseSummary(ctx, fx.crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Count)
	assert.False(t, sum.MeanMarks.Valid)

	s2 := testutil.CreateStudent(t, env.Store.Users, "stud2", "R-2", 5)
	s3 := testutil.CreateStudent(t, env.Store.Users, "stud3", "R-3", 5)
	testutil.CreateResult(t, env.Store.Results, fx.stud, fx.crs, 85, fx.fac.ID)
	testutil.CreateResult(t, env.Store.Results, s2, fx.crs, 95, fx.fac.ID)
	testutil.CreateResult(t, env.Store.Results, s3, fx.crs, 30, fx.fac.ID)
	testutil.CreateResult(t, env.Store.Results, s3, fx.otherCrs, 50, fx.otherFac.ID)

	sum, err = env.ResultSvc.CourseSummary(ctx, fx.crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 2, sum.PassCount)
	assert.Equal(t, grade.NewAverage(70), sum.MeanMarks)
	assert.Equal(t, 95.0, sum.Results[0].Marks)
	assert.Equal(t, 1, sum.Distribution[0].Count) // A+
	assert.Equal(t, 1, sum.Distribution[len(sum.Distribution)-1].Count) // F

	_, err = env.ResultSvc.CourseSummary(ctx, "nope")
	assert.Equal(t, course.ErrNotFound, err)
}

func TestService_Stats(t *testing.T) {
	fx := setup(t)
	env := fx.env

	stats, err := env.ResultSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, 2, stats.TotalFaculty)
	assert.Equal(t, 2, stats.TotalCourses)
	assert.Equal(t, 0, stats.TotalResults)
	assert.False(t, stats.AverageCGPA.Valid)
	assert.Empty(t, stats.Recent)

	s2 := testutil.CreateStudent(t, env.Store.Users, "stud2", "R-2", 5)
	testutil.CreateStudent(t, env.Store.Users, "nores", "R-3", 5)

	start := time.Now().Add(-time.Hour)
	var last result.Result
	for i, crs := range []course.Course{fx.crs, fx.otherCrs} {
		testutil.CreateResult(t, env.Store.Results, fx.stud, crs, 95, fx.admin.ID, start.Add(time.Duration(i)*time.Minute)) // A+
	}
	for i := 0; i < 4; i++ {
		crs := testutil.CreateCourse(t, env.Store.Courses, "X10"+string(rune('0'+i)), 2, 1, "")
		last = testutil.CreateResult(t, env.Store.Results, s2, crs, 72, fx.admin.ID, start.Add(time.Duration(10+i)*time.Minute)) // B+
	}

	stats, err = env.ResultSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 6, stats.TotalCourses)
	assert.Equal(t, 6, stats.TotalResults)
	assert.Equal(t, grade.NewAverage(9), stats.AverageCGPA) // (10 + 8) / 2; students without results are ignored
	require.Len(t, stats.Recent, 5)
	assert.Equal(t, last.ID, stats.Recent[0].ID)
}

func TestService_Calculate(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name      string
		req       result.CalcRequest
		wantCGPA  grade.Average
		wantTerms []result.CalcTerm
		wantField string
	}{
		{
			name: "marks and letters",
			req: result.CalcRequest{Entries: []result.CalcEntry{
				{Credits: 4, Marks: marks(85), Term: 1},
				{Credits: 3, Letter: "b+", Term: 1},
				{Credits: 3, Letter: "A+", Term: 2},
			}},
			wantCGPA: grade.NewAverage(9),
			wantTerms: []result.CalcTerm{
				{Term: 1, Credits: 7, GPA: grade.NewAverage(8.57)},
				{Term: 2, Credits: 3, GPA: grade.NewAverage(10)},
			},
		},
		{
			name:     "no term",
			req:      result.CalcRequest{Entries: []result.CalcEntry{{Credits: 2, Marks: marks(10)}}},
			wantCGPA: grade.NewAverage(0),
			wantTerms: []result.CalcTerm{
				{Term: 1, Credits: 2, GPA: grade.NewAverage(0)},
			},
		},
		{
			name:     "letter ignored when marks are given",
			req:      result.CalcRequest{Entries: []result.CalcEntry{{Credits: 2, Marks: marks(95), Letter: "Z"}}},
			wantCGPA: grade.NewAverage(10),
			wantTerms: []result.CalcTerm{
				{Term: 1, Credits: 2, GPA: grade.NewAverage(10)},
			},
		},
		{
			name:      "unknown letter",
			req:       result.CalcRequest{Entries: []result.CalcEntry{{Credits: 2, Letter: "E"}}},
			wantField: "entries[0].letter",
		},
		{
			name:      "neither marks nor letter",
			req:       result.CalcRequest{Entries: []result.CalcEntry{{Credits: 2}}},
			wantField: "entries[0].marks",
		},
		{
			name:      "empty",
			req:       result.CalcRequest{},
			wantField: "entries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := env.ResultSvc.Calculate(tt.req)
			if tt.wantField != "" {
				assert.Contains(t, testutil.FieldErrors(env, err), tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCGPA, calc.CGPA)
			assert.Equal(t, tt.wantTerms, calc.Terms)
			assert.Len(t, calc.Entries, len(tt.req.Entries))
		})
	}

	t.Run("unvalidated letter", func(t *testing.T) {
		_, err := result.Calculate([]result.CalcEntry{{Credits: 2, Letter: "Q"}})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "entries[0].letter", vErr.Fields[0].Field)
	})
}
