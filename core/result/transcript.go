package result

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/user"
)

const recentResultsLimit = 5

type (
	// LetterCount is the number of results graded with Letter.
	LetterCount struct {
		Letter grade.Letter `json:"letter"`
		Count  int          `json:"count"`
	}

	TermSummary struct {
		Term    int           `json:"term"`
		Results []Result      `json:"results"`
		Credits int           `json:"credits"`
		GPA     grade.Average `json:"gpa"`
	}

	Transcript struct {
		Student       user.User     `json:"student"`
		Terms         []TermSummary `json:"terms"`
		TotalCredits  int           `json:"total_credits"`
		EarnedCredits int           `json:"earned_credits"`
		CGPA          grade.Average `json:"cgpa"`
		Distribution  []LetterCount `json:"distribution"`
	}

	CourseSummary struct {
		Course       course.Course `json:"course"`
		Results      []Result      `json:"results"`
		Count        int           `json:"count"`
		PassCount    int           `json:"pass_count"`
		MeanMarks    grade.Average `json:"mean_marks"`
		Distribution []LetterCount `json:"distribution"`
	}

	Stats struct {
		TotalStudents int           `json:"total_students"`
		TotalFaculty  int           `json:"total_faculty"`
		TotalCourses  int           `json:"total_courses"`
		TotalResults  int           `json:"total_results"`
		AverageCGPA   grade.Average `json:"average_cgpa"`
		Recent        []Result      `json:"recent_results"`
	}
)

// Distribution counts results per letter, in scale order (every letter is listed).
func Distribution(results []Result) []LetterCount {
	counts := make(map[grade.Letter]int, len(grade.DefaultScale))
	for _, res := range results {
		counts[res.Letter]++
	}
	letters := grade.DefaultScale.Letters()
	dist := make([]LetterCount, 0, len(letters))
	for _, l := range letters {
		dist = append(dist, LetterCount{Letter: l, Count: counts[l]})
	}
	return dist
}

// BuildTranscript groups results by term and aggregates their GPA and CGPA.
func BuildTranscript(stud user.User, results []Result) (Transcript, error) {
	byTerm := make(map[int][]Result)
	for _, res := range results {
		byTerm[res.Term] = append(byTerm[res.Term], res)
	}
	terms := make([]int, 0, len(byTerm))
	for term := range byTerm {
		terms = append(terms, term)
	}
	sort.Ints(terms)

	recs := records(results)
	tr := Transcript{Student: stud, Terms: make([]TermSummary, 0, len(terms))}
	for _, term := range terms {
		termResults := byTerm[term]
		sort.SliceStable(termResults, func(i, j int) bool {
			return termResults[i].CourseCode < termResults[j].CourseCode
		})
		gpa, err := grade.AggregateByTerm(recs, term)
		if err != nil {
			return Transcript{}, err
		}

		ts := TermSummary{Term: term, Results: termResults, GPA: gpa}
		for _, res := range termResults {
			ts.Credits += res.Credits
			if res.Letter.IsPass() {
				tr.EarnedCredits += res.Credits
			}
		}
		tr.TotalCredits += ts.Credits
		tr.Terms = append(tr.Terms, ts)
	}

	cgpa, err := grade.Cumulative(recs)
	if err != nil {
		return Transcript{}, err
	}
	tr.CGPA = cgpa
	tr.Distribution = Distribution(results)
	return tr, nil
}

// Transcript returns the term by term results of a student.
func (svc *Service) Transcript(ctx context.Context, studentID string) (Transcript, error) {
	stud, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		return Transcript{}, err
	}
	if !stud.IsStudent() {
		return Transcript{}, ErrNotStudent
	}

	results, err := svc.repo.QueryResults(ctx, &QueryFilter{StudentID: stud.ID}, nil)
	if err != nil {
		return Transcript{}, errors.Wrap(err, "result.Service.Transcript")
	}
	return BuildTranscript(stud, results)
}

// CourseSummary returns the results of a course with their distribution and mean marks.
func (svc *Service) CourseSummary(ctx context.Context, courseID string) (CourseSummary, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return CourseSummary{}, err
	}
	results, err := svc.repo.QueryResults(ctx, &QueryFilter{CourseID: crs.ID}, []core.DBOrdering{{Field: "marks"}})
	if err != nil {
		return CourseSummary{}, errors.Wrap(err, "result.Service.CourseSummary")
	}

	sum := CourseSummary{Course: crs, Results: results, Count: len(results), Distribution: Distribution(results)}
	var total float64
	for _, res := range results {
		total += res.Marks
		if res.Letter.IsPass() {
			sum.PassCount++
		}
	}
	if len(results) > 0 {
		sum.MeanMarks = grade.NewAverage(total / float64(len(results)))
	}
	return sum, nil
}

// Stats returns the admin dashboard figures.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.TotalStudents, err = svc.users.Count(ctx, &user.QueryFilter{Roles: user.StudentRoles}); err != nil {
		return Stats{}, err
	}
	if stats.TotalFaculty, err = svc.users.Count(ctx, &user.QueryFilter{Roles: user.FacultyRoles}); err != nil {
		return Stats{}, err
	}
	if stats.TotalCourses, err = svc.courses.Count(ctx, nil); err != nil {
		return Stats{}, err
	}

	results, err := svc.repo.QueryResults(ctx, nil, []core.DBOrdering{{Field: "submitted_at"}})
	if err != nil {
		return Stats{}, errors.Wrap(err, "result.Service.Stats")
	}
	stats.TotalResults = len(results)
	if len(results) > recentResultsLimit {
		stats.Recent = results[:recentResultsLimit]
	} else {
		stats.Recent = results
	}

	byStudent := make(map[string][]grade.Record)
	for _, res := range results {
		byStudent[res.StudentID] = append(byStudent[res.StudentID], res.Record())
	}
	var (
		sum   float64
		count int
	)
	for _, recs := range byStudent {
		cgpa, err := grade.Cumulative(recs)
		if err != nil {
			return Stats{}, err
		}
		if cgpa.Valid {
			sum += cgpa.Value
			count++
		}
	}
	if count > 0 {
		stats.AverageCGPA = grade.NewAverage(sum / float64(count))
	}
	return stats, nil
}
