package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/calendar"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/normalize"
	"github.com/kalambet/attune/internal/timewindow"
	"github.com/kalambet/attune/internal/weeklyemail"
)

const (
	// MaxDays is the widest look-ahead BuildContext accepts.
	MaxDays = 30
	// DueSoonCount is the number of assignments in Summary.DueSoon.
	DueSoonCount = 10
	// RecentGradedCount is the number of graded submissions kept per course.
	RecentGradedCount = 3

	courseConcurrency = 6
)

// Filters narrows BuildContext. Days = 0 means timewindow.DefaultDays.
type Filters struct {
	Days int
}

func (f Filters) days() (int, error) {
	if f.Days == 0 {
		return timewindow.DefaultDays, nil
	}
	if f.Days < 1 || f.Days > MaxDays {
		return 0, apperr.Invalid("days must be between 1 and %d", MaxDays)
	}
	return f.Days, nil
}

// Assignment is an upcoming assignment. Desc is plain text of at most
// normalize.ShortDescription runes.
type Assignment struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	CourseID   int64      `json:"courseId"`
	CourseName string     `json:"courseName"`
	DueAt      *time.Time `json:"dueAt"`
	Due        string     `json:"due"`
	Points     *float64   `json:"points"`
	Status     string     `json:"status"`
	Desc       string     `json:"desc"`
	URL        string     `json:"url,omitempty"`
}

type CoursePerformance struct {
	CourseID     int64    `json:"courseId"`
	CourseName   string   `json:"courseName"`
	CurrentScore *float64 `json:"currentScore"`
	CurrentGrade *string  `json:"currentGrade"`
	FinalScore   *float64 `json:"finalScore"`
	FinalGrade   *string  `json:"finalGrade"`
}

type GradedAssignment struct {
	AssignmentID   int64      `json:"assignmentId"`
	Title          string     `json:"title"`
	Score          float64    `json:"score"`
	PointsPossible *float64   `json:"pointsPossible"`
	GradedAt       *time.Time `json:"gradedAt"`
	SubmittedAt    *time.Time `json:"submittedAt"`
	URL            string     `json:"url,omitempty"`
}

type RecentPerformance struct {
	CourseID     int64              `json:"courseId"`
	CourseName   string             `json:"courseName"`
	RecentGraded []GradedAssignment `json:"recentGraded"`
}

type Summary struct {
	Courses             []string                `json:"courses"`
	DueSoon             []Assignment            `json:"dueSoon"`
	AssignmentsByCourse map[string][]Assignment `json:"assignmentsByCourse"`
	AssignmentCount     int                     `json:"assignmentCount"`
	EventCount          int                     `json:"eventCount"`
}

// Context is the consolidated view of one student.
type Context struct {
	Student            string              `json:"student"`
	StudentDisplayName string              `json:"studentDisplayName"`
	CanvasBaseURL      string              `json:"canvasBaseUrl"`
	Days               int                 `json:"days"`
	Assignments        []Assignment        `json:"assignments"`
	Events             []calendar.Event    `json:"events"`
	Summary            Summary             `json:"summary"`
	CoursePerformance  []CoursePerformance `json:"coursePerformance"`
	RecentPerformance  []RecentPerformance `json:"recentPerformance"`
	WeeklyEmail        *weeklyemail.Email  `json:"weeklyEmail,omitempty"`
}

type courseResult struct {
	assignments []Assignment
	performance CoursePerformance
	recent      []GradedAssignment
}

// BuildContext fetches every active course, the calendar and, when the
// identity has the capability, the latest weekly email, all concurrently.
// Any course failing fails the whole call.
func (s *Service) BuildContext(ctx context.Context, id identity.Identity, f Filters) (*Context, error) {
	days, err := f.days()
	if err != nil {
		return nil, err
	}
	cv := s.canvas(id)
	window := timewindow.Next(s.clock.Now(), days)

	var (
		courses []canvas.Course
		results []courseResult
		events  []calendar.Event
		email   *weeklyemail.Email
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, results, err = s.fetchCourses(gctx, cv, window)
		return err
	})
	if s.calendar != nil && id.CalendarID != "" {
		g.Go(func() error {
			var err error
			events, err = s.calendar.ListEvents(gctx, id.CalendarID, window)
			if err != nil {
				return fmt.Errorf("fetching calendar: %w", err)
			}
			return nil
		})
	}
	if s.emails != nil && id.Has(identity.WeeklyEmail) {
		g.Go(func() error {
			e, err := s.emails.Latest(id.Name)
			var nf *apperr.NotFoundError
			switch {
			case errors.As(err, &nf):
				return nil
			case err != nil:
				return fmt.Errorf("reading weekly email: %w", err)
			}
			email = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Context{
		Student:            id.Name,
		StudentDisplayName: id.DisplayName,
		CanvasBaseURL:      cv.BaseURL(),
		Days:               days,
		Assignments:        []Assignment{},
		Events:             events,
		CoursePerformance:  make([]CoursePerformance, 0, len(courses)),
		RecentPerformance:  []RecentPerformance{},
		WeeklyEmail:        email,
	}
	if out.Events == nil {
		out.Events = []calendar.Event{}
	}
	for i, c := range courses {
		r := results[i]
		out.Assignments = append(out.Assignments, r.assignments...)
		out.CoursePerformance = append(out.CoursePerformance, r.performance)
		if len(r.recent) > 0 {
			out.RecentPerformance = append(out.RecentPerformance, RecentPerformance{
				CourseID:     c.ID,
				CourseName:   c.Name,
				RecentGraded: r.recent,
			})
		}
	}
	timewindow.SortByDue(out.Assignments, func(a Assignment) *time.Time { return a.DueAt })
	out.Summary = summarize(out.Assignments, len(out.Events))

	s.logger.Debug("context built",
		"student", id.Name,
		"courses", len(courses),
		"assignments", len(out.Assignments),
		"events", len(out.Events),
	)
	return out, nil
}

// fetchCourses returns the active courses and one result per course, in
// upstream order.
func (s *Service) fetchCourses(ctx context.Context, cv CourseAPI, window timewindow.Window) ([]canvas.Course, []courseResult, error) {
	all, err := cv.ListCourses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing courses: %w", err)
	}
	var active []canvas.Course
	for _, c := range all {
		if c.Active() {
			active = append(active, c)
		}
	}

	results := make([]courseResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(courseConcurrency)
	for i, c := range active {
		g.Go(func() error {
			r, err := s.fetchCourse(gctx, cv, c, window)
			if err != nil {
				return fmt.Errorf("course %d (%s): %w", c.ID, c.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return active, results, nil
}

func (s *Service) fetchCourse(ctx context.Context, cv CourseAPI, c canvas.Course, window timewindow.Window) (courseResult, error) {
	var (
		assignments []canvas.Assignment
		submissions []canvas.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = cv.ListAssignments(gctx, c.ID)
		return err
	})
	g.Go(func() error {
		var err error
		submissions, err = cv.ListSubmissions(gctx, c.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return courseResult{}, err
	}

	r := courseResult{performance: performance(c)}
	for _, a := range assignments {
		if !window.Contains(a.DueAt) {
			continue
		}
		r.assignments = append(r.assignments, toAssignment(c, a))
	}
	r.recent = recentGraded(submissions)
	return r, nil
}

func toAssignment(c canvas.Course, a canvas.Assignment) Assignment {
	return Assignment{
		ID:         a.ID,
		Name:       a.Name,
		CourseID:   c.ID,
		CourseName: c.Name,
		DueAt:      a.DueAt,
		Due:        timewindow.FormatDay(a.DueAt),
		Points:     a.PointsPossible,
		Status:     a.Status(),
		Desc:       normalize.Text(a.Description, normalize.ShortDescription),
		URL:        a.HTMLURL,
	}
}

func performance(c canvas.Course) CoursePerformance {
	p := CoursePerformance{CourseID: c.ID, CourseName: c.Name}
	if e, ok := c.StudentEnrollment(); ok {
		p.CurrentScore = e.ComputedCurrentScore
		p.CurrentGrade = e.ComputedCurrentGrade
		p.FinalScore = e.ComputedFinalScore
		p.FinalGrade = e.ComputedFinalGrade
	}
	return p
}

func recentGraded(subs []canvas.Submission) []GradedAssignment {
	var graded []canvas.Submission
	for _, sub := range subs {
		if sub.Graded() {
			graded = append(graded, sub)
		}
	}
	graded = timewindow.MostRecent(graded, func(sub canvas.Submission) *time.Time { return sub.GradedAt }, RecentGradedCount)

	out := make([]GradedAssignment, len(graded))
	for i, sub := range graded {
		out[i] = GradedAssignment{
			AssignmentID:   sub.AssignmentID,
			Title:          sub.Assignment.Name,
			Score:          *sub.Score,
			PointsPossible: sub.Assignment.PointsPossible,
			GradedAt:       sub.GradedAt,
			SubmittedAt:    sub.SubmittedAt,
			URL:            sub.Assignment.HTMLURL,
		}
	}
	return out
}

// summarize expects assignments already sorted by due date.
func summarize(assignments []Assignment, eventCount int) Summary {
	sum := Summary{
		Courses:             []string{},
		AssignmentsByCourse: make(map[string][]Assignment),
		AssignmentCount:     len(assignments),
		EventCount:          eventCount,
	}
	for _, a := range assignments {
		if _, ok := sum.AssignmentsByCourse[a.CourseName]; !ok {
			sum.Courses = append(sum.Courses, a.CourseName)
		}
		sum.AssignmentsByCourse[a.CourseName] = append(sum.AssignmentsByCourse[a.CourseName], a)
	}
	sort.Strings(sum.Courses)

	n := min(len(assignments), DueSoonCount)
	sum.DueSoon = append([]Assignment{}, assignments[:n]...)
	return sum
}
