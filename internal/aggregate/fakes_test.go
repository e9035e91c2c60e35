package aggregate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/calendar"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/pdftext"
	"github.com/kalambet/attune/internal/timewindow"
	"github.com/kalambet/attune/internal/weeklyemail"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, timewindow.Location())

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func ptr[T any](v T) *T { return &v }

var errCanvas404 = apperr.Upstream("Canvas", http.StatusNotFound, "")

// fakeCanvas is an in-memory CourseAPI.
type fakeCanvas struct {
	courses     []canvas.Course
	assignments map[int64][]canvas.Assignment
	submissions map[int64][]canvas.Submission
	detail      map[int64]canvas.Assignment
	quizzes     map[int64]canvas.Quiz
	pages       map[int64][]canvas.Page
	bodies      map[string]string
	modules     map[int64][]canvas.Module
	files       map[int64]canvas.File
	downloads   map[string][]byte

	failCourse int64
	failPage   string

	mu        sync.Mutex
	downloadN int
}

func (f *fakeCanvas) BaseURL() string { return "https://canvas.example" }

func (f *fakeCanvas) ListCourses(context.Context) ([]canvas.Course, error) {
	return f.courses, nil
}

func (f *fakeCanvas) ListAssignments(_ context.Context, courseID int64) ([]canvas.Assignment, error) {
	if courseID == f.failCourse {
		return nil, apperr.Upstream("Canvas", http.StatusInternalServerError, "boom")
	}
	return f.assignments[courseID], nil
}

func (f *fakeCanvas) ListSubmissions(_ context.Context, courseID int64) ([]canvas.Submission, error) {
	return f.submissions[courseID], nil
}

func (f *fakeCanvas) GetAssignment(_ context.Context, _, assignmentID int64) (canvas.Assignment, error) {
	a, ok := f.detail[assignmentID]
	if !ok {
		return canvas.Assignment{}, errCanvas404
	}
	return a, nil
}

func (f *fakeCanvas) GetQuiz(_ context.Context, _, quizID int64) (canvas.Quiz, error) {
	q, ok := f.quizzes[quizID]
	if !ok {
		return canvas.Quiz{}, errCanvas404
	}
	return q, nil
}

func (f *fakeCanvas) ListPages(_ context.Context, courseID int64) ([]canvas.Page, error) {
	p, ok := f.pages[courseID]
	if !ok {
		return nil, errCanvas404
	}
	return p, nil
}

func (f *fakeCanvas) GetPage(_ context.Context, _ int64, pageURL string) (canvas.Page, error) {
	if pageURL == f.failPage {
		return canvas.Page{}, apperr.Upstream("Canvas", http.StatusForbidden, "")
	}
	body, ok := f.bodies[pageURL]
	if !ok {
		return canvas.Page{}, errCanvas404
	}
	return canvas.Page{PageID: 1, URL: pageURL, Title: pageURL, Body: body}, nil
}

func (f *fakeCanvas) ListModules(_ context.Context, courseID int64) ([]canvas.Module, error) {
	return f.modules[courseID], nil
}

func (f *fakeCanvas) ListFiles(_ context.Context, _, folderID int64) ([]canvas.File, error) {
	var out []canvas.File
	for _, file := range f.files {
		if folderID == 0 || file.ID/100 == folderID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeCanvas) DownloadFile(ctx context.Context, _, fileID int64) (canvas.File, []byte, error) {
	file, ok := f.files[fileID]
	if !ok {
		return canvas.File{}, nil, errCanvas404
	}
	data, err := f.Download(ctx, file.URL)
	return file, data, err
}

func (f *fakeCanvas) Download(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	f.downloadN++
	f.mu.Unlock()
	data, ok := f.downloads[rawURL]
	if !ok {
		return nil, fmt.Errorf("no download for %s", rawURL)
	}
	return data, nil
}

type fakeCalendar struct {
	events []calendar.Event
	err    error
	gotID  string
	gotWin timewindow.Window
}

func (c *fakeCalendar) ListEvents(_ context.Context, calendarID string, w timewindow.Window) ([]calendar.Event, error) {
	c.gotID, c.gotWin = calendarID, w
	return c.events, c.err
}

type fakeEmails struct {
	email weeklyemail.Email
	err   error
	calls int
}

func (e *fakeEmails) Latest(string) (weeklyemail.Email, error) {
	e.calls++
	return e.email, e.err
}

// fakeDocs resolves every URL to a fixed document and counts calls.
type fakeDocs struct {
	calls atomic.Int32
}

func (d *fakeDocs) ResolveHTML(ctx context.Context, markup string) []docs.Document {
	return d.ResolveAll(ctx, docs.ExtractURLs(markup))
}

func (d *fakeDocs) ResolveAll(_ context.Context, urls []string) []docs.Document {
	d.calls.Add(1)
	out := make([]docs.Document, len(urls))
	for i, u := range urls {
		out[i] = docs.Document{URL: u, Kind: docs.Classify(u), Content: "resolved " + u}
	}
	return out
}

type fakePDF struct {
	result pdftext.Result
	err    error
}

func (p fakePDF) Extract(context.Context, []byte) (pdftext.Result, error) { return p.result, p.err }

type fakeOCR struct{ text string }

func (o fakeOCR) Recognize(context.Context, []byte) (string, error) {
	if o.text == "" {
		return "", errors.New("unreadable")
	}
	return o.text, nil
}

var (
	studentMax = identity.Identity{Name: "max", DisplayName: "Max", CanvasToken: "t", StudentID: "1", CalendarID: "max@example.com"}
	studentLev = identity.Identity{Name: "lev", DisplayName: "Lev", CanvasToken: "t", StudentID: "2", CalendarID: "lev@example.com",
		Capabilities: []identity.Capability{identity.WeeklyEmail}}
)

func newTestService(cv *fakeCanvas, opts Options) *Service {
	opts.Canvas = func(identity.Identity) CourseAPI { return cv }
	opts.Clock = fixedClock{testNow}
	return New(opts)
}
