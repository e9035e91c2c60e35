// Package aggregate composes the upstream adapters into the request-level
// views served to callers: the student context, assignment content and
// course materials.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/calendar"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/pdftext"
	"github.com/kalambet/attune/internal/timewindow"
	"github.com/kalambet/attune/internal/weeklyemail"
)

// CourseAPI is the subset of the Canvas client the orchestrator uses.
type CourseAPI interface {
	BaseURL() string
	ListCourses(ctx context.Context) ([]canvas.Course, error)
	ListAssignments(ctx context.Context, courseID int64) ([]canvas.Assignment, error)
	ListSubmissions(ctx context.Context, courseID int64) ([]canvas.Submission, error)
	GetAssignment(ctx context.Context, courseID, assignmentID int64) (canvas.Assignment, error)
	GetQuiz(ctx context.Context, courseID, quizID int64) (canvas.Quiz, error)
	ListPages(ctx context.Context, courseID int64) ([]canvas.Page, error)
	GetPage(ctx context.Context, courseID int64, pageURL string) (canvas.Page, error)
	ListModules(ctx context.Context, courseID int64) ([]canvas.Module, error)
	ListFiles(ctx context.Context, courseID, folderID int64) ([]canvas.File, error)
	DownloadFile(ctx context.Context, courseID, fileID int64) (canvas.File, []byte, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// CourseAPIFactory returns a Canvas client scoped to one identity.
type CourseAPIFactory func(id identity.Identity) CourseAPI

// CanvasFactory builds real Canvas clients for baseURL sharing httpClient.
func CanvasFactory(baseURL string, httpClient *http.Client) CourseAPIFactory {
	return func(id identity.Identity) CourseAPI {
		return canvas.NewClient(baseURL, id.CanvasToken, id.StudentID, httpClient)
	}
}

type Calendar interface {
	ListEvents(ctx context.Context, calendarID string, w timewindow.Window) ([]calendar.Event, error)
}

type WeeklyEmails interface {
	Latest(student string) (weeklyemail.Email, error)
}

// Documents resolves hosted documents. Resolution never fails; errors are
// carried on each docs.Document.
type Documents interface {
	ResolveHTML(ctx context.Context, markup string) []docs.Document
	ResolveAll(ctx context.Context, urls []string) []docs.Document
}

type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (pdftext.Result, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Options wires a Service. Calendar, WeeklyEmails, PDF and OCR may be nil;
// the corresponding data is then omitted.
type Options struct {
	Canvas       CourseAPIFactory
	Calendar     Calendar
	WeeklyEmails WeeklyEmails
	Documents    Documents
	PDF          PDFExtractor
	OCR          Recognizer
	Clock        timewindow.Clock
	Logger       *slog.Logger
}

// Service runs the aggregation operations. It holds no per-request state.
type Service struct {
	canvas   CourseAPIFactory
	calendar Calendar
	emails   WeeklyEmails
	docs     Documents
	pdf      PDFExtractor
	ocr      Recognizer
	clock    timewindow.Clock
	logger   *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		canvas:   opts.Canvas,
		calendar: opts.Calendar,
		emails:   opts.WeeklyEmails,
		docs:     opts.Documents,
		pdf:      opts.PDF,
		ocr:      opts.OCR,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = timewindow.SystemClock
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Documents returns the document resolver the service was built with.
func (s *Service) Documents() Documents { return s.docs }

// notFound converts a Canvas 404 into a NotFoundError.
func notFound(err error, what, format string, args ...any) error {
	if canvas.IsNotFound(err) {
		return apperr.NotFound(what, format, args...)
	}
	return err
}

func requireCourse(courseID int64) error {
	if courseID <= 0 {
		return apperr.Missing("courseId")
	}
	return nil
}

var errNoOCR = errors.New("OCR is not configured")
