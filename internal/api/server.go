// Package api exposes the service over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/attune/internal/aggregate"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/reflections"
	"github.com/kalambet/attune/internal/syllabus"
	"github.com/kalambet/attune/internal/timewindow"
	"github.com/kalambet/attune/internal/weeklyemail"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Aggregator is implemented by *aggregate.Service.
type Aggregator interface {
	BuildContext(ctx context.Context, id identity.Identity, f aggregate.Filters) (*aggregate.Context, error)
	AssignmentContent(ctx context.Context, id identity.Identity, courseID, assignmentID int64) (*aggregate.AssignmentContent, error)
	CourseMaterials(ctx context.Context, id identity.Identity, courseID int64, opts aggregate.MaterialsOptions) (*aggregate.CourseMaterials, error)
	FindStudyGuide(ctx context.Context, id identity.Identity, courseID int64, terms []string) ([]aggregate.MaterialItem, error)
	ListPages(ctx context.Context, id identity.Identity, courseID int64) ([]aggregate.PageSummary, error)
	GetPage(ctx context.Context, id identity.Identity, courseID int64, pageURL string) (*aggregate.PageContent, error)
	DownloadFile(ctx context.Context, id identity.Identity, courseID, fileID int64) (*aggregate.FileContent, error)
	ListFiles(ctx context.Context, id identity.Identity, courseID, folderID int64) ([]aggregate.FileInfo, error)
}

// DocumentResolver is implemented by *docs.Resolver.
type DocumentResolver interface {
	Resolve(ctx context.Context, url string) docs.Document
	ResolveAll(ctx context.Context, urls []string) []docs.Document
	ResolveHTML(ctx context.Context, markup string) []docs.Document
}

// Reflections is implemented by *reflections.Store.
type Reflections interface {
	Save(ctx context.Context, who, text string, threads []string) (reflections.SaveResult, error)
	Recent(ctx context.Context, n int) ([]reflections.Reflection, error)
	Deduplicate(ctx context.Context) (reflections.CleanupResult, error)
	FileName() string
}

// WeeklyEmails is implemented by *weeklyemail.Store.
type WeeklyEmails interface {
	Latest(student string) (weeklyemail.Email, error)
	ForWeek(student, weekOf string) (weeklyemail.Email, error)
	History(student string, limit int) ([]weeklyemail.Email, error)
	Save(e weeklyemail.Email) (weeklyemail.Email, error)
}

// Deps holds everything the handlers need. Reflections may be nil when
// Google credentials are not configured.
type Deps struct {
	Registry     *identity.Registry
	Aggregator   Aggregator
	Documents    DocumentResolver
	Syllabi      *syllabus.Library
	Reflections  Reflections
	WeeklyEmails WeeklyEmails

	APIKey             string
	RateLimitPerMinute int
	Development        bool

	Clock  timewindow.Clock
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timewindow.SystemClock
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// NewHandler returns the HTTP API. /health is public; every other route,
// including the MCP endpoint at /mcp, requires the API key.
func NewHandler(deps Deps) http.Handler {
	deps = deps.withDefaults()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	if deps.RateLimitPerMinute > 0 {
		r.Use(RateLimit(newIPLimiter(deps.RateLimitPerMinute, deps.Clock)))
	}

	r.Get("/health", handleHealth(deps))

	mcpSrv := server.NewStreamableHTTPServer(NewMCPServer(deps), server.WithEndpointPath("/mcp"))

	r.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(deps.APIKey))

		r.Post("/context", handleContext(deps))
		r.Post("/assignment/content", handleAssignmentContent(deps))

		r.Post("/course/materials", handleCourseMaterials(deps))
		r.Post("/course/study-guide", handleStudyGuide(deps))
		r.Post("/course/page", handleGetPage(deps))
		r.Post("/course/pages", handleListPages(deps))

		r.Post("/documents/resolve", handleResolveDocument(deps))
		r.Post("/documents/resolve-all", handleResolveAll(deps))

		r.Get("/syllabus", handleListSyllabi(deps))
		r.Get("/syllabus/weights", handleSyllabusWeights(deps))
		r.Get("/syllabus/{course}", handleGetSyllabus(deps))
		r.Post("/syllabus/match", handleMatchSyllabus(deps))
		r.Post("/syllabus/impact", handleGradeImpact(deps))

		r.Post("/reflections/save", handleSaveReflection(deps))
		r.Post("/reflections/recent", handleRecentReflections(deps))
		r.Post("/reflections/cleanup", handleCleanupReflections(deps))

		r.Get("/weekly-email", handleGetWeeklyEmail(deps))
		r.Post("/weekly-email", handleSaveWeeklyEmail(deps))
		r.Get("/weekly-email/history", handleWeeklyEmailHistory(deps))

		r.Post("/file", handleDownloadFile(deps))
		r.Post("/file/list", handleListFiles(deps))

		r.Handle("/mcp", mcpSrv)
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": deps.Clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"students":  deps.Registry.Names(),
		})
	}
}
