package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/kalambet/attune/internal/aggregate"
	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/reflections"
	"github.com/kalambet/attune/internal/syllabus"
	"github.com/kalambet/attune/internal/timewindow"
	"github.com/kalambet/attune/internal/weeklyemail"
)

const testKey = "test-key"

const registryYAML = `
default: lev
reflection_authors: [Jud, Jules, Max]
students:
  - name: max
    display_name: Max
    canvas_token: max-token
    canvas_student_id: "101"
    calendar_id: max@example.com
  - name: lev
    display_name: Lev
    canvas_token: lev-token
    canvas_student_id: "202"
    calendar_id: lev@example.com
    capabilities: [weekly_email]
`

const latinMD = `# Latin III

**Teacher:** Magistra Cole

| Category | Weight | Notes |
|----------|--------|-------|
| Tests | 40% | Two per quarter |
| Homework | 60% | |

- Retakes: any test below 80% may be retaken once.
`

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, timewindow.Location())

type fakeAggregator struct {
	mu       sync.Mutex
	student  string
	ctx      context.Context
	filters  aggregate.Filters
	opts     aggregate.MaterialsOptions
	terms    []string
	folderID int64
	err      error
}

func (f *fakeAggregator) record(ctx context.Context, id identity.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = ctx
	f.student = id.Name
	return f.err
}

func (f *fakeAggregator) BuildContext(ctx context.Context, id identity.Identity, flt aggregate.Filters) (*aggregate.Context, error) {
	f.filters = flt
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return &aggregate.Context{Student: id.Name, StudentDisplayName: id.DisplayName, Days: 7, Assignments: []aggregate.Assignment{}}, nil
}

func (f *fakeAggregator) AssignmentContent(ctx context.Context, id identity.Identity, courseID, assignmentID int64) (*aggregate.AssignmentContent, error) {
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return &aggregate.AssignmentContent{}, nil
}

func (f *fakeAggregator) CourseMaterials(ctx context.Context, id identity.Identity, courseID int64, opts aggregate.MaterialsOptions) (*aggregate.CourseMaterials, error) {
	f.opts = opts
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return &aggregate.CourseMaterials{CourseID: courseID}, nil
}

func (f *fakeAggregator) FindStudyGuide(ctx context.Context, id identity.Identity, courseID int64, terms []string) ([]aggregate.MaterialItem, error) {
	f.terms = terms
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return []aggregate.MaterialItem{{ID: 1, Type: aggregate.ItemPage, Title: "Unit 4 Study Guide"}}, nil
}

func (f *fakeAggregator) ListPages(ctx context.Context, id identity.Identity, courseID int64) ([]aggregate.PageSummary, error) {
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return []aggregate.PageSummary{{ID: 1, Title: "Home", URLSlug: "home", FrontPage: true}}, nil
}

func (f *fakeAggregator) GetPage(ctx context.Context, id identity.Identity, courseID int64, pageURL string) (*aggregate.PageContent, error) {
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return &aggregate.PageContent{ID: 1, Title: pageURL}, nil
}

func (f *fakeAggregator) DownloadFile(ctx context.Context, id identity.Identity, courseID, fileID int64) (*aggregate.FileContent, error) {
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return &aggregate.FileContent{Encoding: aggregate.EncodingText, Content: "hello"}, nil
}

func (f *fakeAggregator) ListFiles(ctx context.Context, id identity.Identity, courseID, folderID int64) ([]aggregate.FileInfo, error) {
	f.folderID = folderID
	if err := f.record(ctx, id); err != nil {
		return nil, err
	}
	return []aggregate.FileInfo{}, nil
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeResolver) note(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *fakeResolver) Resolve(_ context.Context, url string) docs.Document {
	r.note("resolve")
	if strings.Contains(url, "bad") {
		return docs.Document{URL: url, Kind: docs.Classify(url), Error: docs.ErrNoIdentifier}
	}
	return docs.Document{URL: url, Kind: docs.Classify(url), Content: "text of " + url}
}

func (r *fakeResolver) ResolveAll(ctx context.Context, urls []string) []docs.Document {
	r.note("all")
	out := make([]docs.Document, len(urls))
	for i, u := range urls {
		out[i] = docs.Document{URL: u, Content: "text of " + u}
	}
	return out
}

func (r *fakeResolver) ResolveHTML(ctx context.Context, markup string) []docs.Document {
	r.note("html")
	return nil
}

type fakeReflections struct {
	saved []reflections.Reflection
}

func (f *fakeReflections) Save(_ context.Context, who, text string, threads []string) (reflections.SaveResult, error) {
	if who != "Jud" && who != "Jules" && who != "Max" {
		return reflections.SaveResult{}, apperr.Invalid("who must be one of Jud, Jules, Max")
	}
	f.saved = append(f.saved, reflections.Reflection{Who: who, Text: text, Threads: threads})
	return reflections.SaveResult{FileID: "file-1", SavedAt: "2025-03-03T12:00:00-07:00"}, nil
}

func (f *fakeReflections) Recent(_ context.Context, n int) ([]reflections.Reflection, error) {
	return f.saved, nil
}

func (f *fakeReflections) Deduplicate(context.Context) (reflections.CleanupResult, error) {
	return reflections.CleanupResult{Removed: 2, CleanedAt: "2025-03-03T12:00:00-07:00"}, nil
}

func (f *fakeReflections) FileName() string { return "reflections.jsonl" }

type testEnv struct {
	deps   Deps
	agg    *fakeAggregator
	docs   *fakeResolver
	emails *weeklyemail.Store
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	reg, err := identity.ParseRegistry([]byte(registryYAML), func(string) string { return "" })
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	env := &testEnv{
		agg:    &fakeAggregator{},
		docs:   &fakeResolver{},
		emails: weeklyemail.NewStoreWithClock(filepath.Join(t.TempDir(), "weekly.json"), fixedClock{testNow}),
	}
	env.deps = Deps{
		Registry:     reg,
		Aggregator:   env.agg,
		Documents:    env.docs,
		Syllabi:      syllabus.NewLibraryFS(fstest.MapFS{"latin-iii.md": {Data: []byte(latinMD)}}, nil, nil),
		Reflections:  &fakeReflections{},
		WeeklyEmails: env.emails,
		APIKey:       testKey,
		Clock:        fixedClock{testNow},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&env.deps)
	}
	env.srv = httptest.NewServer(NewHandler(env.deps))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-API-Key", testKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func weeklyEmail(student, week string) weeklyemail.Email {
	return weeklyemail.Email{Student: student, WeekOf: week, Subject: "Week of " + week, Content: "News"}
}
