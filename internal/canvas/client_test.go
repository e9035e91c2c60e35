package canvas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/attune/internal/apperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok-123", "42", srv.Client())
}

func TestListCourses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/42/courses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("enrollment_state") != "active" || q.Get("include[]") != "total_scores" || q.Get("per_page") != "100" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`[
			{"id": 1, "name": "Latin III", "workflow_state": "available",
			 "enrollments": [{"type": "observer"}, {"type": "student", "computed_current_score": 93.5, "computed_current_grade": "A"}]},
			{"id": 2, "name": "Old Course", "workflow_state": "completed"}
		]`))
	})

	courses, err := c.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("got %d courses", len(courses))
	}
	if !courses[0].Active() || courses[1].Active() {
		t.Error("Active() mismatch")
	}
	e, ok := courses[0].StudentEnrollment()
	if !ok || e.ComputedCurrentScore == nil || *e.ComputedCurrentScore != 93.5 || *e.ComputedCurrentGrade != "A" {
		t.Errorf("student enrollment = %+v, %v", e, ok)
	}
	if _, ok := courses[1].StudentEnrollment(); ok {
		t.Error("expected no student enrollment")
	}
}

func TestListAssignments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/courses/7/assignments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		includes := r.URL.Query()["include[]"]
		if len(includes) != 4 {
			t.Errorf("include[] = %v", includes)
		}
		w.Write([]byte(`[
			{"id": 10, "name": "Essay", "description": "<p>Write</p>", "due_at": "2025-03-05T06:59:00Z",
			 "points_possible": 20, "workflow_state": "published", "submission": {"workflow_state": "submitted"}},
			{"id": 11, "name": "Reading", "description": null, "due_at": null, "points_possible": null, "workflow_state": "published"}
		]`))
	})

	as, err := c.ListAssignments(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if as[0].Status() != "submitted" || as[1].Status() != "published" {
		t.Errorf("statuses = %q, %q", as[0].Status(), as[1].Status())
	}
	if as[0].DueAt == nil || as[1].DueAt != nil {
		t.Error("due_at decoding mismatch")
	}
	if as[1].PointsPossible != nil || as[1].Description != "" {
		t.Error("null fields should decode to zero values")
	}
}

func TestListSubmissions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/courses/7/students/submissions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("student_ids[]"); got != "42" {
			t.Errorf("student_ids[] = %q", got)
		}
		w.Write([]byte(`[
			{"id": 1, "assignment_id": 10, "graded_at": "2025-03-01T10:00:00Z", "score": 18,
			 "assignment": {"id": 10, "name": "Essay", "points_possible": 20}},
			{"id": 2, "assignment_id": 11, "graded_at": null, "score": null}
		]`))
	})

	subs, err := c.ListSubmissions(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if !subs[0].Graded() || subs[1].Graded() {
		t.Error("Graded() mismatch")
	}
}

func TestUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"Invalid access token."}]}`, http.StatusUnauthorized)
	})

	_, err := c.ListCourses(context.Background())
	var up *apperr.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if up.Status != http.StatusUnauthorized || up.Reason != "Unauthorized" {
		t.Errorf("status = %d, reason = %q", up.Status, up.Reason)
	}
	if !strings.Contains(err.Error(), "Canvas API error: 401 Unauthorized") {
		t.Errorf("err = %v", err)
	}
	if IsNotFound(err) {
		t.Error("401 is not a not-found")
	}
}

func TestGetPageEscapesSlug(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/v1/courses/3/pages/unit-4%3Freview" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"page_id": 9, "url": "unit-4?review", "title": "Unit 4", "body": "<p>hi</p>"}`))
	})

	p, err := c.GetPage(context.Background(), 3, "unit-4?review")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if p.Title != "Unit 4" || p.Body != "<p>hi</p>" {
		t.Errorf("page = %+v", p)
	}
}

func TestGetPageNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.GetPage(context.Background(), 3, "missing")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestListModules(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include[]") != "items" {
			t.Errorf("query = %v", r.URL.Query())
		}
		w.Write([]byte(`[{"id": 1, "name": "Week 1", "items": [
			{"id": 5, "title": "Intro", "type": "SubHeader"},
			{"id": 6, "title": "Notes", "type": "ExternalUrl", "external_url": "https://docs.google.com/document/d/x"}
		]}]`))
	})

	mods, err := c.ListModules(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 1 || len(mods[0].Items) != 2 || mods[0].Items[1].Type != ItemExternalURL {
		t.Errorf("modules = %+v", mods)
	}
}

func TestListFilesFolder(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`[{"id": 1, "display_name": "a.pdf", "content-type": "application/pdf", "size": 10}]`))
	})
	ctx := context.Background()

	files, err := c.ListFiles(ctx, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if files[0].ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", files[0].ContentType)
	}
	if _, err := c.ListFiles(ctx, 3, 77); err != nil {
		t.Fatal(err)
	}
	want := []string{"/api/v1/courses/3/files", "/api/v1/folders/77/files"}
	for i, w := range want {
		if paths[i] != w {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], w)
		}
	}
}

func TestDownloadFile(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v1/courses/3/files/9":
			w.Write([]byte(`{"id": 9, "display_name": "notes.txt", "content-type": "text/plain", "url": "` + srvURL + `/files/9/download"}`))
		case "/files/9/download":
			w.Write([]byte("file body"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(srv.URL, "tok", "42", srv.Client())
	f, data, err := c.DownloadFile(context.Background(), 3, 9)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if f.DisplayName != "notes.txt" || string(data) != "file body" {
		t.Errorf("file = %+v, data = %q", f, data)
	}
}

func TestGetQuiz(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/courses/3/quizzes/55" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"id": 55, "title": "Vocab Quiz", "description": "<p>Chapters 1-3</p>"}`))
	})
	q, err := c.GetQuiz(context.Background(), 3, 55)
	if err != nil {
		t.Fatal(err)
	}
	if q.Title != "Vocab Quiz" {
		t.Errorf("Title = %q", q.Title)
	}
}
