package docs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/attune/internal/pdftext"
	"github.com/kalambet/attune/internal/storage"
)

type fakePDF struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakePDF) Extract(_ context.Context, data []byte) (pdftext.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return pdftext.Result{}, f.err
	}
	return pdftext.Result{Text: f.text + " (" + string(data) + ")", Method: pdftext.MethodOCR}, nil
}

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/document/d/doc1/export", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("format") != "txt" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no agent", http.StatusBadRequest)
			return
		}
		w.Write([]byte("Unit 4 notes"))
	})
	mux.HandleFunc("/document/d/big/export", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(strings.Repeat("x", MaxExportChars+500)))
	})
	mux.HandleFunc("/spreadsheets/d/sheet1/export", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("format") != "csv" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		w.Write([]byte("name,score\nquiz,9"))
	})
	mux.HandleFunc("/uc", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("id") != "pdf1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/document/d/private/export", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, srv *httptest.Server, pdf PDFExtractor, cache Cache) *Resolver {
	t.Helper()
	return NewResolver(Options{
		DocsBaseURL:  srv.URL,
		DriveBaseURL: srv.URL,
		HTTPClient:   srv.Client(),
		PDF:          pdf,
		Cache:        cache,
	})
}

func TestResolveDoc(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, nil, nil)

	doc := r.Resolve(context.Background(), "https://docs.google.com/document/d/doc1/edit")
	if !doc.OK() {
		t.Fatalf("unexpected error: %s", doc.Error)
	}
	if doc.Kind != KindDoc || doc.Content != "Unit 4 notes" || doc.FileID != "doc1" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestResolveSpreadsheet(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, nil, nil)

	doc := r.Resolve(context.Background(), "https://docs.google.com/spreadsheets/d/sheet1/edit")
	if doc.Content != "name,score\nquiz,9" {
		t.Errorf("Content = %q (error %q)", doc.Content, doc.Error)
	}
}

func TestResolveTruncatesExport(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, nil, nil)

	doc := r.Resolve(context.Background(), "https://docs.google.com/document/d/big")
	if len(doc.Content) != MaxExportChars {
		t.Errorf("len(Content) = %d, want %d", len(doc.Content), MaxExportChars)
	}
}

func TestResolvePDF(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	pdf := &fakePDF{text: "scanned worksheet"}
	r := newTestResolver(t, srv, pdf, nil)

	doc := r.Resolve(context.Background(), "https://drive.google.com/file/d/pdf1/view")
	if !doc.OK() {
		t.Fatalf("unexpected error: %s", doc.Error)
	}
	if doc.Kind != KindPDF || doc.Method != "ocr" || doc.Content != "scanned worksheet (%PDF-1.4)" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestResolveFailuresAreValues(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, &fakePDF{err: errors.New("corrupt")}, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		url     string
		kind    Kind
		errPart string
	}{
		{"no identifier", "https://docs.google.com/document/u/0/", KindUnknown, ErrNoIdentifier},
		{"unrecognized", "https://example.com/file/d/abc", KindUnknown, ErrUnrecognized},
		{"http status", "https://docs.google.com/document/d/private/edit", KindDoc, "status 403"},
		{"missing pdf", "https://drive.google.com/file/d/gone/view", KindPDF, "status 404"},
		{"pdf extraction", "https://drive.google.com/file/d/pdf1/view", KindPDF, "corrupt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := r.Resolve(ctx, tt.url)
			if doc.OK() || !strings.Contains(doc.Error, tt.errPart) {
				t.Errorf("Error = %q, want it to contain %q", doc.Error, tt.errPart)
			}
			if doc.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", doc.Kind, tt.kind)
			}
			if doc.Content != "" {
				t.Errorf("Content should be empty on failure, got %q", doc.Content)
			}
		})
	}
}

func TestResolveNoIdentifierMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, nil, nil)

	r.Resolve(context.Background(), "https://docs.google.com/document/u/0/")
	if hits.Load() != 0 {
		t.Errorf("expected no network calls, got %d", hits.Load())
	}
}

func TestResolveAllPreservesOrderAndCount(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, &fakePDF{text: "pdf"}, nil)

	urls := []string{
		"https://drive.google.com/file/d/pdf1/view",
		"https://docs.google.com/document/d/private",
		"https://docs.google.com/document/d/doc1",
		"not a url",
		"https://docs.google.com/spreadsheets/d/sheet1",
	}
	docs := r.ResolveAll(context.Background(), urls)
	if len(docs) != len(urls) {
		t.Fatalf("got %d results, want %d", len(docs), len(urls))
	}
	for i, d := range docs {
		if d.URL != urls[i] {
			t.Errorf("docs[%d].URL = %q, want %q", i, d.URL, urls[i])
		}
	}
	if docs[1].OK() || docs[3].OK() {
		t.Error("expected failures for private doc and garbage url")
	}
	if !docs[0].OK() || !docs[2].OK() || !docs[4].OK() {
		t.Error("expected successes for pdf, doc and sheet")
	}
}

func TestResolveHTMLEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	r := newTestResolver(t, srv, nil, nil)

	docs := r.ResolveHTML(context.Background(), "<p>Read chapter 3.</p>")
	if len(docs) != 0 {
		t.Errorf("got %d docs, want 0", len(docs))
	}
	if hits.Load() != 0 {
		t.Errorf("expected no network calls, got %d", hits.Load())
	}
}

func TestResolveUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	r := newTestResolver(t, srv, nil, store)
	ctx := context.Background()
	url := "https://docs.google.com/document/d/doc1/edit"

	first := r.Resolve(ctx, url)
	second := r.Resolve(ctx, url)
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if first.Cached || !second.Cached {
		t.Errorf("Cached flags = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if second.Content != first.Content {
		t.Errorf("cached content = %q, want %q", second.Content, first.Content)
	}
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	r := newTestResolver(t, srv, nil, store)
	ctx := context.Background()

	r.Resolve(ctx, "https://docs.google.com/document/d/private")
	r.Resolve(ctx, "https://docs.google.com/document/d/private")
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	n, _ := store.CountDocuments(ctx)
	if n != 0 {
		t.Errorf("cached documents = %d, want 0", n)
	}
}

type staleClock struct{ now time.Time }

func (c *staleClock) Now() time.Time { return c.now }

func TestResolveCacheExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	clock := &staleClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewResolver(Options{
		DocsBaseURL: srv.URL, HTTPClient: srv.Client(),
		Cache: store, CacheTTL: time.Hour, Clock: clock,
	})
	ctx := context.Background()
	url := "https://docs.google.com/document/d/doc1"

	r.Resolve(ctx, url)
	clock.now = clock.now.Add(2 * time.Hour)
	if doc := r.Resolve(ctx, url); doc.Cached {
		t.Error("expected expired entry to be refetched")
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}
