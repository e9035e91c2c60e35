package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/attune/internal/normalize"
	"github.com/kalambet/attune/internal/pdftext"
	"github.com/kalambet/attune/internal/storage"
	"github.com/kalambet/attune/internal/timewindow"
)

// Size bounds for resolved content, in characters.
const (
	MaxExportChars = 15000
	MaxPDFChars    = 20000
)

const (
	defaultDocsBase  = "https://docs.google.com"
	defaultDriveBase = "https://drive.google.com"
	userAgent        = "attune/1.0"
	maxDownloadBytes = 50 << 20
	resolveLimit     = 4
)

// Failure messages carried on Document.Error.
const (
	ErrNoIdentifier    = "no identifier"
	ErrUnrecognized    = "unrecognized type"
	ErrDownloadTooLong = "download exceeds size limit"
)

// Document is the outcome of resolving one URL. Exactly one of Content and
// Error is set.
type Document struct {
	URL     string `json:"url"`
	Kind    Kind   `json:"type"`
	FileID  string `json:"fileId,omitempty"`
	Method  string `json:"method,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
}

// OK reports whether the document resolved.
func (d Document) OK() bool { return d.Error == "" }

// PDFExtractor turns PDF bytes into text.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (pdftext.Result, error)
}

// Cache persists successful resolutions. Implemented by storage.Store.
type Cache interface {
	GetDocument(ctx context.Context, url string, notBefore time.Time) (storage.CachedDocument, error)
	PutDocument(ctx context.Context, d storage.CachedDocument) error
}

// Options configures a Resolver. Zero values select the public hosts and
// http.DefaultClient.
type Options struct {
	DocsBaseURL  string
	DriveBaseURL string
	HTTPClient   *http.Client
	PDF          PDFExtractor
	Cache        Cache
	CacheTTL     time.Duration
	Clock        timewindow.Clock
	Logger       *slog.Logger
}

// Resolver fetches hosted documents and converts them to plain text.
type Resolver struct {
	docsBase  string
	driveBase string
	http      *http.Client
	pdf       PDFExtractor
	cache     Cache
	cacheTTL  time.Duration
	clock     timewindow.Clock
	logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		docsBase:  opts.DocsBaseURL,
		driveBase: opts.DriveBaseURL,
		http:      opts.HTTPClient,
		pdf:       opts.PDF,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if r.docsBase == "" {
		r.docsBase = defaultDocsBase
	}
	if r.driveBase == "" {
		r.driveBase = defaultDriveBase
	}
	if r.http == nil {
		r.http = &http.Client{Timeout: 30 * time.Second}
	}
	if r.clock == nil {
		r.clock = timewindow.SystemClock
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = time.Hour
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve fetches url and returns its text. It never fails: problems are
// reported on the returned Document's Error field.
func (r *Resolver) Resolve(ctx context.Context, url string) Document {
	kind := Classify(url)
	id, ok := FileID(url)
	if !ok {
		return Document{URL: url, Kind: KindUnknown, Error: ErrNoIdentifier}
	}
	if kind == KindUnknown {
		return Document{URL: url, Kind: KindUnknown, FileID: id, Error: ErrUnrecognized}
	}

	if doc, ok := r.cached(ctx, url); ok {
		return doc
	}

	doc := Document{URL: url, Kind: kind, FileID: id}
	var err error
	switch kind {
	case KindDoc:
		doc.Method = "export"
		doc.Content, err = r.export(ctx, fmt.Sprintf("%s/document/d/%s/export?format=txt", r.docsBase, id))
	case KindSpreadsheet:
		doc.Method = "export"
		doc.Content, err = r.export(ctx, fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv", r.docsBase, id))
	case KindPDF:
		doc.Content, doc.Method, err = r.pdfText(ctx, id)
	}
	if err != nil {
		r.logger.Debug("document resolution failed", "url", url, "kind", kind, "error", err)
		return Document{URL: url, Kind: kind, FileID: id, Error: err.Error()}
	}

	r.store(ctx, doc)
	return doc
}

// ResolveAll resolves every url concurrently and returns one Document per
// input, in input order.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) []Document {
	out := make([]Document, len(urls))
	if len(urls) == 0 {
		return out
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = r.Resolve(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ResolveHTML resolves every hosted document linked from markup.
func (r *Resolver) ResolveHTML(ctx context.Context, markup string) []Document {
	return r.ResolveAll(ctx, ExtractURLs(markup))
}

func (r *Resolver) export(ctx context.Context, url string) (string, error) {
	body, err := r.download(ctx, url)
	if err != nil {
		return "", err
	}
	return normalize.Clip(string(body), MaxExportChars), nil
}

func (r *Resolver) pdfText(ctx context.Context, id string) (string, string, error) {
	if r.pdf == nil {
		return "", "", errors.New("pdf extraction is not configured")
	}
	data, err := r.download(ctx, fmt.Sprintf("%s/uc?export=download&id=%s", r.driveBase, id))
	if err != nil {
		return "", "", err
	}
	res, err := r.pdf.Extract(ctx, data)
	if err != nil {
		return "", "", fmt.Errorf("extracting pdf: %w", err)
	}
	return normalize.Clip(res.Text, MaxPDFChars), string(res.Method), nil
}

func (r *Resolver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching document: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if len(body) > maxDownloadBytes {
		return nil, errors.New(ErrDownloadTooLong)
	}
	return body, nil
}

func (r *Resolver) cached(ctx context.Context, url string) (Document, bool) {
	if r.cache == nil {
		return Document{}, false
	}
	d, err := r.cache.GetDocument(ctx, url, r.clock.Now().Add(-r.cacheTTL))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("document cache read failed", "url", url, "error", err)
		}
		return Document{}, false
	}
	return Document{
		URL:     d.URL,
		Kind:    Kind(d.Kind),
		FileID:  d.FileID,
		Method:  d.Method,
		Content: d.Content,
		Cached:  true,
	}, true
}

func (r *Resolver) store(ctx context.Context, doc Document) {
	if r.cache == nil {
		return
	}
	err := r.cache.PutDocument(ctx, storage.CachedDocument{
		URL:       doc.URL,
		Kind:      string(doc.Kind),
		FileID:    doc.FileID,
		Method:    doc.Method,
		Content:   doc.Content,
		FetchedAt: r.clock.Now(),
	})
	if err != nil {
		r.logger.Warn("document cache write failed", "url", doc.URL, "error", err)
	}
}
