package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/normalize"
)

// MaxMaterialPages bounds the pages CourseMaterials expands.
const MaxMaterialPages = 20

// Material item types.
const (
	ItemPage         = "page"
	ItemModule       = "module_item"
	ItemExternalLink = "external_link"
)

// DefaultStudyGuideTerms are matched against titles by FindStudyGuide.
var DefaultStudyGuideTerms = []string{"study guide", "review", "test prep"}

// MaterialsOptions controls CourseMaterials.
type MaterialsOptions struct {
	// Search keeps only items whose title contains it, case-insensitively.
	Search string
	// IncludeContent adds the plain-text body of each page.
	IncludeContent bool
	// FetchExternalDocs resolves hosted documents linked from pages and modules.
	FetchExternalDocs bool
}

type MaterialItem struct {
	ID             int64           `json:"id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	URL            string          `json:"url,omitempty"`
	Content        string          `json:"content,omitempty"`
	ContentPreview string          `json:"contentPreview,omitempty"`
	ExternalDocs   []docs.Document `json:"externalDocs,omitempty"`
}

type CourseMaterials struct {
	CourseID      int64          `json:"courseId"`
	Pages         []MaterialItem `json:"pages"`
	ModuleItems   []MaterialItem `json:"moduleItems"`
	ExternalLinks []MaterialItem `json:"externalLinks"`
}

// CourseMaterials lists a course's pages and module items. The first
// MaxMaterialPages matching pages are expanded; a page that cannot be
// fetched is kept without content.
func (s *Service) CourseMaterials(ctx context.Context, id identity.Identity, courseID int64, opts MaterialsOptions) (*CourseMaterials, error) {
	if err := requireCourse(courseID); err != nil {
		return nil, err
	}
	cv := s.canvas(id)
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	fetchDocs := opts.FetchExternalDocs && s.docs != nil

	var (
		pages   []canvas.Page
		modules []canvas.Module
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = cv.ListPages(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		modules, err = cv.ListModules(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, notFound(err, "course", "course %d not found", courseID)
	}

	var matched []canvas.Page
	for _, p := range pages {
		if matches(p.Title, search) {
			matched = append(matched, p)
		}
	}
	if len(matched) > MaxMaterialPages {
		matched = matched[:MaxMaterialPages]
	}

	out := &CourseMaterials{
		CourseID:      courseID,
		Pages:         make([]MaterialItem, len(matched)),
		ModuleItems:   []MaterialItem{},
		ExternalLinks: []MaterialItem{},
	}

	var pg errgroup.Group
	pg.SetLimit(attachmentConcurrency)
	for i, p := range matched {
		pg.Go(func() error {
			out.Pages[i] = s.expandPage(ctx, cv, courseID, p, opts.IncludeContent, fetchDocs)
			return nil
		})
	}
	pg.Wait()

	for _, m := range modules {
		for _, item := range m.Items {
			if !matches(item.Title, search) {
				continue
			}
			switch {
			case item.Type == canvas.ItemExternalURL && item.ExternalURL != "":
				link := MaterialItem{ID: item.ID, Type: ItemExternalLink, Title: item.Title, URL: item.ExternalURL}
				if fetchDocs {
					if urls := docs.ExtractURLs(item.ExternalURL); len(urls) > 0 {
						link.ExternalDocs = s.docs.ResolveAll(ctx, urls)
					}
				}
				out.ExternalLinks = append(out.ExternalLinks, link)
			case item.Type == canvas.ItemPage && item.PageURL != "":
				// listed with the pages
			case item.Type == canvas.ItemSubHeader:
			default:
				out.ModuleItems = append(out.ModuleItems, MaterialItem{
					ID:    item.ID,
					Type:  ItemModule,
					Title: fmt.Sprintf("[%s] %s", m.Name, item.Title),
					URL:   item.HTMLURL,
				})
			}
		}
	}
	return out, nil
}

func (s *Service) expandPage(ctx context.Context, cv CourseAPI, courseID int64, p canvas.Page, includeContent, fetchDocs bool) MaterialItem {
	item := MaterialItem{ID: p.PageID, Type: ItemPage, Title: p.Title, URL: p.HTMLURL}
	if !includeContent && !fetchDocs {
		return item
	}
	full, err := cv.GetPage(ctx, courseID, p.URL)
	if err != nil {
		s.logger.Debug("page not accessible", "course_id", courseID, "page", p.URL, "error", err)
		return item
	}
	if full.Body == "" {
		return item
	}
	if includeContent {
		item.Content = normalize.Text(full.Body, normalize.PageBody)
	}
	item.ContentPreview = normalize.Text(full.Body, normalize.PagePreview)
	if fetchDocs && len(docs.ExtractURLs(full.Body)) > 0 {
		item.ExternalDocs = s.docs.ResolveHTML(ctx, full.Body)
	}
	return item
}

// FindStudyGuide returns the pages and external links whose title contains
// any of terms. Nil or empty terms select DefaultStudyGuideTerms.
func (s *Service) FindStudyGuide(ctx context.Context, id identity.Identity, courseID int64, terms []string) ([]MaterialItem, error) {
	if len(terms) == 0 {
		terms = DefaultStudyGuideTerms
	}
	m, err := s.CourseMaterials(ctx, id, courseID, MaterialsOptions{IncludeContent: true, FetchExternalDocs: true})
	if err != nil {
		return nil, err
	}
	out := []MaterialItem{}
	for _, item := range append(m.Pages, m.ExternalLinks...) {
		for _, t := range terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" && strings.Contains(strings.ToLower(item.Title), t) {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

func matches(title, search string) bool {
	return search == "" || strings.Contains(strings.ToLower(title), search)
}

// PageSummary is a page listing entry.
type PageSummary struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	URLSlug   string     `json:"urlSlug"`
	URL       string     `json:"url"`
	UpdatedAt *time.Time `json:"updatedAt"`
	FrontPage bool       `json:"frontPage"`
}

// ListPages lists a course's pages without bodies.
func (s *Service) ListPages(ctx context.Context, id identity.Identity, courseID int64) ([]PageSummary, error) {
	if err := requireCourse(courseID); err != nil {
		return nil, err
	}
	pages, err := s.canvas(id).ListPages(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "course", "course %d not found", courseID)
	}
	out := make([]PageSummary, len(pages))
	for i, p := range pages {
		out[i] = PageSummary{ID: p.PageID, Title: p.Title, URLSlug: p.URL, URL: p.HTMLURL, UpdatedAt: p.UpdatedAt, FrontPage: p.FrontPage}
	}
	return out, nil
}

// PageContent is a page with its raw HTML body.
type PageContent struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Content   string     `json:"content"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// GetPage returns one page by slug.
func (s *Service) GetPage(ctx context.Context, id identity.Identity, courseID int64, pageURL string) (*PageContent, error) {
	var missing []string
	if courseID <= 0 {
		missing = append(missing, "courseId")
	}
	if strings.TrimSpace(pageURL) == "" {
		missing = append(missing, "pageUrl")
	}
	if err := apperr.Missing(missing...); err != nil {
		return nil, err
	}
	p, err := s.canvas(id).GetPage(ctx, courseID, pageURL)
	if err != nil {
		return nil, notFound(err, "page", "page %q not found in course %d", pageURL, courseID)
	}
	return &PageContent{ID: p.PageID, Title: p.Title, URL: p.HTMLURL, Content: p.Body, UpdatedAt: p.UpdatedAt}, nil
}
