package aggregate

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/canvas"
)

func materialsCanvas() *fakeCanvas {
	return &fakeCanvas{
		pages: map[int64][]canvas.Page{
			10: {
				{PageID: 1, URL: "unit-1-study-guide", Title: "Unit 1 Study Guide", HTMLURL: "https://canvas.example/p/1"},
				{PageID: 2, URL: "syllabus", Title: "Syllabus", FrontPage: true},
				{PageID: 3, URL: "locked-review", Title: "Locked Review"},
			},
		},
		bodies: map[string]string{
			"unit-1-study-guide": `<h1>Guide</h1><p>See <a href="https://docs.google.com/spreadsheets/d/sheet9/edit">the sheet</a></p>`,
			"syllabus":           "<p>" + strings.Repeat("word ", 100) + "</p>",
		},
		failPage: "locked-review",
		modules: map[int64][]canvas.Module{
			10: {{
				Name: "Week 1",
				Items: []canvas.ModuleItem{
					{ID: 100, Title: "Week 1", Type: canvas.ItemSubHeader},
					{ID: 101, Title: "Unit 1 Study Guide", Type: canvas.ItemPage, PageURL: "unit-1-study-guide"},
					{ID: 102, Title: "Review slides", Type: canvas.ItemExternalURL, ExternalURL: "https://drive.google.com/file/d/pdf42/view"},
					{ID: 103, Title: "Khan video", Type: canvas.ItemExternalURL, ExternalURL: "https://khan.example/v"},
					{ID: 104, Title: "Homework 1", Type: "Assignment", HTMLURL: "https://canvas.example/a/1"},
				},
			}},
		},
	}
}

func TestCourseMaterials(t *testing.T) {
	d := &fakeDocs{}
	s := newTestService(materialsCanvas(), Options{Documents: d})

	got, err := s.CourseMaterials(context.Background(), studentMax, 10, MaterialsOptions{IncludeContent: true, FetchExternalDocs: true})
	if err != nil {
		t.Fatalf("CourseMaterials: %v", err)
	}
	if len(got.Pages) != 3 {
		t.Fatalf("pages = %d", len(got.Pages))
	}
	guide := got.Pages[0]
	if guide.Content != "Guide See the sheet" || len(guide.ExternalDocs) != 1 {
		t.Errorf("guide = %+v", guide)
	}
	syl := got.Pages[1]
	if len([]rune(syl.ContentPreview)) != 200 || !strings.HasSuffix(syl.ContentPreview, "...") {
		t.Errorf("preview = %q", syl.ContentPreview)
	}
	if syl.ExternalDocs != nil {
		t.Error("page without hosted links should not resolve documents")
	}
	if locked := got.Pages[2]; locked.Title != "Locked Review" || locked.Content != "" {
		t.Errorf("inaccessible page = %+v", locked)
	}

	if len(got.ExternalLinks) != 2 {
		t.Fatalf("external links = %+v", got.ExternalLinks)
	}
	if len(got.ExternalLinks[0].ExternalDocs) != 1 || got.ExternalLinks[1].ExternalDocs != nil {
		t.Errorf("external link docs = %+v", got.ExternalLinks)
	}
	if len(got.ModuleItems) != 1 || got.ModuleItems[0].Title != "[Week 1] Homework 1" {
		t.Errorf("module items = %+v", got.ModuleItems)
	}
}

func TestCourseMaterialsSearch(t *testing.T) {
	cv := materialsCanvas()
	d := &fakeDocs{}
	s := newTestService(cv, Options{Documents: d})

	got, err := s.CourseMaterials(context.Background(), studentMax, 10, MaterialsOptions{Search: "REVIEW"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Pages) != 1 || got.Pages[0].Title != "Locked Review" {
		t.Errorf("pages = %+v", got.Pages)
	}
	if len(got.ExternalLinks) != 1 || got.ExternalLinks[0].Title != "Review slides" {
		t.Errorf("links = %+v", got.ExternalLinks)
	}
	if len(got.ModuleItems) != 0 {
		t.Errorf("module items = %+v", got.ModuleItems)
	}
	if d.calls.Load() != 0 {
		t.Error("documents resolved without FetchExternalDocs")
	}
}

func TestCourseMaterialsPageCap(t *testing.T) {
	cv := &fakeCanvas{pages: map[int64][]canvas.Page{}, bodies: map[string]string{}}
	for i := range 25 {
		cv.pages[1] = append(cv.pages[1], canvas.Page{PageID: int64(i), URL: "p", Title: "Page"})
	}
	s := newTestService(cv, Options{})

	got, err := s.CourseMaterials(context.Background(), studentMax, 1, MaterialsOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Pages) != MaxMaterialPages {
		t.Errorf("pages = %d, want %d", len(got.Pages), MaxMaterialPages)
	}
}

func TestCourseMaterialsUnknownCourse(t *testing.T) {
	s := newTestService(materialsCanvas(), Options{})
	_, err := s.CourseMaterials(context.Background(), studentMax, 99, MaterialsOptions{})
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("err = %v", err)
	}
}

func TestFindStudyGuide(t *testing.T) {
	s := newTestService(materialsCanvas(), Options{Documents: &fakeDocs{}})

	got, err := s.FindStudyGuide(context.Background(), studentMax, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, item := range got {
		titles = append(titles, item.Title)
	}
	if strings.Join(titles, ",") != "Unit 1 Study Guide,Locked Review,Review slides" {
		t.Errorf("titles = %v", titles)
	}

	got, err = s.FindStudyGuide(context.Background(), studentMax, 10, []string{"khan"})
	if err != nil || len(got) != 1 || got[0].Title != "Khan video" {
		t.Errorf("custom terms = %+v, %v", got, err)
	}
}

func TestListAndGetPage(t *testing.T) {
	s := newTestService(materialsCanvas(), Options{})
	ctx := context.Background()

	pages, err := s.ListPages(ctx, studentMax, 10)
	if err != nil || len(pages) != 3 || pages[1].URLSlug != "syllabus" || !pages[1].FrontPage {
		t.Errorf("ListPages = %+v, %v", pages, err)
	}

	p, err := s.GetPage(ctx, studentMax, 10, "syllabus")
	if err != nil || !strings.HasPrefix(p.Content, "<p>word") {
		t.Errorf("GetPage = %+v, %v", p, err)
	}

	_, err = s.GetPage(ctx, studentMax, 10, "nope")
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing page: %v", err)
	}
	_, err = s.GetPage(ctx, studentMax, 10, " ")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("blank page url: %v", err)
	}
}

func TestDownloadFile(t *testing.T) {
	cv := &fakeCanvas{
		files: map[int64]canvas.File{
			501: {ID: 501, DisplayName: "data.json", ContentType: "application/json", URL: "u/json"},
			502: {ID: 502, DisplayName: "scan.pdf", ContentType: "application/pdf", URL: "u/pdf"},
			301: {ID: 301, DisplayName: "other.txt", ContentType: "text/plain", URL: "u/other"},
		},
		downloads: map[string][]byte{"u/json": []byte(`{"a":1}`), "u/pdf": []byte("%PDF-1.4")},
	}
	s := newTestService(cv, Options{})
	ctx := context.Background()

	f, err := s.DownloadFile(ctx, studentMax, 10, 501)
	if err != nil || f.Encoding != EncodingText || f.Content != `{"a":1}` || f.File.Name != "data.json" {
		t.Errorf("json file = %+v, %v", f, err)
	}
	f, err = s.DownloadFile(ctx, studentMax, 10, 502)
	if err != nil || f.Encoding != EncodingBase64 || f.Content != base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")) {
		t.Errorf("pdf file = %+v, %v", f, err)
	}
	_, err = s.DownloadFile(ctx, studentMax, 10, 999)
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing file: %v", err)
	}

	files, err := s.ListFiles(ctx, studentMax, 10, 5)
	if err != nil || len(files) != 2 {
		t.Errorf("ListFiles(folder 5) = %+v, %v", files, err)
	}
	if _, err := s.ListFiles(ctx, studentMax, 0, 0); err == nil {
		t.Error("expected validation error")
	}
}
