package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/attune/internal/aggregate"
	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/docs"
)

type contextRequest struct {
	Student string `json:"student"`
	Days    int    `json:"days"`
}

func handleContext(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contextRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		out, err := deps.Aggregator.BuildContext(r.Context(), id, aggregate.Filters{Days: req.Days})
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type assignmentRequest struct {
	Student      string `json:"student"`
	CourseID     int64  `json:"courseId"`
	AssignmentID int64  `json:"assignmentId"`
}

func handleAssignmentContent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignmentRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		var missing []string
		if req.CourseID <= 0 {
			missing = append(missing, "courseId")
		}
		if req.AssignmentID <= 0 {
			missing = append(missing, "assignmentId")
		}
		if err := apperr.Missing(missing...); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		content, err := deps.Aggregator.AssignmentContent(r.Context(), id, req.CourseID, req.AssignmentID)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Student string `json:"student"`
			*aggregate.AssignmentContent
		}{id.Name, content})
	}
}

type materialsRequest struct {
	Student         string   `json:"student"`
	CourseID        int64    `json:"courseId"`
	Search          string   `json:"search"`
	IncludeContent  bool     `json:"includeContent"`
	FetchGoogleDocs *bool    `json:"fetchGoogleDocs"`
	SearchTerms     []string `json:"searchTerms"`
	PageURL         string   `json:"pageUrl"`
}

func handleCourseMaterials(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		fetch := req.FetchGoogleDocs == nil || *req.FetchGoogleDocs
		m, err := deps.Aggregator.CourseMaterials(r.Context(), id, req.CourseID, aggregate.MaterialsOptions{
			Search:            req.Search,
			IncludeContent:    req.IncludeContent,
			FetchExternalDocs: fetch,
		})
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Student string `json:"student"`
			*aggregate.CourseMaterials
		}{id.Name, m})
	}
}

func handleStudyGuide(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		guides, err := deps.Aggregator.FindStudyGuide(r.Context(), id, req.CourseID, req.SearchTerms)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student":     id.Name,
			"courseId":    req.CourseID,
			"studyGuides": guides,
		})
	}
}

func handleGetPage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		page, err := deps.Aggregator.GetPage(r.Context(), id, req.CourseID, req.PageURL)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student":  id.Name,
			"courseId": req.CourseID,
			"page":     page,
		})
	}
}

func handleListPages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialsRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		pages, err := deps.Aggregator.ListPages(r.Context(), id, req.CourseID)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student":  id.Name,
			"courseId": req.CourseID,
			"pages":    pages,
		})
	}
}

type resolveRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
	HTML string   `json:"html"`
}

func handleResolveDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			writeError(w, r, deps, apperr.Missing("url"))
			return
		}
		writeJSON(w, http.StatusOK, deps.Documents.Resolve(r.Context(), req.URL))
	}
}

func handleResolveAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		var out []docs.Document
		switch {
		case len(req.URLs) > 0:
			out = deps.Documents.ResolveAll(r.Context(), req.URLs)
		case req.HTML != "":
			out = deps.Documents.ResolveHTML(r.Context(), req.HTML)
		default:
			writeError(w, r, deps, apperr.Invalid("either urls array or html with embedded links is required"))
			return
		}
		if out == nil {
			out = []docs.Document{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

type fileRequest struct {
	Student  string `json:"student"`
	CourseID int64  `json:"courseId"`
	FileID   int64  `json:"fileId"`
	FolderID int64  `json:"folderId"`
}

func handleDownloadFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		f, err := deps.Aggregator.DownloadFile(r.Context(), id, req.CourseID, req.FileID)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Student string `json:"student"`
			*aggregate.FileContent
		}{id.Name, f})
	}
}

func handleListFiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Resolve(req.Student)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		files, err := deps.Aggregator.ListFiles(r.Context(), id, req.CourseID, req.FolderID)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		var folder any
		if req.FolderID > 0 {
			folder = req.FolderID
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"student":  id.Name,
			"courseId": req.CourseID,
			"folderId": folder,
			"files":    files,
		})
	}
}
