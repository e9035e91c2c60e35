package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/reflections"
	"github.com/kalambet/attune/internal/weeklyemail"
)

func handleListSyllabi(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Syllabi.List()
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		summary, err := deps.Syllabi.WeightSummary()
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"syllabi": all, "summary": summary})
	}
}

func handleSyllabusWeights(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := deps.Syllabi.WeightSummary()
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"weights": summary})
	}
}

func handleGetSyllabus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Syllabi.Get(chi.URLParam(r, "course"))
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"syllabus": s})
	}
}

type syllabusRequest struct {
	CourseName string   `json:"courseName"`
	Category   string   `json:"category"`
	Score      *float64 `json:"score"`
	MaxScore   *float64 `json:"maxScore"`
}

func handleMatchSyllabus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syllabusRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		if strings.TrimSpace(req.CourseName) == "" {
			writeError(w, r, deps, apperr.Missing("courseName"))
			return
		}
		s, ok, err := deps.Syllabi.Match(req.CourseName)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"matched": false, "courseName": req.CourseName})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matched": true, "courseName": req.CourseName, "syllabus": s})
	}
}

func handleGradeImpact(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syllabusRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		var missing []string
		if strings.TrimSpace(req.CourseName) == "" {
			missing = append(missing, "courseName")
		}
		if strings.TrimSpace(req.Category) == "" {
			missing = append(missing, "category")
		}
		if req.Score == nil {
			missing = append(missing, "score")
		}
		if req.MaxScore == nil {
			missing = append(missing, "maxScore")
		}
		if err := apperr.Missing(missing...); err != nil {
			writeError(w, r, deps, err)
			return
		}
		impact, err := deps.Syllabi.GradeImpact(req.CourseName, req.Category, *req.Score, *req.MaxScore)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, impact)
	}
}

func reflectionStore(deps Deps) (Reflections, error) {
	if deps.Reflections == nil {
		return nil, fmt.Errorf("reflections: %w (set Google credentials)", errNotConfigured)
	}
	return deps.Reflections, nil
}

type reflectionRequest struct {
	Who     string   `json:"who"`
	Text    string   `json:"text"`
	Threads []string `json:"threads"`
	N       int      `json:"n"`
}

func handleSaveReflection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := reflectionStore(deps)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		var req reflectionRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		res, err := store.Save(r.Context(), req.Who, req.Text, req.Threads)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         true,
			"fileId":     res.FileID,
			"fileName":   store.FileName(),
			"appendedAt": res.SavedAt,
		})
	}
}

func handleRecentReflections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := reflectionStore(deps)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		var req reflectionRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		recs, err := store.Recent(r.Context(), req.N)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		if recs == nil {
			recs = []reflections.Reflection{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(recs), "reflections": recs})
	}
}

func handleCleanupReflections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := reflectionStore(deps)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		res, err := store.Deduplicate(r.Context())
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":           true,
			"removedCount": res.Removed,
			"cleanedAt":    res.CleanedAt,
		})
	}
}

func handleGetWeeklyEmail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deps.Registry.Require(r.URL.Query().Get("student"), identity.WeeklyEmail)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		var email weeklyemail.Email
		if weekOf := r.URL.Query().Get("weekOf"); weekOf != "" {
			email, err = deps.WeeklyEmails.ForWeek(id.Name, weekOf)
		} else {
			email, err = deps.WeeklyEmails.Latest(id.Name)
		}
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusOK, email)
	}
}

func handleSaveWeeklyEmail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req weeklyemail.Email
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, deps, err)
			return
		}
		id, err := deps.Registry.Require(req.Student, identity.WeeklyEmail)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		req.Student = id.Name
		req.UpdatedAt = ""
		saved, err := deps.WeeklyEmails.Save(req)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleWeeklyEmailHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id, err := deps.Registry.Require(q.Get("student"), identity.WeeklyEmail)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		limit := weeklyemail.DefaultHistory
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, r, deps, apperr.Invalid("limit must be a positive integer"))
				return
			}
			limit = n
		}
		emails, err := deps.WeeklyEmails.History(id.Name, limit)
		if err != nil {
			writeError(w, r, deps, err)
			return
		}
		if emails == nil {
			emails = []weeklyemail.Email{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"student": id.Name, "emails": emails})
	}
}
