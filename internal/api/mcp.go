package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/attune/internal/aggregate"
	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/identity"
)

// NewMCPServer creates an MCP server exposing the read and journal
// operations as tools.
func NewMCPServer(deps Deps) *server.MCPServer {
	deps = deps.withDefaults()

	s := server.NewMCPServer(
		"attune",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("attune: one student's courses, deadlines, grades, calendar, syllabi and family reflections."),
		server.WithRecovery(),
	)

	studentArg := mcp.WithString("student", mcp.Description("Student name; omit for the default student"))

	s.AddTool(
		mcp.NewTool("build_context",
			mcp.WithDescription("Upcoming assignments, calendar events, grades and recent scores for a student."),
			studentArg,
			mcp.WithNumber("days", mcp.Description("Look-ahead window in days, 1-30 (default 7)")),
		),
		mcpBuildContext(deps),
	)

	s.AddTool(
		mcp.NewTool("assignment_content",
			mcp.WithDescription("Full description, attachments, linked documents and quiz details of one assignment."),
			studentArg,
			mcp.WithNumber("courseId", mcp.Description("Course id"), mcp.Required()),
			mcp.WithNumber("assignmentId", mcp.Description("Assignment id"), mcp.Required()),
		),
		mcpAssignmentContent(deps),
	)

	s.AddTool(
		mcp.NewTool("course_materials",
			mcp.WithDescription("Pages, module items and external links of a course."),
			studentArg,
			mcp.WithNumber("courseId", mcp.Description("Course id"), mcp.Required()),
			mcp.WithString("search", mcp.Description("Keep only items whose title contains this text")),
			mcp.WithBoolean("includeContent", mcp.Description("Include page bodies as plain text")),
			mcp.WithBoolean("fetchGoogleDocs", mcp.Description("Resolve linked Google documents (default true)")),
		),
		mcpCourseMaterials(deps),
	)

	s.AddTool(
		mcp.NewTool("find_study_guide",
			mcp.WithDescription("Find study guides and review materials in a course."),
			studentArg,
			mcp.WithNumber("courseId", mcp.Description("Course id"), mcp.Required()),
			mcp.WithArray("searchTerms", mcp.Description("Title terms to look for (default: study guide, review, test prep, ...)"), mcp.WithStringItems()),
		),
		mcpFindStudyGuide(deps),
	)

	s.AddTool(
		mcp.NewTool("resolve_document",
			mcp.WithDescription("Fetch a Google Doc, Sheet or Drive PDF link as plain text."),
			mcp.WithString("url", mcp.Description("Document URL"), mcp.Required()),
		),
		mcpResolveDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("get_syllabus",
			mcp.WithDescription("Syllabus for a course by slug, alias or title. Without a course, lists every course's grade weights."),
			mcp.WithString("course", mcp.Description("Course slug, alias or title")),
		),
		mcpGetSyllabus(deps),
	)

	s.AddTool(
		mcp.NewTool("match_syllabus",
			mcp.WithDescription("Match a course name as shown in Canvas to its syllabus, optionally estimating a score's grade impact."),
			mcp.WithString("courseName", mcp.Description("Course name"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Grade category for an impact estimate")),
			mcp.WithNumber("score", mcp.Description("Points earned")),
			mcp.WithNumber("maxScore", mcp.Description("Points possible")),
		),
		mcpMatchSyllabus(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_reflections",
			mcp.WithDescription("Most recent family reflections, newest first."),
			mcp.WithNumber("n", mcp.Description("Number of reflections, 1-100 (default 8)")),
		),
		mcpRecentReflections(deps),
	)

	s.AddTool(
		mcp.NewTool("save_reflection",
			mcp.WithDescription("Append a reflection to the shared journal."),
			mcp.WithString("who", mcp.Description("Author"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Reflection text"), mcp.Required()),
			mcp.WithArray("threads", mcp.Description("Topic threads"), mcp.WithStringItems()),
		),
		mcpSaveReflection(deps),
	)

	s.AddTool(
		mcp.NewTool("weekly_email",
			mcp.WithDescription("Latest school weekly email for a student, or the one for a given week."),
			studentArg,
			mcp.WithString("weekOf", mcp.Description("Week start date, e.g. 2025-01-13")),
		),
		mcpWeeklyEmail(deps),
	)

	return s
}

func mcpBuildContext(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := deps.Registry.Resolve(req.GetString("student", ""))
		if err != nil {
			return mcpFailure(err), nil
		}
		out, err := deps.Aggregator.BuildContext(ctx, id, aggregate.Filters{Days: req.GetInt("days", 0)})
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(out), nil
	}
}

func mcpAssignmentContent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		courseID, err := req.RequireInt("courseId")
		if err != nil {
			return mcpError("courseId is required"), nil
		}
		assignmentID, err := req.RequireInt("assignmentId")
		if err != nil {
			return mcpError("assignmentId is required"), nil
		}
		id, err := deps.Registry.Resolve(req.GetString("student", ""))
		if err != nil {
			return mcpFailure(err), nil
		}
		out, err := deps.Aggregator.AssignmentContent(ctx, id, int64(courseID), int64(assignmentID))
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(out), nil
	}
}

func mcpCourseMaterials(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		courseID, err := req.RequireInt("courseId")
		if err != nil {
			return mcpError("courseId is required"), nil
		}
		id, err := deps.Registry.Resolve(req.GetString("student", ""))
		if err != nil {
			return mcpFailure(err), nil
		}
		out, err := deps.Aggregator.CourseMaterials(ctx, id, int64(courseID), aggregate.MaterialsOptions{
			Search:            req.GetString("search", ""),
			IncludeContent:    req.GetBool("includeContent", false),
			FetchExternalDocs: req.GetBool("fetchGoogleDocs", true),
		})
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(out), nil
	}
}

func mcpFindStudyGuide(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		courseID, err := req.RequireInt("courseId")
		if err != nil {
			return mcpError("courseId is required"), nil
		}
		id, err := deps.Registry.Resolve(req.GetString("student", ""))
		if err != nil {
			return mcpFailure(err), nil
		}
		out, err := deps.Aggregator.FindStudyGuide(ctx, id, int64(courseID), req.GetStringSlice("searchTerms", nil))
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(out), nil
	}
}

func mcpResolveDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil || strings.TrimSpace(url) == "" {
			return mcpError("url is required"), nil
		}
		doc := deps.Documents.Resolve(ctx, url)
		if !doc.OK() {
			return mcpError(fmt.Sprintf("could not resolve %s: %s", url, doc.Error)), nil
		}
		return mcpJSON(doc), nil
	}
}

func mcpGetSyllabus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		course := req.GetString("course", "")
		if strings.TrimSpace(course) == "" {
			summary, err := deps.Syllabi.WeightSummary()
			if err != nil {
				return mcpFailure(err), nil
			}
			return mcpJSON(summary), nil
		}
		s, err := deps.Syllabi.Get(course)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(s), nil
	}
}

func mcpMatchSyllabus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("courseName")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcpError("courseName is required"), nil
		}
		if category := req.GetString("category", ""); category != "" {
			score, err := req.RequireFloat("score")
			if err != nil {
				return mcpError("score is required with category"), nil
			}
			maxScore, err := req.RequireFloat("maxScore")
			if err != nil {
				return mcpError("maxScore is required with category"), nil
			}
			impact, err := deps.Syllabi.GradeImpact(name, category, score, maxScore)
			if err != nil {
				return mcpFailure(err), nil
			}
			return mcpJSON(impact), nil
		}
		s, ok, err := deps.Syllabi.Match(name)
		if err != nil {
			return mcpFailure(err), nil
		}
		if !ok {
			return mcpJSON(map[string]any{"matched": false, "courseName": name}), nil
		}
		return mcpJSON(map[string]any{"matched": true, "courseName": name, "syllabus": s}), nil
	}
}

func mcpRecentReflections(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		store, err := reflectionStore(deps)
		if err != nil {
			return mcpFailure(err), nil
		}
		recs, err := store.Recent(ctx, req.GetInt("n", 0))
		if err != nil {
			return mcpFailure(err), nil
		}
		if len(recs) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(recs), nil
	}
}

func mcpSaveReflection(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		store, err := reflectionStore(deps)
		if err != nil {
			return mcpFailure(err), nil
		}
		who, err := req.RequireString("who")
		if err != nil {
			return mcpError("who is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		res, err := store.Save(ctx, who, text, req.GetStringSlice("threads", nil))
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpText(fmt.Sprintf("Saved reflection to %s at %s", store.FileName(), res.SavedAt)), nil
	}
}

func mcpWeeklyEmail(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := deps.Registry.Require(req.GetString("student", ""), identity.WeeklyEmail)
		if err != nil {
			return mcpFailure(err), nil
		}
		if weekOf := req.GetString("weekOf", ""); weekOf != "" {
			email, err := deps.WeeklyEmails.ForWeek(id.Name, weekOf)
			if err != nil {
				return mcpFailure(err), nil
			}
			return mcpJSON(email), nil
		}
		email, err := deps.WeeklyEmails.Latest(id.Name)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(email), nil
	}
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

// mcpFailure renders err for a tool caller, appending not-found hints.
func mcpFailure(err error) *mcp.CallToolResult {
	msg := err.Error()
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) && len(nf.Hints) > 0 {
		keys := make([]string, 0, len(nf.Hints))
		for k := range nf.Hints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg += fmt.Sprintf("; %s: %v", k, nf.Hints[k])
		}
	}
	return mcpError(msg)
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
