// Package canvas is a thin client for the Canvas LMS REST API, scoped to a
// single student's credentials.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/attune/internal/apperr"
)

const (
	serviceName      = "Canvas"
	DefaultTimeout   = 30 * time.Second
	MaxDownloadBytes = 25 << 20
)

// ErrTooLarge is returned by Download when the body exceeds MaxDownloadBytes.
var ErrTooLarge = errors.New("canvas: file exceeds download limit")

// Client calls the Canvas API with one student's bearer token. It does not
// retry; non-2xx responses are returned as *apperr.UpstreamError.
type Client struct {
	baseURL    string
	token      string
	studentID  string
	httpClient *http.Client
}

// NewClient creates a client for the Canvas instance at baseURL. A nil
// httpClient gets one with DefaultTimeout.
func NewClient(baseURL, token, studentID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		studentID:  studentID,
		httpClient: httpClient,
	}
}

// BaseURL returns the Canvas instance root.
func (c *Client) BaseURL() string { return c.baseURL }

// ListCourses returns the student's active enrollments with total scores.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	q := url.Values{
		"per_page":         {"100"},
		"enrollment_state": {"active"},
		"include[]":        {"total_scores"},
	}
	var out []Course
	if err := c.getJSON(ctx, "/api/v1/users/"+url.PathEscape(c.studentID)+"/courses", q, &out); err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return out, nil
}

// ListAssignments returns every assignment in a course with the student's submission.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	q := url.Values{
		"per_page":  {"100"},
		"include[]": {"submission", "assignment_visibility", "overrides", "description"},
	}
	var out []Assignment
	if err := c.getJSON(ctx, coursePath(courseID, "assignments"), q, &out); err != nil {
		return nil, fmt.Errorf("listing assignments for course %d: %w", courseID, err)
	}
	return out, nil
}

// ListSubmissions returns the student's submissions in a course.
func (c *Client) ListSubmissions(ctx context.Context, courseID int64) ([]Submission, error) {
	q := url.Values{
		"per_page":      {"50"},
		"student_ids[]": {c.studentID},
		"include[]":     {"assignment"},
	}
	var out []Submission
	if err := c.getJSON(ctx, coursePath(courseID, "students", "submissions"), q, &out); err != nil {
		return nil, fmt.Errorf("listing submissions for course %d: %w", courseID, err)
	}
	return out, nil
}

// GetAssignment returns one assignment with its attachments.
func (c *Client) GetAssignment(ctx context.Context, courseID, assignmentID int64) (Assignment, error) {
	var out Assignment
	if err := c.getJSON(ctx, coursePath(courseID, "assignments", id(assignmentID)), nil, &out); err != nil {
		return Assignment{}, fmt.Errorf("getting assignment %d: %w", assignmentID, err)
	}
	return out, nil
}

// GetQuiz returns a quiz's title and description.
func (c *Client) GetQuiz(ctx context.Context, courseID, quizID int64) (Quiz, error) {
	var out Quiz
	if err := c.getJSON(ctx, coursePath(courseID, "quizzes", id(quizID)), nil, &out); err != nil {
		return Quiz{}, fmt.Errorf("getting quiz %d: %w", quizID, err)
	}
	return out, nil
}

// ListPages returns the course's wiki pages without bodies.
func (c *Client) ListPages(ctx context.Context, courseID int64) ([]Page, error) {
	var out []Page
	if err := c.getJSON(ctx, coursePath(courseID, "pages"), url.Values{"per_page": {"100"}}, &out); err != nil {
		return nil, fmt.Errorf("listing pages for course %d: %w", courseID, err)
	}
	return out, nil
}

// GetPage returns one page, body included. pageURL is the page's slug.
func (c *Client) GetPage(ctx context.Context, courseID int64, pageURL string) (Page, error) {
	var out Page
	if err := c.getJSON(ctx, coursePath(courseID, "pages", pageURL), nil, &out); err != nil {
		return Page{}, fmt.Errorf("getting page %q: %w", pageURL, err)
	}
	return out, nil
}

// ListModules returns the course's modules with their items.
func (c *Client) ListModules(ctx context.Context, courseID int64) ([]Module, error) {
	q := url.Values{"per_page": {"100"}, "include[]": {"items"}}
	var out []Module
	if err := c.getJSON(ctx, coursePath(courseID, "modules"), q, &out); err != nil {
		return nil, fmt.Errorf("listing modules for course %d: %w", courseID, err)
	}
	return out, nil
}

// GetFile returns a file's metadata, including its download URL.
func (c *Client) GetFile(ctx context.Context, courseID, fileID int64) (File, error) {
	var out File
	if err := c.getJSON(ctx, coursePath(courseID, "files", id(fileID)), nil, &out); err != nil {
		return File{}, fmt.Errorf("getting file %d: %w", fileID, err)
	}
	return out, nil
}

// ListFiles lists files in a folder, or in the whole course when folderID is 0.
func (c *Client) ListFiles(ctx context.Context, courseID, folderID int64) ([]File, error) {
	path := coursePath(courseID, "files")
	if folderID != 0 {
		path = "/api/v1/folders/" + id(folderID) + "/files"
	}
	var out []File
	if err := c.getJSON(ctx, path, url.Values{"per_page": {"100"}}, &out); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return out, nil
}

// DownloadFile fetches a file's metadata and then its bytes.
func (c *Client) DownloadFile(ctx context.Context, courseID, fileID int64) (File, []byte, error) {
	f, err := c.GetFile(ctx, courseID, fileID)
	if err != nil {
		return File{}, nil, err
	}
	data, err := c.Download(ctx, f.URL)
	if err != nil {
		return File{}, nil, fmt.Errorf("downloading file %d: %w", fileID, err)
	}
	return f, data, nil
}

// Download fetches an authenticated Canvas download URL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// IsNotFound reports whether err is a Canvas 404.
func IsNotFound(err error) bool {
	var up *apperr.UpstreamError
	return errors.As(err, &up) && up.Status == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.do(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, apperr.Upstream(serviceName, resp.StatusCode, string(body))
	}
	return resp, nil
}

func coursePath(courseID int64, parts ...string) string {
	p := "/api/v1/courses/" + id(courseID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func id(n int64) string { return strconv.FormatInt(n, 10) }
