package aggregate

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/normalize"
	"github.com/kalambet/attune/internal/timewindow"
)

const (
	// MaxAttachmentText bounds text attachments.
	MaxAttachmentText = 10000
	// MaxAttachmentPDF bounds text extracted from PDF attachments.
	MaxAttachmentPDF = 20000
	// MaxInlineBytes bounds attachments returned as base64.
	MaxInlineBytes = 10 << 20

	attachmentConcurrency = 4
)

// Attachment encodings.
const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

var quizLink = regexp.MustCompile(`/courses/\d+/quizzes/(\d+)`)

// Attachment is a Canvas file attached to an assignment. Failures decoding
// one attachment are recorded in Error and never fail the request.
type Attachment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Encoding    string `json:"encoding,omitempty"`
	Method      string `json:"method,omitempty"`
	Content     string `json:"content,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AssignmentContent is one assignment with everything it links to.
type AssignmentContent struct {
	AssignmentID    int64           `json:"assignmentId"`
	CourseID        int64           `json:"courseId"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DescriptionText string          `json:"descriptionText"`
	DueAt           *time.Time      `json:"dueAt"`
	Due             string          `json:"due"`
	Points          *float64        `json:"points"`
	URL             string          `json:"url"`
	Attachments     []Attachment    `json:"attachments"`
	ExternalDocs    []docs.Document `json:"externalDocs,omitempty"`
	QuizContent     string          `json:"quizContent,omitempty"`
}

// AssignmentContent fetches an assignment, then decodes its attachments,
// resolves linked documents and pulls in a referenced quiz concurrently.
func (s *Service) AssignmentContent(ctx context.Context, id identity.Identity, courseID, assignmentID int64) (*AssignmentContent, error) {
	var missing []string
	if courseID <= 0 {
		missing = append(missing, "courseId")
	}
	if assignmentID <= 0 {
		missing = append(missing, "assignmentId")
	}
	if len(missing) > 0 {
		return nil, apperr.Missing(missing...)
	}

	cv := s.canvas(id)
	a, err := cv.GetAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return nil, notFound(err, "assignment", "assignment %d not found in course %d", assignmentID, courseID)
	}

	out := &AssignmentContent{
		AssignmentID:    a.ID,
		CourseID:        courseID,
		Name:            a.Name,
		Description:     a.Description,
		DescriptionText: normalize.Text(a.Description, normalize.FullDescription),
		DueAt:           a.DueAt,
		Due:             timewindow.FormatDisplay(a.DueAt),
		Points:          a.PointsPossible,
		URL:             a.HTMLURL,
		Attachments:     make([]Attachment, len(a.Attachments)),
	}

	var g errgroup.Group
	g.SetLimit(attachmentConcurrency + 2)
	for i, f := range a.Attachments {
		g.Go(func() error {
			out.Attachments[i] = s.decodeAttachment(ctx, cv, f)
			return nil
		})
	}
	if a.Description != "" && s.docs != nil {
		g.Go(func() error {
			out.ExternalDocs = s.docs.ResolveHTML(ctx, a.Description)
			return nil
		})
	}
	if m := quizLink.FindStringSubmatch(a.Description); m != nil {
		g.Go(func() error {
			out.QuizContent = s.quizText(ctx, cv, courseID, m[1])
			return nil
		})
	}
	g.Wait()

	if len(out.ExternalDocs) == 0 {
		out.ExternalDocs = nil
	}
	return out, nil
}

func (s *Service) quizText(ctx context.Context, cv CourseAPI, courseID int64, rawID string) string {
	quizID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return ""
	}
	q, err := cv.GetQuiz(ctx, courseID, quizID)
	if err != nil {
		s.logger.Debug("quiz not accessible", "course_id", courseID, "quiz_id", quizID, "error", err)
		return ""
	}
	return fmt.Sprintf("Quiz: %s\n\n%s", q.Title, normalize.Text(q.Description, normalize.FullDescription))
}

// decodeAttachment picks a decoding by content type: text inline, PDF
// through the extraction pipeline, images through OCR, Google-hosted files
// as a placeholder and anything else as base64.
func (s *Service) decodeAttachment(ctx context.Context, cv CourseAPI, f canvas.File) Attachment {
	att := Attachment{ID: f.ID, Name: f.DisplayName, ContentType: f.ContentType, Size: f.Size}
	ct := strings.ToLower(f.ContentType)

	if strings.Contains(ct, "google") {
		att.Encoding = EncodingText
		att.Content = fmt.Sprintf("[Google Doc: %s - External document, open in browser]", f.DisplayName)
		return att
	}
	if !isText(ct) && !strings.HasPrefix(ct, "image/") && ct != "application/pdf" && f.Size > MaxInlineBytes {
		att.Error = fmt.Sprintf("file too large to inline (%d bytes)", f.Size)
		return att
	}

	data, err := cv.Download(ctx, f.URL)
	if err != nil {
		att.Error = fmt.Sprintf("downloading: %v", err)
		return att
	}

	switch {
	case isText(ct):
		att.Encoding = EncodingText
		att.Content = normalize.Clip(string(data), MaxAttachmentText)
	case ct == "application/pdf":
		if s.pdf == nil {
			att.Error = "PDF extraction is not configured"
			return att
		}
		res, err := s.pdf.Extract(ctx, data)
		if err != nil {
			att.Error = fmt.Sprintf("extracting PDF: %v", err)
			return att
		}
		att.Encoding = EncodingText
		att.Method = string(res.Method)
		att.Content = normalize.Clip(res.Text, MaxAttachmentPDF)
	case strings.HasPrefix(ct, "image/"):
		if s.ocr == nil {
			att.Error = errNoOCR.Error()
			return att
		}
		text, err := s.ocr.Recognize(ctx, data)
		if err != nil {
			att.Error = fmt.Sprintf("recognizing image: %v", err)
			return att
		}
		att.Encoding = EncodingText
		att.Method = "ocr"
		att.Content = normalize.Clip(strings.TrimSpace(text), MaxAttachmentText)
	default:
		if len(data) > MaxInlineBytes {
			att.Error = fmt.Sprintf("file too large to inline (%d bytes)", len(data))
			return att
		}
		att.Encoding = EncodingBase64
		att.Content = base64.StdEncoding.EncodeToString(data)
	}
	return att
}

// isText reports whether a content type can be returned as text.
func isText(ct string) bool {
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "javascript") ||
		strings.Contains(ct, "markdown")
}
