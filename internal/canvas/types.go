package canvas

import "time"

// Enrollment is a user's enrollment in a course, with computed grades when
// the course was listed with total_scores.
type Enrollment struct {
	Type                 string   `json:"type"`
	ComputedCurrentScore *float64 `json:"computed_current_score"`
	ComputedCurrentGrade *string  `json:"computed_current_grade"`
	ComputedFinalScore   *float64 `json:"computed_final_score"`
	ComputedFinalGrade   *string  `json:"computed_final_grade"`
}

type Course struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	CourseCode    string       `json:"course_code"`
	WorkflowState string       `json:"workflow_state"`
	Enrollments   []Enrollment `json:"enrollments"`
}

// Active reports whether the course is published and available.
func (c Course) Active() bool { return c.WorkflowState == "available" }

// StudentEnrollment returns the first enrollment of type "student".
func (c Course) StudentEnrollment() (Enrollment, bool) {
	for _, e := range c.Enrollments {
		if e.Type == "student" {
			return e, true
		}
	}
	return Enrollment{}, false
}

// SubmissionSummary is the submission embedded in an assignment listing.
type SubmissionSummary struct {
	WorkflowState string     `json:"workflow_state"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	Score         *float64   `json:"score"`
	GradedAt      *time.Time `json:"graded_at"`
}

type Assignment struct {
	ID              int64              `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	DueAt           *time.Time         `json:"due_at"`
	PointsPossible  *float64           `json:"points_possible"`
	HTMLURL         string             `json:"html_url"`
	WorkflowState   string             `json:"workflow_state"`
	SubmissionTypes []string           `json:"submission_types"`
	Submission      *SubmissionSummary `json:"submission"`
	Attachments     []File             `json:"attachments"`
}

// Status is the student's submission state if known, else the assignment's own state.
func (a Assignment) Status() string {
	if a.Submission != nil && a.Submission.WorkflowState != "" {
		return a.Submission.WorkflowState
	}
	return a.WorkflowState
}

// SubmissionAssignment is the assignment embedded in a submission listing.
type SubmissionAssignment struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	PointsPossible *float64 `json:"points_possible"`
	HTMLURL        string   `json:"html_url"`
}

type Submission struct {
	ID            int64                 `json:"id"`
	AssignmentID  int64                 `json:"assignment_id"`
	WorkflowState string                `json:"workflow_state"`
	SubmittedAt   *time.Time            `json:"submitted_at"`
	GradedAt      *time.Time            `json:"graded_at"`
	Score         *float64              `json:"score"`
	Assignment    *SubmissionAssignment `json:"assignment"`
}

// Graded reports whether the submission has a grade and its assignment attached.
func (s Submission) Graded() bool {
	return s.GradedAt != nil && s.Score != nil && s.Assignment != nil
}

type Page struct {
	PageID    int64      `json:"page_id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	HTMLURL   string     `json:"html_url"`
	Body      string     `json:"body"`
	Published bool       `json:"published"`
	FrontPage bool       `json:"front_page"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type Module struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Items    []ModuleItem `json:"items"`
}

// Module item types.
const (
	ItemPage        = "Page"
	ItemExternalURL = "ExternalUrl"
	ItemSubHeader   = "SubHeader"
)

type ModuleItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	HTMLURL     string `json:"html_url"`
	ExternalURL string `json:"external_url"`
	PageURL     string `json:"page_url"`
	ContentID   int64  `json:"content_id"`
}

type File struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"display_name"`
	Filename    string     `json:"filename"`
	URL         string     `json:"url"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content-type"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type Quiz struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	QuestionCount int        `json:"question_count"`
	DueAt         *time.Time `json:"due_at"`
}
