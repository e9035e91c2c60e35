// Package syllabus parses markdown course syllabi into grade weights and key
// policies and matches free-text course names to them.
package syllabus

import (
	"regexp"
	"strconv"
	"strings"
)

// UnknownCourse is the title used when a document has no top-level heading.
const UnknownCourse = "Unknown Course"

type GradeWeight struct {
	Category string `json:"category"`
	Weight   int    `json:"weight"`
	Notes    string `json:"notes,omitempty"`
}

type Policy struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Syllabus is derived from one markdown document on every read.
type Syllabus struct {
	Course       string        `json:"course"`
	Slug         string        `json:"slug"`
	Teacher      string        `json:"teacher,omitempty"`
	Email        string        `json:"email,omitempty"`
	Room         string        `json:"room,omitempty"`
	OfficeHours  string        `json:"officeHours,omitempty"`
	GradeWeights []GradeWeight `json:"gradeWeights"`
	KeyPolicies  []Policy      `json:"keyPolicies"`
	Source       string        `json:"rawMarkdown"`
}

var (
	titlePattern  = regexp.MustCompile(`(?m)^#\s+([^\n]+)`)
	weightPattern = regexp.MustCompile(`\|\s*([^|]+?)\s*\|\s*(\d+)%`)
	notesPattern  = regexp.MustCompile(`\|\s*[^|]+\s*\|\s*\d+%\s*\|\s*([^|]+)\s*\|`)

	teacherPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\*\*Teacher:\*\*\s*([^\n*]+)`),
		regexp.MustCompile(`(?i)\*\*Instructors?:\*\*\s*([^\n*]+)`),
	}
	emailLabel   = regexp.MustCompile(`(?i)\*\*Email:\*\*\s*([^\n*]+)`)
	roomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\*\*Rooms?:\*\*\s*([^\n*]+)`),
		regexp.MustCompile(`(?i)\*\*Classroom:\*\*\s*([^\n*]+)`),
	}
	officeHoursPattern = regexp.MustCompile(`(?i)\*\*Office Hours:\*\*\s*([^\n*]+)`)
	anyEmail           = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	policyPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"Late Work", regexp.MustCompile(`(?i)late.*?(?:work|assignment).*?:\s*[^\n]+`)},
		{"Retakes", regexp.MustCompile(`(?i)retak(?:e|ing).*?:\s*[^\n]+`)},
		{"Redo Policy", regexp.MustCompile(`(?i)redo.*?:\s*[^\n]+`)},
		{"Extensions", regexp.MustCompile(`(?i)extension.*?:\s*[^\n]+`)},
		{"Drop Policy", regexp.MustCompile(`(?i)drop.*?(?:lowest|grade|score).*?[^\n]+`)},
	}
	policyLead = regexp.MustCompile(`^[#*-]\s*`)

	highlightPattern = regexp.MustCompile(`(?:🔄|✅|⚠️?|🌟|📊|🎯)\s*\*\*[^*]+\*\*[^*\n]*`)
	highlightMarker  = regexp.MustCompile(`(?:🔄|✅|⚠️?|🌟|📊|🎯)\s*\*\*`)
)

// headerCells are first-column labels of table header rows.
var headerCells = map[string]bool{"category": true, "grade": true}

const highlightOverlap = 20

// Parser extracts structure from syllabus markdown.
type Parser struct {
	emailPattern *regexp.Regexp
}

// NewParser returns a Parser. When emailDomain is set, unlabeled email
// addresses are only recognized in that domain.
func NewParser(emailDomain string) *Parser {
	p := &Parser{emailPattern: anyEmail}
	if emailDomain != "" {
		p.emailPattern = regexp.MustCompile(`(?i)[A-Za-z0-9._%+-]+@` + regexp.QuoteMeta(emailDomain))
	}
	return p
}

// Parse derives a Syllabus from markdown. slug identifies the source document.
func (p *Parser) Parse(slug, markdown string) Syllabus {
	s := Syllabus{
		Course:       UnknownCourse,
		Slug:         slug,
		GradeWeights: parseWeights(markdown),
		KeyPolicies:  parsePolicies(markdown),
		Source:       markdown,
	}
	if m := titlePattern.FindStringSubmatch(markdown); m != nil {
		s.Course = strings.TrimSpace(m[1])
	}
	s.Teacher = firstField(markdown, teacherPatterns...)
	s.Email = firstField(markdown, emailLabel)
	if s.Email == "" {
		s.Email = p.emailPattern.FindString(markdown)
	}
	s.Room = firstField(markdown, roomPatterns...)
	s.OfficeHours = firstField(markdown, officeHoursPattern)
	return s
}

func firstField(markdown string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(markdown); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// parseWeights reads "| Category | NN% | notes |" rows in document order.
func parseWeights(markdown string) []GradeWeight {
	var weights []GradeWeight
	for _, line := range strings.Split(markdown, "\n") {
		m := weightPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		category := strings.TrimSpace(m[1])
		if headerCells[strings.ToLower(category)] || strings.HasPrefix(category, "-") || strings.HasPrefix(category, ":") {
			continue
		}
		weight, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		w := GradeWeight{Category: category, Weight: weight}
		if n := notesPattern.FindStringSubmatch(line); n != nil {
			w.Notes = strings.TrimSpace(n[1])
		}
		weights = append(weights, w)
	}
	return weights
}

// parsePolicies runs the keyword patterns, then adds emoji-marked bold
// callouts that do not repeat an existing entry.
func parsePolicies(markdown string) []Policy {
	var policies []Policy
	for _, pp := range policyPatterns {
		if m := pp.re.FindString(markdown); m != "" {
			policies = append(policies, Policy{
				Name:        pp.name,
				Description: strings.TrimSpace(policyLead.ReplaceAllString(m, "")),
			})
		}
	}

	for _, h := range highlightPattern.FindAllString(markdown, -1) {
		text := strings.TrimSpace(strings.ReplaceAll(highlightMarker.ReplaceAllString(h, ""), "**", ""))
		if text == "" || overlaps(policies, text) {
			continue
		}
		policies = append(policies, Policy{Name: "Highlight", Description: text})
	}
	return policies
}

func overlaps(policies []Policy, text string) bool {
	lead := text
	if r := []rune(text); len(r) > highlightOverlap {
		lead = string(r[:highlightOverlap])
	}
	for _, p := range policies {
		if strings.Contains(p.Description, lead) {
			return true
		}
	}
	return false
}
