package syllabus

import (
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/attune/internal/apperr"
)

// Impact estimates how much one score matters within its course.
type Impact struct {
	CourseName        string   `json:"courseName"`
	CategoryName      string   `json:"categoryName"`
	CategoryWeight    int      `json:"categoryWeight"`
	MaxPossibleImpact int      `json:"maxPossibleImpact"`
	PercentScore      float64  `json:"percentScore"`
	Notes             string   `json:"notes,omitempty"`
	KeyPolicies       []Policy `json:"keyPolicies"`
	Interpretation    string   `json:"interpretation"`
}

// GradeImpact matches courseName to a syllabus, finds category in its weight
// table and interprets score out of maxScore.
func (l *Library) GradeImpact(courseName, category string, score, maxScore float64) (Impact, error) {
	if maxScore <= 0 {
		return Impact{}, apperr.Invalid("maxScore must be positive")
	}
	s, ok, err := l.Match(courseName)
	if err != nil {
		return Impact{}, err
	}
	if !ok {
		slugs, _ := l.Slugs()
		return Impact{}, apperr.NotFound("syllabus", "no syllabus found for course: %s", courseName).
			WithHint("availableCourses", slugs)
	}

	w, ok := findCategory(s.GradeWeights, category)
	if !ok {
		cats := make([]string, len(s.GradeWeights))
		for i, gw := range s.GradeWeights {
			cats[i] = gw.Category
		}
		return Impact{}, apperr.NotFound("category", "category %q not found in %s syllabus", category, s.Course).
			WithHint("availableCategories", cats)
	}

	pct := math.Round(score/maxScore*1000) / 10
	return Impact{
		CourseName:        s.Course,
		CategoryName:      w.Category,
		CategoryWeight:    w.Weight,
		MaxPossibleImpact: w.Weight,
		PercentScore:      pct,
		Notes:             w.Notes,
		KeyPolicies:       s.KeyPolicies,
		Interpretation:    interpret(pct, w.Weight, s.KeyPolicies),
	}, nil
}

func findCategory(weights []GradeWeight, category string) (GradeWeight, bool) {
	c := strings.ToLower(category)
	for _, w := range weights {
		wc := strings.ToLower(w.Category)
		if strings.Contains(wc, c) || strings.Contains(c, wc) {
			return w, true
		}
	}
	return GradeWeight{}, false
}

func interpret(pct float64, weight int, policies []Policy) string {
	var parts []string
	switch {
	case pct >= 90:
		parts = append(parts, fmt.Sprintf("Great score (%g%%)!", pct))
	case pct >= 80:
		parts = append(parts, fmt.Sprintf("Solid score (%g%%).", pct))
	case pct >= 70:
		parts = append(parts, fmt.Sprintf("Passing score (%g%%), but room for improvement.", pct))
	case pct >= 60:
		parts = append(parts, fmt.Sprintf("Below average (%g%%). Consider reviewing this material.", pct))
	default:
		parts = append(parts, fmt.Sprintf("Low score (%g%%). Look into retake or redo options.", pct))
	}

	switch {
	case weight <= 15:
		parts = append(parts, fmt.Sprintf("This category is only %d%% of the grade, so its impact is limited.", weight))
	case weight >= 40:
		parts = append(parts, fmt.Sprintf("This category is %d%% of the grade, so its impact is significant.", weight))
	}

	if pct < 85 {
		if p, ok := retakePolicy(policies); ok {
			parts = append(parts, "Check retake/redo options: "+truncate(p.Description, 100))
		}
	}
	return strings.Join(parts, " ")
}

func retakePolicy(policies []Policy) (Policy, bool) {
	for _, p := range policies {
		name, desc := strings.ToLower(p.Name), strings.ToLower(p.Description)
		if strings.Contains(name, "retake") || strings.Contains(name, "redo") ||
			strings.Contains(desc, "retake") || strings.Contains(desc, "redo") {
			return p, true
		}
	}
	return Policy{}, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
