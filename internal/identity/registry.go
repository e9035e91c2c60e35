// Package identity loads the registry of students whose credentials scope
// upstream calls. The registry is read once at startup and never mutated.
package identity

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/syllabus"
)

// Capability gates optional behavior for an identity.
type Capability string

const (
	// WeeklyEmail marks identities whose school sends a weekly email.
	WeeklyEmail Capability = "weekly_email"
)

var knownCapabilities = []Capability{WeeklyEmail}

// Identity is one registered student.
type Identity struct {
	Name         string       `yaml:"name"`
	DisplayName  string       `yaml:"display_name"`
	CanvasToken  string       `yaml:"canvas_token"`
	StudentID    string       `yaml:"canvas_student_id"`
	CalendarID   string       `yaml:"calendar_id"`
	Capabilities []Capability `yaml:"capabilities"`
}

// Has reports whether the identity declares c.
func (id Identity) Has(c Capability) bool {
	return slices.Contains(id.Capabilities, c)
}

// Registry is the parsed registry file.
type Registry struct {
	Default           string           `yaml:"default"`
	ReflectionAuthors []string         `yaml:"reflection_authors"`
	SyllabusAliases   []syllabus.Alias `yaml:"syllabus_aliases"`
	Students          []Identity       `yaml:"students"`
}

// LoadRegistry reads and validates the registry at path. Values of the form
// ${VAR} are expanded from the environment before parsing.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return ParseRegistry(data, os.Getenv)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references only. A bare $ is kept as written.
func expandEnv(s string, getenv func(string) string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return getenv(ref[2 : len(ref)-1])
	})
}

// ParseRegistry parses registry YAML, expanding ${VAR} references with getenv.
func ParseRegistry(data []byte, getenv func(string) string) (*Registry, error) {
	expanded := expandEnv(string(data), getenv)

	var r Registry
	if err := yaml.Unmarshal([]byte(expanded), &r); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	for i := range r.Students {
		s := &r.Students[i]
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.DisplayName == "" {
			s.DisplayName = s.Name
		}
	}
	r.Default = strings.ToLower(strings.TrimSpace(r.Default))
	if r.Default == "" && len(r.Students) > 0 {
		r.Default = r.Students[0].Name
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate reports every problem in the registry at once.
func (r *Registry) Validate() error {
	var problems []string
	if len(r.Students) == 0 {
		problems = append(problems, "no students defined")
	}
	seen := make(map[string]bool)
	for i, s := range r.Students {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("students[%d]", i)
			problems = append(problems, label+": name is required")
		}
		if seen[s.Name] && s.Name != "" {
			problems = append(problems, label+": duplicate name")
		}
		seen[s.Name] = true
		if s.CanvasToken == "" {
			problems = append(problems, label+": canvas_token is required")
		}
		if s.StudentID == "" {
			problems = append(problems, label+": canvas_student_id is required")
		}
		if s.CalendarID == "" {
			problems = append(problems, label+": calendar_id is required")
		}
		for _, c := range s.Capabilities {
			if !slices.Contains(knownCapabilities, c) {
				problems = append(problems, fmt.Sprintf("%s: unknown capability %q", label, c))
			}
		}
	}
	if r.Default != "" && !seen[r.Default] {
		problems = append(problems, fmt.Sprintf("default %q is not a registered student", r.Default))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid registry: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Students))
	for i, s := range r.Students {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}

// Lookup returns the identity registered under name.
func (r *Registry) Lookup(name string) (Identity, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range r.Students {
		if s.Name == name {
			return s, true
		}
	}
	return Identity{}, false
}

// Resolve maps a request selector to an identity. An empty selector selects
// the default; an unknown one is a validation error listing valid names.
func (r *Registry) Resolve(selector string) (Identity, error) {
	if strings.TrimSpace(selector) == "" {
		selector = r.Default
	}
	if id, ok := r.Lookup(selector); ok {
		return id, nil
	}
	return Identity{}, &apperr.ValidationError{
		Fields:  []string{"student"},
		Message: fmt.Sprintf("unknown student %q; valid students: %s", selector, strings.Join(r.Names(), ", ")),
	}
}

// Require resolves selector and checks that the identity declares c.
func (r *Registry) Require(selector string, c Capability) (Identity, error) {
	id, err := r.Resolve(selector)
	if err != nil {
		return Identity{}, err
	}
	if !id.Has(c) {
		return Identity{}, &apperr.ValidationError{
			Fields:  []string{"student"},
			Message: fmt.Sprintf("%s is not supported for student: %s", c, id.Name),
		}
	}
	return id, nil
}
