package syllabus

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/kalambet/attune/internal/apperr"
)

// Alias maps a syllabus slug to human synonyms for its course.
type Alias struct {
	Slug    string   `yaml:"slug" json:"slug"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// DefaultAliases is the built-in synonym table, in match priority order.
var DefaultAliases = []Alias{
	{Slug: "latin-iii", Aliases: []string{"latin", "latin 3", "latin iii"}},
	{Slug: "algebra-2-honors", Aliases: []string{"algebra", "algebra 2", "math", "honors math"}},
	{Slug: "computing-viii", Aliases: []string{"computing", "computers", "computer science", "cs"}},
	{Slug: "english-viii", Aliases: []string{"english", "english 8"}},
	{Slug: "fitness", Aliases: []string{"fitness", "pe", "gym", "physical education"}},
	{Slug: "history-viii", Aliases: []string{"history", "history 8"}},
	{Slug: "chorus", Aliases: []string{"chorus", "choir", "music", "singing"}},
	{Slug: "science-viii", Aliases: []string{"science", "biology", "science 8"}},
}

// WeightSummary is the grade-weight table of one course.
type WeightSummary struct {
	Course  string        `json:"course"`
	Slug    string        `json:"slug"`
	Weights []GradeWeight `json:"weights"`
}

// Library reads syllabi from a directory of markdown files. Documents are
// re-parsed on every call.
type Library struct {
	fsys    fs.FS
	aliases []Alias
	parser  *Parser
}

// NewLibrary reads *.md files from dir.
func NewLibrary(dir string, aliases []Alias, parser *Parser) *Library {
	return NewLibraryFS(os.DirFS(dir), aliases, parser)
}

// NewLibraryFS reads *.md files from the root of fsys.
func NewLibraryFS(fsys fs.FS, aliases []Alias, parser *Parser) *Library {
	if aliases == nil {
		aliases = DefaultAliases
	}
	if parser == nil {
		parser = NewParser("")
	}
	return &Library{fsys: fsys, aliases: aliases, parser: parser}
}

// List returns every syllabus sorted by course title.
func (l *Library) List() ([]Syllabus, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading syllabi: %w", err)
	}
	var out []Syllabus
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		data, err := fs.ReadFile(l.fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, l.parser.Parse(strings.TrimSuffix(e.Name(), ".md"), string(data)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Course) < strings.ToLower(out[j].Course)
	})
	return out, nil
}

// Slugs returns the slug of every syllabus.
func (l *Library) Slugs() ([]string, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	slugs := make([]string, len(all))
	for i, s := range all {
		slugs[i] = s.Slug
	}
	return slugs, nil
}

// WeightSummary returns the grade weights of every course.
func (l *Library) WeightSummary() ([]WeightSummary, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	out := make([]WeightSummary, len(all))
	for i, s := range all {
		out[i] = WeightSummary{Course: s.Course, Slug: s.Slug, Weights: s.GradeWeights}
	}
	return out, nil
}

// Get returns the best syllabus for identifier, which may be a slug, an
// alias or part of a course title. A miss is an *apperr.NotFoundError
// listing the available slugs.
func (l *Library) Get(identifier string) (Syllabus, error) {
	all, err := l.List()
	if err != nil {
		return Syllabus{}, err
	}
	cands := rank(all, l.aliases, identifier, true)
	if len(cands) == 0 {
		return Syllabus{}, notFound(identifier, all)
	}
	return bySlug(all, cands[0].Slug), nil
}

// Match finds the syllabus for a course name as it appears upstream
// (e.g. "Latin III - Section 2"). ok is false when nothing matches.
func (l *Library) Match(courseName string) (Syllabus, bool, error) {
	all, err := l.List()
	if err != nil {
		return Syllabus{}, false, err
	}
	cands := l.Candidates(all, courseName)
	if len(cands) == 0 {
		return Syllabus{}, false, nil
	}
	return bySlug(all, cands[0].Slug), true, nil
}

// Candidates returns every syllabus matching courseName, best first. When no
// alias occurs in courseName the lookup falls back to the looser rules of
// Get, where an alias containing courseName also counts.
func (l *Library) Candidates(all []Syllabus, courseName string) []Candidate {
	cands := rank(all, l.aliases, courseName, false)
	for _, c := range cands {
		if c.Rule == RuleAlias {
			return cands
		}
	}
	return rank(all, l.aliases, courseName, true)
}

func bySlug(all []Syllabus, slug string) Syllabus {
	for _, s := range all {
		if s.Slug == slug {
			return s
		}
	}
	return Syllabus{}
}

func notFound(identifier string, all []Syllabus) error {
	slugs := make([]string, len(all))
	for i, s := range all {
		slugs[i] = s.Slug
	}
	return apperr.NotFound("syllabus", "no syllabus found for course: %s", identifier).
		WithHint("availableCourses", slugs)
}
