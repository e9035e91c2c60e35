package syllabus

import "strings"

// Rule names how a candidate matched.
type Rule string

const (
	RuleSlug  Rule = "slug"
	RuleAlias Rule = "alias"
	RuleTitle Rule = "title"
)

// Candidate is one possible syllabus for a piece of free text. Lower Rank is
// better; ties never occur because rank also encodes declaration order.
type Candidate struct {
	Slug  string `json:"slug"`
	Rule  Rule   `json:"rule"`
	Alias string `json:"alias,omitempty"`
	Rank  int    `json:"rank"`
}

const (
	slugBase  = 0
	aliasBase = 1000
	titleBase = 2000
)

// rank orders syllabi by how well they match text: exact slug, then alias
// table entries in declaration order, then course titles in list order.
// When reverse is set an alias also matches when it contains text.
func rank(all []Syllabus, aliases []Alias, text string, reverse bool) []Candidate {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}

	var out []Candidate
	seen := make(map[string]bool)
	add := func(c Candidate) {
		if seen[c.Slug] || !has(all, c.Slug) {
			return
		}
		seen[c.Slug] = true
		out = append(out, c)
	}

	add(Candidate{Slug: needle, Rule: RuleSlug, Rank: slugBase})

	for i, a := range aliases {
		for _, alias := range a.Aliases {
			alias = strings.ToLower(alias)
			if strings.Contains(needle, alias) || (reverse && strings.Contains(alias, needle)) {
				add(Candidate{Slug: a.Slug, Rule: RuleAlias, Alias: alias, Rank: aliasBase + i})
				break
			}
		}
	}

	for i, s := range all {
		title := strings.ToLower(s.Course)
		first, _, _ := strings.Cut(title, " ")
		if strings.Contains(title, needle) || (first != "" && strings.Contains(needle, first)) {
			add(Candidate{Slug: s.Slug, Rule: RuleTitle, Rank: titleBase + i})
		}
	}
	return out
}

func has(all []Syllabus, slug string) bool {
	for _, s := range all {
		if s.Slug == slug {
			return true
		}
	}
	return false
}
