// Package weeklyemail keeps the weekly emails sent home by the school in a
// single JSON file, one record per (student, week).
package weeklyemail

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/timewindow"
)

// DefaultPath is where the store lives unless configured otherwise.
const DefaultPath = "./data/weekly-emails.json"

// DefaultHistory is the number of emails History returns when limit <= 0.
const DefaultHistory = 10

// Email is one weekly email. WeekOf is a date key such as "2025-01-13".
type Email struct {
	Student    string `json:"student"`
	WeekOf     string `json:"weekOf"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	ReceivedAt string `json:"receivedAt"`
	UpdatedAt  string `json:"updatedAt"`
}

type document struct {
	Emails []Email `json:"emails"`
}

// Store reads and writes the email file. Every operation re-reads the file;
// writes from other processes are last-write-wins.
type Store struct {
	path  string
	clock timewindow.Clock

	mu sync.Mutex
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return NewStoreWithClock(path, timewindow.SystemClock)
}

// NewStoreWithClock returns a Store using clock for timestamps (for testing).
func NewStoreWithClock(path string, clock timewindow.Clock) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, clock: clock}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Latest returns the email with the most recent week for student.
func (s *Store) Latest(student string) (Email, error) {
	emails, err := s.History(student, 1)
	if err != nil {
		return Email{}, err
	}
	if len(emails) == 0 {
		return Email{}, apperr.NotFound("weekly email", "no weekly email found for %s", student)
	}
	return emails[0], nil
}

// ForWeek returns the email for one student and week.
func (s *Store) ForWeek(student, weekOf string) (Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Email{}, err
	}
	for _, e := range doc.Emails {
		if e.Student == student && e.WeekOf == weekOf {
			return e, nil
		}
	}
	return Email{}, apperr.NotFound("weekly email", "no weekly email found for %s week of %s", student, weekOf)
}

// History returns up to limit emails for student, newest week first.
func (s *Store) History(student string, limit int) ([]Email, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}

	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []Email
	for _, e := range doc.Emails {
		if e.Student == student {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return weekKey(out[i].WeekOf).After(weekKey(out[j].WeekOf))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Save inserts e or replaces the record with the same student and week.
// UpdatedAt is always set; ReceivedAt defaults to now.
func (s *Store) Save(e Email) (Email, error) {
	var missing []string
	if strings.TrimSpace(e.Student) == "" {
		missing = append(missing, "student")
	}
	if strings.TrimSpace(e.WeekOf) == "" {
		missing = append(missing, "weekOf")
	}
	if strings.TrimSpace(e.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(e.Content) == "" {
		missing = append(missing, "content")
	}
	if err := apperr.Missing(missing...); err != nil {
		return Email{}, err
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	e.UpdatedAt = now
	if e.ReceivedAt == "" {
		e.ReceivedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Email{}, err
	}
	replaced := false
	for i := range doc.Emails {
		if doc.Emails[i].Student == e.Student && doc.Emails[i].WeekOf == e.WeekOf {
			doc.Emails[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Emails = append(doc.Emails, e)
	}
	if err := s.write(doc); err != nil {
		return Email{}, err
	}
	return e, nil
}

// load reads the file. A missing file is an empty store.
func (s *Store) load() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading weekly emails: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing weekly emails %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating weekly email dir: %w", err)
	}
	if doc.Emails == nil {
		doc.Emails = []Email{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding weekly emails: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing weekly emails: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing weekly emails: %w", err)
	}
	return nil
}

// weekKey parses a week key. Unparseable keys sort as the zero time.
func weekKey(weekOf string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, weekOf); err == nil {
			return t
		}
	}
	return time.Time{}
}
