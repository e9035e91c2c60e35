// Package reflections keeps a shared journal of family reflections as JSON
// lines in one Drive file.
package reflections

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/cache"
	"github.com/kalambet/attune/internal/timewindow"
)

const (
	// DefaultRecent is the number of records Recent returns when n is 0.
	DefaultRecent = 8
	// MaxRecent bounds n in Recent.
	MaxRecent = 100

	DefaultFolder = "Attunement Assistant"
	DefaultFile   = "reflections.jsonl"

	systemAuthor = "system"

	folderKey = "folderId"
	fileKey   = "reflectionFileId"
)

// Reflection is one journal entry.
type Reflection struct {
	Who     string   `json:"who"`
	Text    string   `json:"text"`
	Threads []string `json:"threads"`
	SavedAt string   `json:"savedAt"`
}

// FileStore is the remote storage holding the journal file.
type FileStore interface {
	// FindFolder returns the id of the folder named name, or "" if absent.
	FindFolder(ctx context.Context, name string) (string, error)
	// FindFile returns the id of name inside folderID, or "" if absent.
	FindFile(ctx context.Context, folderID, name string) (string, error)
	CreateFile(ctx context.Context, folderID, name string) (string, error)
	Read(ctx context.Context, fileID string) ([]byte, error)
	Write(ctx context.Context, fileID string, content []byte) error
}

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Folder  string
	File    string
	Authors []string
	Clock   timewindow.Clock
	Logger  *slog.Logger
}

// Store reads and appends reflections. Every mutation rewrites the whole
// file; concurrent writers are last-write-wins.
type Store struct {
	files   FileStore
	folder  string
	file    string
	authors []string
	clock   timewindow.Clock
	ids     *cache.Cache[string]
	logger  *slog.Logger
}

// NewStore creates a Store over files.
func NewStore(files FileStore, opts Options) *Store {
	s := &Store{
		files:   files,
		folder:  opts.Folder,
		file:    opts.File,
		authors: opts.Authors,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if s.folder == "" {
		s.folder = DefaultFolder
	}
	if s.file == "" {
		s.file = DefaultFile
	}
	if s.clock == nil {
		s.clock = timewindow.SystemClock
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.ids = cache.NewWithClock[string](cache.DefaultTTL, s.clock)
	return s
}

// FileName returns the journal file name.
func (s *Store) FileName() string { return s.file }

// SaveResult describes an appended record.
type SaveResult struct {
	FileID  string `json:"fileId"`
	SavedAt string `json:"appendedAt"`
}

// Save appends one reflection.
func (s *Store) Save(ctx context.Context, who, text string, threads []string) (SaveResult, error) {
	if err := s.validate(who, text); err != nil {
		return SaveResult{}, err
	}
	if threads == nil {
		threads = []string{}
	}

	fileID, err := s.fileID(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	existing, err := s.files.Read(ctx, fileID)
	if err != nil {
		return SaveResult{}, fmt.Errorf("reading reflections: %w", err)
	}

	r := Reflection{Who: who, Text: text, Threads: threads, SavedAt: timewindow.FormatISO(s.clock.Now())}
	line, err := json.Marshal(r)
	if err != nil {
		return SaveResult{}, fmt.Errorf("encoding reflection: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.Write(line)
	buf.WriteByte('\n')

	if err := s.files.Write(ctx, fileID, buf.Bytes()); err != nil {
		return SaveResult{}, fmt.Errorf("writing reflections: %w", err)
	}
	return SaveResult{FileID: fileID, SavedAt: r.SavedAt}, nil
}

// Recent returns the last n reflections, newest first. n = 0 means DefaultRecent.
func (s *Store) Recent(ctx context.Context, n int) ([]Reflection, error) {
	if n == 0 {
		n = DefaultRecent
	}
	if n < 1 || n > MaxRecent {
		return nil, apperr.Invalid("n must be between 1 and %d", MaxRecent)
	}
	all, _, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	slices.Reverse(all)
	return all, nil
}

// CleanupResult reports a deduplication pass.
type CleanupResult struct {
	Removed   int    `json:"removedCount"`
	CleanedAt string `json:"cleanedAt"`
}

// Deduplicate keeps the first record of every (who, text, threads) tuple,
// ignoring thread order, and appends one maintenance record with the count.
func (s *Store) Deduplicate(ctx context.Context) (CleanupResult, error) {
	all, fileID, err := s.readAll(ctx)
	if err != nil {
		return CleanupResult{}, err
	}

	unique := Dedupe(all)
	removed := len(all) - len(unique)
	now := timewindow.FormatISO(s.clock.Now())
	unique = append(unique, Reflection{
		Who:     systemAuthor,
		Text:    fmt.Sprintf("[MAINTENANCE] Cleanup completed. Removed %d duplicate entries.", removed),
		Threads: []string{"system", "maintenance"},
		SavedAt: now,
	})

	content, err := encode(unique)
	if err != nil {
		return CleanupResult{}, err
	}
	if err := s.files.Write(ctx, fileID, content); err != nil {
		return CleanupResult{}, fmt.Errorf("writing reflections: %w", err)
	}
	s.logger.Info("reflections deduplicated", "removed", removed, "kept", len(unique)-1)
	return CleanupResult{Removed: removed, CleanedAt: now}, nil
}

// Dedupe returns records with later duplicates removed, in original order.
func Dedupe(records []Reflection) []Reflection {
	seen := make(map[string]bool, len(records))
	out := make([]Reflection, 0, len(records))
	for _, r := range records {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func key(r Reflection) string {
	threads := slices.Clone(r.Threads)
	slices.Sort(threads)
	return r.Who + "|" + r.Text + "|" + strings.Join(threads, ",")
}

// Parse decodes JSON lines, dropping blank and malformed lines.
func Parse(content []byte) []Reflection {
	var out []Reflection
	for _, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r Reflection
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func encode(records []Reflection) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encoding reflection: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (s *Store) readAll(ctx context.Context) ([]Reflection, string, error) {
	fileID, err := s.fileID(ctx)
	if err != nil {
		return nil, "", err
	}
	content, err := s.files.Read(ctx, fileID)
	if err != nil {
		return nil, "", fmt.Errorf("reading reflections: %w", err)
	}
	return Parse(content), fileID, nil
}

func (s *Store) validate(who, text string) error {
	var missing []string
	if strings.TrimSpace(who) == "" {
		missing = append(missing, "who")
	}
	if strings.TrimSpace(text) == "" {
		missing = append(missing, "text")
	}
	if err := apperr.Missing(missing...); err != nil {
		return err
	}
	if len(s.authors) > 0 && !slices.Contains(s.authors, who) {
		return &apperr.ValidationError{
			Fields:  []string{"who"},
			Message: fmt.Sprintf("who must be one of: %s", strings.Join(s.authors, ", ")),
		}
	}
	return nil
}

func (s *Store) folderID(ctx context.Context) (string, error) {
	if id, ok := s.ids.Get(folderKey); ok {
		return id, nil
	}
	id, err := s.files.FindFolder(ctx, s.folder)
	if err != nil {
		return "", fmt.Errorf("finding folder %q: %w", s.folder, err)
	}
	if id == "" {
		return "", apperr.NotFound("folder", "folder %q not found in Google Drive", s.folder)
	}
	s.ids.Set(folderKey, id)
	return id, nil
}

// fileID finds the journal file, creating it when absent.
func (s *Store) fileID(ctx context.Context) (string, error) {
	if id, ok := s.ids.Get(fileKey); ok {
		return id, nil
	}
	folderID, err := s.folderID(ctx)
	if err != nil {
		return "", err
	}
	id, err := s.files.FindFile(ctx, folderID, s.file)
	if err != nil {
		return "", fmt.Errorf("finding %s: %w", s.file, err)
	}
	if id == "" {
		id, err = s.files.CreateFile(ctx, folderID, s.file)
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", s.file, err)
		}
		s.logger.Info("created reflections file", "name", s.file, "file_id", id)
	}
	s.ids.Set(fileKey, id)
	return id, nil
}
