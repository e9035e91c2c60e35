package reflections

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/attune/internal/apperr"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memFiles is an in-memory FileStore with call counters.
type memFiles struct {
	folders map[string]string
	files   map[string][]byte
	names   map[string]string

	findFolderCalls int
	findFileCalls   int
	creates         int
	writes          int
}

func newMemFiles() *memFiles {
	return &memFiles{
		folders: map[string]string{"Attunement Assistant": "folder-1"},
		files:   map[string][]byte{},
		names:   map[string]string{},
	}
}

func (m *memFiles) FindFolder(_ context.Context, name string) (string, error) {
	m.findFolderCalls++
	return m.folders[name], nil
}

func (m *memFiles) FindFile(_ context.Context, folderID, name string) (string, error) {
	m.findFileCalls++
	return m.names[folderID+"/"+name], nil
}

func (m *memFiles) CreateFile(_ context.Context, folderID, name string) (string, error) {
	m.creates++
	id := "file-" + name
	m.names[folderID+"/"+name] = id
	m.files[id] = nil
	return id, nil
}

func (m *memFiles) Read(_ context.Context, fileID string) ([]byte, error) {
	data, ok := m.files[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (m *memFiles) Write(_ context.Context, fileID string, content []byte) error {
	m.writes++
	m.files[fileID] = append([]byte(nil), content...)
	return nil
}

func newTestStore(files *memFiles) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC)}
	return NewStore(files, Options{Authors: []string{"Jud", "Jules", "Max"}, Clock: clock}), clock
}

func TestSaveCreatesFileOnce(t *testing.T) {
	files := newMemFiles()
	s, _ := newTestStore(files)
	ctx := context.Background()

	res, err := s.Save(ctx, "Max", "Felt good about the Latin quiz", []string{"school"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.FileID != "file-reflections.jsonl" {
		t.Errorf("FileID = %q", res.FileID)
	}
	if res.SavedAt != "2025-03-03T15:00:00-07:00" {
		t.Errorf("SavedAt = %q, want Denver offset", res.SavedAt)
	}
	if _, err := s.Save(ctx, "Jud", "Second", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if files.creates != 1 {
		t.Errorf("creates = %d, want 1", files.creates)
	}
	if files.findFolderCalls != 1 || files.findFileCalls != 1 {
		t.Errorf("lookups = %d folder, %d file; want cached after first", files.findFolderCalls, files.findFileCalls)
	}
	lines := strings.Split(strings.TrimSpace(string(files.files[res.FileID])), "\n")
	if len(lines) != 2 {
		t.Fatalf("file has %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"threads":[]`) {
		t.Errorf("nil threads should encode as []: %s", lines[1])
	}
}

func TestFileIDCacheExpires(t *testing.T) {
	files := newMemFiles()
	s, clock := newTestStore(files)
	ctx := context.Background()

	if _, err := s.Recent(ctx, 0); err != nil {
		t.Fatal(err)
	}
	clock.Advance(6 * time.Minute)
	if _, err := s.Recent(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if files.findFolderCalls != 2 {
		t.Errorf("findFolderCalls = %d, want 2 after expiry", files.findFolderCalls)
	}
}

func TestSaveValidation(t *testing.T) {
	s, _ := newTestStore(newMemFiles())
	ctx := context.Background()

	tests := []struct {
		name, who, text string
	}{
		{"missing text", "Max", "  "},
		{"missing who", "", "hello"},
		{"unknown author", "Stranger", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, tt.who, tt.text, nil)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestMissingFolder(t *testing.T) {
	files := newMemFiles()
	files.folders = map[string]string{}
	s, _ := newTestStore(files)

	_, err := s.Recent(context.Background(), 5)
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestRecent(t *testing.T) {
	files := newMemFiles()
	files.names["folder-1/reflections.jsonl"] = "f"
	files.files["f"] = []byte(`{"who":"Max","text":"one","threads":[],"savedAt":"a"}
not json at all
{"who":"Max","text":"two","threads":[],"savedAt":"b"}

{"who":"Jud","text":"three","threads":["x"],"savedAt":"c"}
`)
	s, _ := newTestStore(files)
	ctx := context.Background()

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "three" || got[1].Text != "two" {
		t.Errorf("Recent(2) = %+v", got)
	}

	got, err = s.Recent(ctx, 0)
	if err != nil || len(got) != 3 {
		t.Errorf("Recent(default) = %d, %v", len(got), err)
	}

	for _, n := range []int{-1, 101} {
		if _, err := s.Recent(ctx, n); err == nil {
			t.Errorf("Recent(%d) should fail", n)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	files := newMemFiles()
	files.names["folder-1/reflections.jsonl"] = "f"
	files.files["f"] = []byte(`{"who":"Max","text":"same","threads":["b","a"],"savedAt":"1"}
{"who":"Max","text":"same","threads":["a","b"],"savedAt":"2"}
{"who":"Jud","text":"same","threads":["a","b"],"savedAt":"3"}
{"who":"Max","text":"same","threads":["a","b"],"savedAt":"4"}
{"who":"Max","text":"other","threads":[],"savedAt":"5"}
`)
	s, _ := newTestStore(files)

	res, err := s.Deduplicate(context.Background())
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if res.Removed != 2 {
		t.Errorf("Removed = %d, want 2", res.Removed)
	}

	after := Parse(files.files["f"])
	if len(after) != 4 {
		t.Fatalf("records after cleanup = %d, want 4", len(after))
	}
	if after[0].SavedAt != "1" || after[1].SavedAt != "3" || after[2].SavedAt != "5" {
		t.Errorf("kept wrong records: %+v", after)
	}
	m := after[3]
	if m.Who != "system" || m.Text != "[MAINTENANCE] Cleanup completed. Removed 2 duplicate entries." {
		t.Errorf("maintenance record = %+v", m)
	}
	if strings.Join(m.Threads, ",") != "system,maintenance" {
		t.Errorf("maintenance threads = %v", m.Threads)
	}
}

func TestDedupeDoesNotReorderThreads(t *testing.T) {
	in := []Reflection{{Who: "Max", Text: "t", Threads: []string{"z", "a"}}}
	out := Dedupe(in)
	if out[0].Threads[0] != "z" {
		t.Errorf("threads mutated: %v", out[0].Threads)
	}
}
