package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetDocument returns the cached document for url if it was fetched after
// notBefore. Older rows are treated as missing.
func (s *Store) GetDocument(ctx context.Context, url string, notBefore time.Time) (CachedDocument, error) {
	var d CachedDocument
	var fetchedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT url, kind, file_id, method, content, fetched_at, hits
		FROM documents WHERE url = ?`, url,
	).Scan(&d.URL, &d.Kind, &d.FileID, &d.Method, &d.Content, &fetchedAt, &d.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedDocument{}, ErrNotFound
	}
	if err != nil {
		return CachedDocument{}, fmt.Errorf("reading document %s: %w", url, err)
	}
	t, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return CachedDocument{}, fmt.Errorf("parsing fetched_at for %s: %w", url, err)
	}
	d.FetchedAt = t
	if d.FetchedAt.Before(notBefore) {
		return CachedDocument{}, ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE documents SET hits = hits + 1 WHERE url = ?", url); err != nil {
		return CachedDocument{}, fmt.Errorf("counting hit for %s: %w", url, err)
	}
	d.Hits++
	return d, nil
}

// PutDocument inserts or replaces the cached copy of a document.
func (s *Store) PutDocument(ctx context.Context, d CachedDocument) error {
	if d.FetchedAt.IsZero() {
		d.FetchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (url, kind, file_id, method, content, fetched_at, hits)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(url) DO UPDATE SET
			kind = excluded.kind,
			file_id = excluded.file_id,
			method = excluded.method,
			content = excluded.content,
			fetched_at = excluded.fetched_at`,
		d.URL, d.Kind, d.FileID, d.Method, d.Content, d.FetchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.URL, err)
	}
	return nil
}

// PurgeDocuments deletes documents fetched before cutoff and returns how many were removed.
func (s *Store) PurgeDocuments(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE fetched_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purging documents: %w", err)
	}
	return res.RowsAffected()
}

// CountDocuments returns the number of cached documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
