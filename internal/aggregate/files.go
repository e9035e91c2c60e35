package aggregate

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/canvas"
	"github.com/kalambet/attune/internal/identity"
)

type FileInfo struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func fileInfo(f canvas.File) FileInfo {
	return FileInfo{
		ID:          f.ID,
		Name:        f.DisplayName,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        f.Size,
		UpdatedAt:   f.UpdatedAt,
	}
}

// FileContent is a downloaded file. Text types are returned as-is, anything
// else base64-encoded.
type FileContent struct {
	File     FileInfo `json:"file"`
	Encoding string   `json:"encoding"`
	Content  string   `json:"content"`
}

// DownloadFile fetches one course file.
func (s *Service) DownloadFile(ctx context.Context, id identity.Identity, courseID, fileID int64) (*FileContent, error) {
	var missing []string
	if courseID <= 0 {
		missing = append(missing, "courseId")
	}
	if fileID <= 0 {
		missing = append(missing, "fileId")
	}
	if err := apperr.Missing(missing...); err != nil {
		return nil, err
	}

	f, data, err := s.canvas(id).DownloadFile(ctx, courseID, fileID)
	if err != nil {
		return nil, notFound(err, "file", "file %d not found in course %d", fileID, courseID)
	}
	out := &FileContent{File: fileInfo(f)}
	if ct := strings.ToLower(f.ContentType); strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "javascript") {
		out.Encoding = EncodingText
		out.Content = string(data)
	} else {
		out.Encoding = EncodingBase64
		out.Content = base64.StdEncoding.EncodeToString(data)
	}
	return out, nil
}

// ListFiles lists files in a folder, or the whole course when folderID is 0.
func (s *Service) ListFiles(ctx context.Context, id identity.Identity, courseID, folderID int64) ([]FileInfo, error) {
	if err := requireCourse(courseID); err != nil {
		return nil, err
	}
	files, err := s.canvas(id).ListFiles(ctx, courseID, folderID)
	if err != nil {
		return nil, notFound(err, "folder", "files not found for course %d", courseID)
	}
	out := make([]FileInfo, len(files))
	for i, f := range files {
		out[i] = fileInfo(f)
	}
	return out, nil
}
