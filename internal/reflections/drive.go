package reflections

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kalambet/attune/internal/apperr"
)

const (
	folderMime = "application/vnd.google-apps.folder"
	textMime   = "text/plain"
)

// Drive is a FileStore on the Drive v3 API.
type Drive struct {
	svc *drive.Service
}

// NewDrive creates a Drive file store.
func NewDrive(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return &Drive{svc: svc}, nil
}

func (d *Drive) FindFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", quote(name), folderMime)
	return d.first(ctx, q)
}

func (d *Drive) FindFile(ctx context.Context, folderID, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", quote(name), quote(folderID))
	return d.first(ctx, q)
}

func (d *Drive) first(ctx context.Context, q string) (string, error) {
	resp, err := d.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		Spaces("drive").
		Context(ctx).
		Do()
	if err != nil {
		return "", upstream(err)
	}
	for _, f := range resp.Files {
		if f.Id != "" {
			return f.Id, nil
		}
	}
	return "", nil
}

func (d *Drive) CreateFile(ctx context.Context, folderID, name string) (string, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: textMime,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", upstream(err)
	}
	if f.Id == "" {
		return "", errors.New("drive returned no file id")
	}
	return f.Id, nil
}

func (d *Drive) Read(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, upstream(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading drive file: %w", err)
	}
	return data, nil
}

func (d *Drive) Write(ctx context.Context, fileID string, content []byte) error {
	_, err := d.svc.Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(content), googleapi.ContentType(textMime)).
		Context(ctx).
		Do()
	if err != nil {
		return upstream(err)
	}
	return nil
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func upstream(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &apperr.UpstreamError{
			Service: "Google Drive",
			Status:  gerr.Code,
			Reason:  http.StatusText(gerr.Code),
			Body:    gerr.Message,
		}
	}
	return err
}
