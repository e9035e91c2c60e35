// Package ocr provides the page rasterizer and text recognizers used when a
// PDF has no usable text layer.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultRasterTimeout bounds a single rasterization run.
const DefaultRasterTimeout = 60 * time.Second

// Poppler renders PDF pages to PNG with the pdftoppm CLI.
type Poppler struct {
	Path    string        // pdftoppm binary, defaults to "pdftoppm"
	DPI     int           // defaults to 200
	Timeout time.Duration // defaults to DefaultRasterTimeout
}

// Rasterize implements pdftext.Rasterizer.
func (p Poppler) Rasterize(ctx context.Context, pdfPath, outDir string, maxPages int) ([]string, error) {
	bin := p.Path
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 200
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultRasterTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-png", "-r", strconv.Itoa(dpi)}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	prefix := filepath.Join(outDir, "page")
	args = append(args, pdfPath, prefix)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("pdftoppm timed out after %s", timeout)
		}
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("listing rendered pages: %w", err)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pageNumber(pages[i]) < pageNumber(pages[j])
	})
	return pages, nil
}

// pageNumber parses the page index pdftoppm appends ("page-07.png" → 7).
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[i+1:])
	return n
}
