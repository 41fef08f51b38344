// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext recovers the body of a paper when the source supplies
// only metadata. It downloads the PDF, converts it to Markdown, and caches
// both on disk so a paper is fetched and converted at most once.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-analyzer/internal/httputil"
	"github.com/pdiddy/paper-analyzer/internal/source"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// ErrNoPDF is returned when a paper has no PDF link and no cached text.
var ErrNoPDF = errors.New("paper has no PDF link")

// Converter turns a PDF file into Markdown text.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// Fetcher attaches full text to papers.
type Fetcher struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int

	// RawDir holds downloaded PDFs as <id>.pdf.
	RawDir string

	// MarkdownDir holds converted text as <id>.md. The source reads the same
	// layout when configured with this directory.
	MarkdownDir string

	Converter Converter
	Logger    zerolog.Logger
}

// Attach sets p.FullText. Text already on the paper is kept; otherwise the
// cached Markdown is used, and only when that is missing is the PDF
// downloaded (unless already on disk) and converted.
func (f *Fetcher) Attach(ctx context.Context, p *types.Paper) error {
	if p.FullText != "" {
		return nil
	}
	stem := source.FileStem(p.ID)
	mdPath := filepath.Join(f.MarkdownDir, stem+".md")

	if data, err := os.ReadFile(mdPath); err == nil {
		p.FullText = string(data)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading cached text for %s: %w", p.ID, err)
	}

	pdfPath := filepath.Join(f.RawDir, stem+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		if p.PDFURL == "" {
			return fmt.Errorf("%w: %s", ErrNoPDF, p.ID)
		}
		if err := f.download(ctx, p.PDFURL, pdfPath); err != nil {
			return fmt.Errorf("downloading %s: %w", p.ID, err)
		}
		f.Logger.Debug().Str("paper_id", p.ID).Str("path", pdfPath).Msg("downloaded PDF")
	}

	text, err := f.Converter.Convert(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("converting %s: %w", p.ID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("converting %s: empty output", p.ID)
	}
	if err := writeAtomic(mdPath, []byte(text+"\n")); err != nil {
		return fmt.Errorf("caching text for %s: %w", p.ID, err)
	}
	f.Logger.Debug().Str("paper_id", p.ID).Int("chars", len(text)).Msg("converted full text")

	p.FullText = text + "\n"
	return nil
}

// download fetches url into destPath through a temporary file so a partial
// download never leaves a PDF behind.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.NewRetrier(f.Client, f.MaxRetries, f.Logger).Do(ctx, req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing download: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".text-*.tmp")
	if err != nil {
		return err
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
