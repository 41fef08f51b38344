// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source supplies candidate papers to the pipeline. ArxivSource
// queries the arXiv Atom API; FileSource reads paper records from a
// directory of YAML files for offline runs. Both can attach full text from a
// directory of converted Markdown files named <id>.md.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// ErrSource is wrapped by every failure to reach or read a paper source.
var ErrSource = errors.New("paper source failure")

// Query selects candidate papers.
type Query struct {
	// Categories are the arXiv category tags to match (any of).
	Categories []string

	// Lookback restricts results to papers submitted within this duration of
	// now. Zero means no date restriction.
	Lookback time.Duration

	// MaxResults caps the number of papers returned. Zero means the source
	// default.
	MaxResults int
}

// Source supplies papers. Fetch returns an empty slice, not an error, when
// nothing matches. FetchByID returns nil, nil when the paper does not exist.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]types.Paper, error)
	FetchByID(ctx context.Context, id string) (*types.Paper, error)
}

// DefaultMaxResults caps Fetch when Query.MaxResults is not positive.
const DefaultMaxResults = 10

// New builds the source selected by cfg.Backend.
func New(cfg types.SourceConfig, logger zerolog.Logger) (Source, error) {
	switch cfg.Backend {
	case types.SourceArxiv, "":
		client := &http.Client{Timeout: cfg.Timeout}
		src := NewArxivSource(client, logger)
		src.UserAgent = cfg.UserAgent
		src.MaxRetries = cfg.MaxRetries
		src.MarkdownDir = cfg.MarkdownDir
		if cfg.RateLimit > 0 {
			src.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
		}
		return src, nil
	case types.SourceFile:
		if cfg.PapersDir == "" {
			return nil, fmt.Errorf("file source requires papers_dir")
		}
		return &FileSource{Dir: cfg.PapersDir, MarkdownDir: cfg.MarkdownDir, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", cfg.Backend)
	}
}

// NormalizeID strips an "arXiv:" prefix, surrounding whitespace and a
// version suffix ("2301.07041v2" becomes "2301.07041").
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = id[6:]
	}
	return stripVersion(id)
}

func stripVersion(id string) string {
	i := strings.LastIndex(id, "v")
	if i <= 0 || i == len(id)-1 {
		return id
	}
	for _, r := range id[i+1:] {
		if r < '0' || r > '9' {
			return id
		}
	}
	return id[:i]
}

// FileStem maps an identifier to a safe file name stem. Old-style arXiv
// identifiers contain a slash ("hep-th/9901001").
func FileStem(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// attachFullText sets FullText from <dir>/<id>.md when the file exists.
func attachFullText(dir string, p *types.Paper, logger zerolog.Logger) {
	if dir == "" || p.FullText != "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(dir, FileStem(p.ID)+".md"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("paper_id", p.ID).Msg("could not read full text")
		}
		return
	}
	p.FullText = string(data)
}
