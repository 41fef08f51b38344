// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// FileSource reads papers from a directory of YAML files, one paper per
// file named <id>.yaml. A record without an id takes the file stem.
type FileSource struct {
	Dir         string
	MarkdownDir string
	Logger      zerolog.Logger

	now func() time.Time
}

// Name returns the backend identifier.
func (s *FileSource) Name() string { return string(types.SourceFile) }

// Fetch returns the papers published within q.Lookback, newest first. Papers
// without a publication date always match. Categories, when given, must
// intersect the paper's categories unless the paper lists none. A missing
// directory yields no papers.
func (s *FileSource) Fetch(ctx context.Context, q Query) ([]types.Paper, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.Logger.Warn().Str("dir", s.Dir).Msg("papers directory does not exist")
			return []types.Paper{}, nil
		}
		return nil, fmt.Errorf("%w: reading papers directory: %w", ErrSource, err)
	}

	var cutoff time.Time
	if q.Lookback > 0 {
		cutoff = s.clock().Add(-q.Lookback)
	}

	papers := []types.Paper{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		p, err := s.read(filepath.Join(s.Dir, name), strings.TrimSuffix(name, ext))
		if err != nil {
			return nil, err
		}
		if !cutoff.IsZero() && !p.Published.IsZero() && p.Published.Before(cutoff) {
			continue
		}
		if !matchesCategory(p, q.Categories) {
			continue
		}
		papers = append(papers, p)
	}

	sort.SliceStable(papers, func(i, j int) bool {
		if !papers[i].Published.Equal(papers[j].Published) {
			return papers[i].Published.After(papers[j].Published)
		}
		return papers[i].ID < papers[j].ID
	})

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	return papers, nil
}

// FetchByID reads <dir>/<id>.yaml.
func (s *FileSource) FetchByID(ctx context.Context, id string) (*types.Paper, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, nil
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(s.Dir, FileStem(id)+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p, err := s.read(path, FileStem(id))
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, nil
}

func (s *FileSource) read(path, stem string) (types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Paper{}, fmt.Errorf("%w: reading %s: %w", ErrSource, path, err)
	}

	var p types.Paper
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return types.Paper{}, fmt.Errorf("%w: parsing %s: %w", ErrSource, path, err)
	}

	if p.ID == "" {
		p.ID = stem
	}
	p.ID = NormalizeID(p.ID)
	if p.Source == "" {
		p.Source = string(types.SourceFile)
	}
	if p.PrimaryCategory == "" && len(p.Categories) > 0 {
		p.PrimaryCategory = p.Categories[0]
	}
	attachFullText(s.MarkdownDir, &p, s.Logger)
	return p, nil
}

func (s *FileSource) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func matchesCategory(p types.Paper, want []string) bool {
	if len(want) == 0 || len(p.Categories) == 0 {
		return true
	}
	for _, w := range want {
		for _, c := range p.Categories {
			if strings.EqualFold(strings.TrimSpace(w), c) {
				return true
			}
		}
	}
	return false
}
