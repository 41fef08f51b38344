// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-analyzer/internal/httputil"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSource queries the arXiv Atom API for recent submissions.
type ArxivSource struct {
	Client      *http.Client
	UserAgent   string
	MaxRetries  int
	MarkdownDir string

	// Limiter throttles API requests. arXiv asks for one request every
	// three seconds.
	Limiter *rate.Limiter

	Logger zerolog.Logger

	now func() time.Time
}

// NewArxivSource returns a source with the arXiv-recommended request rate.
func NewArxivSource(client *http.Client, logger zerolog.Logger) *ArxivSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArxivSource{
		Client:  client,
		Limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		Logger:  logger,
		now:     time.Now,
	}
}

// Name returns the backend identifier.
func (s *ArxivSource) Name() string { return string(types.SourceArxiv) }

// Fetch returns the newest papers in any of q.Categories, most recently
// submitted first.
func (s *ArxivSource) Fetch(ctx context.Context, q Query) ([]types.Paper, error) {
	search := buildArxivQuery(q.Categories, q.Lookback, s.clock())
	if search == "" {
		return nil, fmt.Errorf("%w: no arXiv categories configured", ErrSource)
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	params := url.Values{}
	params.Set("search_query", search)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	s.Logger.Info().Str("query", search).Int("max_results", maxResults).Msg("querying arXiv")
	papers, err := s.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	return papers, nil
}

// FetchByID returns the paper with the given arXiv identifier.
func (s *ArxivSource) FetchByID(ctx context.Context, id string) (*types.Paper, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("id_list", id)
	params.Set("max_results", "1")

	papers, err := s.get(ctx, params)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		if papers[i].ID == id {
			return &papers[i], nil
		}
	}
	return nil, nil
}

func (s *ArxivSource) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *ArxivSource) get(ctx context.Context, params url.Values) ([]types.Paper, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %w", ErrSource, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrSource, err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := httputil.NewRetrier(s.Client, s.MaxRetries, s.Logger).Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: arXiv API request: %w", ErrSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: arXiv API returned HTTP %d", ErrSource, resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: parsing arXiv response: %w", ErrSource, err)
	}

	papers := make([]types.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		p, ok := entry.paper()
		if !ok {
			continue
		}
		attachFullText(s.MarkdownDir, &p, s.Logger)
		papers = append(papers, p)
	}
	return papers, nil
}

// buildArxivQuery ORs the category terms and, for a positive lookback, ANDs
// a submittedDate range ending now.
func buildArxivQuery(categories []string, lookback time.Duration, now time.Time) string {
	var cats []string
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, "cat:"+c)
		}
	}
	if len(cats) == 0 {
		return ""
	}

	q := strings.Join(cats, " OR ")
	if len(cats) > 1 {
		q = "(" + q + ")"
	}
	if lookback > 0 {
		const stamp = "200601021504"
		end := now.UTC()
		start := end.Add(-lookback)
		q += fmt.Sprintf(" AND submittedDate:[%s TO %s]", start.Format(stamp), end.Format(stamp))
	}
	return q
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	Categories      []arxivCategory `xml:"category"`
	PrimaryCategory arxivCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Rel   string `xml:"rel,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// paper converts a feed entry. Error entries, which carry no /abs/
// identifier, are rejected.
func (e arxivEntry) paper() (types.Paper, bool) {
	id := extractArxivID(e.ID)
	if id == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		ID:              id,
		Title:           collapseSpace(e.Title),
		Abstract:        collapseSpace(e.Summary),
		PrimaryCategory: e.PrimaryCategory.Term,
		SourceURL:       strings.TrimSpace(e.ID),
		Source:          string(types.SourceArxiv),
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	if p.PrimaryCategory == "" && len(p.Categories) > 0 {
		p.PrimaryCategory = p.Categories[0]
	}
	for _, l := range e.Links {
		if l.Title == "pdf" {
			p.PDFURL = l.Href
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t.UTC()
	}
	return p, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" gives "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return stripVersion(strings.TrimSpace(idURL[idx+len(prefix):]))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
