// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-analyzer/internal/httputil"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

type fakeConverter struct {
	output string
	err    error
	calls  atomic.Int32
	seen   string
}

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	f.calls.Add(1)
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", err
	}
	f.seen = string(data)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func pdfServer(t *testing.T, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		assert.Equal(t, "paper-analyzer-test", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		io.WriteString(w, "%PDF-1.7 body")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T, conv Converter) *Fetcher {
	t.Helper()
	dir := t.TempDir()
	return &Fetcher{
		Client:      http.DefaultClient,
		UserAgent:   "paper-analyzer-test",
		MaxRetries:  1,
		RawDir:      filepath.Join(dir, "raw"),
		MarkdownDir: filepath.Join(dir, "markdown"),
		Converter:   conv,
		Logger:      zerolog.Nop(),
	}
}

func TestAttachDownloadsAndConverts(t *testing.T) {
	var hits atomic.Int32
	srv := pdfServer(t, http.StatusOK, &hits)
	conv := &fakeConverter{output: "  # Sparse Routing\n\nIntroduction text.\n\n"}
	f := newFetcher(t, conv)

	p := types.Paper{ID: "2501.00001", PDFURL: srv.URL + "/pdf/2501.00001"}
	require.NoError(t, f.Attach(context.Background(), &p))

	assert.Equal(t, "# Sparse Routing\n\nIntroduction text.\n", p.FullText)
	assert.Equal(t, "%PDF-1.7 body", conv.seen)
	assert.FileExists(t, filepath.Join(f.RawDir, "2501.00001.pdf"))
	cached, err := os.ReadFile(filepath.Join(f.MarkdownDir, "2501.00001.md"))
	require.NoError(t, err)
	assert.Equal(t, p.FullText, string(cached))

	// A second paper value with the same ID is served from the cache.
	again := types.Paper{ID: "2501.00001", PDFURL: srv.URL + "/pdf/2501.00001"}
	require.NoError(t, f.Attach(context.Background(), &again))
	assert.Equal(t, p.FullText, again.FullText)
	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 1, conv.calls.Load())
}

func TestAttachKeepsExistingText(t *testing.T) {
	conv := &fakeConverter{output: "unused"}
	f := newFetcher(t, conv)
	p := types.Paper{ID: "2501.00001", FullText: "already here"}

	require.NoError(t, f.Attach(context.Background(), &p))
	assert.Equal(t, "already here", p.FullText)
	assert.Zero(t, conv.calls.Load())
}

func TestAttachConvertsExistingPDFWithoutDownloading(t *testing.T) {
	conv := &fakeConverter{output: "converted"}
	f := newFetcher(t, conv)
	require.NoError(t, os.MkdirAll(f.RawDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.RawDir, "hep-th_9901001.pdf"), []byte("local pdf"), 0o644))

	p := types.Paper{ID: "hep-th/9901001"}
	require.NoError(t, f.Attach(context.Background(), &p))
	assert.Equal(t, "converted\n", p.FullText)
	assert.Equal(t, "local pdf", conv.seen)
	assert.FileExists(t, filepath.Join(f.MarkdownDir, "hep-th_9901001.md"))
}

func TestAttachFailures(t *testing.T) {
	t.Run("no pdf link", func(t *testing.T) {
		f := newFetcher(t, &fakeConverter{})
		p := types.Paper{ID: "2501.00001"}
		err := f.Attach(context.Background(), &p)
		assert.ErrorIs(t, err, ErrNoPDF)
		assert.Empty(t, p.FullText)
	})

	t.Run("http error leaves no file", func(t *testing.T) {
		var hits atomic.Int32
		srv := pdfServer(t, http.StatusNotFound, &hits)
		f := newFetcher(t, &fakeConverter{})
		p := types.Paper{ID: "2501.00001", PDFURL: srv.URL}

		err := f.Attach(context.Background(), &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
		assert.NoFileExists(t, filepath.Join(f.RawDir, "2501.00001.pdf"))
	})

	t.Run("throttled then served", func(t *testing.T) {
		old := httputil.RetryBaseDelay
		httputil.RetryBaseDelay = 0
		t.Cleanup(func() { httputil.RetryBaseDelay = old })

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			io.WriteString(w, "pdf")
		}))
		t.Cleanup(srv.Close)

		f := newFetcher(t, &fakeConverter{output: "text"})
		p := types.Paper{ID: "2501.00001", PDFURL: srv.URL}
		require.NoError(t, f.Attach(context.Background(), &p))
		assert.Equal(t, "text\n", p.FullText)
		assert.EqualValues(t, 2, hits.Load())
	})

	t.Run("converter error", func(t *testing.T) {
		var hits atomic.Int32
		srv := pdfServer(t, http.StatusOK, &hits)
		f := newFetcher(t, &fakeConverter{err: errors.New("container crashed")})
		p := types.Paper{ID: "2501.00001", PDFURL: srv.URL}

		err := f.Attach(context.Background(), &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "container crashed")
		assert.NoFileExists(t, filepath.Join(f.MarkdownDir, "2501.00001.md"))
	})

	t.Run("blank conversion", func(t *testing.T) {
		var hits atomic.Int32
		srv := pdfServer(t, http.StatusOK, &hits)
		f := newFetcher(t, &fakeConverter{output: " \n\t"})
		p := types.Paper{ID: "2501.00001", PDFURL: srv.URL}

		err := f.Attach(context.Background(), &p)
		require.Error(t, err)
		assert.True(t, strings.HasSuffix(err.Error(), "empty output"))
	})
}
