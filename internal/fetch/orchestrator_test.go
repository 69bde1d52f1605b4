package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/source"
)

type mockSource struct {
	resolveURLFunc func(rawURL string) (source.ComicID, error)
	seriesInfoFunc func(ctx context.Context, sess *source.Session, id source.ComicID) (source.SeriesInfo, error)
	listIssuesFunc func(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.IssueRef, error)
	metadataFunc   func(ctx context.Context, sess *source.Session, id source.ComicID) (comic.Metadata, error)
	listPagesFunc  func(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.Page, error)

	metadataCalls  atomic.Int64
	listPagesCalls atomic.Int64
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) ResolveURL(rawURL string) (source.ComicID, error) {
	if m.resolveURLFunc != nil {
		return m.resolveURLFunc(rawURL)
	}
	return source.ComicID{Source: "mock", ID: rawURL, Type: source.TypeIssue}, nil
}

func (m *mockSource) SeriesInfo(ctx context.Context, sess *source.Session, id source.ComicID) (source.SeriesInfo, error) {
	if m.seriesInfoFunc != nil {
		return m.seriesInfoFunc(ctx, sess, id)
	}
	return source.SeriesInfo{}, nil
}

func (m *mockSource) ListIssues(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.IssueRef, error) {
	if m.listIssuesFunc != nil {
		return m.listIssuesFunc(ctx, sess, id)
	}
	return nil, nil
}

func (m *mockSource) Metadata(ctx context.Context, sess *source.Session, id source.ComicID) (comic.Metadata, error) {
	m.metadataCalls.Add(1)
	if m.metadataFunc != nil {
		return m.metadataFunc(ctx, sess, id)
	}
	return comic.Metadata{Title: "Issue " + id.ID, Source: "mock"}, nil
}

func (m *mockSource) ListPages(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.Page, error) {
	m.listPagesCalls.Add(1)
	if m.listPagesFunc != nil {
		return m.listPagesFunc(ctx, sess, id)
	}
	return nil, nil
}

// pageServer serves /page/N with a recognizable body, optionally delaying
// or failing individual pages.
type pageServer struct {
	*httptest.Server
	requests atomic.Int64
}

func newPageServer(t *testing.T, handler func(w http.ResponseWriter, n int)) *pageServer {
	t.Helper()
	ps := &pageServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.requests.Add(1)
		n, err := strconv.Atoi(filepath.Base(r.URL.Path))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(w, n)
	}))
	t.Cleanup(ps.Server.Close)
	return ps
}

func pageBody(n int) []byte {
	return append([]byte{0xff, 0xd8, 0xff}, []byte(fmt.Sprintf("page-%d", n))...)
}

func serverPages(baseURL string, n int) []source.Page {
	pages := make([]source.Page, n)
	for i := range pages {
		pages[i] = source.Page{URL: fmt.Sprintf("%s/page/%d", baseURL, i), Format: "jpg"}
	}
	return pages
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.Template == "" {
		opts.Template = "{title}"
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return New(opts, nil)
}

func readArchivePages(t *testing.T, path string) [][]byte {
	t.Helper()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var out [][]byte
	for _, f := range r.File {
		if filepath.Ext(f.Name) != ".jpg" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out = append(out, data)
	}
	return out
}

func TestDownloadAssemblesPagesInOrder(t *testing.T) {
	const numPages = 8

	// Later pages answer faster, so completion order inverts request order.
	srv := newPageServer(t, func(w http.ResponseWriter, n int) {
		time.Sleep(time.Duration(numPages-n) * 5 * time.Millisecond)
		_, _ = w.Write(pageBody(n))
	})

	src := &mockSource{
		listPagesFunc: func(context.Context, *source.Session, source.ComicID) ([]source.Page, error) {
			return serverPages(srv.URL, numPages), nil
		},
	}

	o := newTestOrchestrator(t, Options{PageWorkers: 4})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StatusSuccess, results[0].Status)

	pages := readArchivePages(t, results[0].Path)
	require.Len(t, pages, numPages)
	for i, data := range pages {
		assert.Equal(t, pageBody(i), data, "page %d out of order", i)
	}
}

func TestDownloadSkipsExistingWithoutRequests(t *testing.T) {
	dir := t.TempDir()

	// Pre-fetched listing metadata means naming the output needs no call.
	meta := &comic.Metadata{Title: "Episode 3", Source: "mock"}
	ref := source.IssueRef{
		ID:   source.ComicID{Source: "mock", ID: "3", Type: source.TypeIssue},
		Key:  "3",
		Meta: meta,
	}

	existing := filepath.Join(dir, "Episode 3.cbz")
	require.NoError(t, os.WriteFile(existing, []byte("previous run"), 0644))

	src := &mockSource{}
	o := newTestOrchestrator(t, Options{OutputDir: dir})
	results := o.DownloadIssues(context.Background(), src, source.NewSession(nil, source.Credentials{}), []source.IssueRef{ref})

	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, existing, results[0].Path)

	assert.Zero(t, src.metadataCalls.Load())
	assert.Zero(t, src.listPagesCalls.Load())

	// The stale artifact is untouched.
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(data))
}

func TestDownloadOverwriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Issue 1.cbz")
	require.NoError(t, os.WriteFile(existing, []byte("previous run"), 0644))

	srv := newPageServer(t, func(w http.ResponseWriter, n int) {
		_, _ = w.Write(pageBody(n))
	})
	src := &mockSource{
		listPagesFunc: func(context.Context, *source.Session, source.ComicID) ([]source.Page, error) {
			return serverPages(srv.URL, 2), nil
		},
	}

	o := newTestOrchestrator(t, Options{OutputDir: dir, Overwrite: true})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, results[0].Status)

	pages := readArchivePages(t, existing)
	assert.Len(t, pages, 2)
}

func TestDownloadMissingPageFailsIssueOnly(t *testing.T) {
	srv := newPageServer(t, func(w http.ResponseWriter, n int) {
		if n == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(pageBody(n))
	})

	perIssuePages := map[string]int{"1": 3, "2": 3}
	src := &mockSource{
		listIssuesFunc: func(_ context.Context, _ *source.Session, id source.ComicID) ([]source.IssueRef, error) {
			return []source.IssueRef{
				{ID: source.ComicID{Source: "mock", ID: "1", Type: source.TypeIssue}, Key: "1"},
				{ID: source.ComicID{Source: "mock", ID: "2", Type: source.TypeIssue}, Key: "2"},
			}, nil
		},
		resolveURLFunc: func(rawURL string) (source.ComicID, error) {
			return source.ComicID{Source: "mock", ID: rawURL, Type: source.TypeSeries}, nil
		},
		listPagesFunc: func(_ context.Context, _ *source.Session, id source.ComicID) ([]source.Page, error) {
			if id.ID == "2" {
				// Issue 2 only uses pages that exist.
				return []source.Page{
					{URL: srv.URL + "/page/0", Format: "jpg"},
					{URL: srv.URL + "/page/2", Format: "jpg"},
				}, nil
			}
			return serverPages(srv.URL, perIssuePages[id.ID]), nil
		},
	}

	o := newTestOrchestrator(t, Options{IssueWorkers: 2})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "series")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := map[string]Result{}
	for _, r := range results {
		byKey[r.Key] = r
	}

	// Issue 1 hit the missing page and failed without a retry storm.
	assert.Equal(t, StatusFailed, byKey["1"].Status)
	assert.ErrorIs(t, byKey["1"].Err, source.ErrPageMissing)
	_, statErr := os.Stat(byKey["1"].Path)
	assert.True(t, os.IsNotExist(statErr), "failed issue must not leave an archive")

	// Its sibling finished normally.
	assert.Equal(t, StatusSuccess, byKey["2"].Status)
	_, statErr = os.Stat(byKey["2"].Path)
	assert.NoError(t, statErr)

	assert.True(t, AnyFailed(results))
}

func TestDownloadRetriesTransientNetworkErrors(t *testing.T) {
	var failures atomic.Int64
	srv := newPageServer(t, func(w http.ResponseWriter, n int) {
		if failures.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(pageBody(n))
	})

	src := &mockSource{
		listPagesFunc: func(context.Context, *source.Session, source.ComicID) ([]source.Page, error) {
			return serverPages(srv.URL, 1), nil
		},
	}

	o := newTestOrchestrator(t, Options{Attempts: 3})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.EqualValues(t, 3, srv.requests.Load())
}

func TestDownloadExhaustedRetriesFail(t *testing.T) {
	srv := newPageServer(t, func(w http.ResponseWriter, n int) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	src := &mockSource{
		listPagesFunc: func(context.Context, *source.Session, source.ComicID) ([]source.Page, error) {
			return serverPages(srv.URL, 1), nil
		},
	}

	o := newTestOrchestrator(t, Options{Attempts: 2})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, source.ErrNetwork)
	assert.EqualValues(t, 2, srv.requests.Load())
}

func TestDownloadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &mockSource{}
	o := newTestOrchestrator(t, Options{})
	results := o.DownloadIssues(ctx, src, source.NewSession(nil, source.Credentials{}), []source.IssueRef{
		{ID: source.ComicID{Source: "mock", ID: "1", Type: source.TypeIssue}, Key: "1"},
		{ID: source.ComicID{Source: "mock", ID: "2", Type: source.TypeIssue}, Key: "2"},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, src.listPagesCalls.Load())
}

func TestDownloadEmptyPageListFails(t *testing.T) {
	src := &mockSource{
		listPagesFunc: func(context.Context, *source.Session, source.ComicID) ([]source.Page, error) {
			return nil, nil
		},
	}

	o := newTestOrchestrator(t, Options{})
	results, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, source.ErrParse)
}

func TestResolveInvalidURL(t *testing.T) {
	src := &mockSource{
		resolveURLFunc: func(rawURL string) (source.ComicID, error) {
			return source.ComicID{}, source.ErrInvalidURL
		},
	}

	o := newTestOrchestrator(t, Options{})
	_, err := o.Download(context.Background(), src, source.NewSession(nil, source.Credentials{}), "garbage")
	assert.ErrorIs(t, err, source.ErrInvalidURL)
}
