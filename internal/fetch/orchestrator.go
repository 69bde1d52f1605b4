// Package fetch is the concurrency core of the downloader. It turns a
// resolved URL into finished archives: series fan out to issue tasks,
// issue tasks fan out to page fetches, both under their own bounds, and
// pages are reassembled in index order no matter how fetches complete.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/decrypt"
	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/ui"
)

// IssueProgress receives page-level progress for one issue.
type IssueProgress interface {
	SetTotal(total int)
	Update(done, total int, bytes int64)
	MarkDone()
}

type noopProgress struct{}

func (noopProgress) SetTotal(int)           {}
func (noopProgress) Update(int, int, int64) {}
func (noopProgress) MarkDone()              {}

type Options struct {
	OutputDir string
	Template  string
	Format    comic.Format
	Overwrite bool

	// IssueWorkers bounds concurrent issue downloads, PageWorkers bounds
	// concurrent page fetches inside one issue. Both limits are needed: a
	// series may hold hundreds of issues and an issue hundreds of pages.
	IssueWorkers int
	PageWorkers  int

	// Attempts is the per-page retry budget for transient network errors.
	Attempts int
	Backoff  time.Duration

	// Progress registers a per-issue progress sink; nil disables it.
	Progress func(label string) IssueProgress
}

type Orchestrator struct {
	opts  Options
	log   *ui.Logger
	Stats ui.Stats
}

func New(opts Options, log *ui.Logger) *Orchestrator {
	if opts.IssueWorkers < 1 {
		opts.IssueWorkers = 2
	}
	if opts.PageWorkers < 1 {
		opts.PageWorkers = 5
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if log == nil {
		log = ui.NewLogger(false)
	}
	return &Orchestrator{opts: opts, log: log}
}

// Resolve expands a raw URL into the issues it stands for. Series URLs
// are listed; issue URLs become a single-element list.
func (o *Orchestrator) Resolve(ctx context.Context, src source.Source, sess *source.Session, rawURL string) ([]source.IssueRef, error) {
	id, err := src.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	if id.Type == source.TypeSeries {
		refs, err := src.ListIssues(ctx, sess, id)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", id, err)
		}
		return refs, nil
	}

	return []source.IssueRef{{ID: id}}, nil
}

// Download resolves rawURL and downloads every issue it names. The
// returned error covers target-level failures only (bad URL, listing
// failure); per-issue outcomes live in the results.
func (o *Orchestrator) Download(ctx context.Context, src source.Source, sess *source.Session, rawURL string) ([]Result, error) {
	refs, err := o.Resolve(ctx, src, sess, rawURL)
	if err != nil {
		return nil, err
	}

	return o.DownloadIssues(ctx, src, sess, refs), nil
}

// DownloadIssues fans out one task per issue with bounded parallelism.
// Issues fail independently; a lost page never aborts a sibling issue.
func (o *Orchestrator) DownloadIssues(ctx context.Context, src source.Source, sess *source.Session, refs []source.IssueRef) []Result {
	results := make([]Result, len(refs))

	g := new(errgroup.Group)
	g.SetLimit(o.opts.IssueWorkers)

	for i, ref := range refs {
		if ctx.Err() != nil {
			results[i] = Result{Issue: ref.ID, Key: ref.Key, Label: ref.Label(), Status: StatusFailed, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = o.downloadIssue(ctx, src, sess, ref)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) downloadIssue(ctx context.Context, src source.Source, sess *source.Session, ref source.IssueRef) Result {
	res := Result{Issue: ref.ID, Key: ref.Key, Label: ref.Label()}

	fail := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		o.Stats.TotalFailed.Add(1)
		o.log.Errorf("%s failed: %v\n", res.Label, err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	meta := ref.Meta
	if meta == nil {
		m, err := src.Metadata(ctx, sess, ref.ID)
		if err != nil {
			return fail(fmt.Errorf("metadata: %w", err))
		}
		meta = &m
	}
	res.Label = meta.DisplayTitle()

	path := filepath.Join(o.opts.OutputDir, comic.ExpandPath(o.opts.Template, *meta)) + o.opts.Format.Ext()
	res.Path = path

	if !o.opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			res.Status = StatusSkipped
			o.Stats.TotalSkipped.Add(1)
			o.log.Debugf("%s already exists, skipping\n", path)
			return res
		}
	}

	pages, err := src.ListPages(ctx, sess, ref.ID)
	if err != nil {
		return fail(fmt.Errorf("listing pages: %w", err))
	}
	if len(pages) == 0 {
		return fail(fmt.Errorf("no pages: %w", source.ErrParse))
	}

	var prog IssueProgress = noopProgress{}
	if o.opts.Progress != nil {
		prog = o.opts.Progress(res.Label)
	}
	prog.SetTotal(len(pages))

	// Pages land in an index-addressed slice so assembly order is reading
	// order regardless of fetch completion order.
	data := make([]comic.PageData, len(pages))
	var done, bytes atomic.Int64

	pg, pctx := errgroup.WithContext(ctx)
	pg.SetLimit(o.opts.PageWorkers)

	for i, page := range pages {
		pg.Go(func() error {
			pd, err := o.fetchPage(pctx, sess, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			data[i] = pd
			bytes.Add(int64(len(pd.Data)))
			prog.Update(int(done.Add(1)), len(pages), bytes.Load())
			return nil
		})
	}
	if err := pg.Wait(); err != nil {
		prog.MarkDone()
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		prog.MarkDone()
		return fail(err)
	}

	if err := comic.Write(*meta, data, path, o.opts.Format); err != nil {
		prog.MarkDone()
		return fail(fmt.Errorf("assembling: %w", err))
	}

	prog.MarkDone()
	o.Stats.TotalIssues.Add(1)
	o.Stats.TotalPages.Add(int64(len(pages)))
	o.Stats.TotalBytes.Add(bytes.Load())
	res.Status = StatusSuccess

	return res
}

// fetchPage retries transient network failures with linear backoff.
// Missing pages and decode failures are terminal for the issue.
func (o *Orchestrator) fetchPage(ctx context.Context, sess *source.Session, page source.Page) (comic.PageData, error) {
	var last error
	for attempt := 1; attempt <= o.opts.Attempts; attempt++ {
		pd, err := page.Fetch(ctx, sess)
		if err == nil {
			return pd, nil
		}
		last = err

		if !errors.Is(err, source.ErrNetwork) || errors.Is(err, decrypt.ErrCorrupt) {
			return comic.PageData{}, err
		}

		select {
		case <-ctx.Done():
			return comic.PageData{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * o.opts.Backoff):
		}
	}

	return comic.PageData{}, last
}
