// Package mangaplus adapts the MANGA Plus by Shueisha platform. The
// viewer API answers with a binary protobuf payload; ids, titles and page
// URLs are pulled out with byte-level regular expressions, and page
// images are XOR-scrambled with a per-page 64-byte key shipped as hex in
// the same payload.
package mangaplus

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/decrypt"
	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/util"
)

const host = "mangaplus.shueisha.co.jp"

// apiBase is a var so tests can point the adapter at a local server.
var apiBase = "https://jumpg-webapi.tokyo-cdn.com/api"

var (
	reIssue  = regexp.MustCompile(`mangaplus\.shueisha\.co\.jp/viewer/(\d+)`)
	reSeries = regexp.MustCompile(`mangaplus\.shueisha\.co\.jp/titles/(\d+)`)

	reChapter    = regexp.MustCompile(`chapter/(\d+)`)
	reSeriesName = regexp.MustCompile(`(?s)\x12.(.+?)\x1a`)
	reTitle      = regexp.MustCompile(`(?s)\x22.(.+?)\x2a`)
	reSeriesRef  = regexp.MustCompile(`MANGA_Plus (.+?)\x12`)
	reIssueNum   = regexp.MustCompile(`#(\d+)`)

	rePageURL = regexp.MustCompile(`\x01(https://mangaplus\.shueisha\.co\.jp/drm/title/[^\x10]+)\x10`)
	rePageKey = regexp.MustCompile(`\x01([0-9a-f]{128})\x0a`)
)

func init() {
	source.Register("mangaplus", `mangaplus\.shueisha\.co\.jp`, func() source.Source {
		return &Source{}
	})
}

type Source struct{}

func (s *Source) Name() string { return "mangaplus" }

func (s *Source) ResolveURL(rawURL string) (source.ComicID, error) {
	if m := reIssue.FindStringSubmatch(rawURL); m != nil {
		return source.ComicID{Source: s.Name(), ID: m[1], Type: source.TypeIssue}, nil
	}
	if m := reSeries.FindStringSubmatch(rawURL); m != nil {
		return source.ComicID{Source: s.Name(), ID: m[1], Type: source.TypeSeries}, nil
	}
	if strings.Contains(rawURL, host) {
		return source.ComicID{}, fmt.Errorf("%w: %s", source.ErrUnsupported, rawURL)
	}
	return source.ComicID{}, fmt.Errorf("%w: %s", source.ErrInvalidURL, rawURL)
}

func (s *Source) SeriesInfo(ctx context.Context, sess *source.Session, id source.ComicID) (source.SeriesInfo, error) {
	body, err := s.get(ctx, sess, apiBase+"/title_detailV2?title_id="+id.ID)
	if err != nil {
		return source.SeriesInfo{}, err
	}

	m := reSeriesName.FindSubmatch(body)
	if m == nil {
		return source.SeriesInfo{}, fmt.Errorf("series name: %w", source.ErrParse)
	}

	return source.SeriesInfo{Name: string(m[1])}, nil
}

func (s *Source) ListIssues(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.IssueRef, error) {
	if id.Type != source.TypeSeries {
		return nil, fmt.Errorf("%w: not a series", source.ErrUnsupported)
	}

	body, err := s.get(ctx, sess, apiBase+"/title_detailV2?title_id="+id.ID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var refs []source.IssueRef
	for _, m := range reChapter.FindAllSubmatch(body, -1) {
		chapterID := string(m[1])
		if seen[chapterID] {
			continue
		}
		seen[chapterID] = true
		refs = append(refs, source.IssueRef{
			ID:  source.ComicID{Source: s.Name(), ID: chapterID, Type: source.TypeIssue},
			Key: chapterID,
		})
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("no chapters in series %s: %w", id.ID, source.ErrParse)
	}

	return refs, nil
}

func (s *Source) Metadata(ctx context.Context, sess *source.Session, id source.ComicID) (comic.Metadata, error) {
	body, err := s.viewer(ctx, sess, id)
	if err != nil {
		return comic.Metadata{}, err
	}

	meta := comic.Metadata{
		Source:  s.Name(),
		Reading: comic.RightToLeft,
	}
	if m := reTitle.FindSubmatch(body); m != nil {
		meta.Title = string(m[1])
	}
	if m := reSeriesRef.FindSubmatch(body); m != nil {
		meta.Series = string(m[1])
	}
	if m := reIssueNum.FindSubmatch(body); m != nil {
		meta.Issue, _ = strconv.Atoi(string(m[1]))
	}

	return meta, nil
}

func (s *Source) ListPages(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.Page, error) {
	body, err := s.viewer(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	urls := rePageURL.FindAllSubmatch(body, -1)
	keys := rePageKey.FindAllSubmatch(body, -1)
	if len(urls) == 0 || len(urls) != len(keys) {
		return nil, fmt.Errorf("found %d page urls and %d keys: %w", len(urls), len(keys), source.ErrParse)
	}

	pages := make([]source.Page, len(urls))
	for i := range urls {
		key, err := hex.DecodeString(string(keys[i][1]))
		if err != nil {
			return nil, fmt.Errorf("page key %d: %w", i, source.ErrParse)
		}
		pages[i] = source.Page{
			URL:    string(urls[i][1]),
			Format: "jpg",
			Scheme: decrypt.XOR{Key: key},
		}
	}

	return pages, nil
}

func (s *Source) viewer(ctx context.Context, sess *source.Session, id source.ComicID) ([]byte, error) {
	if id.Type != source.TypeIssue {
		return nil, fmt.Errorf("%w: not an issue", source.ErrUnsupported)
	}
	return s.get(ctx, sess, apiBase+"/manga_viewer?chapter_id="+id.ID+"&split=yes&img_quality=super_high")
}

func (s *Source) get(ctx context.Context, sess *source.Session, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrNetwork, err)
	}

	resp, err := util.DoWithRetry(sess.Client, req, 3, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", source.ErrNetwork, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrNetwork, err)
	}

	return body, nil
}
