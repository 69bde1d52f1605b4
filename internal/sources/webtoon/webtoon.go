// Package webtoon adapts the LINE Webtoon platform. Episode lists come
// from the mobile site, pages from the desktop viewer; both are plain
// HTML scraped with goquery. Page images are not obfuscated but require a
// Referer header.
package webtoon

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/util"
)

// Base URLs are vars so tests can point the adapter at a local server.
var (
	desktopBase = "https://www.webtoons.com/en/"
	mobileBase  = "https://m.webtoons.com/en/"
)

const (
	// The mobile site hides the episode list behind consent banners
	// unless these are preset.
	consentCookie = "needGDPR=false; needCCPA=false; needCOPPA=false"

	androidUA = "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
)

var (
	reIssue     = regexp.MustCompile(`webtoons\.com/[a-z]{2}/(\w+/[^/]+/[^/]+/viewer\?\S*episode_no=\d+)`)
	reSeries    = regexp.MustCompile(`webtoons\.com/[a-z]{2}/(\w+/[^/]+/list\?title_no=\d+)`)
	reEpisodeNo = regexp.MustCompile(`episode_no=(\d+)`)
)

func init() {
	source.Register("webtoon", `webtoons\.com`, func() source.Source {
		return &Source{}
	})
}

type Source struct{}

func (s *Source) Name() string { return "webtoon" }

// ResolveURL keeps the path-with-query form as the id; it is the part of
// the URL both the mobile and desktop sites accept.
func (s *Source) ResolveURL(rawURL string) (source.ComicID, error) {
	if m := reIssue.FindStringSubmatch(rawURL); m != nil {
		return source.ComicID{Source: s.Name(), ID: m[1], Type: source.TypeIssue}, nil
	}
	if m := reSeries.FindStringSubmatch(rawURL); m != nil {
		return source.ComicID{Source: s.Name(), ID: m[1], Type: source.TypeSeries}, nil
	}
	if strings.Contains(rawURL, "webtoons.com") {
		return source.ComicID{}, fmt.Errorf("%w: %s", source.ErrUnsupported, rawURL)
	}
	return source.ComicID{}, fmt.Errorf("%w: %s", source.ErrInvalidURL, rawURL)
}

func (s *Source) SeriesInfo(ctx context.Context, sess *source.Session, id source.ComicID) (source.SeriesInfo, error) {
	doc, err := s.fetchDOM(ctx, sess, mobileBase+id.ID, true)
	if err != nil {
		return source.SeriesInfo{}, err
	}

	name, ok := doc.Find(`meta[property="og:title"]`).Attr("content")
	if !ok || name == "" {
		return source.SeriesInfo{}, fmt.Errorf("series title: %w", source.ErrParse)
	}

	return source.SeriesInfo{Name: name}, nil
}

func (s *Source) ListIssues(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.IssueRef, error) {
	if id.Type != source.TypeSeries {
		return nil, fmt.Errorf("%w: not a series", source.ErrUnsupported)
	}

	doc, err := s.fetchDOM(ctx, sess, mobileBase+id.ID, true)
	if err != nil {
		return nil, err
	}

	series, _ := doc.Find(`meta[property="og:title"]`).Attr("content")

	var refs []source.IssueRef
	doc.Find("ul#_episodeList li a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		issueID, err := s.ResolveURL(href)
		if err != nil || issueID.Type != source.TypeIssue {
			return
		}

		key := ""
		if m := reEpisodeNo.FindStringSubmatch(href); m != nil {
			key = m[1]
		}

		ref := source.IssueRef{ID: issueID, Key: key}
		if series != "" && key != "" {
			num, _ := strconv.Atoi(key)
			ref.Meta = &comic.Metadata{
				Series: series,
				Title:  fmt.Sprintf("%s Episode %s", series, key),
				Issue:  num,
				Source: s.Name(),
			}
		}
		refs = append(refs, ref)
	})

	if len(refs) == 0 {
		return nil, fmt.Errorf("no episodes in series %s: %w", id.ID, source.ErrParse)
	}

	// The site lists newest first; downstream expects reading order.
	sort.SliceStable(refs, func(i, j int) bool {
		return source.CompareKeys(refs[i].Key, refs[j].Key) < 0
	})

	return refs, nil
}

func (s *Source) Metadata(ctx context.Context, sess *source.Session, id source.ComicID) (comic.Metadata, error) {
	doc, err := s.viewerDOM(ctx, sess, id)
	if err != nil {
		return comic.Metadata{}, err
	}

	meta := comic.Metadata{Source: s.Name()}
	meta.Title = strings.TrimSpace(doc.Find(".subj_episode").First().Text())
	meta.Series = strings.TrimSpace(doc.Find(".subj").First().Text())
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		meta.Summary = desc
	}
	if author, ok := doc.Find(`meta[property="com-linewebtoon:episode:author"]`).Attr("content"); ok {
		meta.Authors = append(meta.Authors, comic.Author{Name: author, Role: "writer"})
	}
	if m := reEpisodeNo.FindStringSubmatch(id.ID); m != nil {
		meta.Issue, _ = strconv.Atoi(m[1])
	}

	return meta, nil
}

func (s *Source) ListPages(ctx context.Context, sess *source.Session, id source.ComicID) ([]source.Page, error) {
	doc, err := s.viewerDOM(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	var pages []source.Page
	doc.Find("#content ._images").Each(func(_ int, sel *goquery.Selection) {
		url, ok := sel.Attr("data-url")
		if !ok {
			return
		}
		pages = append(pages, source.Page{
			URL:     url,
			Headers: map[string]string{"Referer": "https://www.webtoons.com"},
			Format:  "jpg",
		})
	})

	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images in episode %s: %w", id.ID, source.ErrParse)
	}

	return pages, nil
}

func (s *Source) viewerDOM(ctx context.Context, sess *source.Session, id source.ComicID) (*goquery.Document, error) {
	if id.Type != source.TypeIssue {
		return nil, fmt.Errorf("%w: not an issue", source.ErrUnsupported)
	}
	return s.fetchDOM(ctx, sess, desktopBase+id.ID, false)
}

func (s *Source) fetchDOM(ctx context.Context, sess *source.Session, target string, mobile bool) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrNetwork, err)
	}
	req.Header.Set("Cookie", consentCookie)
	if mobile {
		req.Header.Set("User-Agent", androidUA)
	}

	resp, err := util.DoWithRetry(sess.Client, req, 3, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", source.ErrNetwork, resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrParse, err)
	}

	return doc, nil
}
