package webtoon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvden/comicfetch/internal/source"
)

func TestResolveURL(t *testing.T) {
	s := &Source{}

	id, err := s.ResolveURL("https://www.webtoons.com/en/fantasy/tower-of-god/season-3-ep-133/viewer?title_no=95&episode_no=550")
	require.NoError(t, err)
	assert.Equal(t, source.TypeIssue, id.Type)
	assert.Equal(t, "webtoon", id.Source)
	assert.Equal(t, "fantasy/tower-of-god/season-3-ep-133/viewer?title_no=95&episode_no=550", id.ID)

	id, err = s.ResolveURL("https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95")
	require.NoError(t, err)
	assert.Equal(t, source.TypeSeries, id.Type)
	assert.Equal(t, "fantasy/tower-of-god/list?title_no=95", id.ID)

	_, err = s.ResolveURL("https://www.webtoons.com/en/originals")
	assert.ErrorIs(t, err, source.ErrUnsupported)

	_, err = s.ResolveURL("https://example.org/en/fantasy/tower-of-god/list?title_no=95")
	assert.ErrorIs(t, err, source.ErrInvalidURL)
}

const episodeListHTML = `<!DOCTYPE html><html><head>
<meta property="og:title" content="Tower of God"/>
</head><body>
<ul id="_episodeList">
<li><a href="https://www.webtoons.com/en/fantasy/tower-of-god/ep-2/viewer?title_no=95&episode_no=2">Ep 2</a></li>
<li><a href="https://www.webtoons.com/en/fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1">Ep 1</a></li>
<li><a href="https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95">more</a></li>
</ul>
</body></html>`

const viewerHTML = `<!DOCTYPE html><html><head>
<meta property="og:description" content="Long ago the tower appeared."/>
<meta property="com-linewebtoon:episode:author" content="SIU"/>
</head><body>
<h1 class="subj">Tower of God</h1>
<h2 class="subj_episode">Ep. 1 - Headon's Floor</h2>
<div id="content">
<img class="_images" data-url="https://webtoon-phinf.example/page1.jpg"/>
<img class="_images" data-url="https://webtoon-phinf.example/page2.jpg"/>
<img src="https://webtoon-phinf.example/banner.jpg"/>
</div>
</body></html>`

// siteServer routes the mobile and desktop bases onto one test server and
// records the headers of the last request.
func siteServer(t *testing.T, routes map[string]string) *http.Header {
	t.Helper()

	var lastHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header.Clone()
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))

	origDesktop, origMobile := desktopBase, mobileBase
	desktopBase = srv.URL + "/w/"
	mobileBase = srv.URL + "/m/"
	t.Cleanup(func() {
		desktopBase, mobileBase = origDesktop, origMobile
		srv.Close()
	})

	return &lastHeader
}

func TestListIssues(t *testing.T) {
	hdr := siteServer(t, map[string]string{
		"/m/fantasy/tower-of-god/list": episodeListHTML,
	})

	s := &Source{}
	sess := source.NewSession(nil, source.Credentials{})
	refs, err := s.ListIssues(context.Background(), sess, source.ComicID{
		Source: "webtoon", ID: "fantasy/tower-of-god/list?title_no=95", Type: source.TypeSeries,
	})
	require.NoError(t, err)

	// The non-episode link is ignored and the newest-first listing comes
	// back in reading order.
	require.Len(t, refs, 2)
	assert.Equal(t, "1", refs[0].Key)
	assert.Equal(t, "2", refs[1].Key)

	require.NotNil(t, refs[0].Meta)
	assert.Equal(t, "Tower of God", refs[0].Meta.Series)
	assert.Equal(t, "Tower of God Episode 1", refs[0].Meta.Title)
	assert.Equal(t, 1, refs[0].Meta.Issue)
	assert.Equal(t, "webtoon", refs[0].Meta.Source)

	// The mobile site only answers with consent cookies and a mobile UA.
	assert.Contains(t, hdr.Get("Cookie"), "needGDPR=false")
	assert.Contains(t, hdr.Get("User-Agent"), "Android")
}

func TestListIssuesRejectsIssueID(t *testing.T) {
	s := &Source{}
	sess := source.NewSession(nil, source.Credentials{})
	_, err := s.ListIssues(context.Background(), sess, source.ComicID{
		Source: "webtoon", ID: "fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1", Type: source.TypeIssue,
	})
	assert.ErrorIs(t, err, source.ErrUnsupported)
}

func TestSeriesInfo(t *testing.T) {
	siteServer(t, map[string]string{
		"/m/fantasy/tower-of-god/list": episodeListHTML,
	})

	s := &Source{}
	sess := source.NewSession(nil, source.Credentials{})
	info, err := s.SeriesInfo(context.Background(), sess, source.ComicID{
		Source: "webtoon", ID: "fantasy/tower-of-god/list?title_no=95", Type: source.TypeSeries,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tower of God", info.Name)
}

func TestMetadata(t *testing.T) {
	siteServer(t, map[string]string{
		"/w/fantasy/tower-of-god/ep-1/viewer": viewerHTML,
	})

	s := &Source{}
	sess := source.NewSession(nil, source.Credentials{})
	meta, err := s.Metadata(context.Background(), sess, source.ComicID{
		Source: "webtoon", ID: "fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1", Type: source.TypeIssue,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ep. 1 - Headon's Floor", meta.Title)
	assert.Equal(t, "Tower of God", meta.Series)
	assert.Equal(t, "Long ago the tower appeared.", meta.Summary)
	assert.Equal(t, 1, meta.Issue)
	require.Len(t, meta.Authors, 1)
	assert.Equal(t, "SIU", meta.Authors[0].Name)
}

func TestListPages(t *testing.T) {
	siteServer(t, map[string]string{
		"/w/fantasy/tower-of-god/ep-1/viewer": viewerHTML,
	})

	s := &Source{}
	sess := source.NewSession(nil, source.Credentials{})
	pages, err := s.ListPages(context.Background(), sess, source.ComicID{
		Source: "webtoon", ID: "fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1", Type: source.TypeIssue,
	})
	require.NoError(t, err)

	// Only the tagged page images count, in document order, each carrying
	// the Referer the CDN requires.
	require.Len(t, pages, 2)
	assert.Equal(t, "https://webtoon-phinf.example/page1.jpg", pages[0].URL)
	assert.Equal(t, "https://webtoon-phinf.example/page2.jpg", pages[1].URL)
	assert.Equal(t, "https://www.webtoons.com", pages[0].Headers["Referer"])
}
