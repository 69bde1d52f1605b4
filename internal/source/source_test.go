package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halvden/comicfetch/internal/comic"
)

func TestCompareKeys(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2", "1", 1},
		{"7", "7", 0},
		{"10", "9", 1},    // numeric, not lexical
		{"2.5", "2.4", 1}, // fractional issue numbers
		{"", "1", -1},
		{"1", "", 1},
		{"", "", 0},
		{"abc", "abd", -1},
		{"ch-10", "ch-9", -1}, // both non-numeric falls back to lexical
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompareKeys(tc.a, tc.b), "CompareKeys(%q, %q)", tc.a, tc.b)
	}
}

func TestComicIDString(t *testing.T) {
	id := ComicID{Source: "webtoon", ID: "95", Type: TypeSeries}
	assert.Equal(t, "webtoon:95", id.String())
}

func TestIssueRefLabel(t *testing.T) {
	id := ComicID{Source: "webtoon", ID: "95", Type: TypeIssue}

	assert.Equal(t, "webtoon:95", IssueRef{ID: id}.Label())
	assert.Equal(t, "webtoon:95", IssueRef{ID: id, Meta: &comic.Metadata{}}.Label())
	assert.Equal(t, "Episode 3", IssueRef{ID: id, Meta: &comic.Metadata{Title: "Episode 3"}}.Label())
}
