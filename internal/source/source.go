// Package source defines the contract every comic platform adapter
// satisfies: resolve a URL to a typed id, list the issues of a series,
// list the pages of an issue and fetch page bytes. The download pipeline
// in internal/fetch depends only on this package; platform specifics live
// in internal/sources.
package source

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/halvden/comicfetch/internal/comic"
)

// Error kinds shared by all adapters. Adapters wrap these with %w so
// callers discriminate with errors.Is.
var (
	ErrInvalidURL   = errors.New("url does not match any source grammar")
	ErrUnsupported  = errors.New("resource type not supported by this source")
	ErrAuthRequired = errors.New("authentication required")
	ErrNetwork      = errors.New("network request failed")
	ErrParse        = errors.New("unexpected response structure")
	ErrPageMissing  = errors.New("page no longer available")
)

type IDType int

const (
	TypeSeries IDType = iota
	TypeIssue
)

// ComicID identifies a series or a single issue on one source. Immutable
// once resolved.
type ComicID struct {
	Source string
	ID     string
	Type   IDType
}

func (id ComicID) String() string {
	return id.Source + ":" + id.ID
}

// SeriesInfo is the series-level metadata needed for update tracking.
type SeriesInfo struct {
	Name  string
	Ended bool
}

// IssueRef points at one issue inside a series listing. Key is the
// source's ordering key (issue number, episode number or chapter id);
// newer issues compare greater under CompareKeys. Meta is filled when the
// listing already carried enough metadata to name the issue, which lets
// the pipeline skip existing output without another request.
type IssueRef struct {
	ID   ComicID
	Key  string
	Meta *comic.Metadata
}

// Label is the short human name used in progress output.
func (r IssueRef) Label() string {
	if r.Meta != nil && r.Meta.DisplayTitle() != "comic" {
		return r.Meta.DisplayTitle()
	}
	return r.ID.String()
}

// Source is implemented once per platform. Implementations must be safe
// for concurrent calls on different issues; mutation of a shared Session
// is serialized by the Session itself.
type Source interface {
	Name() string

	// ResolveURL parses a raw URL into a typed id. Pure: no network.
	ResolveURL(rawURL string) (ComicID, error)

	// SeriesInfo fetches series-level metadata. id must be TypeSeries.
	SeriesInfo(ctx context.Context, sess *Session, id ComicID) (SeriesInfo, error)

	// ListIssues returns the issues of a series in reading order.
	ListIssues(ctx context.Context, sess *Session, id ComicID) ([]IssueRef, error)

	// Metadata fetches issue-level metadata. id must be TypeIssue.
	Metadata(ctx context.Context, sess *Session, id ComicID) (comic.Metadata, error)

	// ListPages returns the pages of an issue in reading order.
	ListPages(ctx context.Context, sess *Session, id ComicID) ([]Page, error)
}

// CompareKeys orders two issue keys, numerically when both parse as
// numbers and lexically otherwise. An empty key sorts before everything.
func CompareKeys(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(a, b)
}
