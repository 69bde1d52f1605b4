package fetch

import "github.com/halvden/comicfetch/internal/source"

type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "success"
	}
}

// Result is the terminal per-issue outcome reported to the caller.
type Result struct {
	Issue  source.ComicID
	Key    string
	Label  string
	Status Status
	Path   string
	Err    error
}

// AnyFailed reports whether at least one issue in the batch failed; the
// process exit status is derived from it.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}
