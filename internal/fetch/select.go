package fetch

import (
	"strconv"
	"strings"

	"github.com/halvden/comicfetch/internal/source"
)

// Filter narrows a series listing to the requested issues. single matches
// an ordering key first, then a 1-based index; rng is an index range like
// "5-12"; list is a comma separated set of indices. Empty selectors keep
// everything.
func Filter(all []source.IssueRef, single, rng, list string) []source.IssueRef {
	if single != "" {
		byKey := FilterByKey(all, single)
		if len(byKey) > 0 {
			return byKey
		}

		if idx, err := strconv.Atoi(single); err == nil {
			if idx > 0 && idx <= len(all) {
				return []source.IssueRef{all[idx-1]}
			}
		}

		return nil
	}

	if rng != "" {
		return FilterRange(all, rng)
	}
	if list != "" {
		return FilterList(all, list)
	}

	return all
}

func FilterByKey(all []source.IssueRef, key string) []source.IssueRef {
	out := []source.IssueRef{}
	for _, r := range all {
		if r.Key == key {
			out = append(out, r)
		}
	}

	return out
}

func FilterRange(all []source.IssueRef, rng string) []source.IssueRef {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}

	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))

	if err1 != nil || err2 != nil {
		return nil
	}
	if start <= 0 || end <= 0 || start > end || end > len(all) {
		return nil
	}

	return all[start-1 : end]
}

func FilterList(all []source.IssueRef, list string) []source.IssueRef {
	var out []source.IssueRef
	for p := range strings.SplitSeq(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx, err := strconv.Atoi(p)
		if err != nil || idx <= 0 || idx > len(all) {
			continue
		}

		out = append(out, all[idx-1])
	}

	return out
}
