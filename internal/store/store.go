// Package store persists the set of tracked series so later runs only
// fetch newly published issues. The backing file is a JSON document;
// unknown fields survive nothing but are ignored on load, so newer
// versions can extend the record shape freely.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/halvden/comicfetch/internal/source"
)

// ErrCorrupt means the update file exists but cannot be parsed. It is
// surfaced instead of silently discarding tracked series.
var ErrCorrupt = errors.New("update file is corrupt")

// Record tracks one series. LastIssue is the ordering key of the newest
// issue downloaded successfully; it never moves backwards.
type Record struct {
	Source    string `json:"source"`
	SeriesID  string `json:"series_id"`
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	Ended     bool   `json:"ended,omitempty"`
	LastIssue string `json:"last_issue,omitempty"`
}

// Store owns the durable record set; it is the single writer of its
// backing file.
type Store struct {
	path    string
	records []Record
}

// Load reads the update file. A missing file is an empty store; malformed
// content fails with ErrCorrupt.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	return s, nil
}

// Save writes the full record set to a sibling temp file and renames it
// into place, so a crash never truncates the previous state.
func (s *Store) Save() error {
	sort.Slice(s.records, func(i, j int) bool {
		return s.records[i].Name < s.records[j].Name
	})

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

// Records returns a copy of the tracked series.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) find(src, seriesID string) int {
	for i, r := range s.records {
		if r.Source == src && r.SeriesID == seriesID {
			return i
		}
	}
	return -1
}

// Add inserts a record unless the (source, series) pair is already
// tracked. Reports whether the record was added.
func (s *Store) Add(r Record) bool {
	if s.find(r.Source, r.SeriesID) >= 0 {
		return false
	}
	s.records = append(s.records, r)
	return true
}

// Remove drops a tracked series. Reports whether it was present.
func (s *Store) Remove(src, seriesID string) bool {
	i := s.find(src, seriesID)
	if i < 0 {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return true
}

// MarkLatest advances the stored issue key. Out-of-order completions are
// fine: an older key never overwrites a newer one.
func (s *Store) MarkLatest(src, seriesID, issueKey string) {
	i := s.find(src, seriesID)
	if i < 0 {
		return
	}
	if source.CompareKeys(issueKey, s.records[i].LastIssue) > 0 {
		s.records[i].LastIssue = issueKey
	}
}

// SetInfo refreshes the display name and ended flag of a tracked series.
func (s *Store) SetInfo(src, seriesID, name string, ended bool) {
	i := s.find(src, seriesID)
	if i < 0 {
		return
	}
	if name != "" {
		s.records[i].Name = name
	}
	s.records[i].Ended = ended
}

// PruneEnded removes series marked as ended and returns how many were
// dropped.
func (s *Store) PruneEnded() int {
	kept := s.records[:0]
	dropped := 0
	for _, r := range s.records {
		if r.Ended {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return dropped
}
