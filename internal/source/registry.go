package source

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

type registration struct {
	name    string
	pattern *regexp.Regexp
	factory func() Source
}

var (
	regMu    sync.Mutex
	registry []registration
)

// Register adds a source factory under a host pattern. Called from the
// init of each adapter package; the orchestrator never changes when a new
// platform registers itself.
func Register(name, hostPattern string, factory func() Source) {
	regMu.Lock()
	defer regMu.Unlock()
	registry = append(registry, registration{
		name:    name,
		pattern: regexp.MustCompile(hostPattern),
		factory: factory,
	})
}

// FromURL picks the source whose host pattern matches the URL.
func FromURL(rawURL string) (Source, error) {
	regMu.Lock()
	defer regMu.Unlock()
	for _, r := range registry {
		if r.pattern.MatchString(rawURL) {
			return r.factory(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
}

// FromName builds a source by its registered name, used when re-checking
// tracked series whose source is stored by name.
func FromName(name string) (Source, error) {
	regMu.Lock()
	defer regMu.Unlock()
	for _, r := range registry {
		if r.name == name {
			return r.factory(), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidURL, name)
}

// Names lists the registered sources in stable order.
func Names() []string {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]string, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.name)
	}
	sort.Strings(out)
	return out
}
