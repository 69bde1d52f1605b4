package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/decrypt"
)

// Page is the handle an adapter hands out for one page of one issue. It
// lives only for the duration of that issue's download.
type Page struct {
	URL     string
	Headers map[string]string
	Format  string
	Scheme  decrypt.Scheme
}

// Fetch downloads the raw page bytes and runs them through the page's
// decryption scheme. One attempt; the orchestrator owns retries.
func (p Page) Fetch(ctx context.Context, sess *Session) (comic.PageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return comic.PageData{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	sess.Authorize(req)

	resp, err := sess.Client.Do(req)
	if err != nil {
		return comic.PageData{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return comic.PageData{}, fmt.Errorf("%w: %s", ErrPageMissing, p.URL)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return comic.PageData{}, fmt.Errorf("%w: HTTP %d for %s", ErrAuthRequired, resp.StatusCode, p.URL)
	case resp.StatusCode != http.StatusOK:
		return comic.PageData{}, fmt.Errorf("%w: HTTP %d for %s", ErrNetwork, resp.StatusCode, p.URL)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return comic.PageData{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	scheme := p.Scheme
	if scheme == nil {
		scheme = decrypt.Identity{}
	}
	data, err := scheme.Decode(raw)
	if err != nil {
		return comic.PageData{}, err
	}

	ext := p.Format
	if ext == "" {
		ext = comic.DetectFormat(data)
	}

	return comic.PageData{Data: data, Ext: ext}, nil
}
