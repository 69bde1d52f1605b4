package comic

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTemplate mirrors a typical library layout.
const DefaultTemplate = "{publisher}/{series}/{title}"

var (
	reToken    = regexp.MustCompile(`\{[a-z]+\}`)
	reSlashRun = regexp.MustCompile(`/+`)
)

// ExpandPath substitutes metadata fields into a user supplied output
// template. Supported tokens: {title} {series} {publisher} {issue} {year}
// {source}. Tokens whose field is absent collapse without leaving empty
// path segments behind.
func ExpandPath(template string, m Metadata) string {
	if template == "" {
		template = DefaultTemplate
	}

	expanded := reToken.ReplaceAllStringFunc(template, func(tok string) string {
		var v string
		switch tok {
		case "{title}":
			v = m.DisplayTitle()
		case "{series}":
			v = m.Series
		case "{publisher}":
			v = m.Publisher
		case "{issue}":
			if m.Issue != 0 {
				v = strconv.Itoa(m.Issue)
			}
		case "{year}":
			if m.Year != 0 {
				v = strconv.Itoa(m.Year)
			}
		case "{source}":
			v = m.Source
		}
		return Sanitize(v)
	})

	expanded = reSlashRun.ReplaceAllString(expanded, "/")
	expanded = strings.Trim(expanded, "/ ")
	if expanded == "" {
		expanded = Sanitize(m.DisplayTitle())
	}

	return filepath.FromSlash(expanded)
}

// Sanitize strips characters that are hostile inside one path segment.
func Sanitize(s string) string {
	repl := []string{
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "_",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	return strings.TrimSpace(s)
}
