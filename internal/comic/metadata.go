package comic

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

type ReadingDirection int

const (
	LeftToRight ReadingDirection = iota
	RightToLeft
)

type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Metadata holds everything a source knows about one issue. Every field is
// optional; the zero value means the source did not expose it.
type Metadata struct {
	Title     string           `json:"title,omitempty"`
	Series    string           `json:"series,omitempty"`
	Publisher string           `json:"publisher,omitempty"`
	Issue     int              `json:"issue,omitempty"`
	Year      int              `json:"year,omitempty"`
	Month     int              `json:"month,omitempty"`
	Day       int              `json:"day,omitempty"`
	Authors   []Author         `json:"authors,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Source    string           `json:"source,omitempty"`
	Reading   ReadingDirection `json:"reading_direction,omitempty"`
}

// Date returns the release date as YYYY-M-D, or "" if any part is missing.
func (m Metadata) Date() string {
	if m.Year == 0 || m.Month == 0 || m.Day == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d-%d", m.Year, m.Month, m.Day)
}

// DisplayTitle picks the best human label for the issue.
func (m Metadata) DisplayTitle() string {
	switch {
	case m.Title != "":
		return m.Title
	case m.Series != "" && m.Issue != 0:
		return fmt.Sprintf("%s #%d", m.Series, m.Issue)
	case m.Series != "":
		return m.Series
	default:
		return "comic"
	}
}

func (m Metadata) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

type comicInfoPage struct {
	Image       int `xml:"Image,attr"`
	ImageWidth  int `xml:"ImageWidth,attr,omitempty"`
	ImageHeight int `xml:"ImageHeight,attr,omitempty"`
}

// comicInfo follows the ComicRack ComicInfo.xml schema, the de facto
// metadata format understood by CBZ readers.
type comicInfo struct {
	XMLName   xml.Name        `xml:"ComicInfo"`
	Title     string          `xml:"Title,omitempty"`
	Series    string          `xml:"Series,omitempty"`
	Number    int             `xml:"Number,omitempty"`
	Publisher string          `xml:"Publisher,omitempty"`
	Year      int             `xml:"Year,omitempty"`
	Month     int             `xml:"Month,omitempty"`
	Day       int             `xml:"Day,omitempty"`
	Writer    string          `xml:"Writer,omitempty"`
	Summary   string          `xml:"Summary,omitempty"`
	Notes     string          `xml:"Notes,omitempty"`
	Manga     string          `xml:"Manga,omitempty"`
	PageCount int             `xml:"PageCount,omitempty"`
	Pages     []comicInfoPage `xml:"Pages>Page,omitempty"`
}

// ComicInfo renders the metadata as a ComicInfo.xml document. Page entries
// carry image dimensions when they can be decoded.
func (m Metadata) ComicInfo(pages []PageData) ([]byte, error) {
	info := comicInfo{
		Title:     m.Title,
		Series:    m.Series,
		Number:    m.Issue,
		Publisher: m.Publisher,
		Year:      m.Year,
		Month:     m.Month,
		Day:       m.Day,
		Summary:   m.Summary,
		PageCount: len(pages),
	}

	if m.Source != "" {
		info.Notes = "Downloaded from " + m.Source
	}
	if m.Reading == RightToLeft {
		info.Manga = "YesAndRightToLeft"
	}
	for _, a := range m.Authors {
		if a.Role == "writer" || a.Role == "" {
			info.Writer = a.Name
			break
		}
	}

	for i, p := range pages {
		entry := comicInfoPage{Image: i}
		if w, h, ok := p.Dimensions(); ok {
			entry.ImageWidth = w
			entry.ImageHeight = h
		}
		info.Pages = append(info.Pages, entry)
	}

	out, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), out...), nil
}
