package feeds

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// rssDocument maps the subset of RSS 2.0 the collector reads
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// atomDocument maps the subset of Atom the collector reads; reddit
// serves its .rss endpoints as Atom
type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Content string `xml:"content"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// timeLayouts are tried in order when parsing entry timestamps
var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

// Parse decodes a feed body as RSS 2.0 first, then Atom. Entries with
// no title are skipped; everything else is kept even when the
// timestamp fails to parse (zero Published means "poll time").
func Parse(body []byte, source string) ([]Entry, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return fromRSS(rss, source), nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		return fromAtom(atom, source), nil
	}

	return nil, fmt.Errorf("body from %s is neither RSS nor Atom", source)
}

func fromRSS(doc rssDocument, source string) []Entry {
	entries := make([]Entry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		title := stripHTML(item.Title)
		if title == "" {
			continue
		}
		entries = append(entries, Entry{
			ID:        strings.TrimSpace(item.GUID),
			Title:     title,
			Summary:   stripHTML(item.Description),
			Link:      strings.TrimSpace(item.Link),
			Published: parseTime(item.PubDate),
			Source:    source,
		})
	}
	return entries
}

func fromAtom(doc atomDocument, source string) []Entry {
	entries := make([]Entry, 0, len(doc.Entries))
	for _, item := range doc.Entries {
		title := stripHTML(item.Title)
		if title == "" {
			continue
		}

		summary := item.Summary
		if summary == "" {
			summary = item.Content
		}

		link := ""
		for _, l := range item.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		entries = append(entries, Entry{
			ID:        strings.TrimSpace(item.ID),
			Title:     title,
			Summary:   stripHTML(summary),
			Link:      link,
			Published: parseTime(item.Updated),
			Source:    source,
		})
	}
	return entries
}

// stripHTML flattens markup to whitespace-normalized text. Feed
// descriptions routinely embed full HTML fragments.
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "<") {
		return collapseSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
