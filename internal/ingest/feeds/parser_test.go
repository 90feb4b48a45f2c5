package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Markets</title>
    <item>
      <title>AAPL rallies after earnings beat</title>
      <link>https://example.com/a</link>
      <description>&lt;p&gt;Shares of &lt;b&gt;Apple&lt;/b&gt; surged today.&lt;/p&gt;</description>
      <guid>feed-item-1</guid>
      <pubDate>Mon, 06 Jan 2025 14:30:00 -0500</pubDate>
    </item>
    <item>
      <title></title>
      <guid>feed-item-2</guid>
    </item>
    <item>
      <title>Markets mixed at the open</title>
      <link>https://example.com/b</link>
      <pubDate>not a date</pubDate>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>r/stocks</title>
  <entry>
    <id>t3_abc123</id>
    <title>Is $TSLA finally turning around?</title>
    <content type="html">&lt;div&gt;Massive volume on TSLA today&lt;/div&gt;</content>
    <updated>2025-01-06T19:30:00Z</updated>
    <link rel="alternate" href="https://reddit.com/r/stocks/abc123"/>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	entries, err := Parse([]byte(rssSample), "https://example.com/rss")
	require.NoError(t, err)
	require.Len(t, entries, 2, "the titleless item is skipped")

	first := entries[0]
	assert.Equal(t, "feed-item-1", first.ID)
	assert.Equal(t, "AAPL rallies after earnings beat", first.Title)
	assert.Equal(t, "Shares of Apple surged today.", first.Summary, "HTML stripped")
	assert.Equal(t, "https://example.com/a", first.Link)
	assert.Equal(t, time.Date(2025, 1, 6, 19, 30, 0, 0, time.UTC), first.Published)
	assert.Equal(t, "https://example.com/rss", first.Source)

	// unparseable pubDate degrades to zero, not an error
	assert.True(t, entries[1].Published.IsZero())
}

func TestParseAtom(t *testing.T) {
	entries, err := Parse([]byte(atomSample), "https://reddit.com/r/stocks/.rss")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "t3_abc123", e.ID)
	assert.Equal(t, "Is $TSLA finally turning around?", e.Title)
	assert.Equal(t, "Massive volume on TSLA today", e.Summary)
	assert.Equal(t, "https://reddit.com/r/stocks/abc123", e.Link)
	assert.Equal(t, time.Date(2025, 1, 6, 19, 30, 0, 0, time.UTC), e.Published)
}

func TestParseRejectsNonFeed(t *testing.T) {
	_, err := Parse([]byte(`{"not": "xml"}`), "https://example.com")
	assert.Error(t, err)

	_, err = Parse([]byte(`<html><body>hi</body></html>`), "https://example.com")
	assert.Error(t, err)
}

func TestEntryDedupKey(t *testing.T) {
	withID := Entry{ID: "guid-1", Title: "x", Source: "s"}
	assert.Equal(t, "guid-1", withID.DedupKey())

	withoutID := Entry{Title: "Some headline", Source: "https://example.com/rss"}
	assert.Equal(t, "https://example.com/rss|Some headline", withoutID.DedupKey())
}
