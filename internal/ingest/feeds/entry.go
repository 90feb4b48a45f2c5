package feeds

import "time"

// Entry is one normalized item from a feed, RSS or Atom
type Entry struct {
	ID        string // GUID, Atom id, or the link when both are missing
	Title     string
	Summary   string // plain text, HTML already stripped
	Link      string
	Published time.Time
	Source    string // feed URL the entry came from
}

// Text is the searchable content of the entry
func (e Entry) Text() string {
	if e.Summary == "" {
		return e.Title
	}
	return e.Title + " " + e.Summary
}

// DedupKey identifies the entry across repeated polls of its feed
func (e Entry) DedupKey() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Source + "|" + e.Title
}
