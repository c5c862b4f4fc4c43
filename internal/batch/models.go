package batch

import (
	"strings"
	"time"
)

// Item is one proposition record. Timestamp is the immutable identity token
// assigned at creation; it and Domain are carried unchanged through every
// stage while Proposition is replaced.
type Item struct {
	Proposition string `json:"proposition"`
	Domain      string `json:"domain"`
	Timestamp   string `json:"timestamp"`
}

// NewItem assigns a fresh identity token to a proposition.
func NewItem(proposition, domain string, createdAt time.Time) Item {
	return Item{
		Proposition: proposition,
		Domain:      domain,
		Timestamp:   createdAt.UTC().Format(time.RFC3339Nano),
	}
}

// Validate reports whether the item is well-formed.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Proposition) == "" {
		return errEmptyProposition
	}
	if strings.TrimSpace(i.Timestamp) == "" {
		return errMissingTimestamp
	}
	return nil
}
