package model

import (
	"slices"
	"strings"
)

// EndOfStreamBanner is the textual form of the end-of-stream marker.
const EndOfStreamBanner = "*** END OF STREAM ***"

// kind tags an Item as data or as the end-of-stream marker.
// The zero value is kindData so that a zero Item is never mistaken for the marker.
type kind uint8

const (
	kindData kind = iota
	kindEndOfStream
)

// Item is one unit of work: a key (the page URL), an optional body fetched
// for that key, and the names of the technologies detected in the body.
//
// Item has value semantics. The matches slice is never shared with callers.
type Item struct {
	kind kind

	// key identifies the item, e.g. "http://www.google.com".
	key string

	// body is the fetched payload. hasBody distinguishes "absent" from "empty".
	body    string
	hasBody bool

	// matches are the derived results, in detection order.
	matches []string
}

// NewItem returns a data item for the given key with no body and no matches.
func NewItem(key string) Item {
	return Item{kind: kindData, key: key}
}

// EndOfStream returns the end-of-stream marker.
func EndOfStream() Item {
	return Item{kind: kindEndOfStream}
}

// IsEndOfStream reports whether the item is the end-of-stream marker.
func (i Item) IsEndOfStream() bool {
	return i.kind == kindEndOfStream
}

// Key returns the item key. The marker has an empty key.
func (i Item) Key() string {
	return i.key
}

// Body returns the payload and whether one is present.
func (i Item) Body() (string, bool) {
	return i.body, i.hasBody
}

// HasBody reports whether a payload has been attached.
func (i Item) HasBody() bool {
	return i.hasBody
}

// Matches returns a copy of the derived results.
func (i Item) Matches() []string {
	return slices.Clone(i.matches)
}

// WithBody returns a copy of the item carrying body as its payload.
// The marker is returned unchanged.
func (i Item) WithBody(body string) Item {
	if i.IsEndOfStream() {
		return i
	}
	next := i
	next.body = body
	next.hasBody = true
	next.matches = slices.Clone(i.matches)
	return next
}

// WithMatches returns a copy of the item carrying names as its derived results.
// The marker is returned unchanged.
func (i Item) WithMatches(names []string) Item {
	if i.IsEndOfStream() {
		return i
	}
	next := i
	next.matches = slices.Clone(names)
	return next
}

// String renders the item as
// "Item[key=<key> payload=<present|absent> results=<comma-joined names>]".
func (i Item) String() string {
	if i.IsEndOfStream() {
		return EndOfStreamBanner
	}

	payload := "absent"
	if i.hasBody {
		payload = "present"
	}

	var b strings.Builder
	b.WriteString("Item[key=")
	b.WriteString(i.key)
	b.WriteString(" payload=")
	b.WriteString(payload)
	b.WriteString(" results=")
	b.WriteString(strings.Join(i.matches, ","))
	b.WriteString("]")
	return b.String()
}
