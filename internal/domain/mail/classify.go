package mail

import (
	"strings"
	"time"
	"unicode"
)

// prefixRunes is how much of a long task name must survive subject
// truncation or re-encoding for the second-tier match.
const prefixRunes = 4

// NormalizeSpace strips all whitespace. Mail clients and relays re-wrap and
// re-encode subject lines, inserting spaces mid-phrase; comparing without
// whitespace avoids those false negatives.
func NormalizeSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// IsTaskReply decides whether a message subject answers the named task.
// Tier one: the normalized subject contains the normalized task name.
// Tier two, for long names: the subject carries the name's leading runes
// together with the marker keyword all outgoing subjects contain.
// Pure; safe to call without a live mailbox.
func IsTaskReply(subject, taskName, marker string) bool {
	ns := NormalizeSpace(subject)
	nn := NormalizeSpace(taskName)
	if nn == "" {
		return false
	}
	if strings.Contains(ns, nn) {
		return true
	}

	prefix := []rune(nn)
	if len(prefix) > prefixRunes {
		head := string(prefix[:prefixRunes])
		if strings.Contains(ns, head) && marker != "" && strings.Contains(ns, NormalizeSpace(marker)) {
			return true
		}
	}
	return false
}

// SearchQuery is a protocol-agnostic server-side search predicate.
// A zero SubjectContains means an unfiltered recency listing.
type SearchQuery struct {
	Since           time.Time
	SubjectContains string
}

// SearchStrategy builds one server-side query from the marker keyword and
// the recency window. Strategies are pure so each tier of the fallback chain
// can be tested in isolation.
type SearchStrategy func(keyword string, since time.Time) SearchQuery

// MarkerSubjectSearch narrows by recency and the marker keyword. Searching
// for the broad marker rather than the task name side-steps servers that
// mishandle non-ASCII SUBJECT criteria; precise matching happens client-side.
func MarkerSubjectSearch(keyword string, since time.Time) SearchQuery {
	return SearchQuery{Since: since, SubjectContains: keyword}
}

// RecentOnlySearch lists everything in the window, for servers that reject
// the subject criterion outright. The caller's candidate cap bounds the cost.
func RecentOnlySearch(_ string, since time.Time) SearchQuery {
	return SearchQuery{Since: since}
}

// SearchStrategies is the fallback chain, tried in order until one returns
// a usable result.
var SearchStrategies = []SearchStrategy{MarkerSubjectSearch, RecentOnlySearch}
