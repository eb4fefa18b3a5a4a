package mail

import "time"

// Header is the envelope-level view of a candidate message, fetched cheaply
// ahead of classification. Bodies are only pulled for accepted messages.
type Header struct {
	UID       uint32
	Subject   string
	FromEmail string
	Date      time.Time
}

// Attachment is one decoded attachment of a fetched message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is a fully fetched and MIME-decoded mailbox message.
type Message struct {
	Header
	Body        string
	Attachments []Attachment
}

// Locator finds and fetches candidate reply messages in a mailbox. A Locator
// wraps one authenticated session: it is acquired per ingestion pass, must
// not be shared across concurrent passes, and Close releases the session on
// every exit path.
type Locator interface {
	// FindCandidates returns headers of up to max messages received since
	// the given time whose subject matches the marker keyword, trying the
	// ordered search strategies until one yields results.
	FindCandidates(keyword string, since time.Time, max int) ([]Header, error)
	// FetchMessage pulls and decodes the full message for one candidate.
	FetchMessage(uid uint32) (*Message, error)
	Close() error
}

// Sender delivers one outbound notification with an optional attachment.
// NOT_SENT -> AWAITING_REPLY transitions hang off its per-recipient result.
type Sender interface {
	Send(to, subject, body, attachmentPath string) error
}
