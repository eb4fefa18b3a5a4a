// Package imapmail implements the mailbox reply locator over IMAP with TLS.
package imapmail

import (
	"fmt"
	"io"
	"mime"
	"time"

	domainmail "data_collector/internal/domain/mail"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	msgmail "github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// Custom errors for mailbox access
var ErrMailboxConnect = fmt.Errorf("mailbox connection failed")
var ErrSearch = fmt.Errorf("mailbox search failed")

const (
	maxBodyBytes       = 1 << 20  // 1 MiB of plain text is plenty for a reply
	maxAttachmentBytes = 20 << 20 // QQ Mail and most providers cap below this
)

// wordDecoder decodes RFC 2047 encoded words in envelope subjects, including
// GBK/GB18030 via the go-message charset table.
var wordDecoder = mime.WordDecoder{CharsetReader: charset.Reader}

// Client is one authenticated IMAP session. It implements mail.Locator and
// must be closed on every exit path; it is not safe for concurrent use.
type Client struct {
	conn *client.Client
	log  *logrus.Logger
}

// Dial connects over TLS, authenticates and selects INBOX. Any failure is
// ErrMailboxConnect: terminal for the ingestion pass that wanted the session.
func Dial(server string, port int, username, password string, log *logrus.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", server, port)
	conn, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrMailboxConnect, addr, err)
	}
	if err := conn.Login(username, password); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("%w: login as %s: %v", ErrMailboxConnect, username, err)
	}
	if _, err := conn.Select("INBOX", false); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("%w: select INBOX: %v", ErrMailboxConnect, err)
	}
	log.Infof("IMAP session established with %s as %s.", addr, username)
	return &Client{conn: conn, log: log}, nil
}

// FindCandidates runs the search strategy chain and returns envelope headers
// for up to max messages, most recent kept when the cap bites. Bodies are
// not fetched here; FetchMessage pulls them per accepted candidate.
func (c *Client) FindCandidates(keyword string, since time.Time, max int) ([]domainmail.Header, error) {
	var lastErr error
	for _, strategy := range domainmail.SearchStrategies {
		query := strategy(keyword, since)
		uids, err := c.search(query)
		if err != nil {
			// Typically a server rejecting the UTF-8 SUBJECT criterion;
			// the next strategy is broader.
			lastErr = err
			c.log.Warnf("Mailbox search strategy failed, falling back: %v", err)
			continue
		}
		if len(uids) == 0 {
			continue
		}
		if max > 0 && len(uids) > max {
			c.log.Infof("Capping %d candidate messages to the most recent %d.", len(uids), max)
			uids = uids[len(uids)-max:]
		}
		return c.fetchHeaders(uids)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: all strategies exhausted: %v", ErrSearch, lastErr)
	}
	return []domainmail.Header{}, nil
}

func (c *Client) search(query domainmail.SearchQuery) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	if !query.Since.IsZero() {
		criteria.Since = query.Since
	}
	if query.SubjectContains != "" {
		criteria.Header.Add("Subject", query.SubjectContains)
	}
	return c.conn.UidSearch(criteria)
}

func (c *Client) fetchHeaders(uids []uint32) ([]domainmail.Header, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.conn.UidFetch(seqset, items, messages)
	}()

	headers := make([]domainmail.Header, 0, len(uids))
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		h := domainmail.Header{
			UID:       msg.Uid,
			Subject:   decodeSubject(msg.Envelope.Subject),
			FromEmail: envelopeFrom(msg.Envelope),
			Date:      msg.Envelope.Date,
		}
		if h.Date.IsZero() {
			h.Date = msg.InternalDate
		}
		headers = append(headers, h)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch envelopes: %v", ErrSearch, err)
	}
	return headers, nil
}

// FetchMessage pulls the full MIME message for one candidate and decodes
// subject, sender, text body and attachments.
func (c *Client) FetchMessage(uid uint32) (*domainmail.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.conn.UidFetch(seqset, items, messages)
	}()

	var raw *imap.Message
	for msg := range messages {
		if raw == nil {
			raw = msg
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", uid, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d not found in mailbox", uid)
	}

	body := raw.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %d has no body section", uid)
	}

	out := &domainmail.Message{Header: domainmail.Header{UID: uid, Date: raw.InternalDate}}

	mr, err := msgmail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("decode message %d: %w", uid, err)
	}
	defer mr.Close()

	if subject, err := mr.Header.Subject(); err == nil {
		out.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.FromEmail = from[0].Address
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		out.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The reader consumes one stream; it cannot seek past a broken
			// part. Keep whatever was extracted before it.
			c.log.Warnf("Stopping MIME walk of message %d at unreadable part: %v", uid, err)
			break
		}
		switch h := part.Header.(type) {
		case *msgmail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if out.Body == "" && (contentType == "text/plain" || contentType == "") {
				data, err := io.ReadAll(io.LimitReader(part.Body, maxBodyBytes))
				if err == nil {
					out.Body = string(data)
				}
			}
		case *msgmail.AttachmentHeader:
			filename, _ := h.Filename()
			data, err := io.ReadAll(io.LimitReader(part.Body, maxAttachmentBytes))
			if err != nil {
				c.log.Warnf("Failed to read attachment %q of message %d: %v", filename, uid, err)
				continue
			}
			out.Attachments = append(out.Attachments, domainmail.Attachment{Filename: filename, Data: data})
		}
	}

	return out, nil
}

// Close logs out and releases the session.
func (c *Client) Close() error {
	return c.conn.Logout()
}

func decodeSubject(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

func envelopeFrom(env *imap.Envelope) string {
	if len(env.From) == 0 {
		return ""
	}
	addr := env.From[0]
	if addr.MailboxName == "" || addr.HostName == "" {
		return ""
	}
	return addr.MailboxName + "@" + addr.HostName
}
