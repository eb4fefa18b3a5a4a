// Package smtpmail implements outbound delivery of task notifications over
// SMTP with implicit TLS.
package smtpmail

import (
	"fmt"

	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"
)

var ErrSendFailed = fmt.Errorf("email send failed")

// Sender dials per message: dispatch volume is a roster at a time, so a
// persistent connection buys nothing and a stale one costs retries.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    *logrus.Logger
}

func NewSender(server string, port int, username, password string, log *logrus.Logger) *Sender {
	dialer := gomail.NewDialer(server, port, username, password)
	dialer.SSL = port == 465
	return &Sender{dialer: dialer, from: username, log: log}
}

// Send delivers one message, optionally with a file attachment. The body is
// plain text.
func (s *Sender) Send(to, subject, body, attachmentPath string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if attachmentPath != "" {
		m.Attach(attachmentPath)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: to %s: %v", ErrSendFailed, to, err)
	}
	s.log.Infof("Email %q delivered to %s.", subject, to)
	return nil
}
