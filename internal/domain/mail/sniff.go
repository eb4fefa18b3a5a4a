package mail

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AttachmentKind classifies attachment content ahead of parsing.
type AttachmentKind int

const (
	KindOther AttachmentKind = iota
	KindSpreadsheet
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
)

// Sniff decides whether an attachment looks like a spreadsheet. Content
// detection leads; the filename extension only breaks ties for payloads the
// detector cannot place (e.g. a bare zip container).
func Sniff(filename string, data []byte) AttachmentKind {
	if len(data) > 0 {
		mtype := mimetype.Detect(data)
		if mtype.Is(mimeXLSX) || mtype.Is(mimeXLS) {
			return KindSpreadsheet
		}
	}
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") {
		return KindSpreadsheet
	}
	return KindOther
}
