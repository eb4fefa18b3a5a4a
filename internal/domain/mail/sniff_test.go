package mail

import "testing"

func TestSniff(t *testing.T) {
	// Minimal zip local-file header; a real workbook container starts the
	// same way but the detector cannot place a bare zip as a spreadsheet,
	// so the extension breaks the tie.
	zipHeader := []byte{0x50, 0x4b, 0x03, 0x04, 0x14, 0x00, 0x00, 0x00}

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     AttachmentKind
	}{
		{name: "xlsx extension no data", filename: "经费汇总.xlsx", data: nil, want: KindSpreadsheet},
		{name: "xls extension uppercase", filename: "REPORT.XLS", data: nil, want: KindSpreadsheet},
		{name: "zip payload with xlsx name", filename: "回复.xlsx", data: zipHeader, want: KindSpreadsheet},
		{name: "text attachment", filename: "notes.txt", data: []byte("plain text"), want: KindOther},
		{name: "image attachment", filename: "signature.png", data: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, want: KindOther},
		{name: "no name no data", filename: "", data: nil, want: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.filename, tt.data); got != tt.want {
				t.Errorf("Sniff(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
