package schema

import (
	"strings"
	"testing"
	"unicode"
)

func TestTableName(t *testing.T) {
	if got := TableName(42); got != "task_data_42" {
		t.Errorf("TableName(42) = %q, want %q", got, "task_data_42")
	}
}

func TestSanitizeColumnName(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{name: "plain ascii", label: "amount", want: "amount"},
		{name: "chinese label survives", label: "经费", want: "经费"},
		{name: "punctuation becomes underscore", label: "经费(万元)", want: "经费_万元_"},
		{name: "spaces become underscore", label: "project name", want: "project_name"},
		{name: "leading digit gets prefix", label: "2024年度", want: "col_2024年度"},
		{name: "reserved name gets prefix", label: "email", want: "field_email"},
		{name: "reserved after sanitizing", label: "teacher id", want: "field_teacher_id"},
		{name: "all punctuation", label: "???", want: "___"},
		{name: "empty label", label: "", want: "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeColumnName(tt.label); got != tt.want {
				t.Errorf("SanitizeColumnName(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestSanitizeColumnNameNeverStartsWithDigit(t *testing.T) {
	labels := []string{"1", "9个项目", "2024", "３全角"}
	for _, label := range labels {
		got := SanitizeColumnName(label)
		if unicode.IsDigit([]rune(got)[0]) {
			t.Errorf("SanitizeColumnName(%q) = %q starts with a digit", label, got)
		}
	}
}

func TestBuildColumnMappingPreservesOrder(t *testing.T) {
	labels := []string{"姓名", "经费(万元)", "备注"}
	columns, mapping := BuildColumnMapping(labels)

	if len(columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(columns))
	}
	for i, label := range labels {
		if columns[i].Label != label {
			t.Errorf("columns[%d].Label = %q, want %q", i, columns[i].Label, label)
		}
		if mapping[label] != columns[i].Name {
			t.Errorf("mapping[%q] = %q, columns[%d].Name = %q", label, mapping[label], i, columns[i].Name)
		}
	}
}

func TestBuildColumnMappingResolvesCollisions(t *testing.T) {
	// Distinct labels that sanitize to the same identifier.
	columns, mapping := BuildColumnMapping([]string{"经费(万元)", "经费 万元 "})

	if columns[0].Name == columns[1].Name {
		t.Fatalf("colliding labels share column %q", columns[0].Name)
	}
	if !strings.HasSuffix(columns[1].Name, "_2") {
		t.Errorf("second collision column = %q, want _2 suffix", columns[1].Name)
	}
	if mapping["经费(万元)"] == mapping["经费 万元 "] {
		t.Error("mapping sends both labels to the same column")
	}
}

func TestBuildColumnMappingDuplicateLabelsKeepLast(t *testing.T) {
	columns, mapping := BuildColumnMapping([]string{"备注", "备注"})

	if len(columns) != 2 {
		t.Fatalf("got %d columns, want 2", len(columns))
	}
	if len(mapping) != 1 {
		t.Fatalf("got %d mapping entries, want 1", len(mapping))
	}
	if mapping["备注"] != columns[1].Name {
		t.Errorf("mapping[备注] = %q, want last occurrence %q", mapping["备注"], columns[1].Name)
	}
}

func TestBuildColumnMappingNeverYieldsReservedNames(t *testing.T) {
	_, mapping := BuildColumnMapping([]string{"email", "id", "reply_time", "普通"})
	for label, column := range mapping {
		if reserved[column] {
			t.Errorf("mapping[%q] = %q shadows an identifying column", label, column)
		}
	}
}
