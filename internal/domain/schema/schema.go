// Package schema derives the physical shape of a task's dynamic table:
// table naming, column-name sanitizing and the label -> column mapping.
// Everything here is pure so the derivation is testable without a database.
package schema

import (
	"fmt"
	"unicode"
)

// Identifying columns present in every dynamic table, ahead of the
// per-template field columns.
const (
	ColID          = "id"
	ColTeacherID   = "teacher_id"
	ColTeacherName = "teacher_name"
	ColDepartment  = "department"
	ColEmail       = "email"
	ColReplyTime   = "reply_time"
)

// IdentifyingColumns is the fixed column set in table order, excluding the
// synthetic primary key.
var IdentifyingColumns = []string{ColTeacherID, ColTeacherName, ColDepartment, ColEmail, ColReplyTime}

var reserved = map[string]bool{
	ColID:          true,
	ColTeacherID:   true,
	ColTeacherName: true,
	ColDepartment:  true,
	ColEmail:       true,
	ColReplyTime:   true,
}

// TableName returns the deterministic physical table name for a task.
func TableName(taskID int64) string {
	return fmt.Sprintf("task_data_%d", taskID)
}

// SanitizeColumnName maps an arbitrary field label to a safe column
// identifier. Letters (any script) and digits survive; every other rune
// becomes an underscore. Identifiers may not start with a digit and may not
// shadow an identifying column. Deterministic and pure.
func SanitizeColumnName(label string) string {
	runes := []rune(label)
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	name := string(out)
	if name == "" {
		name = "_"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		name = "col_" + name
	}
	if reserved[name] {
		name = "field_" + name
	}
	return name
}

// Column pairs an original field label with its physical column name.
type Column struct {
	Label string
	Name  string
}

// BuildColumnMapping sanitizes every label and resolves collisions between
// distinct labels by suffixing "_2", "_3", ... in label order. The returned
// slice preserves template column order; the map is the label -> column
// mapping to persist. Duplicate labels map to their last occurrence, so the
// map may be smaller than the slice.
func BuildColumnMapping(labels []string) ([]Column, map[string]string) {
	columns := make([]Column, 0, len(labels))
	mapping := make(map[string]string, len(labels))
	used := make(map[string]bool, len(labels))

	for _, label := range labels {
		name := SanitizeColumnName(label)
		if used[name] {
			for i := 2; ; i++ {
				candidate := fmt.Sprintf("%s_%d", name, i)
				if !used[candidate] && !reserved[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		columns = append(columns, Column{Label: label, Name: name})
		mapping[label] = name
	}
	return columns, mapping
}
