package task

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Field is one column of a task's template, in header order.
// Identity is the name as it appears in the template header row.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`     // currently always "text"; Excel cell types are unreliable
	Required bool   `json:"required"`
}

// FieldTypeText is the only value type in use today. Values stay untyped
// text all the way to the physical table so garbled spreadsheets cannot
// fail a write.
const FieldTypeText = "text"

// Task is a single data-collection campaign: one template, one generated
// physical table, one set of email records.
// Corresponds to the 'summary_tasks' table.
type Task struct {
	ID           int64
	Name         string // unique
	Description  sql.NullString
	CreateTime   time.Time
	Deadline     sql.NullTime
	TemplatePath sql.NullString

	// Fields is the ordered field list extracted from the template header.
	// Immutable once the physical table exists.
	Fields []Field

	// ColumnMapping maps the original field label to the sanitized physical
	// column name. Persisted at table-creation time and never re-derived.
	ColumnMapping map[string]string
}

// FieldNames returns the field labels in template order.
func (t *Task) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether name is one of the task's template fields.
func (t *Task) HasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// MarshalFields serializes the field list for storage.
func MarshalFields(fields []Field) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalFields restores a field list from its stored form. An empty
// string yields an empty list.
func UnmarshalFields(data string) ([]Field, error) {
	if data == "" {
		return []Field{}, nil
	}
	var fields []Field
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// MarshalMapping serializes the label -> column mapping for storage.
func MarshalMapping(mapping map[string]string) (string, error) {
	b, err := json.Marshal(mapping)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalMapping restores a column mapping from its stored form.
func UnmarshalMapping(data string) (map[string]string, error) {
	if data == "" {
		return map[string]string{}, nil
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(data), &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}
