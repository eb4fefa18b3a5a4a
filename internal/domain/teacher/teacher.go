package teacher

import (
	"database/sql"
	"time"
)

// Teacher represents one person on the collection roster.
// Corresponds to the 'teachers' table.
type Teacher struct {
	ID         int64
	Name       string
	Department string
	Email      string         // unique; reply senders are matched against this exactly
	Phone      sql.NullString
	Title      sql.NullString
	CreatedAt  time.Time
}
