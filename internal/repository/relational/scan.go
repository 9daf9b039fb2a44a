package relational

import (
	"database/sql"
	"fmt"
	"time"

	"refman/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReference(row rowScanner) (*model.Reference, error) {
	var (
		ref     model.Reference
		authors sql.NullString
		notes   sql.NullString
		year    sql.NullInt64
		created nullTime
	)
	if err := row.Scan(&ref.ID, &ref.Title, &authors, &year, &notes, &created); err != nil {
		return nil, err
	}
	ref.Authors = authors.String
	ref.Notes = notes.String
	if year.Valid {
		y := int(year.Int64)
		ref.Year = &y
	}
	if created.Valid {
		t := created.Time
		ref.CreatedAt = &t
	}
	return &ref, nil
}

// SQLite hands DATETIME values back as text in some code paths.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// nullTime accepts time.Time or its textual forms.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("scan created_at: unsupported type %T", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("scan created_at: unrecognized time %q", s)
}
