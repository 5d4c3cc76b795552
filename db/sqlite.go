package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"obesityrisk/pipeline"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads training rows from one table of a SQLite database.
// Column names follow the CSV header, aliases included.
type SQLiteSource struct {
	Path  string
	Table string
}

func (s SQLiteSource) Name() string {
	return fmt.Sprintf("%s:%s", s.Path, s.Table)
}

// LoadRows returns every row in rowid order. NULL cells become empty values so
// the cleaner reports them as missing. Line is the 1-based row position.
func (s SQLiteSource) LoadRows(ctx context.Context) ([]pipeline.Row, error) {
	if !identifier.MatchString(s.Table) {
		return nil, fmt.Errorf("invalid table name %q", s.Table)
	}
	database, err := sql.Open("sqlite3", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	defer database.Close()

	rows, err := database.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, s.Table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(names))
	for i, n := range names {
		columns[i] = pipeline.CanonicalColumn(n)
	}

	var out []pipeline.Row
	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out)+1, err)
		}
		values := make(map[string]string, len(columns))
		for i, col := range columns {
			if cells[i].Valid {
				values[col] = cells[i].String
			} else {
				values[col] = ""
			}
		}
		out = append(out, pipeline.Row{Line: len(out) + 1, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ pipeline.Source = SQLiteSource{}
