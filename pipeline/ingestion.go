package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"obesityrisk/ml"
)

// Row is one raw dataset row keyed by canonical column name.
type Row struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
}

// Source yields raw rows for training.
type Source interface {
	LoadRows(ctx context.Context) ([]Row, error)
	Name() string
}

// columnAliases maps header names used by published copies of the dataset to
// the names the record schema expects.
var columnAliases = map[string]string{
	"family_history_with_overweight": "family_history",
	"NObeyesdad":                     ml.LabelColumn,
}

// CanonicalColumn resolves a header or database column name.
func CanonicalColumn(name string) string {
	name = strings.TrimSpace(name)
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

// CSVSource reads a header-first CSV file.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return s.Path }

// LoadRows reads the whole file. Cancellation is checked between rows.
func (s CSVSource) LoadRows(ctx context.Context) ([]Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV parses CSV content with a header row. A leading UTF-8 byte order
// mark is dropped. Line numbers count the header as line 1.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		columns[i] = CanonicalColumn(h)
		if seen[columns[i]] {
			return nil, fmt.Errorf("duplicate column %q", columns[i])
		}
		seen[columns[i]] = true
	}

	var rows []Row
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		values := make(map[string]string, len(columns))
		for i, col := range columns {
			values[col] = strings.TrimSpace(record[i])
		}
		rows = append(rows, Row{Line: line, Values: values})
	}
	return rows, nil
}
