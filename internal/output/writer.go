// Package output appends harvested rows to a destination.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// Format represents output format types.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSONL  Format = "jsonl"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatJSONL, FormatYAML, FormatSQLite}

// Appender appends row batches to a destination. Appending never rewrites
// what is already there.
type Appender interface {
	// AppendRows appends rows to dest, creating it if needed. Tabular
	// formats write their header only when dest is new.
	AppendRows(rows []record.Row, dest string) error

	// Close releases resources.
	Close() error
}

// New creates an appender for the specified format.
func New(format Format) (Appender, error) {
	switch format {
	case FormatCSV:
		return NewCSVAppender(), nil
	case FormatJSONL:
		return NewJSONLAppender(), nil
	case FormatYAML:
		return NewYAMLAppender(), nil
	case FormatSQLite:
		return NewSQLiteAppender(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// FormatFor picks the format for dest. A non-empty override wins; otherwise
// the extension decides, defaulting to CSV.
func FormatFor(dest, override string) (Format, error) {
	if override != "" {
		return ParseFormat(override)
	}
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return FormatCSV, nil
	}
}

// openAppend opens dest for appending and reports whether it was created.
func openAppend(dest string) (*os.File, bool, error) {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	created := false
	if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
		created = true
	} else if err != nil {
		return nil, false, err
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open output: %w", err)
	}
	return f, created, nil
}
