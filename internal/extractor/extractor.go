// Package extractor turns results-table markup into rows.
package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// Extractor parses table rows out of HTML.
type Extractor struct {
	config Config
}

// Config holds extractor settings.
type Config struct {
	RowSelector string // CSS selector for data rows
	MinCells    int    // rows with fewer cells are skipped
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RowSelector: "table tbody tr",
		MinCells:    len(record.Columns),
	}
}

// Option configures the extractor.
type Option func(*Config)

// WithRowSelector sets the CSS selector for data rows.
func WithRowSelector(sel string) Option {
	return func(c *Config) {
		c.RowSelector = sel
	}
}

// WithMinCells sets the minimum number of cells a row needs.
func WithMinCells(n int) Option {
	return func(c *Config) {
		c.MinCells = n
	}
}

// New creates a new Extractor.
func New(opts ...Option) *Extractor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MinCells < len(record.Columns) {
		cfg.MinCells = len(record.Columns)
	}
	return &Extractor{config: cfg}
}

// Parse extracts rows from markup. The first three cells of each row map to
// symbol, name and price; cell text is trimmed and inner whitespace
// collapsed.
func (e *Extractor) Parse(markup string) ([]record.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	var rows []record.Row
	doc.Find(e.config.RowSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < e.config.MinCells {
			return
		}
		rows = append(rows, record.Row{
			Symbol: cellText(cells.Eq(0)),
			Name:   cellText(cells.Eq(1)),
			Price:  cellText(cells.Eq(2)),
		})
	})
	return rows, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
