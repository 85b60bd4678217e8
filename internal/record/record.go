// Package record defines the equity row harvested from the screener table.
package record

import "strings"

// Columns is the fixed column order used by every tabular sink.
var Columns = []string{"symbol", "name", "price"}

// Row is a single extracted table row.
type Row struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	Price  string `json:"price" yaml:"price"`
}

// Key returns the deduplication key: the trimmed, case-sensitive symbol.
// An empty key means the row must never be considered seen.
func (r Row) Key() string {
	return strings.TrimSpace(r.Symbol)
}

// Values returns the row in Columns order.
func (r Row) Values() []string {
	return []string{r.Symbol, r.Name, r.Price}
}
