package harvest

import "github.com/jmylchreest/screenharvest/internal/record"

// Deduplicator keeps the set of symbols seen during one run. It is not safe
// for concurrent use.
type Deduplicator struct {
	seen       map[string]struct{}
	duplicates int
	emptyKeys  int
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Merge returns the rows of batch not seen before, in batch order, and
// marks them seen. Rows with an empty key are dropped without being marked.
func (d *Deduplicator) Merge(batch []record.Row) []record.Row {
	fresh := make([]record.Row, 0, len(batch))
	for _, row := range batch {
		key := row.Key()
		if key == "" {
			d.emptyKeys++
			continue
		}
		if _, ok := d.seen[key]; ok {
			d.duplicates++
			continue
		}
		d.seen[key] = struct{}{}
		fresh = append(fresh, row)
	}
	return fresh
}

// Seen returns the number of distinct keys merged so far.
func (d *Deduplicator) Seen() int { return len(d.seen) }

// Duplicates returns how many rows were dropped as already seen.
func (d *Deduplicator) Duplicates() int { return d.duplicates }

// EmptyKeys returns how many rows were dropped for having no key.
func (d *Deduplicator) EmptyKeys() int { return d.emptyKeys }
