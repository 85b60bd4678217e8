package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/screenharvest/internal/record"
)

// --- Parse Tests ---

func TestParse_Rows(t *testing.T) {
	markup := `<table>
<thead><tr><th>Symbol</th><th>Name</th><th>Price</th></tr></thead>
<tbody>
  <tr><td> <a href="/q/AAA">AAA</a> </td><td>Alpha   Holdings</td><td><span>12.50</span></td><td>+1%</td></tr>
  <tr><td>BBB</td><td>Beta Inc</td><td>3.10</td></tr>
</tbody></table>`

	rows, err := New().Parse(markup)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []record.Row{
		{Symbol: "AAA", Name: "Alpha Holdings", Price: "12.50"},
		{Symbol: "BBB", Name: "Beta Inc", Price: "3.10"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SkipsShortRows(t *testing.T) {
	markup := `<table><tbody>
<tr><td colspan="3">Loading...</td></tr>
<tr><td>AAA</td><td>Alpha</td></tr>
<tr><td>CCC</td><td>Gamma</td><td>1.00</td></tr>
</tbody></table>`

	rows, err := New().Parse(markup)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "CCC" {
		t.Errorf("rows = %+v, want only CCC", rows)
	}
}

func TestParse_NoTable(t *testing.T) {
	rows, err := New().Parse(`<html><body><p>No results</p></body></html>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want none", rows)
	}
}

func TestParse_TableFragment(t *testing.T) {
	// Page content is usually the table element on its own.
	rows, err := New().Parse(`<table><tbody><tr><td>AAA</td><td>Alpha</td><td>1</td></tr></tbody></table>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestParse_EmptySymbolKept(t *testing.T) {
	rows, err := New().Parse(`<table><tbody><tr><td> </td><td>Ghost</td><td>0</td></tr></tbody></table>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "" {
		t.Errorf("rows = %+v, want one row with empty symbol", rows)
	}
}

// --- Option Tests ---

func TestNew_Options(t *testing.T) {
	e := New(WithRowSelector("tr.data"), WithMinCells(5))
	if e.config.RowSelector != "tr.data" || e.config.MinCells != 5 {
		t.Errorf("config = %+v", e.config)
	}

	rows, _ := e.Parse(`<table><tbody><tr class="data"><td>A</td><td>B</td><td>C</td><td>D</td><td>E</td></tr><tr><td>X</td><td>Y</td><td>Z</td><td>1</td><td>2</td></tr></tbody></table>`)
	if len(rows) != 1 || rows[0].Symbol != "A" {
		t.Errorf("rows = %+v, want only the tr.data row", rows)
	}
}

func TestNew_MinCellsFloor(t *testing.T) {
	e := New(WithMinCells(1))
	if e.config.MinCells != 3 {
		t.Errorf("MinCells = %d, want floor of 3", e.config.MinCells)
	}
}
