// internal/domain/record/table.go
package record

import (
	"sort"
	"strconv"
	"strings"
)

// CellKind is the stored type of a spreadsheet cell. It is kept so values can be written
// back with the same type they were read as.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
)

func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	default:
		return "empty"
	}
}

// Cell is one raw (unformatted) cell value plus its stored kind.
type Cell struct {
	Value string
	Kind  CellKind
}

func NumberCell(n int) Cell {
	return Cell{Value: strconv.Itoa(n), Kind: CellNumber}
}

func TextCell(s string) Cell {
	return Cell{Value: s, Kind: CellText}
}

// IsBlank reports whether the cell carries no usable value.
func (c Cell) IsBlank() bool {
	return c.Kind == CellEmpty || strings.TrimSpace(c.Value) == ""
}

// CellRef addresses a data cell: Row is the 0-based data row (header excluded), Col the 0-based column.
type CellRef struct {
	Row int
	Col int
}

// Table is the in-memory copy of one worksheet: a header row followed by data rows.
// Cells changed through Set are tracked so the store only rewrites what the pass touched.
type Table struct {
	Sheet   string
	Headers []string

	rows  [][]Cell
	dirty map[CellRef]struct{}
}

func NewTable(sheet string, headers []string, rows [][]Cell) *Table {
	return &Table{
		Sheet:   sheet,
		Headers: headers,
		rows:    rows,
		dirty:   make(map[CellRef]struct{}),
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Cell returns the cell at (row, col); addresses outside the stored range read as empty.
func (t *Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return Cell{}
	}
	return t.rows[row][col]
}

// Set replaces a cell and marks it dirty. Short rows are padded with empty cells.
func (t *Table) Set(row, col int, c Cell) {
	if row < 0 || row >= len(t.rows) || col < 0 {
		return
	}
	for len(t.rows[row]) <= col {
		t.rows[row] = append(t.rows[row], Cell{})
	}
	t.rows[row][col] = c
	t.dirty[CellRef{Row: row, Col: col}] = struct{}{}
}

// IsBlankRow reports whether every cell of the row is blank.
func (t *Table) IsBlankRow(row int) bool {
	if row < 0 || row >= len(t.rows) {
		return true
	}
	for _, c := range t.rows[row] {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Fields returns the row as header -> trimmed value, skipping blank cells.
func (t *Table) Fields(row int) map[string]string {
	fields := make(map[string]string)
	for col, header := range t.Headers {
		c := t.Cell(row, col)
		if c.IsBlank() {
			continue
		}
		fields[strings.TrimSpace(header)] = strings.TrimSpace(c.Value)
	}
	return fields
}

// Dirty lists the modified cells in row-major order.
func (t *Table) Dirty() []CellRef {
	refs := make([]CellRef, 0, len(t.dirty))
	for ref := range t.dirty {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Row != refs[j].Row {
			return refs[i].Row < refs[j].Row
		}
		return refs[i].Col < refs[j].Col
	})
	return refs
}

// ClearDirty forgets pending modifications, normally after a successful save.
func (t *Table) ClearDirty() {
	t.dirty = make(map[CellRef]struct{})
}
