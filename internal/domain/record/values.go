package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrBlankValue        = errors.New("value is blank")
	ErrNotNumeric        = errors.New("value is not numeric")
	ErrNotInteger        = errors.New("value is not a whole number")
	ErrUnknownDateFormat = errors.New("unrecognised date format")
)

// ParseDays reads a day counter. Cells like "10", "10.0" and "1E1" are accepted, "10.5" is not.
func ParseDays(c Cell) (int, error) {
	if c.IsBlank() {
		return 0, ErrBlankValue
	}
	d, err := decimal.NewFromString(strings.TrimSpace(c.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, c.Value)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, c.Value)
	}
	return int(d.IntPart()), nil
}

// DateKind tells how a start date is represented in its cell.
type DateKind int

const (
	// DateInteger is a numeric cell holding YYYYMMDD, e.g. 20250101.
	DateInteger DateKind = iota
	// DateSerial is a numeric cell holding an Excel serial day number.
	DateSerial
	// DateText is a text cell in one of TextDateLayouts.
	DateText
)

// DateFormat remembers the representation a date was read in so it can be written back the same way.
type DateFormat struct {
	Kind   DateKind
	Layout string
}

// TextDateLayouts are tried in order for text cells.
var TextDateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006年01月02日",
	"2006年1月2日",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
}

// Excel counts days from 1899-12-30 once the 1900 leap-year bug is accounted for.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxExcelSerial = 2958465 // 9999-12-31

// ParseDate reads a start date cell. The returned time is midnight UTC of the calendar date.
func ParseDate(c Cell) (time.Time, DateFormat, error) {
	if c.IsBlank() {
		return time.Time{}, DateFormat{}, ErrBlankValue
	}
	raw := strings.TrimSpace(c.Value)

	if c.Kind == CellNumber {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return time.Time{}, DateFormat{}, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
		}
		n := d.IntPart()
		if n >= 10000101 && n <= 99991231 && d.Equal(d.Truncate(0)) {
			t, ok := fromYYYYMMDD(int(n))
			if !ok {
				return time.Time{}, DateFormat{}, fmt.Errorf("%w: %q", ErrUnknownDateFormat, raw)
			}
			return t, DateFormat{Kind: DateInteger}, nil
		}
		if n >= 1 && n <= maxExcelSerial {
			return excelEpoch.AddDate(0, 0, int(n)), DateFormat{Kind: DateSerial}, nil
		}
		return time.Time{}, DateFormat{}, fmt.Errorf("%w: %q", ErrUnknownDateFormat, raw)
	}

	for _, layout := range TextDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return DateOf(t), DateFormat{Kind: DateText, Layout: layout}, nil
		}
	}
	return time.Time{}, DateFormat{}, fmt.Errorf("%w: %q", ErrUnknownDateFormat, raw)
}

// FormatDate renders t in the representation f, keeping the cell type.
func FormatDate(t time.Time, f DateFormat) Cell {
	t = DateOf(t)
	switch f.Kind {
	case DateInteger:
		return NumberCell(t.Year()*10000 + int(t.Month())*100 + t.Day())
	case DateSerial:
		return NumberCell(DaysBetween(excelEpoch, t))
	default:
		layout := f.Layout
		if layout == "" {
			layout = "2006-01-02"
		}
		return TextCell(t.Format(layout))
	}
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

func fromYYYYMMDD(n int) (time.Time, bool) {
	y, m, d := n/10000, (n/100)%100, n%100
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
