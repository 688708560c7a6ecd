// internal/infra/spreadsheet/excel_store.go
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"rental_expiry_monitor/internal/domain/record"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrNoHeaderRow   = errors.New("sheet has no header row")
)

// ExcelStore reads and writes the rental table in an .xlsx workbook.
// Only dirty cells are written back, so formulas, styles and the other sheets survive a pass.
type ExcelStore struct {
	path   string
	sheet  string
	logger *logrus.Entry
}

// NewExcelStore creates a store for the workbook at path. An empty sheet name selects the first sheet.
func NewExcelStore(path, sheet string, logger *logrus.Entry) *ExcelStore {
	return &ExcelStore{path: path, sheet: sheet, logger: logger}
}

func (s *ExcelStore) Path() string {
	return s.path
}

func (s *ExcelStore) Load(ctx context.Context) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	sheet, err := s.resolveSheet(f)
	if err != nil {
		return nil, err
	}

	// Raw values: dates stay serial numbers and numbers keep their full precision.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", sheet, ErrNoHeaderRow)
	}

	headers := rows[0]
	data := make([][]record.Cell, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		cells := make([]record.Cell, len(raw))
		for col, value := range raw {
			if value == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			kind, err := cellKind(f, sheet, name)
			if err != nil {
				return nil, fmt.Errorf("read cell %s!%s: %w", sheet, name, err)
			}
			cells[col] = record.Cell{Value: value, Kind: kind}
		}
		data = append(data, cells)
	}

	s.logger.WithFields(logrus.Fields{
		"sheet":   sheet,
		"rows":    len(data),
		"columns": len(headers),
	}).Debug("Workbook loaded")

	return record.NewTable(sheet, headers, data), nil
}

// Save writes the dirty cells of t into a copy of the workbook next to the original and renames it
// over the original, so a crash mid-write never leaves a truncated file behind.
func (s *ExcelStore) Save(ctx context.Context, t *record.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dirty := t.Dirty()
	if len(dirty) == 0 {
		s.logger.Debug("No modified cells, workbook left untouched")
		return nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(t.Sheet); err != nil || idx < 0 {
		return fmt.Errorf("%q: %w", t.Sheet, ErrSheetNotFound)
	}

	for _, ref := range dirty {
		name, err := excelize.CoordinatesToCellName(ref.Col+1, ref.Row+2)
		if err != nil {
			return err
		}
		if err := writeCell(f, t.Sheet, name, t.Cell(ref.Row, ref.Col)); err != nil {
			return fmt.Errorf("write cell %s!%s: %w", t.Sheet, name, err)
		}
	}

	ext := filepath.Ext(s.path)
	tmp := filepath.Join(filepath.Dir(s.path),
		fmt.Sprintf(".%s.tmp-%d%s", filepath.Base(s.path[:len(s.path)-len(ext)]), time.Now().UnixNano(), ext))
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save workbook copy: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace workbook %s: %w", s.path, err)
	}

	s.logger.WithFields(logrus.Fields{"sheet": t.Sheet, "cells": len(dirty)}).Info("Workbook saved")
	return nil
}

func (s *ExcelStore) resolveSheet(f *excelize.File) (string, error) {
	if s.sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return "", fmt.Errorf("%s: %w", s.path, ErrSheetNotFound)
		}
		return sheets[0], nil
	}
	if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx < 0 {
		return "", fmt.Errorf("%q: %w", s.sheet, ErrSheetNotFound)
	}
	return s.sheet, nil
}

// cellKind maps the stored cell type onto number or text. Cells without a type attribute are numbers.
func cellKind(f *excelize.File, sheet, name string) (record.CellKind, error) {
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return record.CellEmpty, err
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula,
		excelize.CellTypeBool, excelize.CellTypeDate, excelize.CellTypeError:
		return record.CellText, nil
	default:
		return record.CellNumber, nil
	}
}

func writeCell(f *excelize.File, sheet, name string, c record.Cell) error {
	switch c.Kind {
	case record.CellNumber:
		if n, err := strconv.Atoi(c.Value); err == nil {
			return f.SetCellValue(sheet, name, n)
		}
		n, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return fmt.Errorf("number cell holds %q: %w", c.Value, err)
		}
		return f.SetCellValue(sheet, name, n)
	case record.CellText:
		return f.SetCellStr(sheet, name, c.Value)
	default:
		return f.SetCellValue(sheet, name, nil)
	}
}
