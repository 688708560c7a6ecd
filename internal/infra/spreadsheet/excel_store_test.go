package spreadsheet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rental_expiry_monitor/internal/domain/record"
)

func nullEntry() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

// writeWorkbook creates a rental sheet: name, address, remaining (int), total (int), start (int / text / serial).
func writeWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"店铺名称", "地址", "剩余天数", "总天数", "开始时间"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"旺角店", "弥敦道1号", 1, 10, 20241223}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"铜锣湾店", "轩尼诗道2号", 5, 30}))
	require.NoError(t, f.SetCellStr(sheet, "E3", "2024-12-10"))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"尖沙咀店", "广东道3号", 7, 7, 45658}))

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", bold))

	_, err = f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr("Notes", "A1", "keep me"))

	path := filepath.Join(dir, "yxc.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExcelStoreLoad(t *testing.T) {
	path := writeWorkbook(t, t.TempDir())
	store := NewExcelStore(path, "", nullEntry())

	table, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", table.Sheet)
	assert.Equal(t, []string{"店铺名称", "地址", "剩余天数", "总天数", "开始时间"}, table.Headers)
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, record.Cell{Value: "旺角店", Kind: record.CellText}, table.Cell(0, 0))
	assert.Equal(t, record.NumberCell(1), table.Cell(0, 2))
	assert.Equal(t, record.NumberCell(20241223), table.Cell(0, 4))
	assert.Equal(t, record.TextCell("2024-12-10"), table.Cell(1, 4))
	assert.Equal(t, record.NumberCell(45658), table.Cell(2, 4))
	assert.True(t, table.Cell(5, 0).IsBlank())
}

func TestExcelStoreSaveWritesOnlyDirtyCells(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir)
	store := NewExcelStore(path, "Sheet1", nullEntry())
	ctx := context.Background()

	table, err := store.Load(ctx)
	require.NoError(t, err)
	table.Set(0, 2, record.NumberCell(10))
	table.Set(1, 4, record.TextCell("2025-01-02"))
	require.NoError(t, store.Save(ctx, table))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
	typ, err := f.GetCellType("Sheet1", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)

	style, err := f.GetCellStyle("Sheet1", "C2")
	require.NoError(t, err)
	assert.NotZero(t, style, "style of a rewritten cell is kept")

	v, err = f.GetCellValue("Sheet1", "E3")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", v)

	v, err = f.GetCellValue("Sheet1", "E2")
	require.NoError(t, err)
	assert.Equal(t, "20241223", v)

	v, err = f.GetCellValue("Notes", "A1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", v)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".yxc.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExcelStoreSaveWithoutChangesKeepsFile(t *testing.T) {
	path := writeWorkbook(t, t.TempDir())
	store := NewExcelStore(path, "", nullEntry())

	table, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), table))

	reloaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table.Cell(0, 2), reloaded.Cell(0, 2))
}

func TestExcelStoreErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir)

	_, err := NewExcelStore(path, "Missing", nullEntry()).Load(context.Background())
	assert.ErrorIs(t, err, ErrSheetNotFound)

	_, err = NewExcelStore(filepath.Join(dir, "nope.xlsx"), "", nullEntry()).Load(context.Background())
	assert.Error(t, err)

	empty := excelize.NewFile()
	emptyPath := filepath.Join(dir, "empty.xlsx")
	require.NoError(t, empty.SaveAs(emptyPath))
	require.NoError(t, empty.Close())
	_, err = NewExcelStore(emptyPath, "", nullEntry()).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoHeaderRow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExcelStore(path, "", nullEntry()).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
