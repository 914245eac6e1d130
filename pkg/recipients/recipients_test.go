package recipients

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseTextBlock(t *testing.T) {
	got := Parse(nil, "+1 555-000-1111, 5550002222\n5550002222", "")
	require.Equal(t, []string{"15550001111", "5550002222"}, got)
}

func TestParseListAndText(t *testing.T) {
	got := Parse([]string{"+44 1234 567890", "garbage"}, "441234567890,5550003333", "")
	require.Equal(t, []string{"441234567890", "5550003333"}, got)
}

func TestParseDiscardsEmptyCandidates(t *testing.T) {
	got := Parse([]string{"abc", "---", ""}, " , \n ", "")
	require.Empty(t, got)
}

func TestParsePreservesFirstAppearanceOrder(t *testing.T) {
	got := Parse([]string{"5550002222"}, "5550001111,5550002222", "")
	require.Equal(t, []string{"5550002222", "5550001111"}, got)
}

func TestParseFromSpreadsheet(t *testing.T) {
	path := writeWorkbook(t, []any{"Number", "+1 555-000-1111", 5550002222, true, "555-000-1111x"})

	got := Parse(nil, "", path)
	require.Equal(t, []string{"15550001111", "5550002222", "5550001111"}, got)
}

func TestParseUnreadableSpreadsheet(t *testing.T) {
	got := Parse(nil, "5550001111", filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Equal(t, []string{"5550001111"}, got)
}

func TestNumbersFromSpreadsheetStrict(t *testing.T) {
	path := writeWorkbook(t, []any{"Number", "+15550001111", "+1 555-000-1111", 5550002222, "short"})

	got := NumbersFromSpreadsheet(path)
	require.Equal(t, []string{"+15550001111", "5550002222"}, got)
}

func TestParseStrictDropsMalformedSpreadsheetCells(t *testing.T) {
	path := writeWorkbook(t, []any{"Number", "+15550001111", "+1 555-000-1111", 5550002222, "short"})

	// The lenient parser would reduce the formatted cell to its digits;
	// the strict variant drops it outright.
	got := ParseStrict(nil, "5550009999", path)
	require.Equal(t, []string{"5550009999", "15550001111", "5550002222"}, got)
}

func TestParseStrictUnreadableSpreadsheet(t *testing.T) {
	got := ParseStrict([]string{"+15550001111"}, "", filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Equal(t, []string{"15550001111"}, got)
}

func TestNumbersFromSpreadsheetUnreadable(t *testing.T) {
	got := NumbersFromSpreadsheet(filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Empty(t, got)
}

// writeWorkbook builds a single-column workbook, one value per row
// starting at A1.
func writeWorkbook(t *testing.T, column []any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, value := range column {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, value))
	}

	path := filepath.Join(t.TempDir(), "recipients.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}
