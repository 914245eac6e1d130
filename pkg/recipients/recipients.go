package recipients

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/validation"
)

// Parse builds the recipient set for one broadcast from up to three
// sources: an explicit list, a comma/newline delimited text block, and
// the first worksheet of an uploaded spreadsheet. Every candidate is
// reduced to its digits; candidates that end up empty are discarded.
// The result preserves first-appearance order and contains no duplicates.
func Parse(list []string, text string, spreadsheetPath string) []string {
	var fromSheet []string
	if spreadsheetPath != "" {
		fromSheet = worksheetColumnA(spreadsheetPath)
	}
	return parse(list, text, fromSheet)
}

// ParseStrict is Parse with the spreadsheet column routed through the
// strict format validator instead of the lenient strip: malformed cells
// are dropped rather than reduced to their digits. List and text
// candidates are normalized as usual.
func ParseStrict(list []string, text string, spreadsheetPath string) []string {
	var fromSheet []string
	if spreadsheetPath != "" {
		fromSheet = NumbersFromSpreadsheet(spreadsheetPath)
	}
	return parse(list, text, fromSheet)
}

func parse(list []string, text string, spreadsheet []string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(candidate string) {
		number := DigitsOnly(candidate)
		if number == "" {
			return
		}
		if _, ok := seen[number]; ok {
			return
		}
		seen[number] = struct{}{}
		out = append(out, number)
	}

	for _, candidate := range list {
		add(candidate)
	}

	for _, candidate := range splitTextBlock(text) {
		add(candidate)
	}

	for _, candidate := range spreadsheet {
		add(candidate)
	}

	return out
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitTextBlock(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
}

// worksheetColumnA reads column A of the first worksheet, skipping the
// header row. Boolean/error cells are ignored; only text and numeric
// values count. An unreadable spreadsheet contributes nothing.
func worksheetColumnA(path string) []string {
	f, err := excelize.OpenFile(path)
	if err != nil {
		log.Op("ReadSpreadsheet").WithError(err).Warn("Unable to open recipient spreadsheet")
		return nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		log.Op("ReadSpreadsheet").WithError(err).Warn("Unable to read recipient worksheet")
		return nil
	}

	var values []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			// Row 1 is assumed to be a header.
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			continue
		}
		cellType, err := f.GetCellType(sheet, cell)
		if err != nil || cellType == excelize.CellTypeBool || cellType == excelize.CellTypeError {
			continue
		}
		values = append(values, row[0])
	}
	return values
}

// NumbersFromSpreadsheet is the standalone extraction path: the same
// worksheet walk as Parse, but each value must pass the strict format
// validator instead of being stripped. An unreadable file yields an
// empty list, not an error.
func NumbersFromSpreadsheet(path string) []string {
	var numbers []string
	for _, candidate := range worksheetColumnA(path) {
		trimmed := strings.TrimSpace(candidate)
		if err := validation.ValidateBroadcastPhone(trimmed); err != nil {
			continue
		}
		numbers = append(numbers, trimmed)
	}
	return numbers
}
