// Package spreadsheet writes contact and group exports as xlsx
// workbooks under the public exports directory.
package spreadsheet

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/storage"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

var contactHeader = []string{"Name", "Number", "Is Saved Contact", "Is Business", "Platform Id"}

var groupHeader = []string{"Name", "Group Id", "Participant Count"}

// WriteContacts writes one row per contact after the header row. An
// empty list still produces a workbook with just the header. It returns
// the generated file name and its full path.
func WriteContacts(contacts []whatsapp.Contact, kind string) (string, string, error) {
	rows := make([][]any, 0, len(contacts))
	for _, contact := range contacts {
		rows = append(rows, []any{
			contact.Name,
			contact.Number,
			contact.IsSavedContact,
			contact.IsBusiness,
			contact.ID,
		})
	}
	return write(kind, contactHeader, rows)
}

// WriteGroups writes one row per group; the participant count cell is
// numeric when the member list is known and "Unknown" otherwise.
func WriteGroups(groups []whatsapp.Group) (string, string, error) {
	rows := make([][]any, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, []any{
			group.Name,
			group.ID,
			group.ParticipantCount,
		})
	}
	return write("groups", groupHeader, rows)
}

func write(kind string, header []string, rows [][]any) (string, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", "", err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", "", err
		}
	}

	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", "", err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", "", err
			}
		}
	}

	filename := fmt.Sprintf("%s-%s-%s.xlsx", kind, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	fullPath := filepath.Join(storage.ExportsDir(), filename)
	if err := f.SaveAs(fullPath); err != nil {
		return "", "", fmt.Errorf("failed to save export workbook: %w", err)
	}
	return filename, fullPath, nil
}
