// Package export converts sheet documents into downloadable workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fathomchat/chat-plane/internal/store"
	"github.com/fathomchat/chat-plane/internal/websets"
)

// SheetXLSX renders a sheet document's CSV content as an XLSX workbook. The
// pictureUrl and _itemId columns stay in the workbook but are hidden, same
// as in the grid.
func SheetXLSX(doc store.Document) ([]byte, error) {
	if doc.Kind != store.DocumentKindSheet {
		return nil, fmt.Errorf("document %s is not a sheet (kind %q)", doc.ID, doc.Kind)
	}

	reader := csv.NewReader(strings.NewReader(doc.Content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet content: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Webset"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for rowIdx, record := range records {
		for colIdx, value := range record {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if len(records) > 0 {
		for colIdx, header := range records[0] {
			if header != websets.ColumnPictureURL && header != websets.ColumnItemID {
				continue
			}
			name, err := excelize.ColumnNumberToName(colIdx + 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetColVisible(sheet, name, false); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
