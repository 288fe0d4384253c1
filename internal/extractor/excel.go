package extractor

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// excelText joins every non-empty cell, sheet by sheet and row-major, one
// cell per line.
func excelText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		// Use streaming row iterator for memory efficiency
		rows, err := f.Rows(sheet)
		if err != nil {
			continue
		}

		for rows.Next() {
			row, err := rows.Columns()
			if err != nil {
				break
			}
			for _, cellValue := range row {
				if cellValue == "" {
					continue
				}
				sb.WriteString(cellValue)
				sb.WriteString("\n")
			}
		}
		rows.Close()
	}
	return sb.String(), nil
}
