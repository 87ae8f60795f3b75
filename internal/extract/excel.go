// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel extracts text from a spreadsheet using a
// "markdownification" strategy: each data row becomes a
// "Header: Value, Header: Value" line under a "Sheet: <name>" heading.
func extractExcel(_ context.Context, data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var builder strings.Builder

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return Result{}, fmt.Errorf("no sheets found in spreadsheet")
	}

	for sheetIdx, sheetName := range sheetList {
		if sheetIdx > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil {
			builder.WriteString(fmt.Sprintf("(unable to read sheet %s: %v)\n", sheetName, err))
			continue
		}
		if len(rows) == 0 {
			continue
		}

		headers := rows[0]
		if len(headers) == 0 {
			continue
		}

		for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
			row := rows[rowIdx]

			var rowParts []string
			for colIdx, header := range headers {
				if colIdx >= len(row) || row[colIdx] == "" {
					continue
				}
				value := strings.TrimSpace(row[colIdx])
				if value == "" {
					continue
				}
				headerName := strings.TrimSpace(header)
				if headerName == "" {
					headerName = fmt.Sprintf("Column %d", colIdx+1)
				}
				rowParts = append(rowParts, fmt.Sprintf("%s: %s", headerName, value))
			}

			if len(rowParts) > 0 {
				builder.WriteString(fmt.Sprintf("Row %d: %s\n", rowIdx+1, strings.Join(rowParts, ", ")))
			}
		}
	}

	return Result{
		Text:     strings.TrimSpace(builder.String()),
		Metadata: map[string]string{"sheet_count": fmt.Sprintf("%d", len(sheetList))},
	}, nil
}
