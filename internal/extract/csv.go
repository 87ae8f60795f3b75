// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// extractCSV writes the header row as one line of column names, then
// one line per data row as "col: value; col: value", skipping empty
// cells; row_count counts the data rows.
func extractCSV(_ context.Context, data []byte) (Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // tolerate ragged rows rather than rejecting the file

	headers, err := r.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("empty CSV file")
	}
	if err != nil {
		return Result{}, fmt.Errorf("read CSV header: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(strings.Join(headers, ", ") + "\n")
	rowIdx := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read CSV row %d: %w", rowIdx+1, err)
		}

		var rowParts []string
		for colIdx, header := range headers {
			if colIdx >= len(row) || strings.TrimSpace(row[colIdx]) == "" {
				continue
			}
			headerName := strings.TrimSpace(header)
			if headerName == "" {
				headerName = fmt.Sprintf("Column %d", colIdx+1)
			}
			rowParts = append(rowParts, fmt.Sprintf("%s: %s", headerName, strings.TrimSpace(row[colIdx])))
		}
		if len(rowParts) > 0 {
			builder.WriteString(strings.Join(rowParts, "; ") + "\n")
		}
		rowIdx++
	}

	return Result{
		Text:     strings.TrimSpace(builder.String()),
		Metadata: map[string]string{"row_count": strconv.Itoa(rowIdx - 1)},
	}, nil
}
