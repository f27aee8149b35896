package history

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/chronicle/internal/domain"
)

const exportSheet = "History"

var exportHeader = []string{"Action", "Occurred At", "Actor", "Before", "After"}

// Workbook renders audit entries into an xlsx workbook, one row per entry
// with flattened snapshots, for forensic download.
func Workbook(entries []domain.AuditEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create history sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for rowIdx, entry := range entries {
		actor := ""
		if entry.ActorID != nil {
			actor = entry.ActorID.String()
		}
		values := []string{
			string(entry.Action),
			entry.OccurredAt.Format("2006-01-02 15:04:05.000"),
			actor,
			strings.Join(domain.FlattenSnapshot(entry.Before), "\n"),
			strings.Join(domain.FlattenSnapshot(entry.After), "\n"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell for row %d: %w", rowIdx+2, err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell for row %d: %w", rowIdx+2, err)
			}
		}
	}

	return f, nil
}
