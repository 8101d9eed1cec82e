package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet    = "Riwayat"
	exportPageSize = 100
	exportMaxRows  = 10000
)

var exportHeader = []string{
	"Tanggal", "Waktu", "Sumber", "Makanan", "Porsi",
	"Kalori (kcal)", "Protein (g)", "Karbohidrat (g)", "Lemak (g)", "Gula (g)", "Natrium (mg)",
	"Skor Kesehatan", "Peringatan",
}

// ExportXLSX writes one row per scanned item in [from, to] to w.
func (s *HistoryService) ExportXLSX(ctx context.Context, userID uint, from, to time.Time, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, err
	}
	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	f.SetCellStyle(exportSheet, "A1", last, headerStyle)

	row := 2
	for offset := 0; row-2 < exportMaxRows; offset += exportPageSize {
		page, err := s.List(ctx, userID, from, to, exportPageSize, offset)
		if err != nil {
			return 0, err
		}
		for _, scan := range page.Items {
			for _, it := range scan.Items {
				writeExportRow(f, row, &scan, &it, s.loc)
				row++
			}
		}
		if len(page.Items) < exportPageSize {
			break
		}
	}

	f.SetColWidth(exportSheet, "A", "C", 12)
	f.SetColWidth(exportSheet, "D", "E", 28)
	f.SetColWidth(exportSheet, "F", "L", 14)
	f.SetColWidth(exportSheet, "M", "M", 60)

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return row - 2, nil
}

func writeExportRow(f *excelize.File, row int, scan *models.FoodScan, it *models.FoodScanItem, loc *time.Location) {
	at := scan.ScannedAt.In(loc)
	values := []any{
		at.Format("2006-01-02"), at.Format("15:04"), scan.Source, it.Name, it.Portion,
		round2(it.Calories), round2(it.Protein), round2(it.Carbs), round2(it.Fat), round2(it.Sugar), round2(it.Sodium),
		scan.HealthScore, scan.Warnings,
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	f.SetSheetRow(exportSheet, cell, &values)
}
