package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ewhitten/gleaner/record"
	"github.com/xuri/excelize/v2"
)

// fieldsOrDefault falls back to first-seen field order when the caller
// didn't configure one.
func fieldsOrDefault(records []*record.Record, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}
	return record.Fields(records)
}

// WriteCSV writes records to a CSV file with a header row. Empty input is
// logged and skipped without creating the file.
func WriteCSV(path string, records []*record.Record, fields []string) error {
	if len(records) == 0 {
		slog.Warn("no records to export", "path", path)
		return nil
	}
	fields = fieldsOrDefault(records, fields)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Row(fields)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	slog.Info("exported records", "format", "csv", "path", path, "records", len(records))
	return nil
}

// WriteJSON writes records to a JSON file as an array of objects, two-space
// indented. Object keys keep record field order.
func WriteJSON(path string, records []*record.Record) error {
	if len(records) == 0 {
		slog.Warn("no records to export", "path", path)
		return nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("exported records", "format", "json", "path", path, "records", len(records))
	return nil
}

// WriteXLSX writes records to an Excel workbook with a bold header row on
// the named sheet.
func WriteXLSX(path, sheet string, records []*record.Record, fields []string) error {
	if len(records) == 0 {
		slog.Warn("no records to export", "path", path)
		return nil
	}
	fields = fieldsOrDefault(records, fields)

	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	header := make([]any, len(fields))
	for i, field := range fields {
		header[i] = field
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		row := rec.Row(fields)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeaderCell, err := excelize.CoordinatesToCellName(len(fields), 1)
	if err != nil {
		return fmt.Errorf("failed to compute header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeaderCell, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("exported records", "format", "xlsx", "path", path, "records", len(records))
	return nil
}

// ReadCSV reads a CSV file written by WriteCSV (or any header-first CSV)
// back into records, for re-uploading previously exported data.
func ReadCSV(path string) ([]*record.Record, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}

	fields := rows[0]
	records := make([]*record.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := record.New()
		for i, field := range fields {
			if i < len(row) {
				rec.Set(field, row[i])
			}
		}
		records = append(records, rec)
	}

	return records, fields, nil
}
