package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/SirZenith/lazyimg/database/data_model"
)

var csvHeaders = []string{
	"ref", "url", "width", "height", "extension",
	"focal_left", "focal_top", "crops",
}

// CsvExporter writes media table as CSV.
type CsvExporter struct {
	WriteHeaders bool
	FloatFormat  string
	Delimiter    rune
}

func NewCsvExporter() *CsvExporter {
	return &CsvExporter{
		WriteHeaders: true,
		Delimiter:    ',',
	}
}

func (c *CsvExporter) formatFloat(value float64) string {
	if c.FloatFormat != "" {
		return fmt.Sprintf(c.FloatFormat, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (c *CsvExporter) row(entry *data_model.MediaEntry) []string {
	focalLeft, focalTop := "", ""
	if entry.HasFocalPoint {
		focalLeft = c.formatFloat(entry.FocalLeft)
		focalTop = c.formatFloat(entry.FocalTop)
	}

	return []string{
		entry.Ref,
		entry.URL,
		strconv.Itoa(entry.Width),
		strconv.Itoa(entry.Height),
		entry.Extension,
		focalLeft,
		focalTop,
		entry.Crops,
	}
}

// Write streams every media record ordered by reference into writer.
func (c *CsvExporter) Write(ctx context.Context, store *Store, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if c.Delimiter != '\x00' {
		csvWriter.Comma = c.Delimiter
	}

	if c.WriteHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	db := store.db.WithContext(ctx)
	rows, err := db.Model(&data_model.MediaEntry{}).Order("ref").Rows()
	if err != nil {
		return fmt.Errorf("failed to query media table: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry := data_model.MediaEntry{}
		if err := db.ScanRows(rows, &entry); err != nil {
			return fmt.Errorf("failed to read media row: %s", err)
		}

		if err := csvWriter.Write(c.row(&entry)); err != nil {
			return fmt.Errorf("failed to write data row to csv %w", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return err
	}

	return rows.Err()
}

func (c *CsvExporter) WriteFile(ctx context.Context, store *Store, csvFileName string) error {
	f, err := os.Create(csvFileName)
	if err != nil {
		return err
	}

	err = c.Write(ctx, store, f)
	if err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// SaveAsCSV writes media table to a CSV file with default settings.
func SaveAsCSV(ctx context.Context, store *Store, fileName string) error {
	return NewCsvExporter().WriteFile(ctx, store, fileName)
}
