package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/database/data_model"
	"gorm.io/gorm"
)

// CsvImporter reads CSV written by CsvExporter back into media table. First
// line must be header, columns are matched by name so their order is free.
type CsvImporter struct {
	Delimiter rune
}

func NewCsvImporter() *CsvImporter {
	return &CsvImporter{Delimiter: ','}
}

// Read upserts every row in reader within one transaction. Returns number of
// rows saved.
func (c *CsvImporter) Read(ctx context.Context, store *Store, reader io.Reader) (int, error) {
	csvReader := csv.NewReader(reader)
	if c.Delimiter != '\x00' {
		csvReader.Comma = c.Delimiter
	}

	header, err := csvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %s", err)
	}

	columns, err := mapCSVColumns(header)
	if err != nil {
		return 0, err
	}

	cnt := 0
	err = store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		index := 2
		for line, err := csvReader.Read(); !errors.Is(err, io.EOF); line, err = csvReader.Read() {
			if err != nil {
				return fmt.Errorf("failed to read line %d: %s", index, err)
			}

			entry, err := parseCSVLine(columns, line)
			if err != nil {
				return fmt.Errorf("failed to unmarshal line %d: %s", index, err)
			}

			if err := entry.Upsert(tx); err != nil {
				return fmt.Errorf("failed to save line %d: %s", index, err)
			}

			cnt++
			index++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return cnt, nil
}

func (c *CsvImporter) ReadFile(ctx context.Context, store *Store, csvFileName string) (int, error) {
	file, err := os.Open(csvFileName)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV file %s: %s", csvFileName, err)
	}
	defer file.Close()

	return c.Read(ctx, store, file)
}

// LoadCSV imports a CSV file with default settings.
func LoadCSV(ctx context.Context, store *Store, fileName string) (int, error) {
	return NewCsvImporter().ReadFile(ctx, store, fileName)
}

func mapCSVColumns(header []string) (map[string]int, error) {
	known := map[string]bool{}
	for _, name := range csvHeaders {
		known[name] = true
	}

	columns := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if !known[name] {
			return nil, fmt.Errorf("invalid field name %s", name)
		}
		columns[name] = i
	}

	if _, ok := columns["ref"]; !ok {
		return nil, fmt.Errorf("CSV header contains no `ref` column")
	}

	return columns, nil
}

func parseCSVLine(columns map[string]int, line []string) (*data_model.MediaEntry, error) {
	get := func(name string) string {
		if i, ok := columns[name]; ok && i < len(line) {
			return strings.TrimSpace(line[i])
		}
		return ""
	}

	getInt := func(name string) (int, error) {
		value := get(name)
		if value == "" {
			return 0, nil
		}

		number, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, value)
		}
		return number, nil
	}

	entry := &data_model.MediaEntry{
		Ref:   get("ref"),
		URL:   get("url"),
		Crops: get("crops"),
	}
	if entry.Ref == "" {
		return nil, fmt.Errorf("empty reference")
	}

	var err error
	if entry.Width, err = getInt("width"); err != nil {
		return nil, err
	}
	if entry.Height, err = getInt("height"); err != nil {
		return nil, err
	}

	entry.Extension = common.NormalizeImageFormat(get("extension"))

	if left, top := get("focal_left"), get("focal_top"); left != "" || top != "" {
		entry.HasFocalPoint = true
		if entry.FocalLeft, err = strconv.ParseFloat(left, 64); err != nil {
			return nil, fmt.Errorf("invalid focal_left %q", left)
		}
		if entry.FocalTop, err = strconv.ParseFloat(top, 64); err != nil {
			return nil, fmt.Errorf("invalid focal_top %q", top)
		}
	}

	// crop column must hold valid crop list
	if _, err := entry.Info(); err != nil {
		return nil, err
	}

	return entry, nil
}
