package imports

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first worksheet of an .xlsx workbook.
func ParseXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var sheet *Sheet
	for _, cells := range rows {
		values := make([]string, len(cells))
		blank := true
		for i, c := range cells {
			values[i] = strings.TrimSpace(c)
			if values[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if sheet == nil {
			sheet = newSheet(values)
			continue
		}
		sheet.addRow(values)
	}

	if sheet == nil {
		return nil, ErrNoHeader
	}
	return sheet, nil
}

// Parse decodes data according to format.
func Parse(format Format, data []byte) (*Sheet, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(bytes.NewReader(data))
	case FormatXLSX:
		return ParseXLSX(bytes.NewReader(data))
	case FormatXLS:
		return nil, ErrLegacyExcel
	}
	return nil, ErrUnsupportedFile
}
