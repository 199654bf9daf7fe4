package imports

import (
	"errors"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest upload accepted when no limit is configured.
const MaxFileSize = 10 << 20

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	ErrUnsupportedFile = errors.New("please upload a CSV or Excel file (.csv, .xlsx, .xls)")
	ErrFileTooLarge    = errors.New("file size must be less than 10MB")
	ErrLegacyExcel     = errors.New("legacy .xls files are not supported, save the sheet as .xlsx or .csv")
	ErrNoHeader        = errors.New("file has no header row")
)

// DetectFormat returns the format implied by the file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	return "", ErrUnsupportedFile
}

// CheckFile validates an upload's name and size against MaxFileSize.
func CheckFile(name string, size int64) (Format, error) {
	return checkFile(name, size, MaxFileSize)
}

func checkFile(name string, size, limit int64) (Format, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = MaxFileSize
	}
	if size > limit {
		return "", ErrFileTooLarge
	}
	return format, nil
}
