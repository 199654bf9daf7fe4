package imports

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// PreviewRows is the number of rows shown before an advanced import starts.
const PreviewRows = 5

// Sheet is a parsed upload: the header row and one map per data row keyed by header.
type Sheet struct {
	Headers []string
	Rows    []map[string]string
}

// Preview returns up to n leading rows.
func (s *Sheet) Preview(n int) []map[string]string {
	if n > len(s.Rows) {
		n = len(s.Rows)
	}
	return s.Rows[:n]
}

func newSheet(headers []string) *Sheet {
	return &Sheet{Headers: headers}
}

func (s *Sheet) addRow(values []string) {
	row := make(map[string]string, len(s.Headers))
	for i, h := range s.Headers {
		if i < len(values) {
			row[h] = values[i]
		} else {
			row[h] = ""
		}
	}
	s.Rows = append(s.Rows, row)
}

// ParseCSVLine splits one CSV record. Commas inside double quotes are kept,
// the surrounding quotes are dropped, "" inside quotes yields a literal quote
// and every field is trimmed. A quote only opens a quoted field at the start
// of that field; elsewhere it is kept as text (12" pipe).
func ParseCSVLine(line string) []string {
	fields, _ := splitFields(line)
	return fields
}

// splitFields is ParseCSVLine that also reports whether line ends inside a
// quoted field.
func splitFields(line string) ([]string, bool) {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		started bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quoted && r == '"' && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteRune('"')
			i++
		case quoted && r == '"':
			quoted = false
		case quoted:
			current.WriteRune(r)
		case r == '"' && !started:
			current.Reset()
			quoted, started = true, true
		case r == ',':
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
			started = false
		default:
			current.WriteRune(r)
			if !unicode.IsSpace(r) {
				started = true
			}
		}
	}
	return append(fields, strings.TrimSpace(current.String())), quoted
}

// ParseCSV reads a header row followed by data rows. Blank lines are skipped
// and a quoted field may span several lines. A quoted field still open at the
// end of input is unterminated: its lines are then read one record each.
func ParseCSV(r io.Reader) (*Sheet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxFileSize)

	var (
		sheet   *Sheet
		pending []string
		lineNo  int
	)

	emit := func(line string) {
		if strings.TrimSpace(line) == "" {
			return
		}
		fields := ParseCSVLine(line)
		if sheet == nil {
			sheet = newSheet(fields)
			return
		}
		sheet.addRow(fields)
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		lineNo++
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		pending = append(pending, line)
		record := strings.Join(pending, "\n")
		if _, open := splitFields(record); open {
			continue
		}
		pending = pending[:0]
		emit(record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	for _, line := range pending {
		emit(line)
	}
	if sheet == nil {
		return nil, ErrNoHeader
	}
	return sheet, nil
}
