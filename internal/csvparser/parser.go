// =============================================================================
// CFE XML Extractor - CSV Table Reader
// =============================================================================
//
// This module reads the CSV exports used as a file-based party directory.
// Spreadsheet tools in Spanish locales commonly produce:
//   - Semicolon delimiters (the comma is the decimal separator)
//   - Windows-1252 / ISO-8859-1 text instead of UTF-8
//   - A UTF-8 byte order mark in front of the first header
//
// DELIMITER DETECTION:
//   With Delimiter "auto" (or empty) the first line is inspected and the
//   most frequent of ';', ',', tab and '|' wins. Ties go to the comma.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Settings controls how a CSV file is decoded.
type Settings struct {
	// Delimiter: "auto", ",", ";", "tab" or "|". Default: "auto"
	Delimiter string

	// Encoding: "utf-8", "windows-1252", "iso-8859-1". Default: "utf-8"
	Encoding string
}

// Table is a header row plus data rows, with blank rows removed.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, settings Settings) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return Read(file, settings)
}

// Read decodes r into a Table.
func Read(r io.Reader, settings Settings) (*Table, error) {
	enc, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := bufio.NewReader(r)
	if bom, _ := reader.Peek(3); bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		reader.Discard(3)
	}

	comma, err := delimiter(settings.Delimiter, reader)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = comma
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	table := &Table{Headers: cleanHeaders(allRows[0])}
	for _, row := range allRows[1:] {
		if isRowEmpty(row) {
			continue
		}
		cells := make([]string, len(table.Headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

// decoderFor maps an encoding name to a decoder. nil means UTF-8.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	}
	return nil, fmt.Errorf("unsupported CSV encoding %q", name)
}

// delimiter resolves the configured delimiter, sniffing the first line for
// "auto".
func delimiter(setting string, reader *bufio.Reader) (rune, error) {
	switch setting {
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\\t", "tab", "TAB":
		return '\t', nil
	case "|", "pipe", "PIPE":
		return '|', nil
	case "", "auto":
	default:
		return 0, fmt.Errorf("unsupported CSV delimiter %q", setting)
	}

	line, err := peekLine(reader)
	if err != nil {
		return 0, err
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if n := strings.Count(line, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best, nil
}

// peekLine returns the first line without consuming it.
func peekLine(reader *bufio.Reader) (string, error) {
	for size := 512; ; size *= 2 {
		buf, err := reader.Peek(size)
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			return string(buf[:i]), nil
		}
		if err != nil {
			// Short input or a header longer than the buffer.
			return string(buf), nil
		}
	}
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
