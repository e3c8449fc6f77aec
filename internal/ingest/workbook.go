package ingest

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"finctl/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var zipMagic = []byte("PK\x03\x04")

// Excel serial dates outside this window are not plausible transaction dates.
const (
	minSerialDate = 1
	maxSerialDate = 2958465
)

func isWorkbook(raw []byte) bool {
	return bytes.HasPrefix(raw, zipMagic)
}

// sheetRecords serves the rows of one worksheet through the records interface.
type sheetRecords struct {
	rows [][]string
	next int
}

func (s *sheetRecords) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

func (s *sheetRecords) Line() int { return s.next }

var sheetDialect = dialect{date: parseSheetDate, amount: parseSheetAmount}

func normalizeWorkbook(raw []byte) ([]core.Transaction, Report, error) {
	rep := Report{Encoding: EncodingXLSX, Dropped: []RowIssue{}, Zeroed: []RowIssue{}}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, rep, &MalformedInputError{Reason: "unreadable workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, rep, &MalformedInputError{Reason: "workbook has no sheets"}
	}
	// Raw values keep dates as serial numbers and amounts free of display formats.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, rep, &MalformedInputError{Reason: "unreadable sheet " + sheets[0], Err: err}
	}
	if len(rows) == 0 {
		return nil, rep, &MalformedInputError{Reason: "empty input"}
	}

	return normalize(&sheetRecords{rows: rows}, sheetDialect, rep)
}

func parseSheetDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < minSerialDate || serial > maxSerialDate {
			return time.Time{}, core.ErrInvalidDate
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, core.ErrInvalidDate
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return parseDate(s)
}

// parseSheetAmount reads numeric cells as plain decimals and falls back to
// the text rules for amounts typed as strings.
func parseSheetAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	return core.ParseAmount(s)
}
