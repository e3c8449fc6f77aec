// Package ingest turns raw accounting exports into normalized transactions.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"finctl/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingXLSX        = "xlsx"

	// headerScanLimit bounds how many leading records may precede the header.
	headerScanLimit = 10
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MalformedInputError rejects an upload that has no parseable tabular
// structure. Row-level defects never produce it.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
	}
	return "malformed input: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// RowIssue records a recoverable defect on one source line.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Report describes what happened to every input row.
type Report struct {
	Rows         int        `json:"rows"`
	Accepted     int        `json:"accepted"`
	Dropped      []RowIssue `json:"dropped"`
	Zeroed       []RowIssue `json:"zeroed"`
	Reclassified int        `json:"reclassified"`
	Encoding     string     `json:"encoding"`
	Delimiter    string     `json:"delimiter"`
}

// NormalizeReader reads the whole export and normalizes it.
func NormalizeReader(r io.Reader) ([]core.Transaction, Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, Report{}, fmt.Errorf("read export: %w", err)
	}
	return Normalize(raw)
}

// Normalize parses raw export bytes into one transaction per valid row.
// Rows with a bad date are dropped; rows with an unparseable amount are kept
// with a zero amount. Both are listed in the report. Excel workbooks are
// read from their first sheet; anything else is treated as delimited text.
func Normalize(raw []byte) ([]core.Transaction, Report, error) {
	if isWorkbook(raw) {
		return normalizeWorkbook(raw)
	}

	text, encoding := decode(raw)
	rep := Report{Encoding: encoding, Dropped: []RowIssue{}, Zeroed: []RowIssue{}}

	if len(bytes.TrimSpace(text)) == 0 {
		return nil, rep, &MalformedInputError{Reason: "empty input"}
	}
	if bytes.IndexByte(text, 0) >= 0 {
		return nil, rep, &MalformedInputError{Reason: "binary content"}
	}

	delim := detectDelimiter(text)
	rep.Delimiter = string(delim)

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	return normalize(csvRecords{reader}, textDialect, rep)
}

// records yields raw rows together with their 1-based source line.
type records interface {
	Read() ([]string, error)
	Line() int
}

type csvRecords struct{ *csv.Reader }

func (r csvRecords) Line() int {
	line, _ := r.FieldPos(0)
	return line
}

// dialect holds the cell parsers of one input format.
type dialect struct {
	date   func(string) (time.Time, error)
	amount func(string) (decimal.Decimal, error)
}

var textDialect = dialect{date: parseDate, amount: core.ParseAmount}

func normalize(src records, d dialect, rep Report) ([]core.Transaction, Report, error) {
	cols, err := findHeader(src)
	if err != nil {
		return nil, rep, err
	}

	txs := make([]core.Transaction, 0, 256)
	for {
		record, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rep.Rows++
				rep.Dropped = append(rep.Dropped, RowIssue{Row: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return nil, rep, &MalformedInputError{Reason: "unreadable record", Err: err}
		}
		if blank(record) {
			continue
		}
		line := src.Line()
		rep.Rows++

		tx, issue, zeroed := cols.transaction(record, line, d)
		if issue != "" {
			rep.Dropped = append(rep.Dropped, RowIssue{Row: line, Reason: issue})
			continue
		}
		if zeroed != "" {
			rep.Zeroed = append(rep.Zeroed, RowIssue{Row: line, Reason: zeroed})
		}
		if reclassifyPayroll(&tx) {
			rep.Reclassified++
		}
		txs = append(txs, tx)
	}
	rep.Accepted = len(txs)
	return txs, rep, nil
}

// decode returns UTF-8 text without BOM. Bytes that are not valid UTF-8 are
// read as Windows-1252, the code page of Brazilian bank exports.
func decode(raw []byte) ([]byte, string) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, EncodingUTF8
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return raw, EncodingUTF8
	}
	return out, EncodingWindows1252
}

// detectDelimiter counts candidates outside quotes over the leading
// non-empty lines and picks the most frequent. Comma wins ties.
func detectDelimiter(text []byte) rune {
	counts := map[rune]int{}
	lines := 0
	for _, line := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if lines++; lines > headerScanLimit {
			break
		}
		inQuotes := false
		for _, r := range string(line) {
			switch r {
			case '"':
				inQuotes = !inQuotes
			case ',', ';', '\t':
				if !inQuotes {
					counts[r]++
				}
			}
		}
	}
	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}

func findHeader(reader records) (columns, error) {
	var seen, widest int
	for seen < headerScanLimit {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return columns{}, &MalformedInputError{Reason: "unreadable header", Err: err}
		}
		if blank(record) {
			continue
		}
		seen++
		widest = max(widest, len(record))
		cols := mapColumns(record)
		if cols.date >= 0 && cols.amount >= 0 {
			return cols, nil
		}
	}
	if widest < 2 {
		return columns{}, &MalformedInputError{Reason: "input is not tabular"}
	}
	return columns{}, &MalformedInputError{Reason: "no header with a date and an amount column"}
}

// transaction builds a record from one row. A non-empty issue drops the row;
// a non-empty zeroed reason keeps it with a zero amount.
func (c columns) transaction(record []string, line int, d dialect) (core.Transaction, string, string) {
	rawDate := c.field(record, c.date)
	if rawDate == "" {
		return core.Transaction{}, "missing date", ""
	}
	date, err := d.date(rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Sprintf("invalid date %q", rawDate), ""
	}

	tx := core.Transaction{
		Row:          line,
		Date:         date,
		Month:        core.MonthOf(date),
		CostCenter:   c.field(record, c.costCenter),
		Counterparty: c.field(record, c.counterparty),
		Description:  c.field(record, c.description),
		Category:     c.field(record, c.category),
	}

	var zeroed string
	rawAmount := c.field(record, c.amount)
	amount, err := d.amount(rawAmount)
	if err != nil {
		zeroed = fmt.Sprintf("unparseable amount %q", rawAmount)
		amount = decimal.Zero
	} else if !core.HasExplicitSign(rawAmount) && isOutflow(c.field(record, c.direction)) {
		amount = amount.Neg()
	}
	tx.Amount = amount
	return tx, "", zeroed
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	core.DateLayout,
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
}

// parseDate accepts the day-first layouts of Brazilian exports and ISO dates.
// A trailing time of day is ignored.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.ErrInvalidDate
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
