package pnl

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"finctl/internal/core"
)

// Override is one manual replacement of a statement cell.
type Override struct {
	Line  string        `json:"line_number"`
	Month core.MonthKey `json:"month"`
	Value float64       `json:"value"`
}

// Overrides is a sparse set of cell replacements keyed by line number (as a
// string) and month. The zero value is empty and ready to use.
type Overrides struct {
	cells map[string]map[core.MonthKey]float64
}

// ParseLine parses the string form of a line number.
func ParseLine(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLine, s)
	}
	return n, nil
}

// ErrInvalidValue is returned for override values that are not finite.
var ErrInvalidValue = errors.New("override value must be a finite number")

// CanonicalLine validates a statement line reference and returns the key
// overrides are stored under, so "09" and "9" address the same cell.
func CanonicalLine(line string) (string, error) {
	n, err := ParseLine(line)
	if err != nil {
		return "", err
	}
	if _, ok := LookupLine(n); !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownLine, n)
	}
	return strconv.Itoa(n), nil
}

// ValidateOverride checks that an override targets a statement line and a
// well-formed month with a finite value. It returns the canonical line key.
func ValidateOverride(line string, month core.MonthKey, value float64) (string, error) {
	key, err := CanonicalLine(line)
	if err != nil {
		return "", err
	}
	if !month.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidMonth, string(month))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	return key, nil
}

// lineKey normalises numeric keys; anything else is kept as given.
func lineKey(line string) string {
	if n, err := strconv.Atoi(line); err == nil {
		return strconv.Itoa(n)
	}
	return line
}

func (o *Overrides) Set(line string, month core.MonthKey, value float64) {
	if o.cells == nil {
		o.cells = make(map[string]map[core.MonthKey]float64)
	}
	line = lineKey(line)
	row, ok := o.cells[line]
	if !ok {
		row = make(map[core.MonthKey]float64)
		o.cells[line] = row
	}
	row[month] = value
}

func (o Overrides) Get(line string, month core.MonthKey) (float64, bool) {
	v, ok := o.cells[lineKey(line)][month]
	return v, ok
}

// Delete removes one cell and reports whether it existed.
func (o *Overrides) Delete(line string, month core.MonthKey) bool {
	line = lineKey(line)
	row, ok := o.cells[line]
	if !ok {
		return false
	}
	if _, ok := row[month]; !ok {
		return false
	}
	delete(row, month)
	if len(row) == 0 {
		delete(o.cells, line)
	}
	return true
}

func (o *Overrides) Clear() { o.cells = nil }

func (o Overrides) Len() int {
	n := 0
	for _, row := range o.cells {
		n += len(row)
	}
	return n
}

// Clone returns a deep copy.
func (o Overrides) Clone() Overrides {
	var c Overrides
	for line, row := range o.cells {
		for m, v := range row {
			c.Set(line, m, v)
		}
	}
	return c
}

// Entries lists every override ordered by line number, then month.
func (o Overrides) Entries() []Override {
	out := make([]Override, 0, o.Len())
	for line, row := range o.cells {
		for m, v := range row {
			out = append(out, Override{Line: line, Month: m, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, _ := strconv.Atoi(out[i].Line)
		lj, _ := strconv.Atoi(out[j].Line)
		if li != lj {
			return li < lj
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// NewOverrides builds a set from entries; later entries win.
func NewOverrides(entries ...Override) Overrides {
	var o Overrides
	for _, e := range entries {
		o.Set(e.Line, e.Month, e.Value)
	}
	return o
}

// MarshalJSON encodes {"line": {"month": value}}.
func (o Overrides) MarshalJSON() ([]byte, error) {
	if o.cells == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.cells)
}

func (o *Overrides) UnmarshalJSON(data []byte) error {
	var cells map[string]map[core.MonthKey]float64
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("decode overrides: %w", err)
	}
	o.cells = nil
	for line, row := range cells {
		for m, v := range row {
			o.Set(line, m, v)
		}
	}
	return nil
}
