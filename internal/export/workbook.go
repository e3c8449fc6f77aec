package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"finctl/internal/pnl"

	"github.com/xuri/excelize/v2"
)

const (
	StatementSheet = "P&L"
	DashboardSheet = "Dashboard"

	// statementTop is the worksheet row of the statement header; the title sits above.
	statementTop = 3
)

// Fill colours of the statement sheet.
const (
	fillHeader   = "366092"
	fillCategory = "D9E1F2"
	fillRevenue  = "C6E0B4"
	fillCost     = "F8CBAD"
	fillTotal    = "FFE699"
)

var revenueLines = map[int]bool{
	pnl.LineSalesRevenue:     true,
	pnl.LineGooglePlay:       true,
	pnl.LineAppStore:         true,
	pnl.LineInvestmentIncome: true,
}

var percentFormat = `0.00"%"`

type styleKey struct {
	fill    string
	bold    bool
	white   bool
	numeric bool
	percent bool
}

// styles creates each distinct cell style once per workbook.
type styles struct {
	f   *excelize.File
	ids map[styleKey]int
}

func (s *styles) get(k styleKey) (int, error) {
	if id, ok := s.ids[k]; ok {
		return id, nil
	}
	border := []excelize.Border{
		{Type: "left", Color: "BFBFBF", Style: 1},
		{Type: "right", Color: "BFBFBF", Style: 1},
		{Type: "top", Color: "BFBFBF", Style: 1},
		{Type: "bottom", Color: "BFBFBF", Style: 1},
	}
	st := &excelize.Style{Border: border, Font: &excelize.Font{Bold: k.bold}}
	if k.white {
		st.Font.Color = "FFFFFF"
	}
	if k.fill != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{k.fill}}
	}
	switch {
	case k.percent:
		st.CustomNumFmt = &percentFormat
	case k.numeric:
		st.NumFmt = 4 // #,##0.00
	}
	id, err := s.f.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	s.ids[k] = id
	return id, nil
}

// WriteWorkbook renders rep as an xlsx workbook with a statement sheet and a
// dashboard sheet.
func WriteWorkbook(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	st := &styles{f: f, ids: map[styleKey]int{}}
	if err := f.SetSheetName(f.GetSheetName(0), StatementSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeStatementSheet(f, st, rep); err != nil {
		return fmt.Errorf("statement sheet: %w", err)
	}
	if _, err := f.NewSheet(DashboardSheet); err != nil {
		return fmt.Errorf("create dashboard sheet: %w", err)
	}
	if err := writeDashboardSheet(f, st, rep); err != nil {
		return fmt.Errorf("dashboard sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeStatementSheet(f *excelize.File, st *styles, rep Report) error {
	stmt := rep.Statement
	grid := StatementGrid(stmt)
	width := len(grid[0])
	lastCol, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Profit & Loss, dataset version %d, generated %s", rep.Version, rep.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	if err := f.SetCellValue(StatementSheet, "A1", title); err != nil {
		return err
	}
	if err := f.MergeCell(StatementSheet, "A1", lastCol+"1"); err != nil {
		return err
	}
	titleStyle, err := st.get(styleKey{bold: true})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(StatementSheet, "A1", lastCol+"1", titleStyle); err != nil {
		return err
	}

	for i, cells := range grid {
		row := statementTop + i
		if err := setRow(f, StatementSheet, row, cells); err != nil {
			return err
		}
		if i == 0 {
			id, err := st.get(styleKey{fill: fillHeader, bold: true, white: true})
			if err != nil {
				return err
			}
			if err := styleRange(f, StatementSheet, row, 1, width, id); err != nil {
				return err
			}
			continue
		}
		if err := styleStatementRow(f, st, row, width, stmt.Rows[i-1]); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(StatementSheet, "A", "A", 7); err != nil {
		return err
	}
	if err := f.SetColWidth(StatementSheet, "B", "B", 34); err != nil {
		return err
	}
	if err := f.SetColWidth(StatementSheet, "C", "C", 8); err != nil {
		return err
	}
	if width > 3 {
		if err := f.SetColWidth(StatementSheet, "D", lastCol, 15); err != nil {
			return err
		}
	}
	return f.SetPanes(StatementSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      3,
		YSplit:      statementTop,
		TopLeftCell: fmt.Sprintf("D%d", statementTop+1),
		ActivePane:  "bottomRight",
	})
}

func styleStatementRow(f *excelize.File, st *styles, row, width int, r pnl.Row) error {
	k := styleKey{}
	switch {
	case r.IsHeader:
		k.fill, k.bold = fillCategory, true
	case r.IsTotal:
		k.fill, k.bold = fillTotal, true
	case r.IsPercent:
		k.fill = fillTotal
	case revenueLines[r.Line]:
		k.fill = fillRevenue
	default:
		k.fill = fillCost
	}
	label, err := st.get(k)
	if err != nil {
		return err
	}
	if err := styleRange(f, StatementSheet, row, 1, 3, label); err != nil {
		return err
	}
	if width <= 3 {
		return nil
	}
	k.numeric, k.percent = !r.IsPercent, r.IsPercent
	values, err := st.get(k)
	if err != nil {
		return err
	}
	return styleRange(f, StatementSheet, row, 4, width, values)
}

func writeDashboardSheet(f *excelize.File, st *styles, rep Report) error {
	header, err := st.get(styleKey{fill: fillHeader, bold: true, white: true})
	if err != nil {
		return err
	}
	numeric, err := st.get(styleKey{numeric: true})
	if err != nil {
		return err
	}

	row := 1
	for _, grid := range [][][]any{KPIGrid(rep.Dashboard), SeriesGrid(rep.Dashboard), CostGrid(rep.Dashboard)} {
		width := len(grid[0])
		for i, cells := range grid {
			if err := setRow(f, DashboardSheet, row, cells); err != nil {
				return err
			}
			id := numeric
			if i == 0 {
				id = header
			}
			if err := styleRange(f, DashboardSheet, row, 1, width, id); err != nil {
				return err
			}
			row++
		}
		row++
	}
	return f.SetColWidth(DashboardSheet, "A", "I", 16)
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func styleRange(f *excelize.File, sheet string, row, fromCol, toCol, style int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}

// DirWriter saves every report as an xlsx file in Dir.
type DirWriter struct {
	Dir string
}

// FileName is the file a report of the given version is saved under.
func FileName(version int64) string {
	return fmt.Sprintf("pnl-v%06d.xlsx", version)
}

// WriteReport writes the workbook to a temporary file and renames it into
// place, so readers never see a partial file. It returns the final path.
func (w DirWriter) WriteReport(ctx context.Context, rep Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}

	tmp, err := os.CreateTemp(w.Dir, ".pnl-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteWorkbook(tmp, rep); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path := filepath.Join(w.Dir, FileName(rep.Version))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move report into place: %w", err)
	}
	slog.InfoContext(ctx, "Report workbook written", "path", path, "version", rep.Version)
	return path, nil
}
