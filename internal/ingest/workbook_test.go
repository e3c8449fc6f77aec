package ingest

import (
	"errors"
	"testing"
	"time"

	"finctl/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeWorkbook(t *testing.T) {
	raw := workbook(t, [][]any{
		{"Data de competência", "Valor (R$)", "Centro de Custo 1", "Nome do fornecedor/cliente", "Descrição"},
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 100.125, "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "Receita"},
		{"20/01/2024", "-1.500,00", "Web Services Expenses", "AWS", "COGS"},
		{},
		{"sem data", 10, "Web Services Expenses", "AWS", "COGS"},
		{time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), "abc", "Web Services Expenses", "AWS", "COGS"},
	})

	txs, rep, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Encoding != EncodingXLSX || rep.Delimiter != "" {
		t.Fatalf("unexpected detection: %+v", rep)
	}
	if rep.Rows != 4 || rep.Accepted != 3 {
		t.Fatalf("unexpected counts: %+v", rep)
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0].Row != 5 {
		t.Fatalf("expected line 5 dropped, got %+v", rep.Dropped)
	}
	if len(rep.Zeroed) != 1 || rep.Zeroed[0].Row != 6 {
		t.Fatalf("expected line 6 zeroed, got %+v", rep.Zeroed)
	}

	want := []struct {
		month  core.MonthKey
		amount string
	}{
		{"2024-01", "100.125"},
		{"2024-01", "-1500"},
		{"2024-02", "0"},
	}
	for i, w := range want {
		if txs[i].Month != w.month {
			t.Fatalf("row %d: expected month %s, got %s", i, w.month, txs[i].Month)
		}
		if !txs[i].Amount.Equal(decimal.RequireFromString(w.amount)) {
			t.Fatalf("row %d: expected amount %s, got %s", i, w.amount, txs[i].Amount)
		}
	}
	if txs[0].Row != 2 || txs[0].Date.Day() != 15 {
		t.Fatalf("unexpected first transaction: %+v", txs[0])
	}
}

func TestNormalizeCorruptWorkbook(t *testing.T) {
	raw := append([]byte("PK\x03\x04"), []byte("not really a zip archive")...)
	_, _, err := Normalize(raw)
	var malformed *MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}

func TestParseSheetDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"45306", "2024-01-15", false},
		{"45306.5", "2024-01-15", false},
		{"2024-03-01", "2024-03-01", false},
		{"0", "", true},
		{"-3", "", true},
		{"tomorrow", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSheetDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Format(core.DateLayout) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Format(core.DateLayout))
			}
		})
	}
}
