package ingest

import (
	"strings"
	"unicode"

	"finctl/internal/core"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Header aliases, already folded. Earlier aliases win when several columns match.
var (
	dateAliases         = []string{"data de competencia", "data competencia", "competence date", "data", "date"}
	amountAliases       = []string{"valor (r$)", "valor r$", "valor_num", "valor", "amount", "value"}
	costCenterAliases   = []string{"centro de custo 1", "centro de custo", "cost center", "cost centre"}
	counterpartyAliases = []string{"nome do fornecedor/cliente", "fornecedor/cliente", "fornecedor", "cliente", "counterparty", "supplier"}
	descriptionAliases  = []string{"descricao", "description", "historico", "memo"}
	categoryAliases     = []string{"categoria 1", "categoria", "plano de contas", "category"}
	directionAliases    = []string{"tipo", "type", "direction"}
)

// columns holds the record index of each known field, -1 when absent.
type columns struct {
	date, amount, costCenter, counterparty, description, category, direction int
}

func mapColumns(header []string) columns {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = fold(h)
	}
	return columns{
		date:         pick(folded, dateAliases),
		amount:       pick(folded, amountAliases),
		costCenter:   pick(folded, costCenterAliases),
		counterparty: pick(folded, counterpartyAliases),
		description:  pick(folded, descriptionAliases),
		category:     pick(folded, categoryAliases),
		direction:    pick(folded, directionAliases),
	}
}

func pick(folded, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range folded {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func (c columns) field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// fold lower-cases s, strips accents and collapses inner whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

var outflowLabels = map[string]struct{}{
	"saida":     {},
	"debito":    {},
	"debit":     {},
	"d":         {},
	"out":       {},
	"outflow":   {},
	"despesa":   {},
	"expense":   {},
	"pagamento": {},
}

func isOutflow(direction string) bool {
	_, ok := outflowLabels[fold(direction)]
	return ok
}

// WagesCostCenter is the canonical cost center of payroll entries.
const WagesCostCenter = "Wages Expenses"

var (
	payrollKeywords = []string{"folha", "salario", "payroll", "pro-labore", "pro labore", "prolabore"}
	wagesMarkers    = []string{"wage", "salari", "folha", "payroll"}
)

// reclassifyPayroll moves payroll-like rows to the wages cost center unless
// they already sit in a wages-related one. The amount is never touched.
func reclassifyPayroll(tx *core.Transaction) bool {
	text := fold(tx.Category) + " " + fold(tx.Description)
	if !containsAny(text, payrollKeywords) {
		return false
	}
	if containsAny(fold(tx.CostCenter), wagesMarkers) {
		return false
	}
	tx.CostCenter = WagesCostCenter
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
