package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"finctl/internal/core"

	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML layout.
type document struct {
	Mappings []Rule `yaml:"mappings"`
}

// ReadYAML decodes a mappings document and validates every rule.
func ReadYAML(r io.Reader) ([]Rule, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRules
		}
		return nil, fmt.Errorf("decode mappings yaml: %w", err)
	}
	if len(doc.Mappings) == 0 {
		return nil, ErrNoRules
	}
	if err := ValidateRules(doc.Mappings); err != nil {
		return nil, err
	}
	return doc.Mappings, nil
}

func WriteYAML(w io.Writer, rules []Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Mappings: rules}); err != nil {
		return fmt.Errorf("encode mappings yaml: %w", err)
	}
	return enc.Close()
}

// LegacyRule is the JSON layout of the earlier finance app, with Portuguese
// field names and string-typed line and active flag.
type LegacyRule struct {
	GrupoFinanceiro   string  `json:"grupo_financeiro"`
	CentroCusto       string  `json:"centro_custo"`
	FornecedorCliente string  `json:"fornecedor_cliente"`
	LinhaPL           string  `json:"linha_pl"`
	Tipo              string  `json:"tipo"`
	Ativo             string  `json:"ativo"`
	Observacoes       *string `json:"observacoes"`
}

// FromLegacy converts a legacy entry. Ativo is true for "Sim", "Yes" or "true".
func FromLegacy(l LegacyRule) (Rule, error) {
	line, err := strconv.Atoi(strings.TrimSpace(l.LinhaPL))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: linha_pl %q", ErrInvalidRule, l.LinhaPL)
	}
	kind, err := core.ParseKind(l.Tipo)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	r := Rule{
		Group:        l.GrupoFinanceiro,
		CostCenter:   l.CentroCusto,
		Counterparty: l.FornecedorCliente,
		Line:         line,
		Kind:         kind,
	}
	switch strings.ToLower(strings.TrimSpace(l.Ativo)) {
	case "sim", "yes", "true", "1":
		r.Active = true
	}
	if l.Observacoes != nil {
		r.Note = *l.Observacoes
	}
	return r, r.Validate()
}

func ToLegacy(r Rule) LegacyRule {
	ativo := "Não"
	if r.Active {
		ativo = "Sim"
	}
	tipo := map[core.Kind]string{core.Revenue: "Receita", core.Cost: "Custo", core.Expense: "Despesa"}[r.Kind]
	l := LegacyRule{
		GrupoFinanceiro:   r.Group,
		CentroCusto:       r.CostCenter,
		FornecedorCliente: r.Counterparty,
		LinhaPL:           strconv.Itoa(r.Line),
		Tipo:              tipo,
		Ativo:             ativo,
	}
	if r.Note != "" {
		note := r.Note
		l.Observacoes = &note
	}
	return l
}

// ReadLegacyJSON accepts either a bare array or {"mappings": [...]}.
func ReadLegacyJSON(r io.Reader) ([]Rule, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read legacy mappings: %w", err)
	}
	var items []LegacyRule
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Mappings []LegacyRule `json:"mappings"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode legacy mappings: %w", err)
		}
		items = wrapped.Mappings
	}
	if len(items) == 0 {
		return nil, ErrNoRules
	}
	rules := make([]Rule, 0, len(items))
	for i, it := range items {
		mr, err := FromLegacy(it)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, mr)
	}
	return rules, nil
}

func WriteLegacyJSON(w io.Writer, rules []Rule) error {
	items := make([]LegacyRule, len(rules))
	for i, r := range rules {
		items[i] = ToLegacy(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode legacy mappings: %w", err)
	}
	return nil
}

// LoadFile reads a mappings file, choosing the format by extension:
// .json is the legacy layout, anything else is YAML.
func LoadFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mappings file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ReadLegacyJSON(f)
	}
	return ReadYAML(f)
}

// SaveFile writes rules to path in the format implied by its extension.
func SaveFile(path string, rules []Rule) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mappings file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = WriteLegacyJSON(f, rules)
	} else {
		err = WriteYAML(f, rules)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close mappings file: %w", cerr)
	}
	return err
}
