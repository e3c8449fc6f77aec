package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"finctl/internal/mapping"
)

// MappingsRequest replaces the whole rule table. Items may use the native
// field names or the legacy layout (grupo_financeiro, linha_pl, ...).
type MappingsRequest struct {
	Mappings []json.RawMessage `json:"mappings"`
}

// MappingsResponse lists the rules in effect.
type MappingsResponse struct {
	Custom   bool           `json:"custom"`
	Mappings []mapping.Rule `json:"mappings"`
}

// handleGetMappings answers in the native layout, or in the legacy one with
// ?format=legacy.
func (s *Server) handleGetMappings(w http.ResponseWriter, r *http.Request) {
	rules := s.ledger.Rules()
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "native":
		writeJSON(w, http.StatusOK, MappingsResponse{
			Custom:   s.ledger.Status().CustomRules,
			Mappings: rules,
		})
	case "legacy":
		items := make([]mapping.LegacyRule, len(rules))
		for i, rule := range rules {
			items[i] = mapping.ToLegacy(rule)
		}
		writeJSON(w, http.StatusOK, items)
	default:
		writeError(w, r, badRequest("unknown format %q", r.URL.Query().Get("format")))
	}
}

func (s *Server) handleSetMappings(w http.ResponseWriter, r *http.Request) {
	var req MappingsRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rules, err := decodeRules(req.Mappings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetMappings(r.Context(), rules); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Mappings updated",
		Version: s.ledger.Status().Metadata.Version,
	})
}

func (s *Server) handleResetMappings(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ResetMappings(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Mappings reset to default",
		Version: s.ledger.Status().Metadata.Version,
	})
}

func decodeRules(items []json.RawMessage) ([]mapping.Rule, error) {
	rules := make([]mapping.Rule, 0, len(items))
	for i, raw := range items {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, badRequest("mapping %d is not an object", i+1)
		}

		if _, legacy := probe["linha_pl"]; legacy {
			var l mapping.LegacyRule
			if err := json.Unmarshal(raw, &l); err != nil {
				return nil, badRequest("mapping %d: %v", i+1, err)
			}
			rule, err := mapping.FromLegacy(l)
			if err != nil {
				return nil, badRequest("mapping %d: %v", i+1, err)
			}
			rules = append(rules, rule)
			continue
		}

		var rule mapping.Rule
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rule); err != nil {
			return nil, badRequest("mapping %d: %v", i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
