package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`9`, "9", false},
		{`"16"`, "16", false},
		{`" 13 "`, "13", false},
		{`true`, "", true},
	}
	for _, tt := range tests {
		var got flexString
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		set     bool
		wantErr bool
	}{
		{`-250.5`, -250.5, true, false},
		{`"1234.56"`, 1234.56, true, false},
		{`0`, 0, true, false},
		{`null`, 0, false, false},
		{`"abc"`, 0, false, true},
		{`[1]`, 0, false, true},
	}
	for _, tt := range tests {
		var got flexFloat
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if got.value != tt.want || got.set != tt.set {
			t.Errorf("%s: got %+v", tt.in, got)
		}
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 3, false},
		{"months=12", 12, false},
		{"months=+5", 5, false},
		{"months=1.5", 0, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseIntParam(q, "months", 3)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("%q: got %d, %v", tt.query, got, err)
		}
		if err != nil && !errors.Is(err, errBadRequest) {
			t.Errorf("%q: expected a bad request error, got %v", tt.query, err)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		A int `json:"a"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"a": 1}`, false},
		{"empty", "  ", true},
		{"trailing", `{"a": 1} {"a": 2}`, true},
		{"unknown", `{"b": 1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(r, 1024, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  export\x00.csv\t "); got != "export.csv" {
		t.Fatalf("got %q", got)
	}
}
