package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finctl/internal/core"
	"finctl/internal/pnl"
)

// errBadRequest marks request shape problems that map to 400.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// uploadFormField is the multipart field carrying the export file.
const uploadFormField = "file"

// readUpload returns the export bytes and a source name. A multipart body
// must carry the file in the "file" field; any other body is taken as the
// raw export.
func readUpload(r *http.Request, maxBytes int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", uploadReadError(err)
		}
		name := strings.TrimSpace(r.URL.Query().Get("filename"))
		if name == "" {
			name = "upload"
		}
		return raw, sanitizeInput(name), nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", uploadReadError(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		return nil, "", badRequest("multipart upload needs a %q field", uploadFormField)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, "", uploadReadError(err)
	}
	return raw, sanitizeInput(header.Filename), nil
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestTooLargeError{limit: tooLarge.Limit}
	}
	return badRequest("read upload: %v", err)
}

type requestTooLargeError struct{ limit int64 }

func (e *requestTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.limit)
}

// decodeJSON decodes a single JSON value from the body, rejecting unknown
// fields and trailing data.
func decodeJSON(r *http.Request, maxBytes int64, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
	if err != nil {
		return uploadReadError(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest("empty request body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON: trailing data")
	}
	return nil
}

// flexString accepts a JSON string or number, so {"line_number": 9} and
// {"line_number": "9"} mean the same thing.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat{value: n, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("expected finite number, got %q", s)
	}
	*f = flexFloat{value: n, set: true}
	return nil
}

// parseRange reads the start_date and end_date query parameters.
func parseRange(q url.Values) (pnl.Range, error) {
	return pnl.ParseRange(strings.TrimSpace(q.Get("start_date")), strings.TrimSpace(q.Get("end_date")))
}

// parseOptionalMonth reads a month parameter that may be absent.
func parseOptionalMonth(q url.Values) (core.MonthKey, error) {
	v := strings.TrimSpace(q.Get("month"))
	if v == "" {
		return "", nil
	}
	return core.ParseMonthKey(v)
}

// parseIntParam returns def when the parameter is absent.
func parseIntParam(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
