// Package http provides the JSON HTTP boundary of the ledger.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON or form bodies, filter query parameters and input sanitization.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgeting/internal/core"
)

// maxBodyBytes bounds request bodies; a transaction is a handful of fields.
const maxBodyBytes = 64 << 10

// badRequestError marks input the server could not read at all, as opposed
// to input it read but rejected.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = badRequest("read body", p.err)
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// JSON numbers are kept as text so amounts are not rounded through float64.
	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = badRequest("malformed JSON body", err)
			return p.err
		}
		return nil
	}

	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		p.err = badRequest("malformed form body", err)
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Transaction builds a transaction from the parsed body. Missing type and
// category take the entry form defaults.
func (p *RequestBodyParser) Transaction() (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, err
	}
	return core.ParseTransaction(p.Get("date"), p.Get("amount"), p.Get("type"), p.Get("category"))
}

// stringValue converts a decoded JSON value to its text form.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// ParseCriteria reads the filter from query parameters type, category,
// start and end. A malformed filter is a bad request, not a rejected entity.
// An end before start is allowed and simply matches nothing.
func ParseCriteria(query url.Values) (core.Criteria, error) {
	c, err := core.ParseCriteria(
		sanitizeInput(query.Get("type")),
		sanitizeInput(query.Get("category")),
		sanitizeInput(query.Get("start")),
		sanitizeInput(query.Get("end")),
	)
	if err != nil {
		return core.Criteria{}, badRequest("invalid filter", err)
	}
	return c, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
