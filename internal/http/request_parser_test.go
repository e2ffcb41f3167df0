package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budgeting/internal/core"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		wantErr     bool
		wantValues  map[string]string
	}{
		{
			name:        "JSON body with numeric amount",
			body:        `{"date": "2024-01-05", "amount": 12.50, "type": "expense"}`,
			contentType: "application/json",
			wantJSON:    true,
			wantValues:  map[string]string{"date": "2024-01-05", "amount": "12.50", "type": "expense", "category": ""},
		},
		{
			name:        "form encoded body",
			body:        "date=2024-01-05&amount=1000&category=salary",
			contentType: "application/x-www-form-urlencoded",
			wantValues:  map[string]string{"date": "2024-01-05", "amount": "1000", "category": "salary"},
		},
		{
			name:       "JSON detected without content type",
			body:       `{"amount": "3,20"}`,
			wantJSON:   true,
			wantValues: map[string]string{"amount": "3,20"},
		},
		{
			name:       "empty body",
			body:       "",
			wantValues: map[string]string{"date": ""},
		},
		{
			name:        "malformed JSON",
			body:        `{"date": `,
			contentType: "application/json",
			wantErr:     true,
		},
		{
			name:       "control characters are stripped",
			body:       "category=gro%00ceries",
			wantValues: map[string]string{"category": "groceries"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			p := NewRequestBodyParser(httptest.NewRecorder(), req)
			err := p.Parse()

			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var bad *badRequestError
				if !errors.As(err, &bad) {
					t.Errorf("Parse() error should be a bad request, got %T", err)
				}
				return
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			for key, want := range tt.wantValues {
				if got := p.Get(key); got != want {
					t.Errorf("Get(%q) = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestRequestBodyParserTransaction(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"date":"2024-02-01","amount":0.1}`))
	tx, err := NewRequestBodyParser(httptest.NewRecorder(), req).Transaction()
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if tx.Amount.Cents != 10 {
		t.Errorf("Amount = %d cents, want 10", tx.Amount.Cents)
	}
	if tx.Type != core.Income || tx.Category != core.Salary {
		t.Errorf("defaults = %s/%s, want income/salary", tx.Type, tx.Category)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"date":"2024-02-30","amount":"5"}`))
	_, err = NewRequestBodyParser(httptest.NewRecorder(), req).Transaction()
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "date" {
		t.Errorf("Transaction() error = %v, want date validation error", err)
	}
}

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    core.Criteria
		wantErr bool
	}{
		{
			name:  "empty query matches everything",
			query: url.Values{},
			want:  core.Criteria{},
		},
		{
			name:  "all is the same as empty",
			query: url.Values{"type": {"all"}, "category": {"All"}},
			want:  core.Criteria{},
		},
		{
			name:  "every clause",
			query: url.Values{"type": {"expense"}, "category": {"bills"}, "start": {"2024-01-01"}, "end": {"2024-01-31"}},
			want: core.Criteria{
				Type:      core.Expense,
				Category:  core.Bills,
				StartDate: core.NewDate(2024, 1, 1),
				EndDate:   core.NewDate(2024, 1, 31),
			},
		},
		{
			name:  "inverted range is allowed",
			query: url.Values{"start": {"2024-02-01"}, "end": {"2024-01-01"}},
			want:  core.Criteria{StartDate: core.NewDate(2024, 2, 1), EndDate: core.NewDate(2024, 1, 1)},
		},
		{
			name:    "unknown category",
			query:   url.Values{"category": {"travel"}},
			wantErr: true,
		},
		{
			name:    "bad date",
			query:   url.Values{"start": {"01/02/2024"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCriteria(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCriteria() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseCriteria() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  salary  ", "salary"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak", "line\nbreak"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
