// Package export implements the ledger backup format: a JSON array of
// transactions, two-space indented, keys in the order date, amount, type,
// category. Identities are internal to a running ledger and are not written.
package export

import (
	"encoding/json"
	"fmt"

	"budgeting/internal/core"
)

const (
	Filename    = "transactions.json"
	ContentType = "application/json"
	indent      = "  "
)

// record fixes the key order of the exported objects.
type record struct {
	Date     core.Date            `json:"date"`
	Amount   core.Money           `json:"amount"`
	Type     core.TransactionType `json:"type"`
	Category core.Category        `json:"category"`
}

// Encode renders seq in the export format. An empty ledger encodes as [].
func Encode(seq []core.Transaction) ([]byte, error) {
	records := make([]record, 0, len(seq))
	for _, t := range seq {
		records = append(records, record{
			Date:     t.Date,
			Amount:   t.Amount,
			Type:     t.Type,
			Category: t.Category,
		})
	}
	b, err := json.MarshalIndent(records, "", indent)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return b, nil
}

// Decode parses the export format. Every record is validated; the returned
// transactions carry no identity.
func Decode(data []byte) ([]core.Transaction, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		t := core.Transaction{Date: r.Date, Amount: r.Amount, Type: r.Type, Category: r.Category}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}
