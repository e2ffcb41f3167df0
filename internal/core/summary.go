package core

// Summary holds totals derived from a view; it is never stored.
type Summary struct {
	TotalIncome  Money `json:"total_income"`
	TotalExpense Money `json:"total_expense"`
	Balance      Money `json:"balance"`
	Count        int   `json:"count"`
}

// Summarize totals a (usually filtered) sequence. Cents are summed as
// integers, so the result does not depend on summation order.
func Summarize(seq []Transaction) Summary {
	var s Summary
	for _, t := range seq {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.Count = len(seq)
	return s
}

// CategoryAmount is a per-category total within a view.
type CategoryAmount struct {
	Category Category `json:"category"`
	Income   Money    `json:"income"`
	Expense  Money    `json:"expense"`
}

// SummarizeByCategory breaks totals down per category in the fixed category
// order, omitting categories with no transactions.
func SummarizeByCategory(seq []Transaction) []CategoryAmount {
	idx := make(map[Category]int, len(categories))
	rows := make([]CategoryAmount, len(categories))
	seen := make([]bool, len(categories))
	for i, c := range categories {
		idx[c] = i
		rows[i].Category = c
	}
	for _, t := range seq {
		i, ok := idx[t.Category]
		if !ok {
			continue
		}
		seen[i] = true
		switch t.Type {
		case Income:
			rows[i].Income = rows[i].Income.Add(t.Amount)
		case Expense:
			rows[i].Expense = rows[i].Expense.Add(t.Amount)
		}
	}
	out := make([]CategoryAmount, 0, len(rows))
	for i, r := range rows {
		if seen[i] {
			out = append(out, r)
		}
	}
	return out
}
