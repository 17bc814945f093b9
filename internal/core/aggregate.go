package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is one row of a per-category aggregation.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// MonthTotals is the month-to-date dashboard summary.
// Balance is always TotalIncome minus TotalExpense.
type MonthTotals struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"` // 1-12
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

// FilterByDateRange returns the transactions whose date falls within the
// inclusive bounds. A nil bound is unbounded on that side. Input order is
// preserved; nothing is re-sorted.
func FilterByDateRange(txs []Transaction, start, end *Date) []Transaction {
	if start == nil && end == nil {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if start != nil && t.Date.Before(*start) {
			continue
		}
		if end != nil && t.Date.After(*end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FilterByCategory returns the transactions whose category exactly matches
// the given name (case-sensitive). An empty category matches everything.
func FilterByCategory(txs []Transaction, category string) []Transaction {
	if category == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// SumAmounts returns the exact decimal sum of all amounts.
// An empty input sums to exactly zero.
func SumAmounts(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// GroupByCategory sums amounts per category name. Categories with no
// matching transaction are absent, never zero-valued. The result is
// ordered descending by total; ties keep the order in which a category
// was first encountered, so the grouping is stable for display.
func GroupByCategory(txs []Transaction) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	firstSeen := make(map[string]int)
	order := 0
	for _, t := range txs {
		if _, ok := totals[t.Category]; !ok {
			totals[t.Category] = decimal.Zero
			firstSeen[t.Category] = order
			order++
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, CategoryTotal{Category: name, Total: total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		cmp := out[i].Total.Cmp(out[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return firstSeen[out[i].Category] < firstSeen[out[j].Category]
	})
	return out
}

// PercentageOf returns (part/whole)*100 rounded to one decimal place.
// A zero whole has no meaningful percentage: the second return value is
// false and the value is zero. Callers never see NaN or infinities.
func PercentageOf(part, whole decimal.Decimal) (decimal.Decimal, bool) {
	if whole.IsZero() {
		return decimal.Zero, false
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(1), true
}

// SummarizeMonth computes the month-to-date totals for the calendar month
// containing now. Month membership is evaluated on now's local calendar,
// matching what household members see on their own clock; it is not a UTC
// boundary.
func SummarizeMonth(expenses, incomes []Transaction, now time.Time) MonthTotals {
	year, month := now.Year(), int(now.Month())

	inMonth := func(d Date) bool {
		return d.Year() == year && int(d.Month()) == month
	}

	totalExpense := decimal.Zero
	for _, t := range expenses {
		if inMonth(t.Date) {
			totalExpense = totalExpense.Add(t.Amount)
		}
	}
	totalIncome := decimal.Zero
	for _, t := range incomes {
		if inMonth(t.Date) {
			totalIncome = totalIncome.Add(t.Amount)
		}
	}

	return MonthTotals{
		Year:         year,
		Month:        month,
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		Balance:      totalIncome.Sub(totalExpense),
	}
}
