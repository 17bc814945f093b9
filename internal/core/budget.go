package core

import "github.com/shopspring/decimal"

const (
	WithinBudget BudgetStatus = "within-budget"
	OverBudget   BudgetStatus = "over-budget"
)

// BudgetStatus is the two-state classification used for display emphasis.
// It never blocks or alerts.
type BudgetStatus string

// BudgetComparison reports how one category's actual spending relates to
// its configured budget, if any.
type BudgetComparison struct {
	Category string          `json:"category"`
	Actual   decimal.Decimal `json:"actual"`

	// HasBudget is false when no budget exists for the category; the
	// remaining fields are then zero values and must not be shown.
	HasBudget    bool            `json:"has_budget"`
	BudgetAmount decimal.Decimal `json:"budget_amount,omitempty"`

	// Percentage is actual/budget*100 rounded to one decimal place.
	// PercentageKnown is false when the budget amount is zero, the
	// documented division-by-zero policy.
	Percentage      decimal.Decimal `json:"percentage,omitempty"`
	PercentageKnown bool            `json:"percentage_known"`

	Status BudgetStatus `json:"status,omitempty"`
}

// CompareBudgets matches category totals against budget records by exact
// category name, no case folding. Every input total produces one row;
// categories without a budget are reported with HasBudget false rather
// than a zero comparison.
func CompareBudgets(groups []CategoryTotal, budgets []Budget) []BudgetComparison {
	byCategory := make(map[string]Budget, len(budgets))
	for _, b := range budgets {
		byCategory[b.Category] = b
	}

	out := make([]BudgetComparison, 0, len(groups))
	for _, g := range groups {
		cmp := BudgetComparison{Category: g.Category, Actual: g.Total}
		if b, ok := byCategory[g.Category]; ok {
			cmp.HasBudget = true
			cmp.BudgetAmount = b.Amount
			pct, known := PercentageOf(g.Total, b.Amount)
			cmp.Percentage = pct
			cmp.PercentageKnown = known
			cmp.Status = WithinBudget
			if known && pct.GreaterThan(decimal.NewFromInt(100)) {
				cmp.Status = OverBudget
			}
		}
		out = append(out, cmp)
	}
	return out
}
