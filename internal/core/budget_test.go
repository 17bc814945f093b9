package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompareBudgetsClassification(t *testing.T) {
	groups := []CategoryTotal{
		{Category: "Food", Total: decimal.NewFromInt(120)},
		{Category: "Transport", Total: decimal.NewFromInt(80)},
	}
	budgets := []Budget{
		{Category: "Food", Amount: decimal.NewFromInt(100)},
		{Category: "Transport", Amount: decimal.NewFromInt(100)},
	}

	got := CompareBudgets(groups, budgets)
	if len(got) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(got))
	}

	food := got[0]
	if !food.HasBudget || !food.PercentageKnown {
		t.Fatalf("food comparison incomplete: %+v", food)
	}
	if !food.Percentage.Equal(decimal.NewFromInt(120)) || food.Status != OverBudget {
		t.Fatalf("expected 120%% over-budget, got %s %s", food.Percentage, food.Status)
	}

	transport := got[1]
	if !transport.Percentage.Equal(decimal.NewFromInt(80)) || transport.Status != WithinBudget {
		t.Fatalf("expected 80%% within-budget, got %s %s", transport.Percentage, transport.Status)
	}
}

func TestCompareBudgetsZeroBudget(t *testing.T) {
	groups := []CategoryTotal{{Category: "Food", Total: decimal.NewFromInt(50)}}
	budgets := []Budget{{Category: "Food", Amount: decimal.Zero}}

	got := CompareBudgets(groups, budgets)
	if len(got) != 1 {
		t.Fatalf("expected 1 comparison, got %d", len(got))
	}
	cmp := got[0]
	if !cmp.HasBudget {
		t.Fatalf("budget should be found: %+v", cmp)
	}
	if cmp.PercentageKnown {
		t.Fatalf("zero budget must hit the division-by-zero policy: %+v", cmp)
	}
	if cmp.Status != WithinBudget {
		t.Fatalf("unknown percentage classifies within-budget, got %s", cmp.Status)
	}
}

func TestCompareBudgetsMissingBudgetIsAbsent(t *testing.T) {
	groups := []CategoryTotal{{Category: "Ropa", Total: decimal.NewFromInt(10)}}

	got := CompareBudgets(groups, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].HasBudget {
		t.Fatalf("no budget configured, comparison must be absent: %+v", got[0])
	}
}

func TestCompareBudgetsExactNameMatch(t *testing.T) {
	groups := []CategoryTotal{{Category: "food", Total: decimal.NewFromInt(10)}}
	budgets := []Budget{{Category: "Food", Amount: decimal.NewFromInt(100)}}

	got := CompareBudgets(groups, budgets)
	if got[0].HasBudget {
		t.Fatalf("budget lookup must not case-fold: %+v", got[0])
	}
}
