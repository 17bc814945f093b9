package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tx(amount string, category string, date Date) Transaction {
	return Transaction{
		Amount:      decimal.RequireFromString(amount),
		Description: "t",
		Category:    category,
		Date:        date,
	}
}

func TestSumAmountsEmptyIsZero(t *testing.T) {
	if got := SumAmounts(nil); !got.Equal(decimal.Zero) {
		t.Fatalf("expected 0, got %s", got)
	}
	if got := SumAmounts([]Transaction{}); !got.Equal(decimal.Zero) {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestSumAmountsOrderIndependent(t *testing.T) {
	a := tx("0.10", "A", NewDate(2024, 5, 1))
	b := tx("0.20", "B", NewDate(2024, 5, 2))
	c := tx("99999999.99", "C", NewDate(2024, 5, 3))

	perms := [][]Transaction{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	want := decimal.RequireFromString("100000000.29")
	for i, p := range perms {
		if got := SumAmounts(p); !got.Equal(want) {
			t.Fatalf("perm %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestGroupByCategoryConservation(t *testing.T) {
	txs := []Transaction{
		tx("12.34", "Alimentación", NewDate(2024, 1, 1)),
		tx("0.01", "Transporte", NewDate(2024, 1, 2)),
		tx("7.65", "Alimentación", NewDate(2024, 1, 3)),
		tx("100", "Salud", NewDate(2024, 1, 4)),
	}
	groups := GroupByCategory(txs)

	grouped := decimal.Zero
	for _, g := range groups {
		grouped = grouped.Add(g.Total)
	}
	if total := SumAmounts(txs); !grouped.Equal(total) {
		t.Fatalf("grouped sum %s != total %s", grouped, total)
	}
}

func TestGroupByCategoryOrderAndAbsence(t *testing.T) {
	// Scenario from the reports view: Food 50+30, Transport 20.
	txs := []Transaction{
		tx("50", "Food", NewDate(2024, 5, 1)),
		tx("30", "Food", NewDate(2024, 5, 3)),
		tx("20", "Transport", NewDate(2024, 5, 2)),
	}
	groups := GroupByCategory(txs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Category != "Food" || !groups[0].Total.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected Food:80 first, got %s:%s", groups[0].Category, groups[0].Total)
	}
	if groups[1].Category != "Transport" || !groups[1].Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected Transport:20 second, got %s:%s", groups[1].Category, groups[1].Total)
	}
	if total := SumAmounts(txs); !total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100, got %s", total)
	}
}

func TestGroupByCategoryTiesKeepFirstSeen(t *testing.T) {
	txs := []Transaction{
		tx("10", "B", NewDate(2024, 5, 1)),
		tx("10", "A", NewDate(2024, 5, 2)),
	}
	groups := GroupByCategory(txs)
	if groups[0].Category != "B" || groups[1].Category != "A" {
		t.Fatalf("tie broke first-seen order: %v", groups)
	}
}

func TestFilterByDateRange(t *testing.T) {
	food1 := tx("50", "Food", NewDate(2024, 5, 1))
	transport := tx("20", "Transport", NewDate(2024, 5, 2))
	food2 := tx("30", "Food", NewDate(2024, 5, 3))
	txs := []Transaction{food1, food2, transport}

	start := NewDate(2024, 5, 2)
	end := NewDate(2024, 5, 3)
	got := FilterByDateRange(txs, &start, &end)
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	// Input order preserved: food2 appears before transport.
	if !got[0].Date.Equal(food2.Date.Time) || !got[1].Date.Equal(transport.Date.Time) {
		t.Fatalf("unexpected records or order: %v", got)
	}

	// Open-ended bounds.
	if got := FilterByDateRange(txs, nil, nil); len(got) != 3 {
		t.Fatalf("unbounded filter dropped records: %d", len(got))
	}
	if got := FilterByDateRange(txs, &start, nil); len(got) != 2 {
		t.Fatalf("start-only filter: expected 2, got %d", len(got))
	}
	if got := FilterByDateRange(txs, nil, &start); len(got) != 2 {
		t.Fatalf("end-only filter: expected 2, got %d", len(got))
	}
}

func TestFilterByCategory(t *testing.T) {
	txs := []Transaction{
		tx("1", "Food", NewDate(2024, 5, 1)),
		tx("2", "food", NewDate(2024, 5, 2)),
		tx("3", "Transport", NewDate(2024, 5, 3)),
	}
	got := FilterByCategory(txs, "Food")
	if len(got) != 1 || got[0].Category != "Food" {
		t.Fatalf("case-sensitive match broken: %v", got)
	}
	if got := FilterByCategory(txs, ""); len(got) != 3 {
		t.Fatalf("empty category must match all, got %d", len(got))
	}
}

func TestPercentageOf(t *testing.T) {
	cases := []struct {
		part, whole string
		want        string
		known       bool
	}{
		{"80", "100", "80", true},
		{"120", "100", "120", true},
		{"1", "3", "33.3", true},
		{"0", "100", "0", true},
		{"50", "0", "0", false},
		{"0", "0", "0", false},
	}
	for _, tc := range cases {
		got, known := PercentageOf(decimal.RequireFromString(tc.part), decimal.RequireFromString(tc.whole))
		if known != tc.known {
			t.Fatalf("%s/%s: known=%v, want %v", tc.part, tc.whole, known, tc.known)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s/%s: got %s, want %s", tc.part, tc.whole, got, tc.want)
		}
	}
}

func TestSummarizeMonth(t *testing.T) {
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	expenses := []Transaction{
		tx("50", "Food", NewDate(2024, 5, 1)),
		tx("20", "Transport", NewDate(2024, 4, 30)), // previous month
		tx("10", "Food", NewDate(2023, 5, 1)),       // same month, other year
	}
	incomes := []Transaction{
		tx("200", "Salario", NewDate(2024, 5, 2)),
		tx("99", "Ventas", NewDate(2024, 6, 1)), // next month
	}

	got := SummarizeMonth(expenses, incomes, now)
	if got.Year != 2024 || got.Month != 5 {
		t.Fatalf("unexpected period %d-%d", got.Year, got.Month)
	}
	if !got.TotalExpense.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected expense 50, got %s", got.TotalExpense)
	}
	if !got.TotalIncome.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected income 200, got %s", got.TotalIncome)
	}
	if !got.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected balance 150, got %s", got.Balance)
	}
}

func TestSummarizeMonthEmpty(t *testing.T) {
	got := SummarizeMonth(nil, nil, time.Now())
	if !got.TotalExpense.IsZero() || !got.TotalIncome.IsZero() || !got.Balance.IsZero() {
		t.Fatalf("empty summary must be all zero: %+v", got)
	}
}
