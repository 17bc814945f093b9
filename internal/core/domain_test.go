package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2024, 5, 1),
		Description: "mercado",
		Amount:      decimal.RequireFromString("12.34"),
		Category:    "Alimentación",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Date: Date{}, Description: "a", Amount: decimal.NewFromInt(1), Category: "c"},
		{Date: NewDate(2024, 5, 1), Description: "", Amount: decimal.NewFromInt(1), Category: "c"},
		{Date: NewDate(2024, 5, 1), Description: "a", Amount: decimal.Zero, Category: "c"},
		{Date: NewDate(2024, 5, 1), Description: "a", Amount: decimal.NewFromInt(-1), Category: "c"},
		{Date: NewDate(2024, 5, 1), Description: "a", Amount: decimal.NewFromInt(1), Category: ""},
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (Budget{Category: "Food", Amount: decimal.Zero}).Validate(); err != nil {
		t.Fatalf("zero budget is valid, got %v", err)
	}
	if err := (Budget{Category: "Food", Amount: decimal.NewFromInt(-1)}).Validate(); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if err := (Budget{Category: " ", Amount: decimal.NewFromInt(1)}).Validate(); err == nil {
		t.Fatalf("expected error for blank category")
	}
}

func TestKindValidate(t *testing.T) {
	if err := Expense.Validate(); err != nil {
		t.Fatalf("expense kind: %v", err)
	}
	if err := Income.Validate(); err != nil {
		t.Fatalf("income kind: %v", err)
	}
	if err := TransactionKind("savings").Validate(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 5, 1)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-05-01"` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip changed date: %s != %s", back, d)
	}
}

func TestDateJSONAcceptsTimestamps(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-05-01T18:30:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.May || d.Day() != 1 {
		t.Fatalf("unexpected date %s", d)
	}

	if err := json.Unmarshal([]byte(`"not-a-date"`), &d); err == nil {
		t.Fatalf("expected error for garbage date")
	}
}
