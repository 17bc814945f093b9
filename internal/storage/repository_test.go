package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateTransaction(ctx, core.Expense, core.Transaction{
		Amount:      decimal.RequireFromString("12.34"),
		Description: "mercado",
		Category:    "Alimentación",
		Date:        core.NewDate(2024, 5, 1),
		FamilyCode:  "FAM123",
		CreatedBy:   "user-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	list, err := repo.ListTransactions(ctx, core.Expense, "FAM123")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Date.String() != "2024-05-01" {
		t.Fatalf("date mangled: %s", list[0].Date)
	}

	// Incomes are a separate collection.
	other, err := repo.ListTransactions(ctx, core.Income, "FAM123")
	if err != nil {
		t.Fatalf("list incomes: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expense leaked into incomes: %+v", other)
	}

	created.Amount = decimal.RequireFromString("20")
	created.Description = "mercado grande"
	if err := repo.UpdateTransaction(ctx, core.Expense, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = repo.ListTransactions(ctx, core.Expense, "FAM123")
	if !list[0].Amount.Equal(decimal.NewFromInt(20)) || list[0].Description != "mercado grande" {
		t.Fatalf("update not applied: %+v", list[0])
	}

	if err := repo.DeleteTransaction(ctx, core.Expense, created.ID, "FAM123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, core.Expense, created.ID, "FAM123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionsScopedByFamily(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mk := func(family string) {
		_, err := repo.CreateTransaction(ctx, core.Expense, core.Transaction{
			Amount: decimal.NewFromInt(1), Description: "x", Category: "c",
			Date: core.NewDate(2024, 1, 1), FamilyCode: family, CreatedBy: "u",
		})
		if err != nil {
			t.Fatalf("create for %s: %v", family, err)
		}
	}
	mk("FAM-A")
	mk("FAM-B")

	list, err := repo.ListTransactions(ctx, core.Expense, "FAM-A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].FamilyCode != "FAM-A" {
		t.Fatalf("family scoping broken: %+v", list)
	}
}

func TestListTransactionsOrdersByDateDesc(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, d := range []core.Date{
		core.NewDate(2024, 5, 1),
		core.NewDate(2024, 5, 3),
		core.NewDate(2024, 5, 2),
	} {
		if _, err := repo.CreateTransaction(ctx, core.Income, core.Transaction{
			Amount: decimal.NewFromInt(1), Description: "x", Category: "c",
			Date: d, FamilyCode: "F", CreatedBy: "u",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := repo.ListTransactions(ctx, core.Income, "F")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].Date.String() != "2024-05-03" || list[2].Date.String() != "2024-05-01" {
		t.Fatalf("unexpected order: %s %s %s", list[0].Date, list[1].Date, list[2].Date)
	}
}

func TestCategoryCRUDAndSoftReferences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cat, err := repo.CreateCategory(ctx, core.Expense, core.Category{Name: "Transporte", FamilyCode: "F"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := repo.CreateTransaction(ctx, core.Expense, core.Transaction{
		Amount: decimal.NewFromInt(5), Description: "bus", Category: "Transporte",
		Date: core.NewDate(2024, 5, 1), FamilyCode: "F", CreatedBy: "u",
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if err := repo.DeleteCategory(ctx, core.Expense, cat.ID, "F"); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	// The transaction keeps its now-orphaned category string.
	list, err := repo.ListTransactions(ctx, core.Expense, "F")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Category != "Transporte" {
		t.Fatalf("category delete must not cascade: %+v", list)
	}
}

func TestUpsertBudget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertBudget(ctx, core.Budget{
		Category: "Alimentación", Amount: decimal.NewFromInt(300),
		FamilyCode: "F", CreatedBy: "u1",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	second, err := repo.UpsertBudget(ctx, core.Budget{
		Category: "Alimentación", Amount: decimal.NewFromInt(450),
		FamilyCode: "F", CreatedBy: "u2",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("upsert must keep the existing row, got new id %s", second.ID)
	}
	if !second.Amount.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("amount not updated: %s", second.Amount)
	}

	budgets, err := repo.ListBudgets(ctx, "F")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("duplicate budget rows: %+v", budgets)
	}
}

func TestReplaceAllRestampsOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Existing data that the restore must wipe.
	if _, err := repo.CreateTransaction(ctx, core.Expense, core.Transaction{
		Amount: decimal.NewFromInt(999), Description: "old", Category: "Old",
		Date: core.NewDate(2023, 1, 1), FamilyCode: "F", CreatedBy: "old-user",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	set := RestoreSet{
		Expenses: []core.Transaction{{
			ID: "keep-id", Amount: decimal.RequireFromString("12.34"),
			Description: "mercado", Category: "Alimentación",
			Date: core.NewDate(2024, 5, 1), FamilyCode: "OTHER", CreatedBy: "someone-else",
		}},
		Incomes: []core.Transaction{{
			Amount: decimal.NewFromInt(2000), Description: "nómina", Category: "Salario",
			Date: core.NewDate(2024, 5, 2),
		}},
		ExpenseCategories: []core.Category{{Name: "Alimentación"}},
		IncomeCategories:  []core.Category{{Name: "Salario"}},
		Budgets:           []core.Budget{{Category: "Alimentación", Amount: decimal.NewFromInt(300)}},
	}

	if err := repo.ReplaceAll(ctx, "F", "user-2", set); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	expenses, _ := repo.ListTransactions(ctx, core.Expense, "F")
	if len(expenses) != 1 || expenses[0].Description != "mercado" {
		t.Fatalf("old rows survived the swap: %+v", expenses)
	}
	if expenses[0].FamilyCode != "F" || expenses[0].CreatedBy != "user-2" {
		t.Fatalf("ownership not re-stamped: %+v", expenses[0])
	}

	incomes, _ := repo.ListTransactions(ctx, core.Income, "F")
	if len(incomes) != 1 || incomes[0].CreatedBy != "user-2" {
		t.Fatalf("income ownership not re-stamped: %+v", incomes)
	}

	cats, _ := repo.ListCategories(ctx, core.Expense, "F")
	if len(cats) != 1 || cats[0].Name != "Alimentación" {
		t.Fatalf("categories not restored: %+v", cats)
	}

	budgets, _ := repo.ListBudgets(ctx, "F")
	if len(budgets) != 1 || budgets[0].CreatedBy != "user-2" {
		t.Fatalf("budget ownership not re-stamped: %+v", budgets)
	}
}

func TestReplaceAllRollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateTransaction(ctx, core.Expense, core.Transaction{
		Amount: decimal.NewFromInt(10), Description: "keep me", Category: "c",
		Date: core.NewDate(2024, 1, 1), FamilyCode: "F", CreatedBy: "u",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Duplicate category names violate the unique constraint mid-restore.
	set := RestoreSet{
		ExpenseCategories: []core.Category{{Name: "Dup"}, {Name: "Dup"}},
	}
	if err := repo.ReplaceAll(ctx, "F", "u", set); err == nil {
		t.Fatalf("expected constraint violation")
	}

	// The swap is atomic: the pre-existing expense must still be there.
	list, err := repo.ListTransactions(ctx, core.Expense, "F")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Description != "keep me" {
		t.Fatalf("failed restore must roll back deletes: %+v", list)
	}
}

func TestProfiles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.CreateProfile(ctx, Profile{
		Email: "ana@example.com", PasswordHash: "x", FullName: "Ana", FamilyCode: "FAM123",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := repo.GetProfileByEmail(ctx, "ana@example.com")
	if err != nil || byEmail.ID != p.ID {
		t.Fatalf("get by email: %+v, %v", byEmail, err)
	}

	byID, err := repo.GetProfileByID(ctx, p.ID)
	if err != nil || byID.FamilyCode != "FAM123" {
		t.Fatalf("get by id: %+v, %v", byID, err)
	}

	if _, err := repo.GetProfileByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
