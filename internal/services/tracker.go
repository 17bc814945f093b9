// Package services orchestrates tracker operations across storage and
// the event broker.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/storage"
)

// EventPublisher pushes ledger events to the broker. *amqp.Client
// satisfies it; tests plug in a recorder.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// Snapshot is the full working set of one household, loaded in one shot
// when a session starts.
type Snapshot struct {
	Expenses          []core.Transaction `json:"expenses"`
	Incomes           []core.Transaction `json:"incomes"`
	ExpenseCategories []core.Category    `json:"expense_categories"`
	IncomeCategories  []core.Category    `json:"income_categories"`
	Budgets           []core.Budget      `json:"budgets"`
}

// TrackerService owns transaction, category and budget operations.
// Writes go to SQLite first; ledger events are published best-effort
// afterwards and never fail the request.
type TrackerService struct {
	storage   *storage.Repository
	publisher EventPublisher
	opTimeout time.Duration
}

func NewTrackerService(storage *storage.Repository, publisher EventPublisher, opTimeout time.Duration) *TrackerService {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &TrackerService{
		storage:   storage,
		publisher: publisher,
		opTimeout: opTimeout,
	}
}

func (s *TrackerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// LoadAll fetches the five collections of a family concurrently.
func (s *TrackerService) LoadAll(ctx context.Context, familyCode string) (Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Expenses, err = s.storage.ListTransactions(ctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		snap.Incomes, err = s.storage.ListTransactions(ctx, core.Income, familyCode)
		return err
	})
	g.Go(func() (err error) {
		snap.ExpenseCategories, err = s.storage.ListCategories(ctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		snap.IncomeCategories, err = s.storage.ListCategories(ctx, core.Income, familyCode)
		return err
	})
	g.Go(func() (err error) {
		snap.Budgets, err = s.storage.ListBudgets(ctx, familyCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load family data: %w", err)
	}
	return snap, nil
}

func (s *TrackerService) ListTransactions(ctx context.Context, kind core.TransactionKind, familyCode string) ([]core.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.ListTransactions(ctx, kind, familyCode)
}

// AddTransaction validates and saves a transaction, then publishes a
// created event.
func (s *TrackerService) AddTransaction(ctx context.Context, kind core.TransactionKind, t core.Transaction) (core.Transaction, error) {
	if err := kind.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	saved, err := s.storage.CreateTransaction(ctx, kind, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", kind, err)
	}

	s.publish(ctx, amqp.NewLedgerEventMessage(amqp.ActionCreated, string(kind), saved.ID, saved.FamilyCode))
	return saved, nil
}

func (s *TrackerService) UpdateTransaction(ctx context.Context, kind core.TransactionKind, t core.Transaction) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.storage.UpdateTransaction(ctx, kind, t); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewLedgerEventMessage(amqp.ActionUpdated, string(kind), t.ID, t.FamilyCode))
	return nil
}

func (s *TrackerService) DeleteTransaction(ctx context.Context, kind core.TransactionKind, id, familyCode string) error {
	if err := kind.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.storage.DeleteTransaction(ctx, kind, id, familyCode); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewLedgerEventMessage(amqp.ActionDeleted, string(kind), id, familyCode))
	return nil
}

func (s *TrackerService) ListCategories(ctx context.Context, kind core.TransactionKind, familyCode string) ([]core.Category, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.ListCategories(ctx, kind, familyCode)
}

func (s *TrackerService) AddCategory(ctx context.Context, kind core.TransactionKind, c core.Category) (core.Category, error) {
	if err := kind.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.CreateCategory(ctx, kind, c)
}

// DeleteCategory removes a category. Transactions keep their category
// text; names are soft references, not foreign keys.
func (s *TrackerService) DeleteCategory(ctx context.Context, kind core.TransactionKind, id, familyCode string) error {
	if err := kind.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.DeleteCategory(ctx, kind, id, familyCode)
}

func (s *TrackerService) ListBudgets(ctx context.Context, familyCode string) ([]core.Budget, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.ListBudgets(ctx, familyCode)
}

// SetBudget creates or updates the single budget of a category.
func (s *TrackerService) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.UpsertBudget(ctx, b)
}

func (s *TrackerService) DeleteBudget(ctx context.Context, id, familyCode string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.storage.DeleteBudget(ctx, id, familyCode)
}

// Summary computes current-month expense and income totals for a family.
func (s *TrackerService) Summary(ctx context.Context, familyCode string, now time.Time) (core.MonthTotals, error) {
	snap, err := s.loadTransactions(ctx, familyCode)
	if err != nil {
		return core.MonthTotals{}, err
	}
	return core.SummarizeMonth(snap.Expenses, snap.Incomes, now), nil
}

// CategoryReport groups one kind's transactions by category inside an
// optional date range.
func (s *TrackerService) CategoryReport(ctx context.Context, kind core.TransactionKind, familyCode string, start, end *core.Date) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	txs, err := s.storage.ListTransactions(ctx, kind, familyCode)
	if err != nil {
		return nil, err
	}
	return core.GroupByCategory(core.FilterByDateRange(txs, start, end)), nil
}

// BudgetReport compares the current month's expense totals against the
// family's budgets.
func (s *TrackerService) BudgetReport(ctx context.Context, familyCode string, now time.Time) ([]core.BudgetComparison, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		expenses []core.Transaction
		budgets  []core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.storage.ListTransactions(gctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		budgets, err = s.storage.ListBudgets(gctx, familyCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load budget report data: %w", err)
	}

	monthStart := core.NewDate(now.Year(), int(now.Month()), 1)
	monthEnd := core.DateOf(monthStart.AddDate(0, 1, -1))
	groups := core.GroupByCategory(core.FilterByDateRange(expenses, &monthStart, &monthEnd))
	return core.CompareBudgets(groups, budgets), nil
}

func (s *TrackerService) loadTransactions(ctx context.Context, familyCode string) (Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Expenses, err = s.storage.ListTransactions(ctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		snap.Incomes, err = s.storage.ListTransactions(ctx, core.Income, familyCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	return snap, nil
}

func (s *TrackerService) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping ledger event")
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"action", msg.Action,
			"transaction_id", msg.TransactionID,
			"error", err)
		// The write already committed; the event is best-effort.
	}
}
