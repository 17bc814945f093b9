package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/backup"
	"gastos/internal/core"
	"gastos/internal/storage"
)

// ErrConfirmationRequired marks a restore attempted without the
// explicit confirmation flag. Restore wipes the family's current data,
// so the caller must opt in.
var ErrConfirmationRequired = errors.New("restore requires explicit confirmation")

// BackupService exports a family's data as a portable document and
// restores from one.
type BackupService struct {
	storage   *storage.Repository
	publisher EventPublisher
	opTimeout time.Duration
}

func NewBackupService(storage *storage.Repository, publisher EventPublisher, opTimeout time.Duration) *BackupService {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &BackupService{
		storage:   storage,
		publisher: publisher,
		opTimeout: opTimeout,
	}
}

// Export gathers the five collections concurrently and wraps them into
// a stamped document.
func (s *BackupService) Export(ctx context.Context, familyCode string) (backup.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var data backup.Collections
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Expenses, err = s.storage.ListTransactions(ctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		data.Incomes, err = s.storage.ListTransactions(ctx, core.Income, familyCode)
		return err
	})
	g.Go(func() (err error) {
		data.ExpenseCategories, err = s.storage.ListCategories(ctx, core.Expense, familyCode)
		return err
	})
	g.Go(func() (err error) {
		data.IncomeCategories, err = s.storage.ListCategories(ctx, core.Income, familyCode)
		return err
	})
	g.Go(func() (err error) {
		data.Budgets, err = s.storage.ListBudgets(ctx, familyCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return backup.Document{}, fmt.Errorf("export family data: %w", err)
	}

	doc := backup.NewDocument(familyCode, data, time.Now())
	slog.InfoContext(ctx, "Backup exported",
		"family_code", familyCode,
		"expenses", len(data.Expenses),
		"incomes", len(data.Incomes),
		"budgets", len(data.Budgets))
	return doc, nil
}

// Restore replaces the family's entire data set with the document's
// contents. The document must belong to the same family, and the caller
// must pass confirmed=true. The swap is one storage transaction: either
// every collection is replaced or nothing changes.
func (s *BackupService) Restore(ctx context.Context, familyCode, userID string, raw []byte, confirmed bool) error {
	doc, err := backup.Decode(raw)
	if err != nil {
		return err
	}
	if err := doc.ValidateOwnership(familyCode); err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	set := storage.RestoreSet{
		Expenses:          doc.Data.Expenses,
		Incomes:           doc.Data.Incomes,
		ExpenseCategories: doc.Data.ExpenseCategories,
		IncomeCategories:  doc.Data.IncomeCategories,
		Budgets:           doc.Data.Budgets,
	}
	if err := s.storage.ReplaceAll(ctx, familyCode, userID, set); err != nil {
		return fmt.Errorf("apply restore: %w", err)
	}

	if s.publisher != nil {
		msg := amqp.NewLedgerEventMessage(amqp.ActionRestored, "", "", familyCode)
		if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish restore event",
				"family_code", familyCode, "error", err)
		}
	}

	slog.InfoContext(ctx, "Backup restored",
		"family_code", familyCode,
		"expenses", len(set.Expenses),
		"incomes", len(set.Incomes),
		"budgets", len(set.Budgets))
	return nil
}
