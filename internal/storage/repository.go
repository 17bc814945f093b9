// Package storage is the data gateway of the tracker: a SQLite-backed
// repository holding every row set, scoped by family code.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"gastos/internal/core"
)

// ErrNotFound marks an update or delete whose target row no longer
// exists, typically because another family member removed it since load.
var ErrNotFound = errors.New("record not found")

const timeLayout = time.RFC3339Nano

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func transactionTable(kind core.TransactionKind) (string, error) {
	switch kind {
	case core.Expense:
		return "expenses", nil
	case core.Income:
		return "incomes", nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrInvalidKind, kind)
	}
}

func categoryTable(kind core.TransactionKind) (string, error) {
	switch kind {
	case core.Expense:
		return "expense_categories", nil
	case core.Income:
		return "income_categories", nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrInvalidKind, kind)
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanTransaction(rows interface {
	Scan(dest ...any) error
}) (core.Transaction, error) {
	var (
		t                    core.Transaction
		amount, date         string
		createdAt, updatedAt string
	)
	err := rows.Scan(&t.ID, &amount, &t.Description, &t.Category, &date,
		&t.FamilyCode, &t.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// ListTransactions returns all rows of one kind for a family, newest
// date first, matching the order the dashboard displays.
func (r *Repository) ListTransactions(ctx context.Context, kind core.TransactionKind, familyCode string) ([]core.Transaction, error) {
	table, err := transactionTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, amount, description, category, date, family_code, created_by, created_at, updated_at
		FROM %s WHERE family_code = ? ORDER BY date DESC, created_at DESC`, table)
	rows, err := r.db.QueryContext(ctx, query, familyCode)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// GetTransaction loads one row by id scoped to a family.
func (r *Repository) GetTransaction(ctx context.Context, kind core.TransactionKind, id, familyCode string) (core.Transaction, error) {
	table, err := transactionTable(kind)
	if err != nil {
		return core.Transaction{}, err
	}

	query := fmt.Sprintf(`SELECT id, amount, description, category, date, family_code, created_by, created_at, updated_at
		FROM %s WHERE id = ? AND family_code = ?`, table)
	row := r.db.QueryRowContext(ctx, query, id, familyCode)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return t, nil
}

// CreateTransaction inserts a new row and returns it with generated id
// and timestamps.
func (r *Repository) CreateTransaction(ctx context.Context, kind core.TransactionKind, t core.Transaction) (core.Transaction, error) {
	table, err := transactionTable(kind)
	if err != nil {
		return core.Transaction{}, err
	}

	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO %s (id, amount, description, category, date, family_code, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)
	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.Amount.String(), t.Description, t.Category, t.Date.String(),
		t.FamilyCode, t.CreatedBy, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create %s: %w", kind, err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"kind", string(kind),
		"id", t.ID,
		"category", t.Category,
		"amount", t.Amount.String())

	return t, nil
}

// UpdateTransaction rewrites amount, description, category and date of an
// existing row. Returns ErrNotFound when the target vanished since load.
func (r *Repository) UpdateTransaction(ctx context.Context, kind core.TransactionKind, t core.Transaction) error {
	table, err := transactionTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET amount = ?, description = ?, category = ?, date = ?, updated_at = ?
		WHERE id = ? AND family_code = ?`, table)
	res, err := r.db.ExecContext(ctx, query,
		t.Amount.String(), t.Description, t.Category, t.Date.String(),
		time.Now().UTC().Format(timeLayout), t.ID, t.FamilyCode)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s rows affected: %w", kind, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, kind core.TransactionKind, id, familyCode string) error {
	table, err := transactionTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND family_code = ?`, table)
	res, err := r.db.ExecContext(ctx, query, id, familyCode)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s rows affected: %w", kind, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, kind core.TransactionKind, familyCode string) ([]core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, name, family_code FROM %s WHERE family_code = ? ORDER BY name`, table)
	rows, err := r.db.QueryContext(ctx, query, familyCode)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.FamilyCode); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func (r *Repository) CreateCategory(ctx context.Context, kind core.TransactionKind, c core.Category) (core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return core.Category{}, err
	}

	c.ID = uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (id, name, family_code) VALUES (?, ?, ?)`, table)
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.FamilyCode); err != nil {
		return core.Category{}, fmt.Errorf("create %s category: %w", kind, err)
	}
	return c, nil
}

// DeleteCategory removes only the taxonomy entry. Transactions keep their
// category string; orphaned references are tolerated and rendered as-is.
func (r *Repository) DeleteCategory(ctx context.Context, kind core.TransactionKind, id, familyCode string) error {
	table, err := categoryTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND family_code = ?`, table)
	res, err := r.db.ExecContext(ctx, query, id, familyCode)
	if err != nil {
		return fmt.Errorf("delete %s category: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s category rows affected: %w", kind, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListBudgets(ctx context.Context, familyCode string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount, family_code, created_by, updated_at
		 FROM budgets WHERE family_code = ? ORDER BY category`, familyCode)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func scanBudget(rows interface {
	Scan(dest ...any) error
}) (core.Budget, error) {
	var (
		b                 core.Budget
		amount, updatedAt string
	)
	err := rows.Scan(&b.ID, &b.Category, &amount, &b.FamilyCode, &b.CreatedBy, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// UpsertBudget inserts a budget or, when one exists for the same
// (family, category) pair, updates its amount in a single conditional
// statement. The unique constraint makes concurrent submissions for the
// same category converge on one row instead of racing to duplicates.
func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, category, amount, family_code, created_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (family_code, category)
		 DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		uuid.NewString(), b.Category, b.Amount.String(), b.FamilyCode, b.CreatedBy,
		now.Format(timeLayout))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, category, amount, family_code, created_by, updated_at
		 FROM budgets WHERE family_code = ? AND category = ?`, b.FamilyCode, b.Category)
	stored, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("read back budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget upserted",
		"id", stored.ID,
		"category", stored.Category,
		"amount", stored.Amount.String())

	return stored, nil
}

func (r *Repository) DeleteBudget(ctx context.Context, id, familyCode string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND family_code = ?`, id, familyCode)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreSet is the full record set applied by a backup restore.
type RestoreSet struct {
	Expenses          []core.Transaction
	Incomes           []core.Transaction
	ExpenseCategories []core.Category
	IncomeCategories  []core.Category
	Budgets           []core.Budget
}

// ReplaceAll swaps a family's entire data set inside one transaction:
// all five collections are deleted and re-inserted, committing together
// or rolling back together. Incoming transactions and budgets are
// re-stamped with the acting user's family code and identity; categories
// carry no ownership fields and are inserted as-is apart from the family
// code and a fresh id.
func (r *Repository) ReplaceAll(ctx context.Context, familyCode, userID string, set RestoreSet) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"expenses", "incomes", "expense_categories", "income_categories", "budgets"} {
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE family_code = ?`, table), familyCode); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	now := time.Now().UTC().Format(timeLayout)

	insertTx := func(table string, txs []core.Transaction) error {
		for _, t := range txs {
			id := t.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, amount, description, category, date, family_code, created_by, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
				id, t.Amount.String(), t.Description, t.Category, t.Date.String(),
				familyCode, userID, now, now); err != nil {
				return fmt.Errorf("restore %s: %w", table, err)
			}
		}
		return nil
	}
	if err = insertTx("expenses", set.Expenses); err != nil {
		return err
	}
	if err = insertTx("incomes", set.Incomes); err != nil {
		return err
	}

	insertCats := func(table string, cats []core.Category) error {
		for _, c := range cats {
			id := c.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, name, family_code) VALUES (?, ?, ?)`, table),
				id, c.Name, familyCode); err != nil {
				return fmt.Errorf("restore %s: %w", table, err)
			}
		}
		return nil
	}
	if err = insertCats("expense_categories", set.ExpenseCategories); err != nil {
		return err
	}
	if err = insertCats("income_categories", set.IncomeCategories); err != nil {
		return err
	}

	for _, b := range set.Budgets {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO budgets (id, category, amount, family_code, created_by, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, b.Category, b.Amount.String(), familyCode, userID, now); err != nil {
			return fmt.Errorf("restore budgets: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	slog.InfoContext(ctx, "Family data set replaced",
		"family_code", familyCode,
		"expenses", len(set.Expenses),
		"incomes", len(set.Incomes),
		"budgets", len(set.Budgets))

	return nil
}
