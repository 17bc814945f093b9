// Package worker mirrors ledger changes into an external spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/sheets"
	"gastos/internal/storage"
)

// LedgerWorker consumes ledger events and appends one row per change to
// the configured appender. Deleted and restored events produce marker
// rows since the underlying record is gone by the time we see them.
type LedgerWorker struct {
	storage  *storage.Repository
	appender sheets.LedgerAppender
	logger   *log.Logger
}

func NewLedgerWorker(storage *storage.Repository, appender sheets.LedgerAppender) *LedgerWorker {
	return &LedgerWorker{
		storage:  storage,
		appender: appender,
		logger:   log.New(log.Config{Component: log.ComponentLedger}),
	}
}

// HandleLedgerEvent processes a single ledger event message from AMQP.
func (w *LedgerWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"action", msg.Action,
		log.FieldKind, msg.Kind,
		log.FieldRecordID, msg.TransactionID)

	switch msg.Action {
	case amqp.ActionCreated, amqp.ActionUpdated:
		return w.mirrorTransaction(ctx, msg)
	case amqp.ActionDeleted:
		return w.appendMarker(ctx, msg, "")
	case amqp.ActionRestored:
		return w.appendMarker(ctx, msg, "backup restored")
	default:
		// Unknown actions are dropped so they don't requeue forever.
		w.logger.WarnContext(ctx, "Dropping unknown ledger event action", "action", msg.Action)
		return nil
	}
}

func (w *LedgerWorker) mirrorTransaction(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	kind := core.TransactionKind(msg.Kind)
	tx, err := w.storage.GetTransaction(ctx, kind, msg.TransactionID, msg.FamilyCode)
	if errors.Is(err, storage.ErrNotFound) {
		// The record was deleted between publish and consume. A delete
		// event will follow, nothing to mirror here.
		w.logger.WarnContext(ctx, "Transaction gone before mirror, skipping",
			log.FieldRecordID, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	row := sheets.LedgerRow{
		Date:        tx.Date.String(),
		Kind:        msg.Kind,
		Description: tx.Description,
		Category:    tx.Category,
		Amount:      tx.Amount.String(),
		Action:      msg.Action,
		FamilyCode:  msg.FamilyCode,
	}

	ref, err := w.appender.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored transaction to ledger",
		log.FieldRecordID, msg.TransactionID,
		"sheets_ref", ref,
		log.FieldAmount, tx.Amount.String())
	return nil
}

func (w *LedgerWorker) appendMarker(ctx context.Context, msg *amqp.LedgerEventMessage, note string) error {
	if note == "" {
		note = fmt.Sprintf("deleted %s", msg.TransactionID)
	}
	row := sheets.LedgerRow{
		Date:        msg.Timestamp.Format("2006-01-02"),
		Kind:        msg.Kind,
		Description: note,
		Action:      msg.Action,
		FamilyCode:  msg.FamilyCode,
	}

	ref, err := w.appender.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append marker to ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Appended ledger marker",
		"action", msg.Action,
		"sheets_ref", ref)
	return nil
}

// Run consumes ledger events until the context is cancelled.
func (w *LedgerWorker) Run(ctx context.Context, client *amqp.Client, prefetch int) error {
	return client.ConsumeLedgerEvents(ctx, prefetch, func(msg *amqp.LedgerEventMessage) error {
		handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return w.HandleLedgerEvent(handleCtx, msg)
	})
}
