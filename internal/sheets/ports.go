package sheets

import (
	"context"
)

// LedgerRow is one line of the mirrored household ledger.
type LedgerRow struct {
	Date        string
	Kind        string
	Description string
	Category    string
	Amount      string
	Action      string
	FamilyCode  string
}

// Ports for outbound adapters.
type (
	LedgerAppender interface {
		Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}
)
