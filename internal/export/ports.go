// Package export defines the outbound ports for pushing ledger records to
// an external reporting destination.
package export

import (
	"context"

	"planora/internal/core"
)

// Row is one flattened ledger record ready to append to a report.
type Row struct {
	Date     string
	OwnerID  string
	Scope    string
	Kind     string
	Category string
	Note     string
	Amount   float64
}

// FromTransaction flattens a transaction for the report sheet. Amount is in
// currency units since spreadsheets are a display surface.
func FromTransaction(t core.Transaction) Row {
	return Row{
		Date:     t.OccurredAt.Format("2006-01-02"),
		OwnerID:  t.OwnerID,
		Scope:    t.Scope.String(),
		Kind:     t.Kind.String(),
		Category: t.Category,
		Note:     t.Note,
		Amount:   t.Amount.Units(),
	}
}

// RowAppender is the outbound port for the export destination.
type RowAppender interface {
	Append(ctx context.Context, rows []Row) error
}
