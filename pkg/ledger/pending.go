package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/go-pg/pg/v10"
	"github.com/shopspring/decimal"
)

const (
	maxItemLen  = 80
	unnamedItem = "（未命名）"
)

// NormalizeItem trims the free-text item name, caps it at 80 characters and
// fills in blanks.
func NormalizeItem(item string) string {
	item = strings.TrimSpace(item)
	if item == "" {
		return unnamedItem
	}
	if r := []rune(item); len(r) > maxItemLen {
		return string(r[:maxItemLen])
	}
	return item
}

// StagedFields carries the values for a new pending record.
type StagedFields struct {
	Item         string
	Amount       decimal.Decimal
	CurrencyCode string
	FxRate       *decimal.Decimal
	AmountHome   *decimal.Decimal
	SpentDate    *time.Time
	Category     string
	IsIncome     *bool
}

// PendingPatch describes a sparse edit of a pending record. Nil fields are
// left untouched.
type PendingPatch struct {
	Item         *string
	Amount       *decimal.Decimal
	CurrencyCode *string
	FxRate       *decimal.Decimal
	AmountHome   *decimal.Decimal
	SpentDate    *time.Time
	Category     *string
	IsIncome     *bool
}

// StagePending stores a candidate record awaiting user confirmation.
func (m *Manager) StagePending(ctx context.Context, userID, ledgerID int, f StagedFields) (*db.PendingRecord, error) {
	if !f.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	rec := &db.PendingRecord{
		UserID:       userID,
		LedgerID:     ledgerID,
		Item:         NormalizeItem(f.Item),
		Amount:       f.Amount,
		CurrencyCode: f.CurrencyCode,
		FxRate:       f.FxRate,
		AmountHome:   f.AmountHome,
		SpentDate:    f.SpentDate,
		Category:     f.Category,
		IsIncome:     f.IsIncome,
	}

	rec, err := m.cr.AddPendingRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to stage record: %w", err)
	}

	m.log.Print(ctx, "record staged",
		"pending_id", rec.ID,
		"user_id", userID,
		"ledger_id", ledgerID,
		"amount", f.Amount.String(),
		"currency", f.CurrencyCode,
	)

	return rec, nil
}

// LatestPending returns the newest actionable pending record of the user in
// the ledger, or nil when none exists inside the validity window.
func (m *Manager) LatestPending(ctx context.Context, userID, ledgerID int) (*db.PendingRecord, error) {
	cutoff := m.now().Add(-PendingWindow)

	rec, err := m.cr.OnePendingRecord(ctx, &db.PendingRecordSearch{
		UserID:       &userID,
		LedgerID:     &ledgerID,
		CreatedAfter: &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending record: %w", err)
	}

	return rec, nil
}

// UpdatePending applies a sparse patch to a staged record. Returns nil when
// the record no longer exists.
func (m *Manager) UpdatePending(ctx context.Context, id int, patch PendingPatch) (*db.PendingRecord, error) {
	rec, err := m.cr.PendingRecordByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending record: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	cols := make([]string, 0, 8)
	if patch.Item != nil {
		rec.Item, cols = NormalizeItem(*patch.Item), append(cols, db.Columns.PendingRecord.Item)
	}
	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, ErrNonPositiveAmount
		}
		rec.Amount, cols = *patch.Amount, append(cols, db.Columns.PendingRecord.Amount)
	}
	if patch.CurrencyCode != nil {
		rec.CurrencyCode, cols = *patch.CurrencyCode, append(cols, db.Columns.PendingRecord.CurrencyCode)
	}
	if patch.FxRate != nil {
		rec.FxRate, cols = patch.FxRate, append(cols, db.Columns.PendingRecord.FxRate)
	}
	if patch.AmountHome != nil {
		rec.AmountHome, cols = patch.AmountHome, append(cols, db.Columns.PendingRecord.AmountHome)
	}
	if patch.SpentDate != nil {
		rec.SpentDate, cols = patch.SpentDate, append(cols, db.Columns.PendingRecord.SpentDate)
	}
	if patch.Category != nil {
		rec.Category, cols = *patch.Category, append(cols, db.Columns.PendingRecord.Category)
	}
	if patch.IsIncome != nil {
		rec.IsIncome, cols = patch.IsIncome, append(cols, db.Columns.PendingRecord.IsIncome)
	}

	if len(cols) == 0 {
		return rec, nil
	}

	ok, err := m.cr.UpdatePendingRecord(ctx, rec, db.WithColumns(cols...))
	if err != nil {
		return nil, fmt.Errorf("failed to update pending record: %w", err)
	}
	if !ok {
		return nil, nil
	}

	m.log.Print(ctx, "record updated", "pending_id", id, "columns", cols)

	return rec, nil
}

// ConfirmPending promotes a staged record into a confirmed one. The copy and
// the delete run in one transaction, so concurrent confirms of the same
// record produce exactly one confirmed row. Returns nil when the record was
// already confirmed or cancelled.
func (m *Manager) ConfirmPending(ctx context.Context, id int) (*db.ExpenseRecord, error) {
	var confirmed *db.ExpenseRecord

	err := m.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		cr := m.cr.WithTransaction(tx)

		rec, err := cr.PendingRecordByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get pending record: %w", err)
		}
		if rec == nil {
			return nil
		}

		deleted, err := cr.DeletePendingRecord(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete pending record: %w", err)
		}
		if !deleted {
			return nil
		}

		// records staged without a date land on the day of confirmation
		spent := rec.SpentDate
		if spent == nil {
			today := DateOnly(m.now())
			spent = &today
		}

		confirmed, err = cr.AddExpenseRecord(ctx, &db.ExpenseRecord{
			UserID:       rec.UserID,
			LedgerID:     rec.LedgerID,
			Item:         rec.Item,
			Amount:       rec.Amount,
			CurrencyCode: rec.CurrencyCode,
			FxRate:       rec.FxRate,
			AmountHome:   rec.AmountHome,
			SpentDate:    spent,
			Category:     rec.Category,
			IsIncome:     rec.IsIncome,
		})
		if err != nil {
			return fmt.Errorf("failed to add record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if confirmed != nil {
		m.log.Print(ctx, "record confirmed", "record_id", confirmed.ID, "pending_id", id)
	}

	return confirmed, nil
}

// CancelPending discards a staged record. Reports whether a record was
// actually removed.
func (m *Manager) CancelPending(ctx context.Context, id int) (bool, error) {
	deleted, err := m.cr.DeletePendingRecord(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel pending record: %w", err)
	}

	if deleted {
		m.log.Print(ctx, "record cancelled", "pending_id", id)
	}

	return deleted, nil
}
