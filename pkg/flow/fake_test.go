package flow

import (
	"context"
	"sort"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"

	"github.com/shopspring/decimal"
)

// fakeBooks is an in-memory Books implementation with the same visible
// semantics as the database-backed manager: validity windows, confirm-once,
// pop-once states and exact-range budget upserts.
type fakeBooks struct {
	clock *fakeClock
	home  string

	nextID   int
	users    map[string]int
	ledgers  map[string]int
	pendings map[int]*db.PendingRecord
	records  []db.ExpenseRecord
	states   []db.DialogState
	budgets  []db.Budget
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) Today() time.Time        { return ledger.DateOnly(c.now) }
func (c *fakeClock) DaysAgo(n int) time.Time { return c.Today().AddDate(0, 0, -n) }

func newFakeBooks(clock *fakeClock) *fakeBooks {
	return &fakeBooks{
		clock:    clock,
		home:     "TWD",
		users:    make(map[string]int),
		ledgers:  make(map[string]int),
		pendings: make(map[int]*db.PendingRecord),
	}
}

func (f *fakeBooks) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeBooks) HomeCurrency() string { return f.home }

func (f *fakeBooks) Resolve(_ context.Context, contextType, contextID, externalUserID string) (int, int, error) {
	userID, ok := f.users[externalUserID]
	if !ok {
		userID = f.id()
		f.users[externalUserID] = userID
	}

	key := contextType + ":" + contextID
	ledgerID, ok := f.ledgers[key]
	if !ok {
		ledgerID = f.id()
		f.ledgers[key] = ledgerID
	}

	return userID, ledgerID, nil
}

func (f *fakeBooks) StagePending(_ context.Context, userID, ledgerID int, fields ledger.StagedFields) (*db.PendingRecord, error) {
	if !fields.Amount.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}

	rec := &db.PendingRecord{
		ID:           f.id(),
		UserID:       userID,
		LedgerID:     ledgerID,
		Item:         ledger.NormalizeItem(fields.Item),
		Amount:       fields.Amount,
		CurrencyCode: fields.CurrencyCode,
		FxRate:       fields.FxRate,
		AmountHome:   fields.AmountHome,
		SpentDate:    fields.SpentDate,
		Category:     fields.Category,
		IsIncome:     fields.IsIncome,
		CreatedAt:    f.clock.Now(),
	}
	f.pendings[rec.ID] = rec

	return rec, nil
}

func (f *fakeBooks) LatestPending(_ context.Context, userID, ledgerID int) (*db.PendingRecord, error) {
	cutoff := f.clock.Now().Add(-ledger.PendingWindow)

	var latest *db.PendingRecord
	for _, rec := range f.pendings {
		if rec.UserID != userID || rec.LedgerID != ledgerID || !rec.CreatedAt.After(cutoff) {
			continue
		}
		if latest == nil || rec.ID > latest.ID {
			latest = rec
		}
	}

	return latest, nil
}

func (f *fakeBooks) UpdatePending(_ context.Context, id int, patch ledger.PendingPatch) (*db.PendingRecord, error) {
	rec, ok := f.pendings[id]
	if !ok {
		return nil, nil
	}

	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, ledger.ErrNonPositiveAmount
		}
		rec.Amount = *patch.Amount
	}
	if patch.Item != nil {
		rec.Item = ledger.NormalizeItem(*patch.Item)
	}
	if patch.CurrencyCode != nil {
		rec.CurrencyCode = *patch.CurrencyCode
	}
	if patch.FxRate != nil {
		rec.FxRate = patch.FxRate
	}
	if patch.AmountHome != nil {
		rec.AmountHome = patch.AmountHome
	}
	if patch.SpentDate != nil {
		rec.SpentDate = patch.SpentDate
	}
	if patch.Category != nil {
		rec.Category = *patch.Category
	}
	if patch.IsIncome != nil {
		rec.IsIncome = patch.IsIncome
	}

	return rec, nil
}

func (f *fakeBooks) ConfirmPending(_ context.Context, id int) (*db.ExpenseRecord, error) {
	rec, ok := f.pendings[id]
	if !ok {
		return nil, nil
	}
	delete(f.pendings, id)

	spent := rec.SpentDate
	if spent == nil {
		today := f.clock.Today()
		spent = &today
	}

	confirmed := db.ExpenseRecord{
		ID:           f.id(),
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
		CreatedAt:    f.clock.Now(),
	}
	f.records = append(f.records, confirmed)

	return &confirmed, nil
}

func (f *fakeBooks) CancelPending(_ context.Context, id int) (bool, error) {
	if _, ok := f.pendings[id]; !ok {
		return false, nil
	}
	delete(f.pendings, id)
	return true, nil
}

func (f *fakeBooks) PushState(_ context.Context, contextType, contextID, externalUserID, kind, step, payload string) error {
	f.states = append(f.states, db.DialogState{
		ID:             f.id(),
		ContextType:    contextType,
		ContextID:      contextID,
		ExternalUserID: externalUserID,
		Kind:           kind,
		Step:           step,
		Payload:        payload,
		CreatedAt:      f.clock.Now(),
	})
	return nil
}

func (f *fakeBooks) PopLatestState(_ context.Context, contextType, contextID, externalUserID string) (*db.DialogState, error) {
	var latest *db.DialogState
	kept := f.states[:0]
	for i := range f.states {
		st := f.states[i]
		if st.ContextType == contextType && st.ContextID == contextID && st.ExternalUserID == externalUserID {
			if latest == nil || st.ID > latest.ID {
				stCopy := st
				latest = &stCopy
			}
			continue
		}
		kept = append(kept, st)
	}
	f.states = kept

	if latest == nil || !latest.CreatedAt.After(f.clock.Now().Add(-ledger.StateWindow)) {
		return nil, nil
	}

	return latest, nil
}

func (f *fakeBooks) SetBudgetTotal(_ context.Context, ledgerID int, start, end time.Time, amount decimal.Decimal, currencyCode string, createdBy *int) (*db.Budget, error) {
	if end.Before(start) {
		return nil, ledger.ErrInvalidRange
	}
	if !amount.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}

	start, end = ledger.DateOnly(start), ledger.DateOnly(end)

	for i := range f.budgets {
		b := &f.budgets[i]
		if b.LedgerID == ledgerID && b.StartDate.Equal(start) && b.EndDate.Equal(end) {
			b.TotalAmount = amount
			b.CurrencyCode = currencyCode
			return b, nil
		}
	}

	f.budgets = append(f.budgets, db.Budget{
		ID:           f.id(),
		LedgerID:     ledgerID,
		StartDate:    start,
		EndDate:      end,
		TotalAmount:  amount,
		CurrencyCode: currencyCode,
		CreatedBy:    createdBy,
		CreatedAt:    f.clock.Now(),
	})

	return &f.budgets[len(f.budgets)-1], nil
}

func (f *fakeBooks) activeBudget(ledgerID int, on time.Time) *db.Budget {
	on = ledger.DateOnly(on)

	var active *db.Budget
	for i := range f.budgets {
		b := &f.budgets[i]
		if b.LedgerID != ledgerID || on.Before(b.StartDate) || on.After(b.EndDate) {
			continue
		}
		if active == nil || b.ID > active.ID {
			active = b
		}
	}

	return active
}

func (f *fakeBooks) spentInRange(ledgerID int, start, end time.Time) decimal.Decimal {
	records, _ := f.RecordsInRange(context.Background(), ledgerID, start, end)
	return ledger.SumSpent(records)
}

func (f *fakeBooks) BudgetStatus(_ context.Context, ledgerID int, today time.Time) (string, error) {
	budget := f.activeBudget(ledgerID, today)

	if budget == nil {
		for i := range f.budgets {
			b := &f.budgets[i]
			if b.LedgerID != ledgerID {
				continue
			}
			if budget == nil || b.ID > budget.ID {
				budget = b
			}
		}
	}
	if budget == nil {
		return ledger.NoBudgetMessage, nil
	}

	spent := f.spentInRange(ledgerID, budget.StartDate, budget.EndDate)

	return ledger.RenderBudgetStatus(budget, spent, f.home), nil
}

func (f *fakeBooks) BudgetAlertForRecord(_ context.Context, rec *db.ExpenseRecord) (string, error) {
	if ledger.IsIncomeRecord(rec.IsIncome, rec.Category) {
		return "", nil
	}

	on := f.clock.Now()
	if rec.SpentDate != nil {
		on = *rec.SpentDate
	}

	budget := f.activeBudget(rec.LedgerID, on)
	if budget == nil {
		return "", nil
	}

	spent := f.spentInRange(rec.LedgerID, budget.StartDate, budget.EndDate)

	return ledger.RenderBudgetAlert(budget, spent), nil
}

func (f *fakeBooks) RecordsInRange(_ context.Context, ledgerID int, start, end time.Time) ([]db.ExpenseRecord, error) {
	start, end = ledger.DateOnly(start), ledger.DateOnly(end)

	var out []db.ExpenseRecord
	for _, rec := range f.records {
		if rec.LedgerID != ledgerID || rec.SpentDate == nil {
			continue
		}
		d := ledger.DateOnly(*rec.SpentDate)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpentDate.Equal(*out[j].SpentDate) {
			return out[i].SpentDate.Before(*out[j].SpentDate)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (f *fakeBooks) DeleteUserRecords(_ context.Context, userID int) (int, error) {
	kept := f.records[:0]
	deleted := 0
	for _, rec := range f.records {
		if rec.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept

	for id, rec := range f.pendings {
		if rec.UserID == userID {
			delete(f.pendings, id)
		}
	}

	return deleted, nil
}

func (f *fakeBooks) DeleteLedgerRecords(_ context.Context, ledgerID int) (int, error) {
	kept := f.records[:0]
	deleted := 0
	for _, rec := range f.records {
		if rec.LedgerID == ledgerID {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept

	for id, rec := range f.pendings {
		if rec.LedgerID == ledgerID {
			delete(f.pendings, id)
		}
	}

	return deleted, nil
}
