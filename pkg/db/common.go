package db

import (
	"context"
	"errors"
	"io"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
)

type CommonRepo struct {
	db   orm.DB
	sort map[string][]SortField
	join map[string][]string
}

// NewCommonRepo returns new repository
func NewCommonRepo(db orm.DB) CommonRepo {
	return CommonRepo{
		db: db,
		sort: map[string][]SortField{
			Tables.User.Name:          {{Column: Columns.User.CreatedAt, Direction: SortDesc}},
			Tables.Ledger.Name:        {{Column: Columns.Ledger.CreatedAt, Direction: SortDesc}},
			Tables.PendingRecord.Name: {{Column: Columns.PendingRecord.ID, Direction: SortDesc}},
			Tables.ExpenseRecord.Name: {{Column: Columns.ExpenseRecord.SpentDate, Direction: SortAsc}, {Column: Columns.ExpenseRecord.ID, Direction: SortAsc}},
			Tables.Budget.Name:        {{Column: Columns.Budget.ID, Direction: SortDesc}},
			Tables.DialogState.Name:   {{Column: Columns.DialogState.ID, Direction: SortDesc}},
		},
		join: map[string][]string{
			Tables.PendingRecord.Name: {"User", "Ledger"},
			Tables.ExpenseRecord.Name: {"User", "Ledger"},
		},
	}
}

// WithTransaction is a function that wraps CommonRepo with pg.Tx transaction.
func (cr CommonRepo) WithTransaction(tx *pg.Tx) CommonRepo {
	cr.db = tx
	return cr
}

/*** User ***/

// OneUser is a function that returns one User by filters or nil.
func (cr CommonRepo) OneUser(ctx context.Context, search *UserSearch, ops ...OpFunc) (*User, error) {
	obj := &User{}
	err := buildQuery(ctx, cr.db, obj, search, PagerOne, ops...).Select()
	if errors.Is(err, pg.ErrNoRows) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return obj, err
}

// AddUser adds User to DB.
func (cr CommonRepo) AddUser(ctx context.Context, user *User, ops ...OpFunc) (*User, error) {
	q := cr.db.ModelContext(ctx, user)
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.User.CreatedAt)
	}
	applyOps(q, ops...)
	_, err := q.Returning("*").Insert()

	return user, err
}

/*** Ledger ***/

// OneLedger is a function that returns one Ledger by filters or nil.
func (cr CommonRepo) OneLedger(ctx context.Context, search *LedgerSearch, ops ...OpFunc) (*Ledger, error) {
	obj := &Ledger{}
	err := buildQuery(ctx, cr.db, obj, search, PagerOne, ops...).Select()
	if errors.Is(err, pg.ErrNoRows) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return obj, err
}

// AddLedger adds Ledger to DB.
func (cr CommonRepo) AddLedger(ctx context.Context, ledger *Ledger, ops ...OpFunc) (*Ledger, error) {
	q := cr.db.ModelContext(ctx, ledger)
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.Ledger.CreatedAt)
	}
	applyOps(q, ops...)
	_, err := q.Returning("*").Insert()

	return ledger, err
}

/*** PendingRecord ***/

// FullPendingRecord returns full joins with all columns.
func (cr CommonRepo) FullPendingRecord() OpFunc {
	return WithRelations(cr.join[Tables.PendingRecord.Name]...)
}

// PendingRecordByID is a function that returns PendingRecord by ID or nil.
func (cr CommonRepo) PendingRecordByID(ctx context.Context, id int, ops ...OpFunc) (*PendingRecord, error) {
	return cr.OnePendingRecord(ctx, &PendingRecordSearch{ID: &id}, ops...)
}

// OnePendingRecord is a function that returns one PendingRecord by filters or
// nil. Rows are ordered newest first, so with a (user, ledger) filter this is
// the latest staged record.
func (cr CommonRepo) OnePendingRecord(ctx context.Context, search *PendingRecordSearch, ops ...OpFunc) (*PendingRecord, error) {
	obj := &PendingRecord{}
	if len(ops) == 0 {
		ops = []OpFunc{WithSort(cr.sort[Tables.PendingRecord.Name]...)}
	}
	err := buildQuery(ctx, cr.db, obj, search, PagerOne, ops...).Select()
	if errors.Is(err, pg.ErrNoRows) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return obj, err
}

// AddPendingRecord adds PendingRecord to DB.
func (cr CommonRepo) AddPendingRecord(ctx context.Context, rec *PendingRecord, ops ...OpFunc) (*PendingRecord, error) {
	q := cr.db.ModelContext(ctx, rec)
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.PendingRecord.CreatedAt)
	}
	applyOps(q, ops...)
	_, err := q.Returning("*").Insert()

	return rec, err
}

// UpdatePendingRecord updates PendingRecord in DB. Callers pass WithColumns to
// restrict the update to the touched fields.
func (cr CommonRepo) UpdatePendingRecord(ctx context.Context, rec *PendingRecord, ops ...OpFunc) (bool, error) {
	q := cr.db.ModelContext(ctx, rec).WherePK()
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.PendingRecord.ID, Columns.PendingRecord.CreatedAt)
	}
	applyOps(q, ops...)
	res, err := q.Update()
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, err
}

// DeletePendingRecord removes the row and reports whether one was removed.
func (cr CommonRepo) DeletePendingRecord(ctx context.Context, id int) (bool, error) {
	res, err := cr.db.ModelContext(ctx, (*PendingRecord)(nil)).
		Where("id = ?", id).
		Delete()
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// DeletePendingRecords removes all matching rows and returns the count.
func (cr CommonRepo) DeletePendingRecords(ctx context.Context, search *PendingRecordSearch) (int, error) {
	q := cr.db.ModelContext(ctx, (*PendingRecord)(nil))
	q = search.Apply(q)
	res, err := q.Delete()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

/*** ExpenseRecord ***/

// FullExpenseRecord returns full joins with all columns.
func (cr CommonRepo) FullExpenseRecord() OpFunc {
	return WithRelations(cr.join[Tables.ExpenseRecord.Name]...)
}

// DefaultExpenseRecordSort returns default sort.
func (cr CommonRepo) DefaultExpenseRecordSort() OpFunc {
	return WithSort(cr.sort[Tables.ExpenseRecord.Name]...)
}

// ExpenseRecordsByFilters returns ExpenseRecord list.
func (cr CommonRepo) ExpenseRecordsByFilters(ctx context.Context, search *ExpenseRecordSearch, pager Pager, ops ...OpFunc) (records []ExpenseRecord, err error) {
	if len(ops) == 0 {
		ops = []OpFunc{cr.DefaultExpenseRecordSort()}
	}
	err = buildQuery(ctx, cr.db, &records, search, pager, ops...).Select()
	return
}

// CountExpenseRecords returns count.
func (cr CommonRepo) CountExpenseRecords(ctx context.Context, search *ExpenseRecordSearch) (int, error) {
	return buildQuery(ctx, cr.db, (*ExpenseRecord)(nil), search, PagerNoLimit).Count()
}

// AddExpenseRecord adds ExpenseRecord to DB.
func (cr CommonRepo) AddExpenseRecord(ctx context.Context, rec *ExpenseRecord, ops ...OpFunc) (*ExpenseRecord, error) {
	q := cr.db.ModelContext(ctx, rec)
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.ExpenseRecord.CreatedAt)
	}
	applyOps(q, ops...)
	_, err := q.Returning("*").Insert()

	return rec, err
}

// DeleteExpenseRecords removes all matching rows and returns the count.
func (cr CommonRepo) DeleteExpenseRecords(ctx context.Context, search *ExpenseRecordSearch) (int, error) {
	q := cr.db.ModelContext(ctx, (*ExpenseRecord)(nil))
	q = search.Apply(q)
	res, err := q.Delete()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

/*** Budget ***/

// OneBudget is a function that returns one Budget by filters or nil. Rows are
// ordered newest first, so a CoversDate filter yields the most-recently-created
// covering budget.
func (cr CommonRepo) OneBudget(ctx context.Context, search *BudgetSearch, ops ...OpFunc) (*Budget, error) {
	obj := &Budget{}
	if len(ops) == 0 {
		ops = []OpFunc{WithSort(cr.sort[Tables.Budget.Name]...)}
	}
	err := buildQuery(ctx, cr.db, obj, search, PagerOne, ops...).Select()
	if errors.Is(err, pg.ErrNoRows) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return obj, err
}

// UpsertBudget inserts a Budget or overwrites the amount/currency of the row
// with the same (ledger_id, start_date, end_date).
func (cr CommonRepo) UpsertBudget(ctx context.Context, budget *Budget) (*Budget, error) {
	_, err := cr.db.ModelContext(ctx, budget).
		ExcludeColumn(Columns.Budget.CreatedAt).
		OnConflict("(ledger_id, start_date, end_date) DO UPDATE").
		Set("total_amount = EXCLUDED.total_amount, currency_code = EXCLUDED.currency_code").
		Returning("*").
		Insert()

	return budget, err
}

/*** DialogState ***/

// OneDialogState is a function that returns the most recent DialogState by
// filters or nil.
func (cr CommonRepo) OneDialogState(ctx context.Context, search *DialogStateSearch, ops ...OpFunc) (*DialogState, error) {
	obj := &DialogState{}
	if len(ops) == 0 {
		ops = []OpFunc{WithSort(cr.sort[Tables.DialogState.Name]...)}
	}
	err := buildQuery(ctx, cr.db, obj, search, PagerOne, ops...).Select()
	if errors.Is(err, pg.ErrNoRows) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return obj, err
}

// AddDialogState adds DialogState to DB.
func (cr CommonRepo) AddDialogState(ctx context.Context, state *DialogState, ops ...OpFunc) (*DialogState, error) {
	q := cr.db.ModelContext(ctx, state)
	if len(ops) == 0 {
		q = q.ExcludeColumn(Columns.DialogState.CreatedAt)
	}
	applyOps(q, ops...)
	_, err := q.Returning("*").Insert()

	return state, err
}

// DeleteDialogStates removes all matching rows and returns the count. Pop uses
// this to discard the consumed row together with older stale rows for the key.
func (cr CommonRepo) DeleteDialogStates(ctx context.Context, search *DialogStateSearch) (int, error) {
	q := cr.db.ModelContext(ctx, (*DialogState)(nil))
	q = search.Apply(q)
	res, err := q.Delete()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
