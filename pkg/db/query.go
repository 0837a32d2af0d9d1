package db

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10/orm"
)

// OpFunc customizes a query before execution.
type OpFunc func(query *orm.Query)

func applyOps(q *orm.Query, ops ...OpFunc) {
	for _, op := range ops {
		op(q)
	}
}

// WithColumns restricts a select/update to the given columns.
func WithColumns(columns ...string) OpFunc {
	return func(q *orm.Query) {
		q.Column(columns...)
	}
}

// WithRelations adds model relations to a select.
func WithRelations(names ...string) OpFunc {
	return func(q *orm.Query) {
		for _, name := range names {
			q.Relation(name)
		}
	}
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortField is a typed ORDER BY entry.
type SortField struct {
	Column    string
	Direction SortDirection
}

// WithSort adds ORDER BY clauses.
func WithSort(fields ...SortField) OpFunc {
	return func(q *orm.Query) {
		for _, f := range fields {
			q.OrderExpr("?TableAlias." + f.Column + " " + string(f.Direction))
		}
	}
}

// Pager limits result sets.
type Pager struct {
	Page     int
	PageSize int
}

var (
	PagerDefault = Pager{PageSize: 1000}
	PagerOne     = Pager{PageSize: 1}
	PagerTwo     = Pager{PageSize: 2}
	PagerNoLimit = Pager{}
)

func (p Pager) apply(q *orm.Query) *orm.Query {
	if p.PageSize <= 0 {
		return q
	}
	q = q.Limit(p.PageSize)
	if p.Page > 1 {
		q = q.Offset((p.Page - 1) * p.PageSize)
	}
	return q
}

type searcher interface {
	Apply(query *orm.Query) *orm.Query
}

func buildQuery(ctx context.Context, db orm.DB, model interface{}, search searcher, pager Pager, ops ...OpFunc) *orm.Query {
	q := db.ModelContext(ctx, model)
	if search != nil {
		q = search.Apply(q)
	}
	q = pager.apply(q)
	applyOps(q, ops...)
	return q
}

/*** Search filters ***/

type UserSearch struct {
	ID         *int
	ExternalID *string
}

func (s *UserSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ID != nil {
		q = q.Where("?TableAlias.id = ?", *s.ID)
	}
	if s.ExternalID != nil {
		q = q.Where("?TableAlias.external_id = ?", *s.ExternalID)
	}
	return q
}

type LedgerSearch struct {
	ID          *int
	ContextType *string
	ContextID   *string
}

func (s *LedgerSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ID != nil {
		q = q.Where("?TableAlias.id = ?", *s.ID)
	}
	if s.ContextType != nil {
		q = q.Where("?TableAlias.context_type = ?", *s.ContextType)
	}
	if s.ContextID != nil {
		q = q.Where("?TableAlias.context_id = ?", *s.ContextID)
	}
	return q
}

type PendingRecordSearch struct {
	ID           *int
	UserID       *int
	LedgerID     *int
	CreatedAfter *time.Time
}

func (s *PendingRecordSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ID != nil {
		q = q.Where("?TableAlias.id = ?", *s.ID)
	}
	if s.UserID != nil {
		q = q.Where("?TableAlias.user_id = ?", *s.UserID)
	}
	if s.LedgerID != nil {
		q = q.Where("?TableAlias.ledger_id = ?", *s.LedgerID)
	}
	if s.CreatedAfter != nil {
		q = q.Where("?TableAlias.created_at >= ?", *s.CreatedAfter)
	}
	return q
}

type ExpenseRecordSearch struct {
	ID        *int
	UserID    *int
	LedgerID  *int
	SpentFrom *time.Time
	SpentTo   *time.Time
}

func (s *ExpenseRecordSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ID != nil {
		q = q.Where("?TableAlias.id = ?", *s.ID)
	}
	if s.UserID != nil {
		q = q.Where("?TableAlias.user_id = ?", *s.UserID)
	}
	if s.LedgerID != nil {
		q = q.Where("?TableAlias.ledger_id = ?", *s.LedgerID)
	}
	if s.SpentFrom != nil {
		q = q.Where("?TableAlias.spent_date >= ?", *s.SpentFrom)
	}
	if s.SpentTo != nil {
		q = q.Where("?TableAlias.spent_date <= ?", *s.SpentTo)
	}
	return q
}

type BudgetSearch struct {
	ID       *int
	LedgerID *int
	// CoversDate matches budgets whose [start_date, end_date] contains the date.
	CoversDate *time.Time
}

func (s *BudgetSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ID != nil {
		q = q.Where("?TableAlias.id = ?", *s.ID)
	}
	if s.LedgerID != nil {
		q = q.Where("?TableAlias.ledger_id = ?", *s.LedgerID)
	}
	if s.CoversDate != nil {
		q = q.Where("?TableAlias.start_date <= ?", *s.CoversDate).
			Where("?TableAlias.end_date >= ?", *s.CoversDate)
	}
	return q
}

type DialogStateSearch struct {
	ContextType    *string
	ContextID      *string
	ExternalUserID *string
	MaxID          *int
}

func (s *DialogStateSearch) Apply(q *orm.Query) *orm.Query {
	if s == nil {
		return q
	}
	if s.ContextType != nil {
		q = q.Where("?TableAlias.context_type = ?", *s.ContextType)
	}
	if s.ContextID != nil {
		q = q.Where("?TableAlias.context_id = ?", *s.ContextID)
	}
	if s.ExternalUserID != nil {
		q = q.Where("?TableAlias.external_user_id = ?", *s.ExternalUserID)
	}
	if s.MaxID != nil {
		q = q.Where("?TableAlias.id <= ?", *s.MaxID)
	}
	return q
}
