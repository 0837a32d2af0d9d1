// Package flow implements the conversational bookkeeping workflow: free
// text in, staged records, confirmation round-trips, queries, budgets and
// exports. It is transport-agnostic; adapters feed it messages and render
// its replies.
package flow

import (
	"context"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"

	"github.com/shopspring/decimal"
)

// Books is the bookkeeping backend the workflow drives. *ledger.Manager is
// the production implementation.
type Books interface {
	HomeCurrency() string
	Resolve(ctx context.Context, contextType, contextID, externalUserID string) (userID, ledgerID int, err error)

	StagePending(ctx context.Context, userID, ledgerID int, f ledger.StagedFields) (*db.PendingRecord, error)
	LatestPending(ctx context.Context, userID, ledgerID int) (*db.PendingRecord, error)
	UpdatePending(ctx context.Context, id int, patch ledger.PendingPatch) (*db.PendingRecord, error)
	ConfirmPending(ctx context.Context, id int) (*db.ExpenseRecord, error)
	CancelPending(ctx context.Context, id int) (bool, error)

	PushState(ctx context.Context, contextType, contextID, externalUserID, kind, step, payload string) error
	PopLatestState(ctx context.Context, contextType, contextID, externalUserID string) (*db.DialogState, error)

	SetBudgetTotal(ctx context.Context, ledgerID int, start, end time.Time, amount decimal.Decimal, currencyCode string, createdBy *int) (*db.Budget, error)
	BudgetStatus(ctx context.Context, ledgerID int, today time.Time) (string, error)
	BudgetAlertForRecord(ctx context.Context, rec *db.ExpenseRecord) (string, error)

	RecordsInRange(ctx context.Context, ledgerID int, start, end time.Time) ([]db.ExpenseRecord, error)
	DeleteUserRecords(ctx context.Context, userID int) (int, error)
	DeleteLedgerRecords(ctx context.Context, ledgerID int) (int, error)
}

// Source identifies where an inbound event came from.
type Source struct {
	ContextType string // db.ContextUser, db.ContextGroup or db.ContextRoom
	ContextID   string // platform conversation id
	UserID      string // platform user id, may be empty in groups
}

// effectiveUserID falls back to the conversation id when the platform hides
// the sender.
func (s Source) effectiveUserID() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.ContextType + ":" + s.ContextID
}

// Dialog state kinds and steps.
const (
	kindQuery  = "query"
	kindExport = "export"
	kindBudget = "budget"

	stepAwaitStart  = "await_start"
	stepAwaitEnd    = "await_end"
	stepAwaitAmount = "await_amount"
)

// statePayload carries values between dialog steps as JSON.
type statePayload struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}
