package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/vmkteam/embedlog"
)

// How long staged records and dialog states stay actionable.
const (
	PendingWindow = 20 * time.Minute
	StateWindow   = 20 * time.Minute
)

var (
	// ErrUserNotFound is returned by Resolve when auto-creation is disabled
	// and the external user is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrNonPositiveAmount is returned when a record amount is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Config holds ledger manager settings.
type Config struct {
	HomeCurrency string
	// AutoCreateUsers makes Resolve register unknown external users instead
	// of failing with ErrUserNotFound.
	AutoCreateUsers bool
}

// Manager implements the bookkeeping operations on top of the database:
// user and ledger resolution, the pending record lifecycle, dialog states
// and budgets.
type Manager struct {
	cr  db.CommonRepo
	db  db.DB
	cfg Config
	log embedlog.Logger
	now func() time.Time
}

func NewManager(dbc db.DB, cfg Config, log embedlog.Logger) *Manager {
	if cfg.HomeCurrency == "" {
		cfg.HomeCurrency = "TWD"
	}

	return &Manager{
		cr:  db.NewCommonRepo(dbc),
		db:  dbc,
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

// HomeCurrency returns the currency all budget math is done in.
func (m *Manager) HomeCurrency() string { return m.cfg.HomeCurrency }

// Resolve maps an external (messaging platform) identity to internal user
// and ledger IDs, creating both lazily. Each conversation context owns
// exactly one ledger.
func (m *Manager) Resolve(ctx context.Context, contextType, contextID, externalUserID string) (userID, ledgerID int, err error) {
	user, err := m.cr.OneUser(ctx, &db.UserSearch{ExternalID: &externalUserID})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to search user: %w", err)
	}

	if user == nil {
		if !m.cfg.AutoCreateUsers {
			return 0, 0, ErrUserNotFound
		}

		user, err = m.cr.AddUser(ctx, &db.User{ExternalID: externalUserID})
		if err != nil {
			return 0, 0, fmt.Errorf("failed to create user: %w", err)
		}
		m.log.Print(ctx, "new user created", "user_id", user.ID, "external_id", externalUserID)
	}

	ledger, err := m.cr.OneLedger(ctx, &db.LedgerSearch{ContextType: &contextType, ContextID: &contextID})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to search ledger: %w", err)
	}

	if ledger == nil {
		ledger, err = m.cr.AddLedger(ctx, &db.Ledger{
			Name:        defaultLedgerName(contextType, contextID),
			ContextType: contextType,
			ContextID:   contextID,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("failed to create ledger: %w", err)
		}
		m.log.Print(ctx, "new ledger created", "ledger_id", ledger.ID, "context_type", contextType, "context_id", contextID)
	}

	return user.ID, ledger.ID, nil
}

func defaultLedgerName(contextType, contextID string) string {
	short := contextID
	if len(short) > 8 {
		short = short[:8]
	}

	switch contextType {
	case db.ContextGroup:
		return "群組帳本-" + short
	case db.ContextRoom:
		return "聊天室帳本-" + short
	default:
		return "個人帳本-" + short
	}
}

// RecordsInRange returns confirmed records of a ledger whose spent date
// falls inside [start, end], oldest first.
func (m *Manager) RecordsInRange(ctx context.Context, ledgerID int, start, end time.Time) ([]db.ExpenseRecord, error) {
	records, err := m.cr.ExpenseRecordsByFilters(ctx, &db.ExpenseRecordSearch{
		LedgerID:  &ledgerID,
		SpentFrom: &start,
		SpentTo:   &end,
	}, db.PagerNoLimit, m.cr.DefaultExpenseRecordSort())
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	return records, nil
}

// DeleteUserRecords wipes all confirmed and pending records of a user
// across every ledger. Returns the number of confirmed records removed.
func (m *Manager) DeleteUserRecords(ctx context.Context, userID int) (int, error) {
	deleted, err := m.cr.DeleteExpenseRecords(ctx, &db.ExpenseRecordSearch{UserID: &userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user records: %w", err)
	}

	if _, err := m.cr.DeletePendingRecords(ctx, &db.PendingRecordSearch{UserID: &userID}); err != nil {
		return 0, fmt.Errorf("failed to delete user pending records: %w", err)
	}

	m.log.Print(ctx, "user records deleted", "user_id", userID, "count", deleted)

	return deleted, nil
}

// DeleteLedgerRecords wipes all confirmed and pending records of a ledger.
// Returns the number of confirmed records removed.
func (m *Manager) DeleteLedgerRecords(ctx context.Context, ledgerID int) (int, error) {
	deleted, err := m.cr.DeleteExpenseRecords(ctx, &db.ExpenseRecordSearch{LedgerID: &ledgerID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger records: %w", err)
	}

	if _, err := m.cr.DeletePendingRecords(ctx, &db.PendingRecordSearch{LedgerID: &ledgerID}); err != nil {
		return 0, fmt.Errorf("failed to delete ledger pending records: %w", err)
	}

	m.log.Print(ctx, "ledger records deleted", "ledger_id", ledgerID, "count", deleted)

	return deleted, nil
}
