package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Context types a ledger can be bound to.
const (
	ContextUser  = "user"
	ContextGroup = "group"
	ContextRoom  = "room"
)

// User is an internal account keyed by the messaging-platform user id.
type User struct {
	tableName struct{} `pg:"users,alias:t,discard_unknown_columns"`

	ID         int       `pg:"id,pk"`
	ExternalID string    `pg:"external_id,use_zero"`
	CreatedAt  time.Time `pg:"created_at,default:now()"`
}

// Ledger is the shared bookkeeping scope for one chat context.
type Ledger struct {
	tableName struct{} `pg:"ledgers,alias:t,discard_unknown_columns"`

	ID          int       `pg:"id,pk"`
	Name        string    `pg:"name,use_zero"`
	ContextType string    `pg:"context_type,use_zero"`
	ContextID   string    `pg:"context_id,use_zero"`
	CreatedAt   time.Time `pg:"created_at,default:now()"`
}

// PendingRecord is a staged expense/income candidate awaiting confirmation.
// Only the most recent row per (user, ledger) within the validity window is
// ever addressable from the conversation.
type PendingRecord struct {
	tableName struct{} `pg:"pending_records,alias:t,discard_unknown_columns"`

	ID           int              `pg:"id,pk"`
	UserID       int              `pg:"user_id,use_zero"`
	LedgerID     int              `pg:"ledger_id,use_zero"`
	Item         string           `pg:"item,use_zero"`
	Amount       decimal.Decimal  `pg:"amount,use_zero"`
	CurrencyCode string           `pg:"currency_code,use_zero"`
	FxRate       *decimal.Decimal `pg:"fx_rate"`
	AmountHome   *decimal.Decimal `pg:"amount_home"`
	SpentDate    *time.Time       `pg:"spent_date,type:date"`
	Category     string           `pg:"category"`
	IsIncome     *bool            `pg:"is_income"`
	CreatedAt    time.Time        `pg:"created_at,default:now()"`

	User   *User   `pg:"rel:has-one,fk:user_id"`
	Ledger *Ledger `pg:"rel:has-one,fk:ledger_id"`
}

// ExpenseRecord is a confirmed, permanent record. Same field shape as
// PendingRecord, immutable except by whole-row purge.
type ExpenseRecord struct {
	tableName struct{} `pg:"expense_records,alias:t,discard_unknown_columns"`

	ID           int              `pg:"id,pk"`
	UserID       int              `pg:"user_id,use_zero"`
	LedgerID     int              `pg:"ledger_id,use_zero"`
	Item         string           `pg:"item,use_zero"`
	Amount       decimal.Decimal  `pg:"amount,use_zero"`
	CurrencyCode string           `pg:"currency_code,use_zero"`
	FxRate       *decimal.Decimal `pg:"fx_rate"`
	AmountHome   *decimal.Decimal `pg:"amount_home"`
	SpentDate    *time.Time       `pg:"spent_date,type:date"`
	Category     string           `pg:"category"`
	IsIncome     *bool            `pg:"is_income"`
	CreatedAt    time.Time        `pg:"created_at,default:now()"`

	User   *User   `pg:"rel:has-one,fk:user_id"`
	Ledger *Ledger `pg:"rel:has-one,fk:ledger_id"`
}

// Budget is a total amount in home currency over a closed date interval.
// Unique per (ledger_id, start_date, end_date); re-setting overwrites.
type Budget struct {
	tableName struct{} `pg:"budgets,alias:t,discard_unknown_columns"`

	ID           int             `pg:"id,pk"`
	LedgerID     int             `pg:"ledger_id,use_zero"`
	StartDate    time.Time       `pg:"start_date,type:date,use_zero"`
	EndDate      time.Time       `pg:"end_date,type:date,use_zero"`
	TotalAmount  decimal.Decimal `pg:"total_amount,use_zero"`
	CurrencyCode string          `pg:"currency_code,use_zero"`
	CreatedBy    *int            `pg:"created_by"`
	CreatedAt    time.Time       `pg:"created_at,default:now()"`

	Ledger *Ledger `pg:"rel:has-one,fk:ledger_id"`
}

// DialogState is a single-use "waiting for next message" marker for one
// (context, user) pair. Payload is a JSON document.
type DialogState struct {
	tableName struct{} `pg:"dialog_states,alias:t,discard_unknown_columns"`

	ID             int       `pg:"id,pk"`
	ContextType    string    `pg:"context_type,use_zero"`
	ContextID      string    `pg:"context_id,use_zero"`
	ExternalUserID string    `pg:"external_user_id,use_zero"`
	Kind           string    `pg:"kind,use_zero"`
	Step           string    `pg:"step,use_zero"`
	Payload        string    `pg:"payload"`
	CreatedAt      time.Time `pg:"created_at,default:now()"`
}

// Tables contains table names for query metadata.
var Tables = struct {
	User, Ledger, PendingRecord, ExpenseRecord, Budget, DialogState struct{ Name, Alias string }
}{
	User:          struct{ Name, Alias string }{"users", "t"},
	Ledger:        struct{ Name, Alias string }{"ledgers", "t"},
	PendingRecord: struct{ Name, Alias string }{"pending_records", "t"},
	ExpenseRecord: struct{ Name, Alias string }{"expense_records", "t"},
	Budget:        struct{ Name, Alias string }{"budgets", "t"},
	DialogState:   struct{ Name, Alias string }{"dialog_states", "t"},
}

// Columns contains column names used by sparse updates and sorts.
var Columns = struct {
	User struct {
		ID, ExternalID, CreatedAt string
	}
	Ledger struct {
		ID, Name, ContextType, ContextID, CreatedAt string
	}
	PendingRecord struct {
		ID, UserID, LedgerID, Item, Amount, CurrencyCode, FxRate, AmountHome, SpentDate, Category, IsIncome, CreatedAt string
	}
	ExpenseRecord struct {
		ID, UserID, LedgerID, Item, Amount, CurrencyCode, FxRate, AmountHome, SpentDate, Category, IsIncome, CreatedAt string
	}
	Budget struct {
		ID, LedgerID, StartDate, EndDate, TotalAmount, CurrencyCode, CreatedBy, CreatedAt string
	}
	DialogState struct {
		ID, ContextType, ContextID, ExternalUserID, Kind, Step, Payload, CreatedAt string
	}
}{
	User: struct {
		ID, ExternalID, CreatedAt string
	}{"id", "external_id", "created_at"},
	Ledger: struct {
		ID, Name, ContextType, ContextID, CreatedAt string
	}{"id", "name", "context_type", "context_id", "created_at"},
	PendingRecord: struct {
		ID, UserID, LedgerID, Item, Amount, CurrencyCode, FxRate, AmountHome, SpentDate, Category, IsIncome, CreatedAt string
	}{"id", "user_id", "ledger_id", "item", "amount", "currency_code", "fx_rate", "amount_home", "spent_date", "category", "is_income", "created_at"},
	ExpenseRecord: struct {
		ID, UserID, LedgerID, Item, Amount, CurrencyCode, FxRate, AmountHome, SpentDate, Category, IsIncome, CreatedAt string
	}{"id", "user_id", "ledger_id", "item", "amount", "currency_code", "fx_rate", "amount_home", "spent_date", "category", "is_income", "created_at"},
	Budget: struct {
		ID, LedgerID, StartDate, EndDate, TotalAmount, CurrencyCode, CreatedBy, CreatedAt string
	}{"id", "ledger_id", "start_date", "end_date", "total_amount", "currency_code", "created_by", "created_at"},
	DialogState: struct {
		ID, ContextType, ContextID, ExternalUserID, Kind, Step, Payload, CreatedAt string
	}{"id", "context_type", "context_id", "external_user_id", "kind", "step", "payload", "created_at"},
}
