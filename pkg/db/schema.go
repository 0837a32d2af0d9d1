package db

import "context"

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id serial PRIMARY KEY,
		external_id varchar(64) NOT NULL UNIQUE,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ledgers (
		id serial PRIMARY KEY,
		name varchar(128) NOT NULL,
		context_type varchar(16) NOT NULL,
		context_id varchar(64) NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (context_type, context_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_records (
		id serial PRIMARY KEY,
		user_id int NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		ledger_id int NOT NULL REFERENCES ledgers (id) ON DELETE CASCADE,
		item varchar(255) NOT NULL,
		amount numeric(12,2) NOT NULL,
		currency_code varchar(3) NOT NULL DEFAULT 'TWD',
		fx_rate numeric(12,6),
		amount_home numeric(12,2),
		spent_date date,
		category varchar(64),
		is_income boolean,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_user_ledger_created
		ON pending_records (user_id, ledger_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS expense_records (
		id serial PRIMARY KEY,
		user_id int NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		ledger_id int NOT NULL REFERENCES ledgers (id) ON DELETE CASCADE,
		item varchar(255) NOT NULL,
		amount numeric(12,2) NOT NULL,
		currency_code varchar(3) NOT NULL DEFAULT 'TWD',
		fx_rate numeric(12,6),
		amount_home numeric(12,2),
		spent_date date,
		category varchar(64),
		is_income boolean,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expense_ledger_date
		ON expense_records (ledger_id, spent_date)`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id serial PRIMARY KEY,
		ledger_id int NOT NULL REFERENCES ledgers (id) ON DELETE CASCADE,
		start_date date NOT NULL,
		end_date date NOT NULL,
		total_amount numeric(12,2) NOT NULL,
		currency_code varchar(3) NOT NULL DEFAULT 'TWD',
		created_by int,
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (ledger_id, start_date, end_date),
		CHECK (end_date >= start_date)
	)`,
	`CREATE TABLE IF NOT EXISTS dialog_states (
		id serial PRIMARY KEY,
		context_type varchar(16) NOT NULL,
		context_id varchar(64) NOT NULL,
		external_user_id varchar(64) NOT NULL,
		kind varchar(16) NOT NULL,
		step varchar(32) NOT NULL,
		payload jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_state_ctx_user_created
		ON dialog_states (context_type, context_id, external_user_id, created_at)`,
}

// EnsureSchema creates the tables the bot needs if they do not exist yet.
func (d DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
