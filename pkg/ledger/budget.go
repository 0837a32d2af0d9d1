package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/shopspring/decimal"
)

// NoBudgetMessage is the reply when a ledger has no budget at all.
const NoBudgetMessage = "目前尚未設定預算。輸入「預算」即可設定本月或自訂區間的總預算。"

// SetBudgetTotal creates or replaces the total budget of a ledger for the
// exact [start, end] period.
func (m *Manager) SetBudgetTotal(ctx context.Context, ledgerID int, start, end time.Time, amount decimal.Decimal, currencyCode string, createdBy *int) (*db.Budget, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if currencyCode == "" {
		currencyCode = m.cfg.HomeCurrency
	}

	start, end = DateOnly(start), DateOnly(end)

	budget, err := m.cr.UpsertBudget(ctx, &db.Budget{
		LedgerID:     ledgerID,
		StartDate:    start,
		EndDate:      end,
		TotalAmount:  amount,
		CurrencyCode: currencyCode,
		CreatedBy:    createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set budget: %w", err)
	}

	m.log.Print(ctx, "budget set",
		"budget_id", budget.ID,
		"ledger_id", ledgerID,
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
		"total", amount.String(),
	)

	return budget, nil
}

// ActiveBudgetFor returns the budget whose period covers the given day, or
// nil. When periods overlap the most recently created one wins.
func (m *Manager) ActiveBudgetFor(ctx context.Context, ledgerID int, on time.Time) (*db.Budget, error) {
	on = DateOnly(on)

	budget, err := m.cr.OneBudget(ctx, &db.BudgetSearch{LedgerID: &ledgerID, CoversDate: &on})
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	return budget, nil
}

// SpentInRange totals home-currency spending of a ledger inside [start, end].
// Income rows do not count.
func (m *Manager) SpentInRange(ctx context.Context, ledgerID int, start, end time.Time) (decimal.Decimal, error) {
	records, err := m.RecordsInRange(ctx, ledgerID, start, end)
	if err != nil {
		return decimal.Zero, err
	}

	return SumSpent(records), nil
}

// BudgetStatus renders the balance report for the budget covering today,
// falling back to the most recent budget of the ledger.
func (m *Manager) BudgetStatus(ctx context.Context, ledgerID int, today time.Time) (string, error) {
	budget, err := m.ActiveBudgetFor(ctx, ledgerID, today)
	if err != nil {
		return "", err
	}

	if budget == nil {
		budget, err = m.cr.OneBudget(ctx, &db.BudgetSearch{LedgerID: &ledgerID})
		if err != nil {
			return "", fmt.Errorf("failed to get budget: %w", err)
		}
	}

	if budget == nil {
		return NoBudgetMessage, nil
	}

	spent, err := m.SpentInRange(ctx, ledgerID, budget.StartDate, budget.EndDate)
	if err != nil {
		return "", err
	}

	return RenderBudgetStatus(budget, spent, m.cfg.HomeCurrency), nil
}

// BudgetAlertForRecord returns the balance notice to attach after a record
// is confirmed, or "" when the ledger has no budget covering its date.
func (m *Manager) BudgetAlertForRecord(ctx context.Context, rec *db.ExpenseRecord) (string, error) {
	if IsIncomeRecord(rec.IsIncome, rec.Category) {
		return "", nil
	}

	on := m.now()
	if rec.SpentDate != nil {
		on = *rec.SpentDate
	}

	budget, err := m.ActiveBudgetFor(ctx, rec.LedgerID, on)
	if err != nil {
		return "", err
	}
	if budget == nil {
		return "", nil
	}

	spent, err := m.SpentInRange(ctx, rec.LedgerID, budget.StartDate, budget.EndDate)
	if err != nil {
		return "", err
	}

	return RenderBudgetAlert(budget, spent), nil
}

// RenderBudgetStatus builds the full budget report text.
func RenderBudgetStatus(b *db.Budget, spent decimal.Decimal, homeCurrency string) string {
	remaining := b.TotalAmount.Sub(spent)

	header := "✅ 預算進度良好"
	if remaining.IsNegative() {
		header = "⚠️ 已超過預算！"
	}

	text := fmt.Sprintf("%s\n期間：%s ~ %s\n總預算：%s %s\n已用：%s（%d%%）",
		header,
		b.StartDate.Format(time.DateOnly),
		b.EndDate.Format(time.DateOnly),
		FormatMoney(b.TotalAmount), homeCurrency,
		FormatMoney(spent), usedPercent(b.TotalAmount, spent),
	)

	if remaining.IsNegative() {
		return text + fmt.Sprintf("\n超支：%s %s", FormatMoney(remaining.Neg()), homeCurrency)
	}
	return text + fmt.Sprintf("\n還剩：%s %s", FormatMoney(remaining), homeCurrency)
}

// RenderBudgetAlert builds the short balance notice sent after a confirm.
func RenderBudgetAlert(b *db.Budget, spent decimal.Decimal) string {
	remaining := b.TotalAmount.Sub(spent)
	if remaining.IsNegative() {
		return fmt.Sprintf("⚠️ 預算警示：已超過 %s！", FormatMoney(remaining.Neg()))
	}
	return fmt.Sprintf("✅ 預算狀態：還剩 %s（已用 %d%%）", FormatMoney(remaining), usedPercent(b.TotalAmount, spent))
}

func usedPercent(total, spent decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	pct, _ := spent.Div(total).Mul(decimal.NewFromInt(100)).Round(0).Float64()
	return int(pct)
}
