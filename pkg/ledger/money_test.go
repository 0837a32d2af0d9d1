package ledger

import (
	"testing"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestAmountInHome(t *testing.T) {
	// stored home amount wins over the rate
	got := AmountInHome(dec("1200"), decPtr("0.21"), decPtr("250.555"))
	assert.Equal(t, "250.56", got.StringFixed(2))

	// amount times rate, rounded to cents
	got = AmountInHome(dec("1200"), decPtr("0.21"), nil)
	assert.Equal(t, "252.00", got.StringFixed(2))

	// missing rate defaults to 1
	got = AmountInHome(dec("120"), nil, nil)
	assert.Equal(t, "120.00", got.StringFixed(2))

	// a zero rate is treated as missing
	got = AmountInHome(dec("120"), decPtr("0"), nil)
	assert.Equal(t, "120.00", got.StringFixed(2))
}

func TestSumSpentSkipsIncome(t *testing.T) {
	income := true
	records := []db.ExpenseRecord{
		{Amount: dec("120")},
		{Amount: dec("1200"), FxRate: decPtr("0.21")},
		{Amount: dec("50000"), IsIncome: &income},
	}

	assert.Equal(t, "372.00", SumSpent(records).StringFixed(2))
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"65", "65.00"},
		{"1200", "1,200.00"},
		{"12345.5", "12,345.50"},
		{"1234567.89", "1,234,567.89"},
		{"-9876.5", "-9,876.50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney(dec(tt.in)), "input %s", tt.in)
	}
}

func TestIsIncomeRecord(t *testing.T) {
	income := true
	expense := false

	assert.True(t, IsIncomeRecord(&income, "餐飲"))
	assert.True(t, IsIncomeRecord(nil, "薪資"))
	assert.True(t, IsIncomeRecord(&expense, "退款"), "income categories win over the flag")
	assert.False(t, IsIncomeRecord(&expense, "餐飲"))
	assert.False(t, IsIncomeRecord(nil, "其他"))
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-02-01", start.Format(time.DateOnly))
	assert.Equal(t, "2025-02-28", end.Format(time.DateOnly))

	start, end = MonthRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-29", end.Format(time.DateOnly))
	assert.Equal(t, "2024-02-01", start.Format(time.DateOnly))
}

func TestRenderBudget(t *testing.T) {
	budget := &db.Budget{
		StartDate:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
		TotalAmount: dec("10000"),
	}

	status := RenderBudgetStatus(budget, dec("9000"), "TWD")
	assert.Contains(t, status, "進度良好")
	assert.Contains(t, status, "2025-08-01 ~ 2025-08-31")
	assert.Contains(t, status, "10,000.00 TWD")
	assert.Contains(t, status, "9,000.00（90%）")
	assert.Contains(t, status, "還剩：1,000.00 TWD")

	status = RenderBudgetStatus(budget, dec("11000"), "TWD")
	assert.Contains(t, status, "已超過預算")
	assert.Contains(t, status, "超支：1,000.00 TWD")

	alert := RenderBudgetAlert(budget, dec("9000"))
	assert.Contains(t, alert, "還剩 1,000.00")
	assert.Contains(t, alert, "已用 90%")

	alert = RenderBudgetAlert(budget, dec("11000"))
	assert.Contains(t, alert, "已超過 1,000.00")
}
