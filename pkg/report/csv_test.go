package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func datePtr(s string) *time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func sampleRecords() []db.ExpenseRecord {
	income := true
	return []db.ExpenseRecord{
		{ID: 1, Item: "午餐", Amount: dec("120"), CurrencyCode: "TWD", SpentDate: datePtr("2025-08-01"), Category: "餐飲"},
		{ID: 2, Item: "拉麵", Amount: dec("1200"), CurrencyCode: "JPY", FxRate: decPtr("0.21"), AmountHome: decPtr("252"), SpentDate: datePtr("2025-08-02"), Category: "餐飲"},
		{ID: 3, Item: "薪水", Amount: dec("50000"), CurrencyCode: "TWD", SpentDate: datePtr("2025-08-05"), Category: "薪資", IsIncome: &income},
	}
}

func TestCSV(t *testing.T) {
	out, err := CSV(sampleRecords())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}), "want a UTF-8 BOM")

	body := string(out[3:])
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "日期,品項,金額,幣別,匯率,台幣金額,類別,收支", lines[0])
	assert.Equal(t, "2025-08-01,午餐,120.00,TWD,,120.00,餐飲,支出", lines[1])
	assert.Equal(t, "2025-08-02,拉麵,1200.00,JPY,0.21,252.00,餐飲,支出", lines[2])
	assert.Equal(t, "2025-08-05,薪水,50000.00,TWD,,50000.00,薪資,收入", lines[3])
}

func TestCSVEmpty(t *testing.T) {
	out, err := CSV(nil)
	require.NoError(t, err)

	body := string(out[3:])
	assert.Equal(t, "日期,品項,金額,幣別,匯率,台幣金額,類別,收支\r\n", body)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "372.00", s.TotalExpense.StringFixed(2))
	assert.Equal(t, "50000.00", s.TotalIncome.StringFixed(2))
	assert.Equal(t, "49628.00", s.Net().StringFixed(2))
	assert.Equal(t, "372.00", s.ByCategory["餐飲"].StringFixed(2))
	assert.NotContains(t, s.ByCategory, "薪資", "income must not appear in the expense breakdown")
}

func TestRenderText(t *testing.T) {
	start, end := *datePtr("2025-08-01"), *datePtr("2025-08-31")

	text := RenderText(sampleRecords(), start, end, "TWD")
	assert.Contains(t, text, "2025-08-01 ~ 2025-08-31")
	assert.Contains(t, text, "收入：50,000.00 TWD")
	assert.Contains(t, text, "支出：372.00 TWD")
	assert.Contains(t, text, "結餘：49,628.00 TWD")
	assert.Contains(t, text, "・餐飲：372.00")
	assert.Contains(t, text, "拉麵")

	text = RenderText(nil, start, end, "TWD")
	assert.Contains(t, text, "沒有任何紀錄")
}
