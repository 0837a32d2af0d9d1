package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"

	"github.com/shopspring/decimal"
)

// recentLimit caps the per-record tail of the text report.
const recentLimit = 5

// Summary aggregates a slice of confirmed records in home currency.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	ByCategory   map[string]decimal.Decimal // expenses only
	Count        int
}

// Net returns income minus expenses.
func (s Summary) Net() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// Summarize folds records into totals and a per-category expense breakdown.
func Summarize(records []db.ExpenseRecord) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		ByCategory:   make(map[string]decimal.Decimal),
		Count:        len(records),
	}

	for i := range records {
		rec := &records[i]
		amount := ledger.RecordAmountHome(rec)

		if ledger.IsIncomeRecord(rec.IsIncome, rec.Category) {
			s.TotalIncome = s.TotalIncome.Add(amount)
			continue
		}

		s.TotalExpense = s.TotalExpense.Add(amount)

		cat := rec.Category
		if cat == "" {
			cat = "其他"
		}
		s.ByCategory[cat] = s.ByCategory[cat].Add(amount)
	}

	return s
}

// RenderText builds the period report: totals, category breakdown and the
// most recent records.
func RenderText(records []db.ExpenseRecord, start, end time.Time, homeCurrency string) string {
	s := Summarize(records)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s ~ %s\n", start.Format(time.DateOnly), end.Format(time.DateOnly))

	if s.Count == 0 {
		b.WriteString("這段期間沒有任何紀錄。")
		return b.String()
	}

	fmt.Fprintf(&b, "收入：%s %s\n", ledger.FormatMoney(s.TotalIncome), homeCurrency)
	fmt.Fprintf(&b, "支出：%s %s\n", ledger.FormatMoney(s.TotalExpense), homeCurrency)
	fmt.Fprintf(&b, "結餘：%s %s\n", ledger.FormatMoney(s.Net()), homeCurrency)

	if len(s.ByCategory) > 0 {
		b.WriteString("\n分類支出：\n")

		cats := make([]string, 0, len(s.ByCategory))
		for cat := range s.ByCategory {
			cats = append(cats, cat)
		}
		sort.Slice(cats, func(i, j int) bool {
			return s.ByCategory[cats[i]].GreaterThan(s.ByCategory[cats[j]])
		})

		for _, cat := range cats {
			fmt.Fprintf(&b, "・%s：%s\n", cat, ledger.FormatMoney(s.ByCategory[cat]))
		}
	}

	b.WriteString("\n最近紀錄：\n")
	recent := records
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		rec := &recent[i]
		date := ""
		if rec.SpentDate != nil {
			date = rec.SpentDate.Format("01/02")
		}
		fmt.Fprintf(&b, "・%s %s %s %s\n", date, rec.Item, ledger.FormatMoney(rec.Amount), rec.CurrencyCode)
	}

	return strings.TrimRight(b.String(), "\n")
}
