package ledger

import (
	"strings"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/shopspring/decimal"
)

// IncomeCategories lists the categories that count as income even when the
// income flag is missing.
var IncomeCategories = map[string]bool{
	"薪資":   true,
	"獎金":   true,
	"投資":   true,
	"退款":   true,
	"其他收入": true,
}

var one = decimal.NewFromInt(1)

// AmountInHome converts a record amount into the home currency: a stored
// home amount wins, otherwise amount times the fx rate (1 when missing),
// rounded to cents.
func AmountInHome(amount decimal.Decimal, fxRate, amountHome *decimal.Decimal) decimal.Decimal {
	if amountHome != nil {
		return amountHome.Round(2)
	}

	rate := one
	if fxRate != nil && fxRate.IsPositive() {
		rate = *fxRate
	}

	return amount.Mul(rate).Round(2)
}

// RecordAmountHome returns the home-currency value of a confirmed record.
func RecordAmountHome(rec *db.ExpenseRecord) decimal.Decimal {
	return AmountInHome(rec.Amount, rec.FxRate, rec.AmountHome)
}

// IsIncomeRecord reports whether a record counts as income, by flag or by
// category.
func IsIncomeRecord(isIncome *bool, category string) bool {
	if isIncome != nil && *isIncome {
		return true
	}
	return IncomeCategories[category]
}

// SumSpent totals the home-currency value of expense rows, skipping income.
func SumSpent(records []db.ExpenseRecord) decimal.Decimal {
	total := decimal.Zero
	for i := range records {
		rec := &records[i]
		if rec.IsIncome != nil && *rec.IsIncome {
			continue
		}
		total = total.Add(RecordAmountHome(rec))
	}
	return total
}

// FormatMoney renders a decimal with thousands separators and two decimal
// places, e.g. 12345.5 -> "12,345.50".
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)

	return b.String()
}

// DateOnly truncates a time to its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthRange returns the first and last day of t's month.
func MonthRange(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 1, -1)
	return start, end
}
