// Package report renders confirmed ledger records for export.
package report

import (
	"bytes"
	"encoding/csv"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
)

// utf8BOM keeps Excel happy with Chinese headers.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"日期", "品項", "金額", "幣別", "匯率", "台幣金額", "類別", "收支"}

// CSV renders records as a UTF-8 CSV document with BOM and CRLF line
// endings.
func CSV(records []db.ExpenseRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for i := range records {
		rec := &records[i]

		date := ""
		if rec.SpentDate != nil {
			date = rec.SpentDate.Format(time.DateOnly)
		}

		fxRate := ""
		if rec.FxRate != nil {
			fxRate = rec.FxRate.String()
		}

		kind := "支出"
		if ledger.IsIncomeRecord(rec.IsIncome, rec.Category) {
			kind = "收入"
		}

		row := []string{
			date,
			rec.Item,
			rec.Amount.StringFixed(2),
			rec.CurrencyCode,
			fxRate,
			ledger.RecordAmountHome(rec).StringFixed(2),
			rec.Category,
			kind,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
