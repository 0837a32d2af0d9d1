package flow

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
)

// HandleAction routes a quick-choice payload produced by an earlier reply.
// Unknown or stale payloads degrade to the fallback hint.
func (w *Workflow) HandleAction(ctx context.Context, src Source, data string) (Reply, error) {
	vals, err := url.ParseQuery(data)
	if err != nil {
		return textReply(msgFallback, mainChoices()...), nil
	}

	act := vals.Get("act")
	actionsProcessed.WithLabelValues(act).Inc()

	userID, ledgerID, err := w.resolve(ctx, src)
	if err != nil {
		return Reply{}, err
	}

	pid, _ := strconv.Atoi(vals.Get("pid"))

	switch act {
	case "confirm":
		return w.actionConfirm(ctx, pid)

	case "cancel":
		deleted, err := w.books.CancelPending(ctx, pid)
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		if !deleted {
			return textReply(msgAlreadyHandled), nil
		}
		recordsTotal.WithLabelValues("cancelled").Inc()
		return textReply(msgCancelled, mainChoices()...), nil

	case "edit_menu":
		rec, err := w.books.UpdatePending(ctx, pid, ledger.PendingPatch{})
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		if rec == nil {
			return textReply(msgAlreadyHandled), nil
		}
		return textReply("要修改哪個欄位？", editMenuChoices(pid)...), nil

	case "edit_amt":
		return textReply(msgAskAmount), nil

	case "edit_item":
		return textReply(msgAskItem), nil

	case "edit_date":
		return textReply(msgAskDate, dateChoices(pid, w.now())...), nil

	case "edit_cat":
		rec, err := w.books.UpdatePending(ctx, pid, ledger.PendingPatch{})
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		if rec == nil {
			return textReply(msgAlreadyHandled), nil
		}
		income := ledger.IsIncomeRecord(rec.IsIncome, rec.Category)
		return textReply("選擇新的類別：", categoryChoices(pid, income)...), nil

	case "set_cat":
		cat := vals.Get("cat")
		if cat == "" {
			return textReply(msgFallback), nil
		}
		income := ledger.IncomeCategories[cat]
		return w.patchAndPreview(ctx, pid, ledger.PendingPatch{Category: &cat, IsIncome: &income})

	case "pick_date":
		d, err := time.Parse(time.DateOnly, vals.Get("date"))
		if err != nil {
			return textReply(msgBadDate), nil
		}
		return w.patchAndPreview(ctx, pid, ledger.PendingPatch{SpentDate: &d})

	case "back":
		return w.patchAndPreview(ctx, pid, ledger.PendingPatch{})

	case "open":
		return w.openMenu(src, vals.Get("menu")), nil

	case "qmenu":
		if vals.Get("mode") == "month" {
			start, end := ledger.MonthRange(w.now())
			return w.querySnapshot(ctx, ledgerID, start, end)
		}
		w.push(ctx, src, kindQuery, stepAwaitStart, statePayload{})
		return textReply(msgAskStartDate), nil

	case "emenu":
		if vals.Get("mode") == "month" {
			start, end := ledger.MonthRange(w.now())
			return textReply("CSV 下載：\n"+w.csvURL(ledgerID, start, end), mainChoices()...), nil
		}
		w.push(ctx, src, kindExport, stepAwaitStart, statePayload{})
		return textReply(msgAskStartDate), nil

	case "budget":
		return w.actionBudget(ctx, src, ledgerID, vals.Get("mode"))

	case "pick_start":
		kind := vals.Get("kind")
		d, err := time.Parse(time.DateOnly, vals.Get("date"))
		if err != nil || kind == "" {
			return textReply(msgBadDate), nil
		}
		w.push(ctx, src, kind, stepAwaitEnd, statePayload{Start: d.Format(time.DateOnly)})
		return textReply(msgAskEndDate), nil

	case "gclear":
		if vals.Get("confirm") != "1" {
			return textReply("確定要清空整本帳本嗎？此動作無法復原。",
				Choice{Label: "確定清空", Action: "act=gclear&confirm=1"},
				Choice{Label: "取消", Action: "act=noop"},
			), nil
		}
		n, err := w.books.DeleteLedgerRecords(ctx, ledgerID)
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		return textReply(fmt.Sprintf("已清空帳本，共刪除 %d 筆紀錄。", n), mainChoices()...), nil

	case "uclear":
		if vals.Get("confirm") != "1" {
			return textReply("確定要清空你的所有紀錄嗎？此動作無法復原。",
				Choice{Label: "確定清空", Action: "act=uclear&confirm=1"},
				Choice{Label: "取消", Action: "act=noop"},
			), nil
		}
		n, err := w.books.DeleteUserRecords(ctx, userID)
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		return textReply(fmt.Sprintf("已清空你的紀錄，共刪除 %d 筆。", n), mainChoices()...), nil

	case "noop":
		return textReply("好的，已取消。", mainChoices()...), nil
	}

	return textReply(msgFallback, mainChoices()...), nil
}

func (w *Workflow) actionConfirm(ctx context.Context, pid int) (Reply, error) {
	rec, err := w.books.ConfirmPending(ctx, pid)
	if err != nil {
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, err
	}
	if rec == nil {
		return textReply(msgAlreadyHandled), nil
	}
	recordsTotal.WithLabelValues("confirmed").Inc()

	reply := textReply(confirmedText(rec), mainChoices()...)

	alert, err := w.books.BudgetAlertForRecord(ctx, rec)
	if err != nil {
		w.Error(ctx, "budget alert failed", "record_id", rec.ID, "err", err)
	} else if alert != "" {
		reply.Extra = append(reply.Extra, alert)
	}

	return reply, nil
}

func (w *Workflow) actionBudget(ctx context.Context, src Source, ledgerID int, mode string) (Reply, error) {
	switch mode {
	case "month":
		start, end := ledger.MonthRange(w.now())
		w.push(ctx, src, kindBudget, stepAwaitAmount, statePayload{
			Start: start.Format(time.DateOnly),
			End:   end.Format(time.DateOnly),
		})
		return textReply("請輸入本月總預算金額："), nil

	case "range":
		w.push(ctx, src, kindBudget, stepAwaitStart, statePayload{})
		return textReply(msgAskStartDate), nil

	case "status":
		status, err := w.books.BudgetStatus(ctx, ledgerID, w.now())
		if err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, err
		}
		return textReply(status, budgetMenuChoices()...), nil
	}

	return textReply("預算功能：", budgetMenuChoices()...), nil
}

func (w *Workflow) patchAndPreview(ctx context.Context, pid int, patch ledger.PendingPatch) (Reply, error) {
	rec, err := w.books.UpdatePending(ctx, pid, patch)
	if err != nil {
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, err
	}
	if rec == nil {
		return textReply(msgAlreadyHandled), nil
	}

	return textReply(preview(rec, w.books.HomeCurrency()), pendingChoices(rec.ID)...), nil
}

func (w *Workflow) openMenu(src Source, menu string) Reply {
	switch menu {
	case "query":
		return textReply("想查哪個期間？", queryMenuChoices()...)
	case "budget":
		return textReply("預算功能：", budgetMenuChoices()...)
	case "export":
		return textReply("要匯出哪個期間？", exportMenuChoices()...)
	case "clear":
		return textReply("要清空哪些紀錄？此動作無法復原。", clearChoices(src.ContextType)...)
	}
	return textReply(msgHelp, mainChoices()...)
}
