package flow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
)

// Choice is one quick-choice button attached to a reply. Action is an
// opaque payload the adapter routes back through HandleAction.
type Choice struct {
	Label  string
	Action string
}

// Reply is a transport-agnostic outbound message. Extra holds follow-up
// messages sent after Text, such as budget notices.
type Reply struct {
	Text    string
	Choices []Choice
	Extra   []string
}

func textReply(text string, choices ...Choice) Reply {
	return Reply{Text: text, Choices: choices}
}

const (
	msgFallback       = "看不懂這筆 🙈 可以用「品項 金額」的格式，例如：早餐 65"
	msgAlreadyHandled = "這筆已經處理過或已過期。"
	msgCancelled      = "已取消 ❌"

	msgAskAmount    = "請輸入新的金額："
	msgAskItem      = "請輸入新的品項名稱："
	msgAskDate      = "請輸入新的日期（例如 2025-08-29、8/15、昨天）："
	msgAskStartDate = "請輸入起始日期（YYYY-MM-DD），或直接輸入「起 ~ 迄」區間："
	msgAskEndDate   = "請輸入結束日期（YYYY-MM-DD）："
	msgBadDate      = "日期格式看不懂，請用 YYYY-MM-DD 再試一次。"
	msgBadRange     = "結束日期不能早於起始日期，請重新輸入。"
	msgBadAmount    = "金額要是正數，請重新輸入。"

	msgHelp = `嗨！我是記帳小幫手 💰

直接輸入「品項 金額」就能記一筆，例如：
・早餐 65
・昨天 星巴克 150
・東京拉麵 1200 JPY

語音訊息、收據照片也可以記帳。
其他功能：
・查詢 — 看期間收支
・預算 — 設定與查看預算
・匯出 — 下載 CSV
・清空 — 刪除紀錄`
)

var expenseCategories = []string{"餐飲", "交通", "購物", "娛樂", "居家", "醫療", "教育", "其他"}
var incomeCategories = []string{"薪資", "獎金", "投資", "退款", "其他收入"}

func mainChoices() []Choice {
	return []Choice{
		{Label: "📖 查詢", Action: "act=open&menu=query"},
		{Label: "💰 預算", Action: "act=open&menu=budget"},
		{Label: "📤 匯出", Action: "act=open&menu=export"},
		{Label: "❓ 說明", Action: "act=open&menu=help"},
	}
}

func pendingChoices(pid int) []Choice {
	id := strconv.Itoa(pid)
	return []Choice{
		{Label: "✅ 確認", Action: "act=confirm&pid=" + id},
		{Label: "✏️ 修改", Action: "act=edit_menu&pid=" + id},
		{Label: "❌ 取消", Action: "act=cancel&pid=" + id},
	}
}

func editMenuChoices(pid int) []Choice {
	id := strconv.Itoa(pid)
	return []Choice{
		{Label: "改金額", Action: "act=edit_amt&pid=" + id},
		{Label: "改品項", Action: "act=edit_item&pid=" + id},
		{Label: "改日期", Action: "act=edit_date&pid=" + id},
		{Label: "改類別", Action: "act=edit_cat&pid=" + id},
		{Label: "返回", Action: "act=back&pid=" + id},
	}
}

func dateChoices(pid int, now time.Time) []Choice {
	id := strconv.Itoa(pid)
	choices := make([]Choice, 0, 3)
	for i, label := range []string{"今天", "昨天", "前天"} {
		day := ledger.DateOnly(now).AddDate(0, 0, -i)
		choices = append(choices, Choice{
			Label:  label,
			Action: "act=pick_date&pid=" + id + "&date=" + day.Format(time.DateOnly),
		})
	}
	return choices
}

func categoryChoices(pid int, income bool) []Choice {
	id := strconv.Itoa(pid)
	cats := expenseCategories
	if income {
		cats = incomeCategories
	}

	choices := make([]Choice, 0, len(cats))
	for _, cat := range cats {
		choices = append(choices, Choice{Label: cat, Action: "act=set_cat&pid=" + id + "&cat=" + cat})
	}
	return choices
}

func queryMenuChoices() []Choice {
	return []Choice{
		{Label: "本月", Action: "act=qmenu&mode=month"},
		{Label: "自訂區間", Action: "act=qmenu&mode=manual"},
	}
}

func exportMenuChoices() []Choice {
	return []Choice{
		{Label: "本月 CSV", Action: "act=emenu&mode=month"},
		{Label: "自訂區間 CSV", Action: "act=emenu&mode=manual"},
	}
}

func budgetMenuChoices() []Choice {
	return []Choice{
		{Label: "設定本月預算", Action: "act=budget&mode=month"},
		{Label: "設定自訂區間預算", Action: "act=budget&mode=range"},
		{Label: "查看預算狀態", Action: "act=budget&mode=status"},
	}
}

func clearChoices(contextType string) []Choice {
	if contextType == db.ContextUser {
		return []Choice{
			{Label: "確定清空我的紀錄", Action: "act=uclear&confirm=1"},
			{Label: "取消", Action: "act=noop"},
		}
	}
	return []Choice{
		{Label: "清空整本群組帳本", Action: "act=gclear"},
		{Label: "只清空我的紀錄", Action: "act=uclear"},
		{Label: "取消", Action: "act=noop"},
	}
}

// preview renders a staged record for the confirm round-trip.
func preview(rec *db.PendingRecord, homeCurrency string) string {
	amount := fmt.Sprintf("%s %s", ledger.FormatMoney(rec.Amount), rec.CurrencyCode)
	if rec.CurrencyCode != homeCurrency {
		home := ledger.AmountInHome(rec.Amount, rec.FxRate, rec.AmountHome)
		amount += fmt.Sprintf("（≈ %s %s）", ledger.FormatMoney(home), homeCurrency)
	}

	date := "未提供（預設今日）"
	if rec.SpentDate != nil {
		date = rec.SpentDate.Format(time.DateOnly)
	}

	category := rec.Category
	if category == "" {
		category = "其他"
	}
	if ledger.IsIncomeRecord(rec.IsIncome, rec.Category) {
		category += "（收入）"
	}

	return fmt.Sprintf("📝 請確認這筆紀錄\n項目：%s\n金額：%s\n日期：%s\n類別：%s",
		rec.Item, amount, date, category)
}

func confirmedText(rec *db.ExpenseRecord) string {
	kind := "支出"
	if ledger.IsIncomeRecord(rec.IsIncome, rec.Category) {
		kind = "收入"
	}

	date := ""
	if rec.SpentDate != nil {
		date = rec.SpentDate.Format(time.DateOnly) + " "
	}

	return fmt.Sprintf("已記錄 ✅\n%s%s %s %s（%s）",
		date, rec.Item, ledger.FormatMoney(rec.Amount), rec.CurrencyCode, kind)
}
