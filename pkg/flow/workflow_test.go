package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
	"github.com/s35indy-pixel/Finance-Bot/pkg/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmkteam/embedlog"
)

var userSrc = Source{ContextType: db.ContextUser, ContextID: "U100", UserID: "U100"}

type stubImages struct {
	parsed *services.ParsedRecord
}

func (s *stubImages) ParseReceipt(context.Context, []byte, string) (*services.ParsedRecord, error) {
	return s.parsed, nil
}

func newTestWorkflow(t *testing.T) (*Workflow, *fakeBooks, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)}
	books := newFakeBooks(clock)
	logger := embedlog.NewLogger(false, true)

	w := New(books,
		services.NewMockExtractor(logger),
		&stubImages{},
		services.FixedRates{"JPY/TWD": decimal.RequireFromString("0.21")},
		services.NewMockTranscriber(logger),
		Config{PublicURL: "https://bot.example.com"},
		logger,
	)
	w.now = clock.Now

	return w, books, clock
}

func choiceAction(t *testing.T, reply Reply, label string) string {
	t.Helper()
	for _, c := range reply.Choices {
		if strings.Contains(c.Label, label) {
			return c.Action
		}
	}
	t.Fatalf("no choice %q in %v", label, reply.Choices)
	return ""
}

func TestStageConfirmLifecycle(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "請確認")
	assert.Contains(t, reply.Text, "午餐")
	assert.Contains(t, reply.Text, "120.00 TWD")
	require.Len(t, books.pendings, 1)

	confirm := choiceAction(t, reply, "確認")
	reply, err = w.HandleAction(ctx, userSrc, confirm)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "已記錄")
	require.Len(t, books.records, 1)
	assert.Empty(t, books.pendings)

	rec := books.records[0]
	assert.Equal(t, "午餐", rec.Item)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(120)))
	require.NotNil(t, rec.SpentDate, "dateless records land on the confirmation day")
	assert.Equal(t, "2025-08-15", rec.SpentDate.Format(time.DateOnly))

	// a second tap of the same button must not duplicate the record
	reply, err = w.HandleAction(ctx, userSrc, confirm)
	require.NoError(t, err)
	assert.Equal(t, msgAlreadyHandled, reply.Text)
	assert.Len(t, books.records, 1)
}

func TestCancelDiscards(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "咖啡 85")
	require.NoError(t, err)

	cancel := choiceAction(t, reply, "取消")
	confirm := choiceAction(t, reply, "確認")

	reply, err = w.HandleAction(ctx, userSrc, cancel)
	require.NoError(t, err)
	assert.Equal(t, msgCancelled, reply.Text)
	assert.Empty(t, books.pendings)

	// confirm after cancel finds nothing
	reply, err = w.HandleAction(ctx, userSrc, confirm)
	require.NoError(t, err)
	assert.Equal(t, msgAlreadyHandled, reply.Text)
	assert.Empty(t, books.records)
}

func TestEditAmountViaText(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)

	reply, err := w.HandleText(ctx, userSrc, "150")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "150.00 TWD")
	require.Len(t, books.pendings, 1, "edit must not stage a second record")

	confirm := choiceAction(t, reply, "確認")
	_, err = w.HandleAction(ctx, userSrc, confirm)
	require.NoError(t, err)

	require.Len(t, books.records, 1)
	assert.True(t, books.records[0].Amount.Equal(decimal.NewFromInt(150)))
}

func TestEditDateAndItemViaText(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)

	reply, err := w.HandleText(ctx, userSrc, "昨天")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-08-14")

	reply, err = w.HandleText(ctx, userSrc, "晚餐")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "晚餐")
	assert.Len(t, books.pendings, 1)
}

func TestEditViaQuickChoices(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "咖啡 85")
	require.NoError(t, err)

	edit := choiceAction(t, reply, "修改")
	reply, err = w.HandleAction(ctx, userSrc, edit)
	require.NoError(t, err)

	// pick a new date from the menu
	editDate := choiceAction(t, reply, "改日期")
	reply, err = w.HandleAction(ctx, userSrc, editDate)
	require.NoError(t, err)

	yesterday := choiceAction(t, reply, "昨天")
	reply, err = w.HandleAction(ctx, userSrc, yesterday)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-08-14")

	// and a new category
	edit = choiceAction(t, reply, "修改")
	reply, err = w.HandleAction(ctx, userSrc, edit)
	require.NoError(t, err)

	editCat := choiceAction(t, reply, "改類別")
	reply, err = w.HandleAction(ctx, userSrc, editCat)
	require.NoError(t, err)

	setCat := choiceAction(t, reply, "餐飲")
	reply, err = w.HandleAction(ctx, userSrc, setCat)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "餐飲")

	for _, rec := range books.pendings {
		assert.Equal(t, "餐飲", rec.Category)
	}
}

func TestPendingWindowExpires(t *testing.T) {
	w, books, clock := newTestWorkflow(t)
	ctx := context.Background()

	_, err := w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)

	clock.Advance(ledger.PendingWindow + time.Minute)

	// the expired record is no longer an edit target; a bare number now
	// reaches the fallback, not the amount patch
	reply, err := w.HandleText(ctx, userSrc, "150")
	require.NoError(t, err)
	assert.Equal(t, msgFallback, reply.Text)

	for _, rec := range books.pendings {
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(120)))
	}
}

func TestForeignCurrencyStaging(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "拉麵 1200 JPY")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "1,200.00 JPY")
	assert.Contains(t, reply.Text, "≈ 252.00 TWD")

	confirm := choiceAction(t, reply, "確認")
	_, err = w.HandleAction(ctx, userSrc, confirm)
	require.NoError(t, err)

	require.Len(t, books.records, 1)
	rec := books.records[0]
	require.NotNil(t, rec.AmountHome)
	assert.True(t, rec.AmountHome.Equal(decimal.RequireFromString("252")))
}

func TestHomeCurrencyStagingSetsFx(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := w.HandleText(ctx, userSrc, "晚餐 150")
	require.NoError(t, err)

	require.Len(t, books.pendings, 1)
	for _, rec := range books.pendings {
		require.NotNil(t, rec.FxRate, "home currency records carry fx 1, not nil")
		assert.True(t, rec.FxRate.Equal(decimal.NewFromInt(1)))
		require.NotNil(t, rec.AmountHome)
		assert.Equal(t, "150.00", rec.AmountHome.StringFixed(2))
	}
}

type failingRates struct{}

func (failingRates) Rate(context.Context, string, string, *time.Time) (decimal.Decimal, error) {
	return decimal.Decimal{}, errors.New("fx service down")
}

func TestRateFailureDefaultsToOne(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	w.rates = failingRates{}
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "咖啡 5 USD")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "≈ 5.00 TWD")

	require.Len(t, books.pendings, 1)
	for _, rec := range books.pendings {
		require.NotNil(t, rec.FxRate)
		assert.True(t, rec.FxRate.Equal(decimal.NewFromInt(1)))
		require.NotNil(t, rec.AmountHome)
		assert.Equal(t, "5.00", rec.AmountHome.StringFixed(2))
	}
}

func TestLongItemTruncated(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := w.HandleText(ctx, userSrc, strings.Repeat("超", 90)+" 120")
	require.NoError(t, err)

	require.Len(t, books.pendings, 1)
	for _, rec := range books.pendings {
		assert.Len(t, []rune(rec.Item), 80)
	}
}

func TestRelativeDatePrefix(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "昨天 星巴克 150")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "星巴克")
	assert.Contains(t, reply.Text, "2025-08-14")
}

func TestFallbackHint(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	// chatter with no pending record and no parsable amount
	reply, err := w.HandleText(ctx, userSrc, "你們好呀")
	require.NoError(t, err)
	assert.Equal(t, msgFallback, reply.Text)
	assert.Empty(t, books.pendings)
	assert.Empty(t, books.records)
}

func TestQueryMonthSnapshot(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	for _, line := range []string{"午餐 120", "晚餐 250"} {
		reply, err := w.HandleText(ctx, userSrc, line)
		require.NoError(t, err)
		_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
		require.NoError(t, err)
	}

	reply, err := w.HandleText(ctx, userSrc, "查詢")
	require.NoError(t, err)
	month := choiceAction(t, reply, "本月")

	reply, err = w.HandleAction(ctx, userSrc, month)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-08-01 ~ 2025-08-31")
	assert.Contains(t, reply.Text, "支出：370.00 TWD")
	assert.Contains(t, reply.Text, "records.csv")
}

func TestManualRangeDialog(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "查詢")
	require.NoError(t, err)
	manual := choiceAction(t, reply, "自訂區間")

	reply, err = w.HandleAction(ctx, userSrc, manual)
	require.NoError(t, err)
	assert.Equal(t, msgAskStartDate, reply.Text)

	// bad input re-prompts and keeps the dialog alive
	reply, err = w.HandleText(ctx, userSrc, "不是日期")
	require.NoError(t, err)
	assert.Equal(t, msgBadDate, reply.Text)

	reply, err = w.HandleText(ctx, userSrc, "2025-08-01")
	require.NoError(t, err)
	assert.Equal(t, msgAskEndDate, reply.Text)

	// end before start is rejected
	reply, err = w.HandleText(ctx, userSrc, "2025-07-01")
	require.NoError(t, err)
	assert.Equal(t, msgBadRange, reply.Text)

	reply, err = w.HandleText(ctx, userSrc, "2025-08-10")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-08-01 ~ 2025-08-10")

	// the dialog is consumed: states are gone
	assert.Empty(t, books.states)
}

func TestOneLineRangeQuery(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "查詢 2025-08-01 ~ 2025-08-31")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-08-01 ~ 2025-08-31")
}

func TestExportLink(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "匯出 2025-08-01 ~ 2025-08-31")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "https://bot.example.com/api/ledger/")
	assert.Contains(t, reply.Text, "start=2025-08-01")
	assert.Contains(t, reply.Text, "end=2025-08-31")
}

func TestBudgetFlow(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	// no budget yet
	reply, err := w.HandleText(ctx, userSrc, "預算")
	require.NoError(t, err)
	status := choiceAction(t, reply, "查看預算狀態")

	reply, err = w.HandleAction(ctx, userSrc, status)
	require.NoError(t, err)
	assert.Equal(t, ledger.NoBudgetMessage, reply.Text)

	// set the month budget through the dialog
	reply, err = w.HandleText(ctx, userSrc, "預算")
	require.NoError(t, err)
	month := choiceAction(t, reply, "設定本月預算")

	reply, err = w.HandleAction(ctx, userSrc, month)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "本月總預算")

	reply, err = w.HandleText(ctx, userSrc, "10000")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "已設定預算")
	assert.Contains(t, reply.Text, "10,000.00 TWD")

	// spend under budget: the confirm reply carries a balance notice
	reply, err = w.HandleText(ctx, userSrc, "午餐 9000")
	require.NoError(t, err)
	reply, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)
	require.Len(t, reply.Extra, 1)
	assert.Contains(t, reply.Extra[0], "還剩 1,000.00")

	// and over budget: the notice flips to an overrun warning
	reply, err = w.HandleText(ctx, userSrc, "家電 2000")
	require.NoError(t, err)
	reply, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)
	require.Len(t, reply.Extra, 1)
	assert.Contains(t, reply.Extra[0], "已超過 1,000.00")
}

func TestBudgetSameRangeOverwrites(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	setMonthBudget := func(amount string) {
		reply, err := w.HandleText(ctx, userSrc, "預算")
		require.NoError(t, err)
		_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "設定本月預算"))
		require.NoError(t, err)
		_, err = w.HandleText(ctx, userSrc, amount)
		require.NoError(t, err)
	}

	setMonthBudget("10000")
	setMonthBudget("20000")

	// same (ledger, start, end): the second set replaces the first
	require.Len(t, books.budgets, 1)
	assert.True(t, books.budgets[0].TotalAmount.Equal(decimal.NewFromInt(20000)))
}

func TestQueryRangeBoundariesInclusive(t *testing.T) {
	w, _, clock := newTestWorkflow(t)
	ctx := context.Background()

	confirmOn := func(line, date string) {
		_, err := w.HandleText(ctx, userSrc, line)
		require.NoError(t, err)
		reply, err := w.HandleText(ctx, userSrc, date)
		require.NoError(t, err)
		_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
		require.NoError(t, err)
	}

	start := clock.DaysAgo(14).Format(time.DateOnly) // 2025-08-01
	end := clock.DaysAgo(0).Format(time.DateOnly)    // 2025-08-15

	confirmOn("早餐 100", start)
	confirmOn("午餐 200", end)
	confirmOn("宵夜 300", clock.DaysAgo(15).Format(time.DateOnly)) // day before the range

	reply, err := w.HandleText(ctx, userSrc, fmt.Sprintf("查詢 %s ~ %s", start, end))
	require.NoError(t, err)

	// both boundary days count, the day outside does not
	assert.Contains(t, reply.Text, "支出：300.00 TWD")
	assert.Contains(t, reply.Text, "早餐")
	assert.Contains(t, reply.Text, "午餐")
	assert.NotContains(t, reply.Text, "宵夜")
}

func TestDialogStatePopsOnce(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "查詢")
	require.NoError(t, err)
	_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "自訂區間"))
	require.NoError(t, err)

	st, err := books.PopLatestState(ctx, userSrc.ContextType, userSrc.ContextID, userSrc.UserID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, stepAwaitStart, st.Step)

	// consumed: a second pop returns nothing
	st, err = books.PopLatestState(ctx, userSrc.ContextType, userSrc.ContextID, userSrc.UserID)
	require.NoError(t, err)
	assert.Nil(t, st)

	// and a date arriving now is plain text, not dialog input
	reply, err = w.HandleText(ctx, userSrc, "2025-08-01")
	require.NoError(t, err)
	assert.Equal(t, msgFallback, reply.Text)
}

func TestIncomeSkipsBudgetAlert(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "預算")
	require.NoError(t, err)
	_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "設定本月預算"))
	require.NoError(t, err)
	_, err = w.HandleText(ctx, userSrc, "10000")
	require.NoError(t, err)

	reply, err = w.HandleText(ctx, userSrc, "薪水 50000")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "收入")

	reply, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)
	assert.Empty(t, reply.Extra, "income must not trigger budget notices")
}

func TestGroupLedgersAreIsolated(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	groupSrc := Source{ContextType: db.ContextGroup, ContextID: "G1", UserID: "U100"}

	reply, err := w.HandleText(ctx, groupSrc, "聚餐 600")
	require.NoError(t, err)
	_, err = w.HandleAction(ctx, groupSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)

	reply, err = w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)
	_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)

	require.Len(t, books.records, 2)
	assert.NotEqual(t, books.records[0].LedgerID, books.records[1].LedgerID)
	assert.Equal(t, books.records[0].UserID, books.records[1].UserID)
}

func TestClearUserRecords(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "午餐 120")
	require.NoError(t, err)
	_, err = w.HandleAction(ctx, userSrc, choiceAction(t, reply, "確認"))
	require.NoError(t, err)

	reply, err = w.HandleText(ctx, userSrc, "清空")
	require.NoError(t, err)
	clear := choiceAction(t, reply, "確定清空")

	reply, err = w.HandleAction(ctx, userSrc, clear)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "共刪除 1 筆")
	assert.Empty(t, books.records)
}

func TestAudioMessage(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleAudio(ctx, userSrc, "/tmp/voice.m4a")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "我聽到")
	assert.Contains(t, reply.Text, "請確認")
	assert.Len(t, books.pendings, 1)
}

func TestImageMessage(t *testing.T) {
	w, books, _ := newTestWorkflow(t)
	ctx := context.Background()

	w.images = &stubImages{parsed: &services.ParsedRecord{
		Item:     "全聯",
		Amount:   decimal.NewFromInt(430),
		Currency: "TWD",
		Kind:     services.KindExpense,
		Category: "購物",
	}}

	reply, err := w.HandleImage(ctx, userSrc, []byte("jpeg"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "全聯")
	assert.Len(t, books.pendings, 1)

	// unreadable receipts get a hint, not a staged record
	w.images = &stubImages{}
	reply, err = w.HandleImage(ctx, userSrc, []byte("jpeg"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "收據看不清楚")
	assert.Len(t, books.pendings, 1)
}

func TestFullWidthDigits(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "早餐　６５")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "65.00 TWD")
}

func TestHelpAndMenus(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	reply, err := w.HandleText(ctx, userSrc, "說明")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "記帳小幫手")
	assert.NotEmpty(t, reply.Choices)

	query := choiceAction(t, reply, "查詢")
	reply, err = w.HandleAction(ctx, userSrc, query)
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Choices)
}
