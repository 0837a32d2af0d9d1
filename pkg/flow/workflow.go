package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
	"github.com/s35indy-pixel/Finance-Bot/pkg/report"
	"github.com/s35indy-pixel/Finance-Bot/pkg/services"

	"github.com/shopspring/decimal"
	"github.com/vmkteam/embedlog"
)

// Config holds workflow settings.
type Config struct {
	// PublicURL is the external base URL for CSV download links.
	PublicURL string
}

// Workflow is the conversational state machine. One instance serves all
// conversations; per-conversation state lives in the database.
type Workflow struct {
	embedlog.Logger
	books  Books
	ext    services.Extractor
	images services.ImageExtractor
	rates  services.RateProvider
	stt    services.Transcriber
	cfg    Config
	now    func() time.Time
}

func New(books Books, ext services.Extractor, images services.ImageExtractor, rates services.RateProvider, stt services.Transcriber, cfg Config, logger embedlog.Logger) *Workflow {
	return &Workflow{
		Logger: logger,
		books:  books,
		ext:    ext,
		images: images,
		rates:  rates,
		stt:    stt,
		cfg:    cfg,
		now:    time.Now,
	}
}

// HandleText routes an inbound text message: commands first, then plain
// "item amount" lines, then edits of a fresh staged record, then dialog
// steps, and finally full extraction.
func (w *Workflow) HandleText(ctx context.Context, src Source, text string) (Reply, error) {
	messagesProcessed.WithLabelValues("text").Inc()

	text = normalizeText(text)
	if text == "" {
		return Reply{}, nil
	}

	userID, ledgerID, err := w.resolve(ctx, src)
	if err != nil {
		return Reply{}, err
	}

	if reply, handled, err := w.handleCommand(ctx, src, ledgerID, text); handled || err != nil {
		return reply, err
	}

	// plain "item amount" lines skip the extractor entirely
	if looksLikeRecord(text) {
		if parsed, ok := basicParse(text, w.now()); ok {
			return w.stage(ctx, userID, ledgerID, parsed)
		}
	}

	if reply, handled, err := w.handleEdit(ctx, userID, ledgerID, text); handled || err != nil {
		return reply, err
	}

	if reply, handled, err := w.handleState(ctx, src, ledgerID, text); handled || err != nil {
		return reply, err
	}

	return w.extractAndStage(ctx, userID, ledgerID, text)
}

// HandleAudio transcribes a voice message and runs it through the text
// pipeline.
func (w *Workflow) HandleAudio(ctx context.Context, src Source, audioFilePath string) (Reply, error) {
	messagesProcessed.WithLabelValues("audio").Inc()

	started := time.Now()
	transcript, err := w.stt.Transcribe(ctx, audioFilePath)
	transcriptionDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		w.Error(ctx, "transcription failed", "err", err)
		errorsTotal.WithLabelValues("transcription").Inc()
		return textReply("語音聽不清楚 🙏 再試一次，或直接打字也可以。"), nil
	}

	transcript = normalizeText(transcript)
	if transcript == "" {
		return textReply("語音聽不清楚 🙏 再試一次，或直接打字也可以。"), nil
	}

	userID, ledgerID, err := w.resolve(ctx, src)
	if err != nil {
		return Reply{}, err
	}

	reply, err := w.extractAndStage(ctx, userID, ledgerID, transcript)
	if err != nil {
		return reply, err
	}

	reply.Text = "我聽到：「" + transcript + "」\n\n" + reply.Text
	return reply, nil
}

// HandleImage extracts a record from a receipt photo and stages it.
func (w *Workflow) HandleImage(ctx context.Context, src Source, image []byte) (Reply, error) {
	messagesProcessed.WithLabelValues("image").Inc()

	started := time.Now()
	parsed, err := w.images.ParseReceipt(ctx, image, w.books.HomeCurrency())
	extractDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		w.Error(ctx, "receipt extraction failed", "err", err)
		errorsTotal.WithLabelValues("extract").Inc()
		parsed = nil
	}
	if parsed == nil {
		return textReply("收據看不清楚 🙏 可以直接輸入「品項 金額」記帳。"), nil
	}

	userID, ledgerID, err := w.resolve(ctx, src)
	if err != nil {
		return Reply{}, err
	}

	return w.stage(ctx, userID, ledgerID, parsed)
}

func (w *Workflow) resolve(ctx context.Context, src Source) (userID, ledgerID int, err error) {
	userID, ledgerID, err = w.books.Resolve(ctx, src.ContextType, src.ContextID, src.effectiveUserID())
	if err != nil {
		w.Error(ctx, "resolve failed", "context_id", src.ContextID, "err", err)
		errorsTotal.WithLabelValues("database").Inc()
	}
	return userID, ledgerID, err
}

func (w *Workflow) handleCommand(ctx context.Context, src Source, ledgerID int, text string) (Reply, bool, error) {
	switch text {
	case "說明", "幫助", "help":
		return textReply(msgHelp, mainChoices()...), true, nil
	case "查詢":
		return textReply("想查哪個期間？", queryMenuChoices()...), true, nil
	case "預算":
		return textReply("預算功能：", budgetMenuChoices()...), true, nil
	case "匯出":
		return textReply("要匯出哪個期間？", exportMenuChoices()...), true, nil
	case "清空":
		return textReply("要清空哪些紀錄？此動作無法復原。", clearChoices(src.ContextType)...), true, nil
	}

	// one-line forms: 查詢 2025-08-01 ~ 2025-08-31
	for _, cmd := range []string{"查詢 ", "匯出 "} {
		rest, ok := strings.CutPrefix(text, cmd)
		if !ok || rest == "" {
			continue
		}
		start, end, ok := parseDateRange(rest, w.now())
		if !ok {
			return textReply(msgBadDate), true, nil
		}
		if cmd == "查詢 " {
			reply, err := w.querySnapshot(ctx, ledgerID, start, end)
			return reply, true, err
		}
		return textReply("CSV 下載：\n"+w.csvURL(ledgerID, start, end), mainChoices()...), true, nil
	}

	return Reply{}, false, nil
}

// handleEdit turns bare numbers, dates and digit-free text into edits of
// the user's freshest staged record.
func (w *Workflow) handleEdit(ctx context.Context, userID, ledgerID int, text string) (Reply, bool, error) {
	pending, err := w.books.LatestPending(ctx, userID, ledgerID)
	if err != nil {
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, true, err
	}
	if pending == nil {
		return Reply{}, false, nil
	}

	var patch ledger.PendingPatch

	if isPureNumber(text) {
		amount, err := decimal.NewFromString(text)
		if err != nil || !amount.IsPositive() {
			return textReply(msgBadAmount), true, nil
		}
		patch.Amount = &amount
		if pending.FxRate != nil {
			home := amount.Mul(*pending.FxRate).Round(2)
			patch.AmountHome = &home
		}
	} else if d, ok := parseDate(text, w.now()); ok {
		patch.SpentDate = &d
	} else if !containsDigit(text) {
		item := text
		patch.Item = &item

		// renaming the item re-classifies it
		if parsed, err := w.ext.ParseRecord(ctx, text, w.books.HomeCurrency()); err == nil && parsed != nil {
			if parsed.Category != "" {
				patch.Category = &parsed.Category
			}
			income := parsed.Kind == services.KindIncome
			patch.IsIncome = &income
		} else {
			other, expense := services.CategoryOther, false
			patch.Category, patch.IsIncome = &other, &expense
		}
	} else {
		return Reply{}, false, nil
	}

	updated, err := w.books.UpdatePending(ctx, pending.ID, patch)
	if err != nil {
		if errors.Is(err, ledger.ErrNonPositiveAmount) {
			return textReply(msgBadAmount), true, nil
		}
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, true, err
	}
	if updated == nil {
		return textReply(msgAlreadyHandled), true, nil
	}

	return textReply(preview(updated, w.books.HomeCurrency()), pendingChoices(updated.ID)...), true, nil
}

// handleState consumes the newest dialog step of this conversation, if any.
func (w *Workflow) handleState(ctx context.Context, src Source, ledgerID int, text string) (Reply, bool, error) {
	st, err := w.books.PopLatestState(ctx, src.ContextType, src.ContextID, src.effectiveUserID())
	if err != nil {
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, true, err
	}
	if st == nil {
		return Reply{}, false, nil
	}

	var payload statePayload
	if st.Payload != "" {
		if err := json.Unmarshal([]byte(st.Payload), &payload); err != nil {
			w.Error(ctx, "bad state payload", "state_id", st.ID, "err", err)
			return Reply{}, false, nil
		}
	}

	switch st.Step {
	case stepAwaitStart:
		if start, end, ok := parseDateRange(text, w.now()); ok {
			reply, err := w.finishRange(ctx, src, ledgerID, st.Kind, start, end)
			return reply, true, err
		}

		start, ok := parseDate(text, w.now())
		if !ok {
			w.push(ctx, src, st.Kind, stepAwaitStart, statePayload{})
			return textReply(msgBadDate), true, nil
		}

		w.push(ctx, src, st.Kind, stepAwaitEnd, statePayload{Start: start.Format(time.DateOnly)})
		return textReply(msgAskEndDate), true, nil

	case stepAwaitEnd:
		start, err := time.Parse(time.DateOnly, payload.Start)
		if err != nil {
			return Reply{}, false, nil
		}

		end, ok := parseDate(text, w.now())
		if !ok {
			w.push(ctx, src, st.Kind, stepAwaitEnd, payload)
			return textReply(msgBadDate), true, nil
		}
		if end.Before(start) {
			w.push(ctx, src, st.Kind, stepAwaitEnd, payload)
			return textReply(msgBadRange), true, nil
		}

		reply, err := w.finishRange(ctx, src, ledgerID, st.Kind, start, end)
		return reply, true, err

	case stepAwaitAmount:
		amount, err := decimal.NewFromString(text)
		if err != nil || !amount.IsPositive() {
			w.push(ctx, src, st.Kind, stepAwaitAmount, payload)
			return textReply(msgBadAmount), true, nil
		}

		start, err1 := time.Parse(time.DateOnly, payload.Start)
		end, err2 := time.Parse(time.DateOnly, payload.End)
		if err1 != nil || err2 != nil {
			return Reply{}, false, nil
		}

		if _, err := w.books.SetBudgetTotal(ctx, ledgerID, start, end, amount, w.books.HomeCurrency(), nil); err != nil {
			errorsTotal.WithLabelValues("database").Inc()
			return Reply{}, true, err
		}

		reply := textReply(fmt.Sprintf("已設定預算 ✅\n%s ~ %s 總額 %s %s",
			payload.Start, payload.End, ledger.FormatMoney(amount), w.books.HomeCurrency()), mainChoices()...)

		if status, err := w.books.BudgetStatus(ctx, ledgerID, w.now()); err == nil && status != "" {
			reply.Extra = append(reply.Extra, status)
		}
		return reply, true, nil
	}

	return Reply{}, false, nil
}

// finishRange completes a date-range dialog for its kind.
func (w *Workflow) finishRange(ctx context.Context, src Source, ledgerID int, kind string, start, end time.Time) (Reply, error) {
	switch kind {
	case kindExport:
		return textReply("CSV 下載：\n"+w.csvURL(ledgerID, start, end), mainChoices()...), nil
	case kindBudget:
		w.push(ctx, src, kindBudget, stepAwaitAmount, statePayload{
			Start: start.Format(time.DateOnly),
			End:   end.Format(time.DateOnly),
		})
		return textReply("請輸入這段期間的總預算金額："), nil
	default:
		return w.querySnapshot(ctx, ledgerID, start, end)
	}
}

func (w *Workflow) extractAndStage(ctx context.Context, userID, ledgerID int, text string) (Reply, error) {
	started := time.Now()
	parsed, err := w.ext.ParseRecord(ctx, text, w.books.HomeCurrency())
	extractDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		w.Error(ctx, "extraction failed", "text", text, "err", err)
		errorsTotal.WithLabelValues("extract").Inc()
		parsed = nil
	}

	if parsed == nil {
		if p, ok := basicParse(text, w.now()); ok {
			parsed = p
		}
	}
	if parsed == nil {
		return textReply(msgFallback, mainChoices()...), nil
	}

	return w.stage(ctx, userID, ledgerID, parsed)
}

// stage validates a parsed record, prices foreign currency, stores the
// pending row and asks for confirmation.
func (w *Workflow) stage(ctx context.Context, userID, ledgerID int, parsed *services.ParsedRecord) (Reply, error) {
	home := w.books.HomeCurrency()

	ccy := parsed.Currency
	if ccy == "" {
		ccy = home
	}

	category := parsed.Category
	if category == "" {
		category = services.CategoryOther
	}

	income := parsed.Kind == services.KindIncome || ledger.IncomeCategories[category]

	// fx is 1 for the home currency and when the provider fails
	rate := decimal.NewFromInt(1)
	if ccy != home {
		r, err := w.rates.Rate(ctx, ccy, home, parsed.Date)
		if err != nil {
			w.Error(ctx, "rate lookup failed", "pair", ccy+"/"+home, "err", err)
			errorsTotal.WithLabelValues("rate").Inc()
		} else if r.IsPositive() {
			rate = r
		}
	}
	amountHome := parsed.Amount.Mul(rate).Round(2)

	fields := ledger.StagedFields{
		Item:         parsed.Item,
		Amount:       parsed.Amount,
		CurrencyCode: ccy,
		FxRate:       &rate,
		AmountHome:   &amountHome,
		SpentDate:    parsed.Date,
		Category:     category,
		IsIncome:     &income,
	}

	rec, err := w.books.StagePending(ctx, userID, ledgerID, fields)
	if err != nil {
		if errors.Is(err, ledger.ErrNonPositiveAmount) {
			return textReply(msgBadAmount), nil
		}
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, err
	}
	recordsTotal.WithLabelValues("staged").Inc()

	return textReply(preview(rec, home), pendingChoices(rec.ID)...), nil
}

func (w *Workflow) querySnapshot(ctx context.Context, ledgerID int, start, end time.Time) (Reply, error) {
	records, err := w.books.RecordsInRange(ctx, ledgerID, start, end)
	if err != nil {
		errorsTotal.WithLabelValues("database").Inc()
		return Reply{}, err
	}

	text := report.RenderText(records, start, end, w.books.HomeCurrency())
	if len(records) > 0 {
		text += "\n\nCSV 下載：\n" + w.csvURL(ledgerID, start, end)
	}

	return textReply(text, mainChoices()...), nil
}

func (w *Workflow) csvURL(ledgerID int, start, end time.Time) string {
	q := url.Values{}
	q.Set("start", start.Format(time.DateOnly))
	q.Set("end", end.Format(time.DateOnly))

	return fmt.Sprintf("%s/api/ledger/%d/records.csv?%s", w.cfg.PublicURL, ledgerID, q.Encode())
}

// push records a dialog step; failures are logged, the dialog degrades to
// the fallback hint on the next message.
func (w *Workflow) push(ctx context.Context, src Source, kind, step string, payload statePayload) {
	raw, _ := json.Marshal(payload)
	if err := w.books.PushState(ctx, src.ContextType, src.ContextID, src.effectiveUserID(), kind, step, string(raw)); err != nil {
		w.Error(ctx, "push state failed", "kind", kind, "step", step, "err", err)
		errorsTotal.WithLabelValues("database").Inc()
	}
}
