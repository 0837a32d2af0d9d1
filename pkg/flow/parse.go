package flow

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
	"github.com/s35indy-pixel/Finance-Bot/pkg/services"

	"github.com/shopspring/decimal"
)

var (
	mentionRe    = regexp.MustCompile(`@\S+\s*`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	pureNumberRe = regexp.MustCompile(`^[0-9]+(?:\.[0-9]{1,2})?$`)
	itemAmountRe = regexp.MustCompile(`^(.+?)\s+([0-9]+(?:\.[0-9]{1,2})?)(?:\s*([A-Za-z]{3}))?$`)

	isoDateRe   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	shortDateRe = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})$`)
	dateRangeRe = regexp.MustCompile(`^(\S+)\s*[~～]\s*(\S+)$`)
)

// normalizeText cleans an inbound message: full-width digits and punctuation
// to ASCII, bot mentions stripped, whitespace collapsed.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		case r == '．':
			b.WriteRune('.')
		case r == '　':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	out := mentionRe.ReplaceAllString(b.String(), "")
	out = whitespaceRe.ReplaceAllString(out, " ")

	return strings.TrimSpace(out)
}

func isPureNumber(s string) bool { return pureNumberRe.MatchString(s) }

func containsDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// looksLikeRecord reports whether the text matches the plain
// "item amount [CCY]" shape, with an optional relative-date prefix.
func looksLikeRecord(s string) bool {
	s, _ = stripRelativeDate(s, time.Now())
	return itemAmountRe.MatchString(s) && !isPureNumber(s)
}

var relativeDays = map[string]int{
	"今天": 0, "今日": 0,
	"昨天": -1, "昨日": -1,
	"前天": -2,
}

func stripRelativeDate(s string, now time.Time) (rest string, date *time.Time) {
	for prefix, offset := range relativeDays {
		if strings.HasPrefix(s, prefix) {
			d := ledger.DateOnly(now).AddDate(0, 0, offset)
			return strings.TrimSpace(strings.TrimPrefix(s, prefix)), &d
		}
	}
	return s, nil
}

var categoryKeywords = []struct {
	keywords []string
	category string
}{
	{[]string{"早餐", "午餐", "晚餐", "宵夜", "咖啡", "飲料", "拉麵", "便當"}, "餐飲"},
	{[]string{"捷運", "公車", "計程車", "高鐵", "火車", "加油", "停車"}, "交通"},
	{[]string{"電影", "唱歌", "遊戲", "門票"}, "娛樂"},
	{[]string{"房租", "水費", "電費", "瓦斯"}, "居家"},
	{[]string{"掛號", "藥", "診所", "醫院"}, "醫療"},
}

var incomeKeywords = []string{"薪水", "薪資", "獎金", "退款", "收入"}

// basicParse is the offline fallback for "item amount [CCY]" messages when
// the extractor yields nothing.
func basicParse(text string, now time.Time) (*services.ParsedRecord, bool) {
	rest, date := stripRelativeDate(text, now)

	matches := itemAmountRe.FindStringSubmatch(rest)
	if matches == nil || isPureNumber(rest) {
		return nil, false
	}

	amount, err := decimal.NewFromString(matches[2])
	if err != nil || !amount.IsPositive() {
		return nil, false
	}

	item := strings.TrimSpace(matches[1])

	parsed := &services.ParsedRecord{
		Item:     item,
		Amount:   amount,
		Currency: strings.ToUpper(matches[3]),
		Date:     date,
		Kind:     services.KindExpense,
		Category: services.CategoryOther,
	}

	for _, kw := range incomeKeywords {
		if strings.Contains(item, kw) {
			parsed.Kind = services.KindIncome
			parsed.Category = services.CategorySalary
			return parsed, true
		}
	}

	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(item, kw) {
				parsed.Category = group.category
				return parsed, true
			}
		}
	}

	return parsed, true
}

var weekdayNames = map[string]time.Weekday{
	"一": time.Monday, "二": time.Tuesday, "三": time.Wednesday,
	"四": time.Thursday, "五": time.Friday, "六": time.Saturday,
	"日": time.Sunday, "天": time.Sunday,
}

// parseDate understands relative words, 週X forms and numeric dates.
func parseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	today := ledger.DateOnly(now)

	if offset, ok := relativeDays[s]; ok {
		return today.AddDate(0, 0, offset), true
	}

	for _, prefix := range []string{"週", "星期", "禮拜"} {
		if name, ok := strings.CutPrefix(s, prefix); ok {
			wd, ok := weekdayNames[name]
			if !ok {
				return time.Time{}, false
			}
			// most recent such weekday, today included
			diff := (int(today.Weekday()) - int(wd) + 7) % 7
			return today.AddDate(0, 0, -diff), true
		}
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		d, err := time.Parse(time.DateOnly, m[1]+"-"+pad2(m[2])+"-"+pad2(m[3]))
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}

	if m := shortDateRe.FindStringSubmatch(s); m != nil {
		d, err := time.Parse(time.DateOnly, now.Format("2006")+"-"+pad2(m[1])+"-"+pad2(m[2]))
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}

	return time.Time{}, false
}

// parseDateRange handles "start ~ end" inputs.
func parseDateRange(s string, now time.Time) (start, end time.Time, ok bool) {
	m := dateRangeRe.FindStringSubmatch(s)
	if m == nil {
		return start, end, false
	}

	start, ok = parseDate(m[1], now)
	if !ok {
		return start, end, false
	}
	end, ok = parseDate(m[2], now)
	if !ok || end.Before(start) {
		return start, end, false
	}

	return start, end, true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
