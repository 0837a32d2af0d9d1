package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC) // a Friday

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"  早餐 65 ", "早餐 65"},
		{"早餐　６５", "早餐 65"},
		{"晚餐１２０．５", "晚餐120.5"},
		{"@bot 午餐 120", "午餐 120"},
		{"午餐\n120", "午餐 120"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.out, normalizeText(tt.in), "input %q", tt.in)
	}
}

func TestBasicParse(t *testing.T) {
	parsed, ok := basicParse("早餐 65", parseNow)
	require.True(t, ok)
	assert.Equal(t, "早餐", parsed.Item)
	assert.Equal(t, "65", parsed.Amount.String())
	assert.Equal(t, "餐飲", parsed.Category)
	assert.Nil(t, parsed.Date)

	parsed, ok = basicParse("昨天 計程車 250", parseNow)
	require.True(t, ok)
	assert.Equal(t, "計程車", parsed.Item)
	assert.Equal(t, "交通", parsed.Category)
	require.NotNil(t, parsed.Date)
	assert.Equal(t, "2025-08-14", parsed.Date.Format(time.DateOnly))

	parsed, ok = basicParse("拉麵 1200 JPY", parseNow)
	require.True(t, ok)
	assert.Equal(t, "JPY", parsed.Currency)

	parsed, ok = basicParse("薪水 50000", parseNow)
	require.True(t, ok)
	assert.Equal(t, "income", parsed.Kind)
	assert.Equal(t, "薪資", parsed.Category)

	for _, bad := range []string{"65", "早餐", "早餐 -65", ""} {
		_, ok := basicParse(bad, parseNow)
		assert.False(t, ok, "input %q", bad)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"今天", "2025-08-15"},
		{"昨天", "2025-08-14"},
		{"前天", "2025-08-13"},
		{"2025-08-01", "2025-08-01"},
		{"2025/8/1", "2025-08-01"},
		{"2025.08.01", "2025-08-01"},
		{"8/1", "2025-08-01"},
		{"12/31", "2025-12-31"},
		{"週五", "2025-08-15"}, // today is Friday
		{"週三", "2025-08-13"},
		{"星期日", "2025-08-10"},
		{"禮拜一", "2025-08-11"},
	}

	for _, tt := range tests {
		got, ok := parseDate(tt.in, parseNow)
		require.True(t, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got.Format(time.DateOnly), "input %q", tt.in)
	}

	for _, bad := range []string{"", "abc", "2025-13-40", "週八", "13/45"} {
		_, ok := parseDate(bad, parseNow)
		assert.False(t, ok, "input %q", bad)
	}
}

func TestParseDateRange(t *testing.T) {
	start, end, ok := parseDateRange("2025-08-01 ~ 2025-08-31", parseNow)
	require.True(t, ok)
	assert.Equal(t, "2025-08-01", start.Format(time.DateOnly))
	assert.Equal(t, "2025-08-31", end.Format(time.DateOnly))

	// full-width tilde and relative endpoints
	start, end, ok = parseDateRange("前天～今天", parseNow)
	require.True(t, ok)
	assert.Equal(t, "2025-08-13", start.Format(time.DateOnly))
	assert.Equal(t, "2025-08-15", end.Format(time.DateOnly))

	_, _, ok = parseDateRange("2025-08-31 ~ 2025-08-01", parseNow)
	assert.False(t, ok, "reversed range must be rejected")

	_, _, ok = parseDateRange("2025-08-01", parseNow)
	assert.False(t, ok)
}

func TestLooksLikeRecord(t *testing.T) {
	for _, good := range []string{"早餐 65", "昨天 星巴克 150", "拉麵 1200 JPY", "加油 1000.50"} {
		assert.True(t, looksLikeRecord(good), "input %q", good)
	}
	for _, bad := range []string{"65", "查詢", "今天", "早餐"} {
		assert.False(t, looksLikeRecord(bad), "input %q", bad)
	}
}
