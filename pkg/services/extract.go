package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmkteam/embedlog"
)

// Record kinds returned by extraction.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Default categories when classification fails.
const (
	CategoryOther  = "其他"
	CategorySalary = "薪資"
)

// ParsedRecord is the structured result of external extraction from free
// text, a transcript or a receipt image. Any field may be missing; the
// workflow fills defaults.
type ParsedRecord struct {
	Item     string
	Amount   decimal.Decimal
	Currency string     // ISO 4217, empty when not detected
	Date     *time.Time // nil when the text carried no date
	Kind     string     // KindIncome or KindExpense
	Category string
}

// Extractor turns free text into a candidate record.
type Extractor interface {
	ParseRecord(ctx context.Context, text, defaultCurrency string) (*ParsedRecord, error)
}

// ImageExtractor turns a receipt photo into a candidate record.
type ImageExtractor interface {
	ParseReceipt(ctx context.Context, image []byte, defaultCurrency string) (*ParsedRecord, error)
}

// MockExtractor is a pattern-matching stand-in for the LLM extractor.
type MockExtractor struct {
	logger embedlog.Logger
}

// NewMockExtractor creates a new mock extractor.
func NewMockExtractor(logger embedlog.Logger) *MockExtractor {
	return &MockExtractor{logger: logger}
}

var (
	mockLineRe   = regexp.MustCompile(`^(.+?)\s+([0-9]+(?:\.[0-9]{1,2})?)(?:\s+([A-Za-z]{3}))?$`)
	mockIncomeKw = []string{"薪資", "收入", "獎金", "退款", "報銷", "salary", "bonus"}
)

// ParseRecord mocks extraction with a simple "item amount [CCY]" pattern.
func (m *MockExtractor) ParseRecord(ctx context.Context, text, defaultCurrency string) (*ParsedRecord, error) {
	m.logger.Print(ctx, "mock extract", "text", text)

	matches := mockLineRe.FindStringSubmatch(strings.TrimSpace(text))
	if matches == nil {
		return nil, nil
	}

	amount, err := decimal.NewFromString(matches[2])
	if err != nil {
		return nil, nil
	}

	ccy := strings.ToUpper(matches[3])
	if ccy == "" {
		ccy = defaultCurrency
	}

	parsed := &ParsedRecord{
		Item:     strings.TrimSpace(matches[1]),
		Amount:   amount,
		Currency: ccy,
		Kind:     KindExpense,
		Category: CategoryOther,
	}

	lower := strings.ToLower(text)
	for _, kw := range mockIncomeKw {
		if strings.Contains(lower, kw) {
			parsed.Kind = KindIncome
			parsed.Category = CategorySalary
			break
		}
	}

	return parsed, nil
}

// ParseReceipt mocks receipt recognition. Images are never readable without a
// real vision model, so this always reports no record found.
func (m *MockExtractor) ParseReceipt(ctx context.Context, image []byte, defaultCurrency string) (*ParsedRecord, error) {
	m.logger.Print(ctx, "mock receipt parse", "bytes", len(image))
	return nil, nil
}
