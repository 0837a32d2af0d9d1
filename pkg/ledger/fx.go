package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// FxClient resolves conversion rates from public rate APIs with an
// in-memory cache keyed by pair and date.
type FxClient struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]decimal.Decimal
}

func NewFxClient() *FxClient {
	return &FxClient{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]decimal.Decimal),
	}
}

// Rate implements services.RateProvider. Historical rates are requested when
// a date is given, latest otherwise. A frankfurter.app lookup is tried first,
// then open.er-api.com.
func (f *FxClient) Rate(ctx context.Context, base, quote string, on *time.Time) (decimal.Decimal, error) {
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	day := "latest"
	if on != nil {
		day = on.Format(time.DateOnly)
	}
	key := base + "/" + quote + "@" + day

	f.mu.Lock()
	rate, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		return rate, nil
	}

	rate, err := f.frankfurter(ctx, base, quote, day)
	if err != nil {
		rate, err = f.erAPI(ctx, base, quote)
	}
	if err != nil {
		return decimal.Zero, err
	}

	f.mu.Lock()
	f.cache[key] = rate
	f.mu.Unlock()

	return rate, nil
}

func (f *FxClient) frankfurter(ctx context.Context, base, quote, day string) (decimal.Decimal, error) {
	url := fmt.Sprintf("https://api.frankfurter.app/%s?from=%s&to=%s", day, base, quote)

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := f.getJSON(ctx, url, &payload); err != nil {
		return decimal.Zero, err
	}

	rate, ok := payload.Rates[quote]
	if !ok || rate <= 0 {
		return decimal.Zero, fmt.Errorf("no rate for %s/%s", base, quote)
	}

	return decimal.NewFromFloat(rate), nil
}

// er-api only serves latest rates, good enough as a fallback
func (f *FxClient) erAPI(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	url := "https://open.er-api.com/v6/latest/" + base

	var payload struct {
		Result string             `json:"result"`
		Rates  map[string]float64 `json:"rates"`
	}
	if err := f.getJSON(ctx, url, &payload); err != nil {
		return decimal.Zero, err
	}

	rate, ok := payload.Rates[quote]
	if payload.Result != "success" || !ok || rate <= 0 {
		return decimal.Zero, fmt.Errorf("no rate for %s/%s", base, quote)
	}

	return decimal.NewFromFloat(rate), nil
}

func (f *FxClient) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate api error: %s", string(body))
	}

	return json.Unmarshal(body, dst)
}
