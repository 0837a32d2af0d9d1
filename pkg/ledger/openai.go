package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/services"

	"github.com/shopspring/decimal"
)

const extractSystemPrompt = `你是記帳解析器。從使用者的一句話中抽出一筆收支，只回傳合法 JSON 物件，不要任何說明或 markdown。

回覆格式：
{
  "item": "<品項名稱>",
  "amount": <正數>,
  "currency": "<ISO 4217 貨幣代碼，未提及時用預設貨幣>",
  "date": "<YYYY-MM-DD 或空字串>",
  "kind": "expense|income",
  "category": "<類別>"
}

規則：
- amount 一律為正數；金額缺失時回傳 {"error": "no_amount"}
- 相對日期（今天、昨天、前天）換算成實際日期；沒提日期時 date 留空字串
- 支出類別從這些挑選：餐飲, 交通, 購物, 娛樂, 居家, 醫療, 教育, 其他
- 收入（薪水、獎金、退款等）kind 填 income，類別從這些挑選：薪資, 獎金, 投資, 退款, 其他收入
- 判斷不了類別時用「其他」

範例：
輸入: "午餐 120"
輸出: {"item": "午餐", "amount": 120, "currency": "TWD", "date": "", "kind": "expense", "category": "餐飲"}

輸入: "昨天 星巴克 150 JPY"
輸出: {"item": "星巴克", "amount": 150, "currency": "JPY", "date": "<昨天的日期>", "kind": "expense", "category": "餐飲"}

輸入: "薪水 50000"
輸出: {"item": "薪水", "amount": 50000, "currency": "TWD", "date": "", "kind": "income", "category": "薪資"}`

const receiptSystemPrompt = `你是收據辨識器。從收據照片中抽出總金額與店名，只回傳合法 JSON 物件：
{"item": "<店名或摘要>", "amount": <總金額>, "currency": "<ISO 4217>", "date": "<YYYY-MM-DD 或空字串>", "kind": "expense", "category": "<類別>"}
辨識不出金額時回傳 {"error": "no_amount"}。`

// OpenAI calls an OpenAI-compatible chat completion endpoint to extract
// records from free text and receipt photos.
type OpenAI struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

func NewOpenAI(baseURL, token, model string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) call(ctx context.Context, messages []chatMessage) (string, error) {
	jsonData, _ := json.Marshal(chatRequest{Model: o.model, Messages: messages})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions",
		bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.token)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error: %s", string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse llm response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", errors.New("no response from llm")
	}

	return result.Choices[0].Message.Content, nil
}

type extractedRecord struct {
	Item     string  `json:"item"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Kind     string  `json:"kind"`
	Category string  `json:"category"`
	Error    string  `json:"error"`
}

// ParseRecord implements services.Extractor.
func (o *OpenAI) ParseRecord(ctx context.Context, text, defaultCurrency string) (*services.ParsedRecord, error) {
	prompt := fmt.Sprintf("預設貨幣：%s\n今天是 %s\n\n使用者輸入：%s",
		defaultCurrency, time.Now().Format(time.DateOnly), text)

	response, err := o.call(ctx, []chatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	return toParsedRecord(response, defaultCurrency)
}

// ParseReceipt implements services.ImageExtractor.
func (o *OpenAI) ParseReceipt(ctx context.Context, image []byte, defaultCurrency string) (*services.ParsedRecord, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	response, err := o.call(ctx, []chatMessage{
		{Role: "system", Content: receiptSystemPrompt},
		{Role: "user", Content: []map[string]any{
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	return toParsedRecord(response, defaultCurrency)
}

func toParsedRecord(response, defaultCurrency string) (*services.ParsedRecord, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.Trim(response, "` \n")

	var rec extractedRecord
	if err := json.Unmarshal([]byte(response), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse llm response: %w, response: %s", err, response)
	}

	if rec.Error != "" || rec.Amount <= 0 {
		return nil, nil
	}

	parsed := &services.ParsedRecord{
		Item:     strings.TrimSpace(rec.Item),
		Amount:   decimal.NewFromFloat(rec.Amount),
		Currency: normalizeCurrency(rec.Currency, defaultCurrency),
		Kind:     rec.Kind,
		Category: rec.Category,
	}
	if parsed.Kind != services.KindIncome {
		parsed.Kind = services.KindExpense
	}
	if parsed.Category == "" {
		parsed.Category = services.CategoryOther
	}

	if rec.Date != "" {
		if d, err := time.Parse(time.DateOnly, rec.Date); err == nil {
			parsed.Date = &d
		}
	}

	return parsed, nil
}

// currency aliases the model tends to emit instead of ISO codes
var currencyAliases = map[string]string{
	"台幣":  "TWD",
	"新台幣": "TWD",
	"NT$": "TWD",
	"日幣":  "JPY",
	"日元":  "JPY",
	"円":   "JPY",
	"美金":  "USD",
	"美元":  "USD",
	"$":   "USD",
	"歐元":  "EUR",
	"€":   "EUR",
	"韓元":  "KRW",
	"人民幣": "CNY",
	"港幣":  "HKD",
	"英鎊":  "GBP",
	"£":   "GBP",
}

func normalizeCurrency(ccy, fallback string) string {
	ccy = strings.TrimSpace(ccy)
	if alias, ok := currencyAliases[ccy]; ok {
		return alias
	}

	ccy = strings.ToUpper(ccy)
	if len(ccy) == 3 {
		return ccy
	}
	return fallback
}
