// Package gateway предоставляет клиент внешнего платёжного процессора.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL — адрес API платёжного процессора по умолчанию.
const DefaultBaseURL = "https://api.stripe.com"

// Client инкапсулирует HTTP-взаимодействие с платёжным процессором.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент платёжного процессора по указанному адресу.
// Пустой адрес заменяется адресом по умолчанию.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PaymentIntent описывает созданное процессором платёжное намерение.
// ClientSecret — непрозрачный токен продолжения для клиентской стороны.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// IntentRequest описывает параметры создания платёжного намерения.
// Сумма задаётся в минимальных единицах валюты.
type IntentRequest struct {
	AmountCents  int64
	Currency     string
	ReceiptEmail string
	CheckoutID   string
	UpsellCount  int
}

// APIError описывает отказ платёжного процессора с его собственным сообщением.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error: %s", e.Message)
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// CreatePaymentIntent создаёт платёжное намерение на стороне процессора.
// Никаких локальных записей при этом не выполняется: заказ создаётся позже,
// при подтверждении платежа.
func (c *Client) CreatePaymentIntent(ctx context.Context, secretKey string, in IntentRequest) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountCents, 10))
	form.Set("currency", strings.ToLower(in.Currency))
	if in.ReceiptEmail != "" {
		form.Set("receipt_email", in.ReceiptEmail)
	}
	form.Set("metadata[checkout_id]", in.CheckoutID)
	form.Set("metadata[upsell_count]", strconv.Itoa(in.UpsellCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var intent PaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &intent, nil
}

// VerifyKey проверяет секретный ключ запросом баланса аккаунта.
func (c *Client) VerifyKey(ctx context.Context, secretKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/balance", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %d", resp.StatusCode),
		}
	}

	body.Error.StatusCode = resp.StatusCode
	return &body.Error
}
