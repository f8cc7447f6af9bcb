package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/gateway"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/pricing"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/repository"
)

type stubRepo struct {
	checkouts map[string]model.Checkout
	settings  model.Settings

	createdOrders []model.Order
	intentOrders  map[string]model.Order
	statusUpdates map[string]model.OrderStatus

	orders    []model.Order
	ordersErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		checkouts:     map[string]model.Checkout{},
		settings:      model.DefaultSettings(),
		intentOrders:  map[string]model.Order{},
		statusUpdates: map[string]model.OrderStatus{},
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) ListCheckouts(ctx context.Context) ([]model.Checkout, error) {
	var out []model.Checkout
	for _, c := range s.checkouts {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubRepo) GetCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	c, ok := s.checkouts[id]
	if !ok {
		return nil, repository.ErrCheckoutNotFound
	}
	return &c, nil
}

func (s *stubRepo) UpsertCheckout(ctx context.Context, c model.Checkout) error {
	s.checkouts[c.ID] = c
	return nil
}

func (s *stubRepo) DeleteCheckout(ctx context.Context, id string) error {
	delete(s.checkouts, id)
	return nil
}

func (s *stubRepo) GetSettings(ctx context.Context) (*model.Settings, error) {
	settings := s.settings
	return &settings, nil
}

func (s *stubRepo) UpdateSettings(ctx context.Context, settings model.Settings) error {
	s.settings = settings
	return nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o model.Order) error {
	s.createdOrders = append(s.createdOrders, o)
	return nil
}

func (s *stubRepo) CreateOrderForIntent(ctx context.Context, o model.Order) (bool, error) {
	if _, ok := s.intentOrders[o.IntentID]; ok {
		return false, nil
	}
	s.intentOrders[o.IntentID] = o
	return true, nil
}

func (s *stubRepo) UpdateOrderStatusByIntent(ctx context.Context, intentID string, status model.OrderStatus) error {
	if _, ok := s.intentOrders[intentID]; !ok {
		return repository.ErrOrderNotFound
	}
	s.statusUpdates[intentID] = status
	return nil
}

func (s *stubRepo) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCheckout() model.Checkout {
	return model.Checkout{
		ID:       "c1",
		Enabled:  true,
		Products: []model.Product{{ID: "p1", Price: dec("10")}},
		Upsells: []model.Upsell{
			{ID: "a", Enabled: true, Price: dec("5")},
		},
	}
}

func TestUpsertCheckout_EmptyID(t *testing.T) {
	svc := NewService(newStubRepo(), gateway.NewClient(""))

	err := svc.UpsertCheckout(context.Background(), model.Checkout{})
	if !errors.Is(err, ErrEmptyCheckoutID) {
		t.Fatalf("err = %v, want ErrEmptyCheckoutID", err)
	}
}

func TestUpdateSettings_CurrencyValidation(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, gateway.NewClient(""))

	err := svc.UpdateSettings(context.Background(), model.Settings{Currency: "DOLLARS"})
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}

	if err := svc.UpdateSettings(context.Background(), model.Settings{Currency: "eur"}); err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}
	if repo.settings.Currency != "EUR" {
		t.Fatalf("currency = %q, want normalized EUR", repo.settings.Currency)
	}
}

func TestPublicConfig_HidesSecretKey(t *testing.T) {
	repo := newStubRepo()
	repo.checkouts["c1"] = testCheckout()
	repo.settings.Gateway = model.GatewaySettings{
		Enabled:        true,
		SecretKey:      "sk_live_secret",
		PublishableKey: "pk_live_public",
	}

	svc := NewService(repo, gateway.NewClient(""))

	cfg, err := svc.PublicConfig(context.Background(), "c1")
	if err != nil {
		t.Fatalf("PublicConfig error: %v", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "sk_live_secret") {
		t.Fatalf("public config leaks the secret key: %s", data)
	}
	if cfg.Gateway.PublishableKey != "pk_live_public" {
		t.Fatalf("publishable key = %q", cfg.Gateway.PublishableKey)
	}
}

func TestPublicConfig_CheckoutNotFound(t *testing.T) {
	svc := NewService(newStubRepo(), gateway.NewClient(""))

	_, err := svc.PublicConfig(context.Background(), "missing")
	if !errors.Is(err, repository.ErrCheckoutNotFound) {
		t.Fatalf("err = %v, want ErrCheckoutNotFound", err)
	}
}

func TestCreatePaymentIntent_GatewayNotConfigured(t *testing.T) {
	repo := newStubRepo()
	repo.checkouts["c1"] = testCheckout()

	svc := NewService(repo, gateway.NewClient(""))

	_, err := svc.CreatePaymentIntent(context.Background(), "c1", nil, "")
	if !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("err = %v, want ErrGatewayNotConfigured", err)
	}
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	var gotAmount, gotCurrency, gotUpsells string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotAmount = r.PostForm.Get("amount")
		gotCurrency = r.PostForm.Get("currency")
		gotUpsells = r.PostForm.Get("metadata[upsell_count]")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret","amount":1500,"currency":"usd","status":"requires_payment_method"}`))
	}))
	defer ts.Close()

	repo := newStubRepo()
	repo.checkouts["c1"] = testCheckout()
	repo.settings.Gateway = model.GatewaySettings{Enabled: true, SecretKey: "sk_test_1"}

	svc := NewService(repo, gateway.NewClient(ts.URL))

	intent, err := svc.CreatePaymentIntent(context.Background(), "c1", []string{"a"}, "buyer@example.com")
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}
	if intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("client secret = %q", intent.ClientSecret)
	}
	if gotAmount != "1500" {
		t.Fatalf("amount = %q, want 1500", gotAmount)
	}
	if gotCurrency != "usd" {
		t.Fatalf("currency = %q, want usd", gotCurrency)
	}
	if gotUpsells != "1" {
		t.Fatalf("upsell count = %q, want 1", gotUpsells)
	}

	if len(repo.createdOrders) != 0 {
		t.Fatalf("gateway path must not create local orders")
	}
}

func TestCreatePaymentIntent_CheckoutNotFound(t *testing.T) {
	repo := newStubRepo()
	repo.settings.Gateway = model.GatewaySettings{Enabled: true, SecretKey: "sk_test_1"}

	svc := NewService(repo, gateway.NewClient(""))

	_, err := svc.CreatePaymentIntent(context.Background(), "missing", nil, "")
	if !errors.Is(err, repository.ErrCheckoutNotFound) {
		t.Fatalf("err = %v, want ErrCheckoutNotFound", err)
	}
}

func TestCreatePaymentIntent_EmptyProducts(t *testing.T) {
	repo := newStubRepo()
	repo.settings.Gateway = model.GatewaySettings{Enabled: true, SecretKey: "sk_test_1"}
	repo.checkouts["c1"] = model.Checkout{
		ID:      "c1",
		Upsells: []model.Upsell{{ID: "a", Enabled: true, Price: dec("5")}},
	}

	svc := NewService(repo, gateway.NewClient(""))

	_, err := svc.CreatePaymentIntent(context.Background(), "c1", []string{"a"}, "")
	if !errors.Is(err, pricing.ErrNoProducts) {
		t.Fatalf("err = %v, want ErrNoProducts", err)
	}
}

func TestToCents_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		total string
		want  int64
	}{
		{total: "15", want: 1500},
		{total: "10.005", want: 1001},
		{total: "10.004", want: 1000},
		{total: "0.015", want: 2},
	}

	for _, tt := range tests {
		if got := toCents(dec(tt.total)); got != tt.want {
			t.Fatalf("toCents(%s) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestCreateManualOrder(t *testing.T) {
	repo := newStubRepo()
	repo.checkouts["c1"] = testCheckout()

	svc := NewService(repo, gateway.NewClient(""))

	order, err := svc.CreateManualOrder(context.Background(), ManualOrderInput{
		CheckoutID:    "c1",
		UpsellIDs:     []string{"a"},
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Country:       "US",
	})
	if err != nil {
		t.Fatalf("CreateManualOrder error: %v", err)
	}

	if order.Amount != "15.00" {
		t.Fatalf("amount = %q, want 15.00", order.Amount)
	}
	if order.AmountCents != 1500 {
		t.Fatalf("amount cents = %d, want 1500", order.AmountCents)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if order.Items != 2 {
		t.Fatalf("items = %d, want 2", order.Items)
	}
	if order.Provider != model.ProviderManual {
		t.Fatalf("provider = %s, want manual", order.Provider)
	}
	if order.ID == "" {
		t.Fatalf("order id must be generated")
	}
	if !order.CreatedAt.Equal(order.CreatedAt.Truncate(24 * time.Hour)) {
		t.Fatalf("created at %v must have day granularity", order.CreatedAt)
	}
	if len(repo.createdOrders) != 1 {
		t.Fatalf("order must be persisted")
	}
}

func TestCreateManualOrder_CheckoutNotFound(t *testing.T) {
	svc := NewService(newStubRepo(), gateway.NewClient(""))

	_, err := svc.CreateManualOrder(context.Background(), ManualOrderInput{CheckoutID: "missing"})
	if !errors.Is(err, repository.ErrCheckoutNotFound) {
		t.Fatalf("err = %v, want ErrCheckoutNotFound", err)
	}
}

func TestVerifyGatewayKey_FormatGate(t *testing.T) {
	svc := NewService(newStubRepo(), gateway.NewClient(""))

	err := svc.VerifyGatewayKey(context.Background(), "pk_live_123")
	if !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("err = %v, want ErrInvalidKeyFormat", err)
	}
}

func TestHandleGatewayEvent_SucceededIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	repo.checkouts["c1"] = testCheckout()

	svc := NewService(repo, gateway.NewClient(""))

	ev := GatewayEvent{
		Type:         EventIntentSucceeded,
		IntentID:     "pi_1",
		AmountCents:  1500,
		Currency:     "usd",
		CheckoutID:   "c1",
		ReceiptEmail: "buyer@example.com",
		UpsellCount:  1,
	}

	if err := svc.HandleGatewayEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleGatewayEvent error: %v", err)
	}
	if err := svc.HandleGatewayEvent(context.Background(), ev); err != nil {
		t.Fatalf("redelivery error: %v", err)
	}

	if len(repo.intentOrders) != 1 {
		t.Fatalf("got %d orders, want 1 after redelivery", len(repo.intentOrders))
	}

	order := repo.intentOrders["pi_1"]
	if order.Amount != "15.00" || order.Status != model.OrderStatusPaid {
		t.Fatalf("order = %+v, want paid 15.00", order)
	}
	if order.Provider != model.ProviderGateway {
		t.Fatalf("provider = %s, want %s", order.Provider, model.ProviderGateway)
	}
	if order.Items != 2 {
		t.Fatalf("items = %d, want products + upsell count", order.Items)
	}
}

func TestHandleGatewayEvent_FailedMarksOrder(t *testing.T) {
	repo := newStubRepo()
	repo.intentOrders["pi_1"] = model.Order{ID: "o1", IntentID: "pi_1"}

	svc := NewService(repo, gateway.NewClient(""))

	err := svc.HandleGatewayEvent(context.Background(), GatewayEvent{
		Type:     EventIntentFailed,
		IntentID: "pi_1",
	})
	if err != nil {
		t.Fatalf("HandleGatewayEvent error: %v", err)
	}
	if repo.statusUpdates["pi_1"] != model.OrderStatusFailed {
		t.Fatalf("status = %s, want failed", repo.statusUpdates["pi_1"])
	}
}

func TestHandleGatewayEvent_FailedForUnknownIntentIgnored(t *testing.T) {
	svc := NewService(newStubRepo(), gateway.NewClient(""))

	err := svc.HandleGatewayEvent(context.Background(), GatewayEvent{
		Type:     EventIntentFailed,
		IntentID: "pi_unknown",
	})
	if err != nil {
		t.Fatalf("unknown intent must be ignored, got %v", err)
	}
}

func TestHandleGatewayEvent_UnknownTypeIgnored(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, gateway.NewClient(""))

	err := svc.HandleGatewayEvent(context.Background(), GatewayEvent{Type: "customer.created"})
	if err != nil {
		t.Fatalf("unknown type must be ignored, got %v", err)
	}
	if len(repo.intentOrders) != 0 || len(repo.statusUpdates) != 0 {
		t.Fatalf("unknown type must not touch the store")
	}
}

func TestAnalyticsReport(t *testing.T) {
	repo := newStubRepo()
	repo.orders = []model.Order{
		{Amount: "10", CustomerEmail: "a@example.com"},
		{Amount: "bad"},
	}

	svc := NewService(repo, gateway.NewClient(""))

	report, err := svc.AnalyticsReport(context.Background())
	if err != nil {
		t.Fatalf("AnalyticsReport error: %v", err)
	}
	if report.KPIs.Revenue != 10 {
		t.Fatalf("revenue = %v, want 10", report.KPIs.Revenue)
	}
	if len(report.Charts.Daily) != 7 {
		t.Fatalf("daily points = %d, want 7", len(report.Charts.Daily))
	}
}
