// Package service реализует бизнес-логику сервиса Whopify: операции над
// чекаутами и настройками, обе ветки оформления заказа и отчётность.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/analytics"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/gateway"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/pricing"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/repository"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/validation"
)

// ErrGatewayNotConfigured возвращается, когда ветка оплаты через шлюз
// недоступна: шлюз выключен или секретный ключ не задан.
var (
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	// ErrEmptyCheckoutID возвращается при попытке сохранить чекаут без идентификатора.
	ErrEmptyCheckoutID = errors.New("checkout id must not be empty")
	// ErrInvalidCurrency возвращается при попытке сохранить настройки с некорректным кодом валюты.
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrInvalidKeyFormat возвращается, если ключ шлюза не похож на секретный ключ.
	ErrInvalidKeyFormat = errors.New("invalid gateway key format")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Настройки всегда читаются заново: сервис ничего не кэширует между запросами.
type Repository interface {
	Close() error
	ListCheckouts(ctx context.Context) ([]model.Checkout, error)
	GetCheckout(ctx context.Context, id string) (*model.Checkout, error)
	UpsertCheckout(ctx context.Context, c model.Checkout) error
	DeleteCheckout(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
	CreateOrder(ctx context.Context, o model.Order) error
	CreateOrderForIntent(ctx context.Context, o model.Order) (bool, error)
	UpdateOrderStatusByIntent(ctx context.Context, intentID string, status model.OrderStatus) error
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// Service содержит бизнес-логику сервиса Whopify.
type Service struct {
	repo    Repository
	gateway *gateway.Client
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом платёжного шлюза.
func NewService(repo Repository, gw *gateway.Client) *Service {
	return &Service{
		repo:    repo,
		gateway: gw,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListCheckouts возвращает все чекауты магазина.
func (s *Service) ListCheckouts(ctx context.Context) ([]model.Checkout, error) {
	return s.repo.ListCheckouts(ctx)
}

// UpsertCheckout сохраняет чекаут по идентификатору.
func (s *Service) UpsertCheckout(ctx context.Context, c model.Checkout) error {
	if c.ID == "" {
		return ErrEmptyCheckoutID
	}
	return s.repo.UpsertCheckout(ctx, c)
}

// DeleteCheckout удаляет чекаут по идентификатору.
func (s *Service) DeleteCheckout(ctx context.Context, id string) error {
	return s.repo.DeleteCheckout(ctx, id)
}

// GetSettings возвращает настройки магазина.
func (s *Service) GetSettings(ctx context.Context) (*model.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings заменяет настройки магазина. Код валюты нормализуется к
// верхнему регистру; некорректный код отклоняется.
func (s *Service) UpdateSettings(ctx context.Context, settings model.Settings) error {
	if !validation.IsValidCurrency(settings.Currency) {
		return ErrInvalidCurrency
	}
	settings.Currency = strings.ToUpper(settings.Currency)
	return s.repo.UpdateSettings(ctx, settings)
}

// PublicGateway содержит безопасную для витрины часть настроек шлюза.
type PublicGateway struct {
	Enabled        bool   `json:"enabled"`
	PublishableKey string `json:"publishableKey"`
}

// PublicPaymentMethods содержит настройки альтернативных способов оплаты,
// видимые витрине.
type PublicPaymentMethods struct {
	Manual       model.ManualSettings       `json:"manual"`
	BankTransfer model.BankTransferSettings `json:"bankTransfer"`
	Crypto       model.CryptoSettings       `json:"crypto"`
	Messaging    model.MessagingSettings    `json:"messaging"`
}

// PublicConfig содержит безопасное подмножество чекаута и настроек для
// клиентской витрины: секретный ключ шлюза не раскрывается.
type PublicConfig struct {
	Checkout       model.Checkout       `json:"checkout"`
	Currency       string               `json:"currency"`
	Gateway        PublicGateway        `json:"gateway"`
	PaymentMethods PublicPaymentMethods `json:"paymentMethods"`
}

// PublicConfig возвращает публичную конфигурацию витрины для указанного чекаута.
func (s *Service) PublicConfig(ctx context.Context, checkoutID string) (*PublicConfig, error) {
	checkout, err := s.repo.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &PublicConfig{
		Checkout: *checkout,
		Currency: settings.Currency,
		Gateway: PublicGateway{
			Enabled:        settings.Gateway.Enabled,
			PublishableKey: settings.Gateway.PublishableKey,
		},
		PaymentMethods: PublicPaymentMethods{
			Manual:       settings.Manual,
			BankTransfer: settings.BankTransfer,
			Crypto:       settings.Crypto,
			Messaging:    settings.Messaging,
		},
	}, nil
}

// CreatePaymentIntent выполняет ветку оплаты через шлюз: считает итоговую
// сумму чекаута и создаёт платёжное намерение у процессора. Никаких локальных
// записей до успешного ответа процессора не выполняется; заказ появится позже,
// при подтверждении платежа.
func (s *Service) CreatePaymentIntent(ctx context.Context, checkoutID string, upsellIDs []string, receiptEmail string) (*gateway.PaymentIntent, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Gateway.Enabled || settings.Gateway.SecretKey == "" {
		return nil, ErrGatewayNotConfigured
	}

	checkout, err := s.repo.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	total, err := pricing.ComputeTotal(*checkout, settings.Currency, upsellIDs)
	if err != nil {
		return nil, err
	}

	return s.gateway.CreatePaymentIntent(ctx, settings.Gateway.SecretKey, gateway.IntentRequest{
		AmountCents:  toCents(total),
		Currency:     settings.Currency,
		ReceiptEmail: receiptEmail,
		CheckoutID:   checkout.ID,
		UpsellCount:  len(pricing.SelectUpsells(*checkout, upsellIDs)),
	})
}

// ManualOrderInput описывает параметры ручного оформления заказа.
type ManualOrderInput struct {
	CheckoutID    string
	UpsellIDs     []string
	CustomerName  string
	CustomerEmail string
	Country       string
	Source        string
}

// CreateManualOrder выполняет ручную ветку оформления: синхронно создаёт заказ
// в статусе pending без обращения к платёжному шлюзу. Используется для ручного
// выставления счетов, банковского перевода, криптовалюты и заказа через
// мессенджер.
func (s *Service) CreateManualOrder(ctx context.Context, in ManualOrderInput) (*model.Order, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	checkout, err := s.repo.GetCheckout(ctx, in.CheckoutID)
	if err != nil {
		return nil, err
	}

	total, err := pricing.ComputeTotal(*checkout, settings.Currency, in.UpsellIDs)
	if err != nil {
		return nil, err
	}

	selected := pricing.SelectUpsells(*checkout, in.UpsellIDs)

	order := model.Order{
		ID:            uuid.NewString(),
		Amount:        total.StringFixed(2),
		AmountCents:   toCents(total),
		Currency:      settings.Currency,
		Status:        model.OrderStatusPending,
		CreatedAt:     time.Now().UTC().Truncate(24 * time.Hour),
		Items:         len(checkout.Products) + len(selected),
		CheckoutID:    checkout.ID,
		Provider:      model.ProviderManual,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Country:       in.Country,
		Source:        in.Source,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	return &order, nil
}

// VerifyGatewayKey проверяет секретный ключ шлюза: сперва формат, затем
// обращение к процессору.
func (s *Service) VerifyGatewayKey(ctx context.Context, key string) error {
	if !validation.IsValidGatewayKey(key) {
		return ErrInvalidKeyFormat
	}
	return s.gateway.VerifyKey(ctx, key)
}

// GatewayEvent описывает асинхронное уведомление платёжного процессора.
type GatewayEvent struct {
	Type         string
	IntentID     string
	AmountCents  int64
	Currency     string
	CheckoutID   string
	ReceiptEmail string
	UpsellCount  int
}

// Типы уведомлений процессора, которые обрабатывает сервис.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded  = "charge.refunded"
)

// HandleGatewayEvent обрабатывает уведомление процессора. Успешное платёжное
// намерение создаёт оплаченный заказ идемпотентно: повторная доставка того же
// уведомления не приводит к дублю. Неизвестные типы игнорируются.
func (s *Service) HandleGatewayEvent(ctx context.Context, ev GatewayEvent) error {
	switch ev.Type {
	case EventIntentSucceeded:
		return s.settleIntent(ctx, ev)
	case EventIntentFailed:
		return s.markIntent(ctx, ev.IntentID, model.OrderStatusFailed)
	case EventChargeRefunded:
		return s.markIntent(ctx, ev.IntentID, model.OrderStatusRefunded)
	default:
		return nil
	}
}

func (s *Service) settleIntent(ctx context.Context, ev GatewayEvent) error {
	if ev.IntentID == "" {
		return nil
	}

	amount := decimal.New(ev.AmountCents, -2)

	items := ev.UpsellCount
	if checkout, err := s.repo.GetCheckout(ctx, ev.CheckoutID); err == nil {
		items += len(checkout.Products)
	}

	order := model.Order{
		ID:            uuid.NewString(),
		Amount:        amount.StringFixed(2),
		AmountCents:   ev.AmountCents,
		Currency:      strings.ToUpper(ev.Currency),
		Status:        model.OrderStatusPaid,
		CreatedAt:     time.Now().UTC().Truncate(24 * time.Hour),
		Items:         items,
		CheckoutID:    ev.CheckoutID,
		Provider:      model.ProviderGateway,
		IntentID:      ev.IntentID,
		CustomerEmail: ev.ReceiptEmail,
	}

	_, err := s.repo.CreateOrderForIntent(ctx, order)
	return err
}

func (s *Service) markIntent(ctx context.Context, intentID string, status model.OrderStatus) error {
	if intentID == "" {
		return nil
	}

	err := s.repo.UpdateOrderStatusByIntent(ctx, intentID, status)
	if errors.Is(err, repository.ErrOrderNotFound) {
		// Уведомление пришло раньше, чем появился заказ — игнорируем.
		return nil
	}
	return err
}

// AnalyticsReport содержит сводные показатели и данные графиков дашборда.
type AnalyticsReport struct {
	KPIs   analytics.KPIs   `json:"kpis"`
	Charts analytics.Charts `json:"charts"`
}

// AnalyticsReport строит отчёт по журналу заказов.
func (s *Service) AnalyticsReport(ctx context.Context) (*AnalyticsReport, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	return &AnalyticsReport{
		KPIs:   analytics.ComputeKPIs(orders),
		Charts: analytics.ComputeCharts(orders, time.Now()),
	}, nil
}

// toCents переводит сумму в минимальные единицы валюты с округлением
// половины от нуля.
func toCents(total decimal.Decimal) int64 {
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
