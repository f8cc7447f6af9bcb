// Package model содержит доменные сущности сервиса Whopify.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingVariant описывает одну модель ценообразования продукта с картой цен по валютам.
// Ключи карты — коды валют в нижнем регистре; запись "usd" используется как запасная.
type PricingVariant struct {
	Enabled bool                       `json:"enabled"`
	Prices  map[string]decimal.Decimal `json:"prices"`
}

// PricingModel объединяет взаимоисключающие варианты ценообразования продукта.
// Активным считается первый включённый вариант в порядке OneTime, Subscription, PaymentPlan.
type PricingModel struct {
	OneTime      *PricingVariant `json:"oneTime,omitempty"`
	Subscription *PricingVariant `json:"subscription,omitempty"`
	PaymentPlan  *PricingVariant `json:"paymentPlan,omitempty"`
}

// Product описывает продукт в составе чекаута.
// Price — плоская цена, применяемая когда ни один вариант ценообразования не включён.
type Product struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Pricing *PricingModel   `json:"pricing,omitempty"`
}

// Upsell описывает дополнение к чекауту с фиксированной ценой в одной валюте.
type Upsell struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Enabled bool            `json:"enabled"`
	Price   decimal.Decimal `json:"price"`
}

// Checkout описывает настраиваемую единицу продажи: продукты и необязательные апселлы.
// Upsell — устаревший одиночный слот, Upsells — актуальный список; при поиске по
// идентификатору оба пула просматриваются в порядке список-затем-слот.
type Checkout struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Enabled  bool      `json:"enabled"`
	Products []Product `json:"products"`
	Upsell   *Upsell   `json:"upsell,omitempty"`
	Upsells  []Upsell  `json:"upsells,omitempty"`
}

// GatewaySettings содержит настройки внешнего платёжного шлюза.
type GatewaySettings struct {
	Enabled        bool   `json:"enabled"`
	SecretKey      string `json:"secretKey"`
	PublishableKey string `json:"publishableKey"`
}

// ManualSettings содержит настройки ручного выставления счетов.
type ManualSettings struct {
	Enabled      bool   `json:"enabled"`
	Instructions string `json:"instructions"`
}

// BankTransferSettings содержит настройки оплаты банковским переводом.
type BankTransferSettings struct {
	Enabled bool   `json:"enabled"`
	Details string `json:"details"`
}

// CryptoSettings содержит настройки оплаты криптовалютой.
type CryptoSettings struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Network string `json:"network"`
}

// MessagingSettings содержит настройки оформления заказа через мессенджер.
type MessagingSettings struct {
	Enabled  bool   `json:"enabled"`
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
}

// Settings содержит конфигурацию магазина: активную валюту и способы оплаты.
// Настройки не кэшируются и читаются из хранилища на каждый запрос.
type Settings struct {
	Currency     string               `json:"currency"`
	Gateway      GatewaySettings      `json:"gateway"`
	Manual       ManualSettings       `json:"manual"`
	BankTransfer BankTransferSettings `json:"bankTransfer"`
	Crypto       CryptoSettings       `json:"crypto"`
	Messaging    MessagingSettings    `json:"messaging"`
}

// DefaultSettings возвращает настройки нового магазина: валюта USD, шлюз выключен.
func DefaultSettings() Settings {
	return Settings{Currency: "USD"}
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

// Провайдеры платежа, записываемые в заказ.
const (
	ProviderGateway = "stripe"
	ProviderManual  = "manual"
)

// Order описывает зафиксированный заказ. Создаётся один раз; переходы статуса
// не меняют идентификатор и исторические поля.
type Order struct {
	ID            string      `json:"id"`
	Amount        string      `json:"amount"`
	AmountCents   int64       `json:"amount_cents"`
	Currency      string      `json:"currency"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	Items         int         `json:"items"`
	CheckoutID    string      `json:"checkout_id"`
	Provider      string      `json:"provider"`
	IntentID      string      `json:"intent_id,omitempty"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Country       string      `json:"country,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// Customer описывает покупателя, созданного как побочный эффект сохранения заказа.
type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email"`
	Country    string    `json:"country,omitempty"`
	Orders     int       `json:"orders"`
	Spend      string    `json:"spend"`
	LastActive time.Time `json:"last_active"`
}
