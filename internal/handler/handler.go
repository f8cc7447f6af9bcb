// Package handler содержит HTTP-обработчики API сервиса Whopify.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/gateway"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/middleware"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/pricing"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/repository"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ListCheckouts(ctx context.Context) ([]model.Checkout, error)
	UpsertCheckout(ctx context.Context, c model.Checkout) error
	DeleteCheckout(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
	PublicConfig(ctx context.Context, checkoutID string) (*service.PublicConfig, error)
	CreatePaymentIntent(ctx context.Context, checkoutID string, upsellIDs []string, receiptEmail string) (*gateway.PaymentIntent, error)
	CreateManualOrder(ctx context.Context, in service.ManualOrderInput) (*model.Order, error)
	VerifyGatewayKey(ctx context.Context, key string) error
	HandleGatewayEvent(ctx context.Context, ev service.GatewayEvent) error
	AnalyticsReport(ctx context.Context) (*service.AnalyticsReport, error)
}

// GatewayKeyHeader — заголовок, в котором панель передаёт ключ для проверки подключения.
const GatewayKeyHeader = "X-Gateway-Key"

// Handler реализует HTTP-обработчики API сервиса Whopify.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ.
// Неожиданные ошибки логируются и не раскрываются клиенту.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var apiErr *gateway.APIError

	switch {
	case errors.Is(err, repository.ErrCheckoutNotFound):
		h.writeError(w, http.StatusNotFound, "checkout not found")
	case errors.Is(err, service.ErrGatewayNotConfigured):
		h.writeError(w, http.StatusInternalServerError, "payment gateway is not configured")
	case errors.Is(err, service.ErrEmptyCheckoutID),
		errors.Is(err, service.ErrInvalidCurrency),
		errors.Is(err, service.ErrInvalidKeyFormat),
		errors.Is(err, pricing.ErrNoProducts),
		errors.Is(err, pricing.ErrNonPositiveTotal):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		h.writeError(w, http.StatusBadRequest, apiErr.Message)
	default:
		h.logger.Error(op, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ListCheckouts возвращает все чекауты магазина.
func (h *Handler) ListCheckouts(w http.ResponseWriter, r *http.Request) {
	checkouts, err := h.service.ListCheckouts(r.Context())
	if err != nil {
		h.writeServiceError(w, "list checkouts", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"checkouts": checkouts,
	})
}

// UpsertCheckout создаёт чекаут или заменяет существующий с тем же идентификатором.
func (h *Handler) UpsertCheckout(w http.ResponseWriter, r *http.Request) {
	var checkout model.Checkout
	if err := json.NewDecoder(r.Body).Decode(&checkout); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpsertCheckout(r.Context(), checkout); err != nil {
		h.writeServiceError(w, "upsert checkout", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"checkout": checkout,
	})
}

// DeleteCheckout удаляет чекаут по идентификатору.
func (h *Handler) DeleteCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteCheckout(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete checkout", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetSettings возвращает настройки магазина.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, "get settings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": settings,
	})
}

// UpdateSettings заменяет настройки магазина целиком.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateSettings(r.Context(), settings); err != nil {
		h.writeServiceError(w, "update settings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// PublicConfig возвращает безопасное подмножество чекаута и настроек для витрины.
func (h *Handler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutID")

	cfg, err := h.service.PublicConfig(r.Context(), checkoutID)
	if err != nil {
		h.writeServiceError(w, "public config", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  cfg,
	})
}

type paymentIntentRequest struct {
	CheckoutID string   `json:"checkoutId"`
	Upsells    []string `json:"upsells"`
	Email      string   `json:"email"`
}

// CreatePaymentIntent выполняет ветку оплаты через шлюз и возвращает токен
// продолжения для клиентской стороны.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CheckoutID == "" {
		h.writeError(w, http.StatusBadRequest, "checkoutId is required")
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), req.CheckoutID, req.Upsells, req.Email)
	if err != nil {
		h.writeServiceError(w, "create payment intent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"clientSecret": intent.ClientSecret,
		"intentId":     intent.ID,
	})
}

type manualOrderRequest struct {
	CheckoutID string   `json:"checkoutId"`
	Upsells    []string `json:"upsells"`
	Customer   struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Country string `json:"country"`
	} `json:"customer"`
	Source string `json:"source"`
}

// CreateManualOrder выполняет ручную ветку оформления заказа.
func (h *Handler) CreateManualOrder(w http.ResponseWriter, r *http.Request) {
	var req manualOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CheckoutID == "" {
		h.writeError(w, http.StatusBadRequest, "checkoutId is required")
		return
	}

	order, err := h.service.CreateManualOrder(r.Context(), service.ManualOrderInput{
		CheckoutID:    req.CheckoutID,
		UpsellIDs:     req.Upsells,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		Country:       req.Customer.Country,
		Source:        req.Source,
	})
	if err != nil {
		h.writeServiceError(w, "create manual order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}

// VerifyConnection проверяет ключ платёжного шлюза, переданный в заголовке.
func (h *Handler) VerifyConnection(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(GatewayKeyHeader)
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "gateway key is required")
		return
	}

	if err := h.service.VerifyGatewayKey(r.Context(), key); err != nil {
		h.writeServiceError(w, "verify connection", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type gatewayEventRequest struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			Amount        int64             `json:"amount"`
			Currency      string            `json:"currency"`
			ReceiptEmail  string            `json:"receipt_email"`
			PaymentIntent string            `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// GatewayEvent принимает асинхронное уведомление платёжного процессора.
func (h *Handler) GatewayEvent(w http.ResponseWriter, r *http.Request) {
	var req gatewayEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	obj := req.Data.Object

	intentID := obj.ID
	if obj.PaymentIntent != "" {
		// Для событий charge.* намерение лежит в отдельном поле.
		intentID = obj.PaymentIntent
	}

	upsellCount := 0
	if v, ok := obj.Metadata["upsell_count"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			upsellCount = n
		}
	}

	ev := service.GatewayEvent{
		Type:         req.Type,
		IntentID:     intentID,
		AmountCents:  obj.Amount,
		Currency:     obj.Currency,
		CheckoutID:   obj.Metadata["checkout_id"],
		ReceiptEmail: obj.ReceiptEmail,
		UpsellCount:  upsellCount,
	}

	if err := h.service.HandleGatewayEvent(r.Context(), ev); err != nil {
		h.writeServiceError(w, "gateway event", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Analytics возвращает сводные показатели и данные графиков дашборда.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AnalyticsReport(r.Context())
	if err != nil {
		h.writeServiceError(w, "analytics", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"kpis":    report.KPIs,
		"charts":  report.Charts,
	})
}
