// Package pricing содержит расчёт стоимости чекаута: разрешение цены продукта,
// выбор апселлов и итоговую сумму. Обе ветки оформления заказа обязаны считать
// сумму через ComputeTotal — это единственный источник истины.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
)

// ErrNoProducts возвращается при попытке рассчитать чекаут без продуктов.
var (
	ErrNoProducts = errors.New("checkout has no products")
	// ErrNonPositiveTotal возвращается, если итоговая сумма не больше нуля.
	ErrNonPositiveTotal = errors.New("checkout total must be positive")
)

const fallbackCurrency = "usd"

// ResolvePrice возвращает цену продукта в указанной валюте.
// Варианты ценообразования просматриваются в порядке OneTime, Subscription,
// PaymentPlan; карту цен даёт первый включённый. Отсутствующая валюта
// заменяется записью "usd", отсутствующая запись даёт ноль. Если ни один
// вариант не включён, действует плоская цена продукта. Функция никогда не
// возвращает ошибку: некорректные данные вырождаются в ноль, итоговую
// валидацию выполняет ComputeTotal.
func ResolvePrice(p model.Product, currency string) decimal.Decimal {
	variant := activeVariant(p.Pricing)
	if variant == nil {
		return p.Price
	}

	code := strings.ToLower(currency)
	if price, ok := variant.Prices[code]; ok {
		return price
	}
	if price, ok := variant.Prices[fallbackCurrency]; ok {
		return price
	}

	return decimal.Zero
}

func activeVariant(m *model.PricingModel) *model.PricingVariant {
	if m == nil {
		return nil
	}

	for _, v := range []*model.PricingVariant{m.OneTime, m.Subscription, m.PaymentPlan} {
		if v != nil && v.Enabled {
			return v
		}
	}

	return nil
}

// SelectUpsells возвращает апселлы чекаута, соответствующие переданным
// идентификаторам. Пул кандидатов — список апселлов, затем устаревший
// одиночный слот, если он включён. Идентификаторы обрабатываются в порядке
// передачи, дубликаты не схлопываются: каждый повтор добавляет свою цену
// заново. Ненайденные и выключенные идентификаторы пропускаются без ошибки.
func SelectUpsells(c model.Checkout, selectedIDs []string) []model.Upsell {
	pool := make([]model.Upsell, 0, len(c.Upsells)+1)
	pool = append(pool, c.Upsells...)
	if c.Upsell != nil && c.Upsell.Enabled {
		pool = append(pool, *c.Upsell)
	}

	var selected []model.Upsell
	for _, id := range selectedIDs {
		for _, u := range pool {
			if u.ID == id && u.Enabled {
				selected = append(selected, u)
				break
			}
		}
	}

	return selected
}

// ComputeTotal возвращает итоговую сумму чекаута: цены всех продуктов в
// указанной валюте плюс цены выбранных апселлов. Чекаут без продуктов даёт
// ErrNoProducts независимо от апселлов; сумма не больше нуля — ErrNonPositiveTotal.
func ComputeTotal(c model.Checkout, currency string, selectedIDs []string) (decimal.Decimal, error) {
	if len(c.Products) == 0 {
		return decimal.Zero, ErrNoProducts
	}

	total := decimal.Zero
	for _, p := range c.Products {
		total = total.Add(ResolvePrice(p, currency))
	}

	for _, u := range SelectUpsells(c, selectedIDs) {
		total = total.Add(u.Price)
	}

	if !total.IsPositive() {
		return decimal.Zero, ErrNonPositiveTotal
	}

	return total, nil
}
