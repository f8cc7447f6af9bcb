// Package analytics агрегирует журнал заказов в отчётные метрики и графики.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/model"
)

const dailyWindow = 7

// Метки групп по умолчанию для заказов без источника или страны.
const (
	defaultSource  = "direct"
	defaultCountry = "Unknown"
)

// KPIs содержит сводные показатели по журналу заказов.
type KPIs struct {
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
	Refunds   float64 `json:"refunds"`
	Gross     float64 `json:"gross"`
}

// DailyPoint описывает точку графика выручки за день.
type DailyPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// Slice описывает долю выручки в разбивке по источникам или странам.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Charts содержит данные графиков дашборда.
type Charts struct {
	Daily     []DailyPoint `json:"daily"`
	Sources   []Slice      `json:"sources"`
	Countries []Slice      `json:"countries"`
}

// ComputeKPIs возвращает сводные показатели: выручку по всем заказам,
// количество заказов, уникальных покупателей по непустым email, сумму
// возвратов и валовую выручку. Нечитаемые суммы считаются нулём.
func ComputeKPIs(orders []model.Order) KPIs {
	revenue := decimal.Zero
	refunds := decimal.Zero
	emails := make(map[string]struct{})

	for _, o := range orders {
		amount := parseAmount(o.Amount)
		revenue = revenue.Add(amount)

		if o.Status == model.OrderStatusRefunded {
			refunds = refunds.Add(amount)
		}
		if o.CustomerEmail != "" {
			emails[o.CustomerEmail] = struct{}{}
		}
	}

	return KPIs{
		Revenue:   revenue.InexactFloat64(),
		Orders:    len(orders),
		Customers: len(emails),
		Refunds:   refunds.InexactFloat64(),
		Gross:     revenue.InexactFloat64(),
	}
}

// ComputeCharts возвращает данные графиков: ряд выручки за последние семь
// дней включая сегодняшний и разбивки выручки по источникам и странам.
//
// Дневной ряд — это выручка, равномерно размазанная по окну, а не настоящая
// разбивка по датам заказов. Упрощение сохранено сознательно.
func ComputeCharts(orders []model.Order, now time.Time) Charts {
	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(parseAmount(o.Amount))
	}

	perDay := decimal.Zero
	if len(orders) > 0 {
		perDay = revenue.Div(decimal.NewFromInt(dailyWindow))
	}

	daily := make([]DailyPoint, 0, dailyWindow)
	day := now.UTC().Truncate(24 * time.Hour)
	for i := dailyWindow - 1; i >= 0; i-- {
		daily = append(daily, DailyPoint{
			Date:    day.AddDate(0, 0, -i).Format("2006-01-02"),
			Revenue: perDay.InexactFloat64(),
		})
	}

	return Charts{
		Daily:     daily,
		Sources:   groupRevenue(orders, func(o model.Order) string { return o.Source }, defaultSource),
		Countries: groupRevenue(orders, func(o model.Order) string { return o.Country }, defaultCountry),
	}
}

func groupRevenue(orders []model.Order, key func(model.Order) string, fallback string) []Slice {
	groups := make(map[string]decimal.Decimal)
	for _, o := range orders {
		label := key(o)
		if label == "" {
			label = fallback
		}
		groups[label] = groups[label].Add(parseAmount(o.Amount))
	}

	slices := make([]Slice, 0, len(groups))
	for label, value := range groups {
		slices = append(slices, Slice{Label: label, Value: value.InexactFloat64()})
	}

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value != slices[j].Value {
			return slices[i].Value > slices[j].Value
		}
		return slices[i].Label < slices[j].Label
	})

	return slices
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
