package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/paging"
)

const DefaultLowStock = 3

type DayTotal struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

type CategoryValue struct {
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
}

type Dashboard struct {
	TodaySales    decimal.Decimal  `json:"today_sales"`
	TodayBills    int              `json:"today_bills"`
	StockValue    decimal.Decimal  `json:"stock_value"`
	TotalProducts int              `json:"total_products"`
	OutOfStock    int              `json:"out_of_stock"`
	LowStock      []domain.Product `json:"low_stock"`
	Trend         []DayTotal       `json:"trend"`
	Categories    []CategoryValue  `json:"categories"`
}

// BuildDashboard summarises the catalog and sales as of now. Stock value is
// at buy price, category value at sell price. Low stock is 0 < stock <= lowStock.
func BuildDashboard(products []domain.Product, sales []domain.Sale, now time.Time, lowStock int) Dashboard {
	if lowStock <= 0 {
		lowStock = DefaultLowStock
	}

	d := Dashboard{
		TodaySales:    decimal.Zero,
		StockValue:    decimal.Zero,
		TotalProducts: len(products),
		LowStock:      []domain.Product{},
	}

	byCategory := map[string]decimal.Decimal{}
	for _, p := range products {
		qty := decimal.NewFromInt(int64(p.CurrentStock))
		d.StockValue = d.StockValue.Add(p.BuyPrice.Mul(qty))
		if p.CurrentStock <= 0 {
			d.OutOfStock++
		} else if p.CurrentStock <= lowStock {
			d.LowStock = append(d.LowStock, p)
		}

		category := p.Category
		if category == "" {
			category = "Uncategorized"
		}
		byCategory[category] = byCategory[category].Add(p.SellPrice.Mul(qty))
	}

	today := dayKey(now)
	totals := map[string]decimal.Decimal{}
	for _, s := range sales {
		key := dayKey(s.SaleDate.In(now.Location()))
		totals[key] = totals[key].Add(s.Total)
		if key == today {
			d.TodaySales = d.TodaySales.Add(s.Total)
			d.TodayBills++
		}
	}

	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := dayKey(day)
		d.Trend = append(d.Trend, DayTotal{Date: key, Label: day.Format("Mon"), Total: totals[key]})
	}

	for category, value := range byCategory {
		d.Categories = append(d.Categories, CategoryValue{Category: category, Value: value})
	}
	sort.Slice(d.Categories, func(i, j int) bool {
		if !d.Categories[i].Value.Equal(d.Categories[j].Value) {
			return d.Categories[i].Value.GreaterThan(d.Categories[j].Value)
		}
		return d.Categories[i].Category < d.Categories[j].Category
	})
	return d
}

// LookupProducts is the dashboard quick search over name, code, category and size.
func LookupProducts(products []domain.Product, query string) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if paging.Match(query, p.Name, p.Code, p.Category, p.Size) {
			out = append(out, p)
		}
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
