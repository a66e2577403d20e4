package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/paging"
)

const TargetAll = "all"
const TargetKids = "kids"

type ProductForm struct {
	Code         string
	Name         string
	Category     string
	Gender       string
	Size         string
	Color        string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	OpeningStock int
}

// ProductFormFrom loads an existing product for editing.
func ProductFormFrom(p domain.Product) ProductForm {
	return ProductForm{
		Code:      p.Code,
		Name:      p.Name,
		Category:  p.Category,
		Gender:    p.Gender,
		Size:      p.Size,
		Color:     p.Color,
		BuyPrice:  p.BuyPrice,
		SellPrice: p.SellPrice,
	}
}

// Validate checks the form. A duplicate code is only a warning; the backend
// enforces uniqueness. editingID is zero when creating.
func (f ProductForm) Validate(existing []domain.Product, editingID int64) (warnings []string, err error) {
	verr := &ValidationError{}
	if strings.TrimSpace(f.Code) == "" {
		verr.add("code", "required")
	}
	if strings.TrimSpace(f.Name) == "" {
		verr.add("name", "required")
	}
	if strings.TrimSpace(f.Category) == "" {
		verr.add("category", "required")
	}
	if f.BuyPrice.IsNegative() {
		verr.add("buy_price", "must not be negative")
	}
	if f.SellPrice.IsNegative() {
		verr.add("sell_price", "must not be negative")
	}
	if editingID == 0 && f.OpeningStock < 0 {
		verr.add("opening_stock", "must not be negative")
	}

	code := strings.TrimSpace(f.Code)
	for _, p := range existing {
		if p.ID != editingID && code != "" && strings.EqualFold(p.Code, code) {
			warnings = append(warnings, "product code "+code+" already exists")
			break
		}
	}
	return warnings, verr.orNil()
}

// Input builds the request body. Opening stock is only sent on create.
func (f ProductForm) Input(create bool) domain.ProductInput {
	in := domain.ProductInput{
		Code:      strings.TrimSpace(f.Code),
		Name:      strings.TrimSpace(f.Name),
		Category:  strings.TrimSpace(f.Category),
		Gender:    domain.NormalizeGender(f.Gender),
		Size:      optional(f.Size),
		Color:     optional(f.Color),
		BuyPrice:  f.BuyPrice,
		SellPrice: f.SellPrice,
	}
	if create {
		stock := f.OpeningStock
		in.OpeningStock = &stock
	}
	return in
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// FilterProducts applies the search box (name or code) and the target group
// filter. Target is "all", "kids" or a gender.
func FilterProducts(products []domain.Product, query, target string) []domain.Product {
	target = strings.ToLower(strings.TrimSpace(target))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !paging.Match(query, p.Name, p.Code) {
			continue
		}
		switch target {
		case "", TargetAll:
		case TargetKids:
			if !domain.IsKids(p.Gender) {
				continue
			}
		default:
			if domain.NormalizeGender(p.Gender) != domain.NormalizeGender(target) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// FindByCode looks a product up by its code, ignoring case.
func FindByCode(products []domain.Product, code string) (domain.Product, bool) {
	code = strings.TrimSpace(code)
	for _, p := range products {
		if strings.EqualFold(p.Code, code) {
			return p, true
		}
	}
	return domain.Product{}, false
}
