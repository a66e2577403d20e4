package reports

import (
	"strconv"
	"strings"
	"time"

	"shopdesk/internal/domain"
)

type SalesFilter struct {
	From   string
	To     string
	Search string
}

// FilterSales applies the sales history filters. From and To are YYYY-MM-DD
// in loc; To includes the whole calendar day. Search matches the bill total, the bill
// number and the customer name.
func FilterSales(sales []domain.Sale, f SalesFilter, loc *time.Location) ([]domain.Sale, error) {
	if loc == nil {
		loc = time.Local
	}
	var from, to time.Time
	var err error
	if s := strings.TrimSpace(f.From); s != "" {
		if from, err = time.ParseInLocation(time.DateOnly, s, loc); err != nil {
			return nil, err
		}
	}
	if s := strings.TrimSpace(f.To); s != "" {
		if to, err = time.ParseInLocation(time.DateOnly, s, loc); err != nil {
			return nil, err
		}
		to = to.AddDate(0, 0, 1)
	}
	query := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if !from.IsZero() && s.SaleDate.Before(from) {
			continue
		}
		if !to.IsZero() && !s.SaleDate.Before(to) {
			continue
		}
		if query != "" && !saleMatches(s, query) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func saleMatches(s domain.Sale, query string) bool {
	if strings.Contains(s.Total.StringFixed(2), query) || strings.Contains(strconv.FormatInt(s.ID, 10), query) {
		return true
	}
	return s.Customer != nil && strings.Contains(strings.ToLower(s.Customer.Name), query)
}
