package reports

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

type DayRow struct {
	Date     string          `json:"date"`
	Bills    int             `json:"bills"`
	Gross    decimal.Decimal `json:"gross"`
	Discount decimal.Decimal `json:"discount"`
	Refunds  decimal.Decimal `json:"refunds"`
	Net      decimal.Decimal `json:"net"`
	Paid     decimal.Decimal `json:"paid"`
	Due      decimal.Decimal `json:"due"`
}

type Summary struct {
	ShopName string   `json:"shop_name"`
	Currency string   `json:"currency"`
	Rows     []DayRow `json:"rows"`
	Total    DayRow   `json:"total"`
}

// DailySummary groups sales by day in loc, oldest first.
func DailySummary(sales []domain.Sale, shopName, currency string, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	rows := map[string]*DayRow{}
	for _, s := range sales {
		key := s.SaleDate.In(loc).Format(time.DateOnly)
		row, ok := rows[key]
		if !ok {
			row = &DayRow{Date: key}
			rows[key] = row
		}
		addSale(row, s)
	}

	summary := Summary{ShopName: shopName, Currency: currency, Total: DayRow{Date: "total"}}
	for _, row := range rows {
		summary.Rows = append(summary.Rows, *row)
	}
	sort.Slice(summary.Rows, func(i, j int) bool { return summary.Rows[i].Date < summary.Rows[j].Date })
	for _, s := range sales {
		addSale(&summary.Total, s)
	}
	return summary
}

func addSale(row *DayRow, s domain.Sale) {
	refunds := s.RefundTotal
	if refunds.IsZero() {
		for _, ret := range s.Returns {
			refunds = refunds.Add(ret.RefundAmount)
		}
	}
	row.Bills++
	row.Gross = row.Gross.Add(s.Subtotal)
	row.Discount = row.Discount.Add(s.Discount)
	row.Refunds = row.Refunds.Add(refunds)
	row.Net = row.Net.Add(s.Total.Sub(refunds))
	row.Paid = row.Paid.Add(s.PaidAmount)
	row.Due = row.Due.Add(s.DueAmount)
}

func (s Summary) CSV() string {
	lines := []string{"date,bills,gross,discount,refunds,net,paid,due"}
	for _, row := range append(append([]DayRow{}, s.Rows...), s.Total) {
		lines = append(lines, fmt.Sprintf("%s,%d,%s,%s,%s,%s,%s,%s",
			row.Date, row.Bills,
			row.Gross.StringFixed(2), row.Discount.StringFixed(2), row.Refunds.StringFixed(2),
			row.Net.StringFixed(2), row.Paid.StringFixed(2), row.Due.StringFixed(2)))
	}
	return strings.Join(lines, "\n") + "\n"
}

var summaryHTMLTmpl = template.Must(template.New("daily-summary").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.ShopName}} Sales Summary</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
  </style>
</head>
<body>
  <h2>{{.ShopName}}</h2>
  <p>Sales summary ({{.Currency}})</p>
  <table>
    <thead><tr><th>Date</th><th>Bills</th><th>Gross</th><th>Discount</th><th>Refunds</th><th>Net</th><th>Paid</th><th>Due</th></tr></thead>
    <tbody>{{range .Rows}}<tr><td>{{.Date}}</td><td class="num">{{.Bills}}</td><td class="num">{{money .Gross}}</td><td class="num">{{money .Discount}}</td><td class="num">{{money .Refunds}}</td><td class="num">{{money .Net}}</td><td class="num">{{money .Paid}}</td><td class="num">{{money .Due}}</td></tr>{{end}}</tbody>
    <tfoot>{{with .Total}}<tr><th>Total</th><th class="num">{{.Bills}}</th><th class="num">{{money .Gross}}</th><th class="num">{{money .Discount}}</th><th class="num">{{money .Refunds}}</th><th class="num">{{money .Net}}</th><th class="num">{{money .Paid}}</th><th class="num">{{money .Due}}</th></tr>{{end}}</tfoot>
  </table>
</body>
</html>
`))

func (s Summary) HTML() string {
	var buf bytes.Buffer
	if err := summaryHTMLTmpl.Execute(&buf, s); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
