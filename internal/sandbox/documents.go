package sandbox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"shopdesk/internal/domain"
	"shopdesk/internal/returns"
)

const (
	kindPrint    = "print"
	kindDownload = "download"
)

type documentLine struct {
	Name     string
	Size     string
	Quantity int
	Price    decimal.Decimal
	Total    decimal.Decimal
}

// documentView is the shape both invoice and receipt templates render.
type documentView struct {
	ShopName string
	Currency string
	Title    string
	Number   string
	Date     string
	Customer string
	Lines    []documentLine
	Totals   [][2]string
	Note     string
	QR       template.URL
}

var documentFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var documentHTMLTmpl = template.Must(template.New("document").Funcs(documentFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}} {{.Number}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; max-width: 640px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border-bottom: 1px solid #ddd; padding: 6px; font-size: 13px; text-align: left; }
    td.num, th.num { text-align: right; }
    .qr { float: right; }
  </style>
</head>
<body onload="window.print()">
  {{if .QR}}<img class="qr" src="{{.QR}}" alt="{{.Number}}" width="120" height="120" />{{end}}
  <h2>{{.ShopName}}</h2>
  <h3>{{.Title}} {{.Number}}</h3>
  <p>Date: {{.Date}}</p>
  {{if .Customer}}<p>Customer: {{.Customer}}</p>{{end}}
  {{if .Lines}}
  <table>
    <thead><tr><th>Item</th><th>Size</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Size}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .Price}}</td><td class="num">{{money .Total}}</td></tr>{{end}}</tbody>
  </table>
  {{end}}
  <table>
    <tbody>{{range .Totals}}<tr><th>{{index . 0}}</th><td class="num">{{$.Currency}} {{index . 1}}</td></tr>{{end}}</tbody>
  </table>
  {{if .Note}}<p>{{.Note}}</p>{{end}}
</body>
</html>
`))

func (a *API) handleInvoiceDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := documentKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	doc, err := a.repo.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	a.writeDocument(w, kind, a.invoiceView(*doc))
}

func (a *API) handleReceiptDocument(w http.ResponseWriter, r *http.Request) {
	kind, err := documentKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	doc, err := a.repo.GetReceipt(r.Context(), chi.URLParam(r, "receiptNo"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	a.writeDocument(w, kind, a.receiptView(*doc))
}

func documentKind(r *http.Request) (string, error) {
	switch kind := chi.URLParam(r, "kind"); kind {
	case kindPrint, kindDownload:
		return kind, nil
	default:
		return "", errors.New("unknown document format")
	}
}

func (a *API) invoiceView(doc domain.InvoiceDocument) documentView {
	sale := doc.Sale
	view := documentView{
		ShopName: a.opts.ShopName,
		Currency: a.opts.Currency,
		Title:    "Invoice",
		Number:   doc.Invoice.InvoiceNumber,
		Date:     doc.IssuedAt.Format("02 Jan 2006 15:04"),
	}
	if sale.Customer != nil {
		view.Customer = sale.Customer.Name
	}

	if doc.Return != nil {
		ret := *doc.Return
		view.Title = "Refund"
		for _, item := range ret.Items {
			line := documentLine{Quantity: item.Quantity, Total: item.LineTotal}
			if item.Product != nil {
				line.Name, line.Size = item.Product.Name, item.Product.Size
			}
			if item.Quantity > 0 {
				line.Price = item.LineTotal.Div(decimal.NewFromInt(int64(item.Quantity)))
			}
			view.Lines = append(view.Lines, line)
		}
		view.Totals = [][2]string{{"Refund", ret.RefundAmount.StringFixed(2)}}
		view.Note = returns.Settle(ret).Label
		if ret.Reason != "" {
			view.Note += ". Reason: " + ret.Reason
		}
		view.QR = qrDataURI(view.Number)
		return view
	}

	for _, item := range sale.Items {
		line := documentLine{Quantity: item.Quantity, Price: item.UnitPrice, Total: item.LineTotal}
		if item.Product != nil {
			line.Name, line.Size = item.Product.Name, item.Product.Size
		}
		view.Lines = append(view.Lines, line)
	}
	view.Totals = [][2]string{
		{"Subtotal", sale.Subtotal.StringFixed(2)},
		{"Discount", sale.Discount.StringFixed(2)},
		{"Total", sale.Total.StringFixed(2)},
		{"Paid", sale.PaidAmount.StringFixed(2)},
		{"Due", sale.DueAmount.StringFixed(2)},
	}
	if sale.RefundTotal.IsPositive() {
		view.Totals = append(view.Totals, [2]string{"Refunded", sale.RefundTotal.StringFixed(2)})
	}
	view.QR = qrDataURI(view.Number)
	return view
}

func (a *API) receiptView(doc domain.ReceiptDocument) documentView {
	p := doc.Payment
	view := documentView{
		ShopName: a.opts.ShopName,
		Currency: a.opts.Currency,
		Title:    "Payment Receipt",
		Number:   p.ReceiptNo,
		Date:     p.PaymentDate.Format("02 Jan 2006 15:04"),
		Note:     "Paid by " + strings.ToUpper(p.PaymentMethod),
	}
	if p.Amount.IsNegative() {
		view.Title = "Refund Receipt"
		view.Note = "Refunded by " + strings.ToUpper(p.PaymentMethod)
	}
	view.Totals = [][2]string{{"Amount", p.Amount.Abs().StringFixed(2)}}
	if doc.Customer != nil {
		view.Customer = doc.Customer.Name
		view.Totals = append(view.Totals, [2]string{"Balance due", doc.Customer.DueBalance.StringFixed(2)})
	}
	if p.Invoice != nil {
		view.Note += ". Invoice " + p.Invoice.InvoiceNumber
	}
	view.QR = qrDataURI(view.Number)
	return view
}

func (a *API) writeDocument(w http.ResponseWriter, kind string, view documentView) {
	if kind == kindDownload {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.Number+".txt"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(documentText(view)))
		return
	}

	var buf bytes.Buffer
	if err := documentHTMLTmpl.Execute(&buf, view); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func documentText(view documentView) string {
	lines := []string{
		view.ShopName,
		fmt.Sprintf("%s %s", view.Title, view.Number),
		fmt.Sprintf("Date: %s", view.Date),
	}
	if view.Customer != "" {
		lines = append(lines, fmt.Sprintf("Customer: %s", view.Customer))
	}
	lines = append(lines, "")
	for _, line := range view.Lines {
		name := line.Name
		if line.Size != "" {
			name += " (" + line.Size + ")"
		}
		lines = append(lines, fmt.Sprintf("%-32s %3d x %10s = %10s", name, line.Quantity, line.Price.StringFixed(2), line.Total.StringFixed(2)))
	}
	if len(view.Lines) > 0 {
		lines = append(lines, "")
	}
	for _, total := range view.Totals {
		lines = append(lines, fmt.Sprintf("%-16s %s %s", total[0]+":", view.Currency, total[1]))
	}
	if view.Note != "" {
		lines = append(lines, "", view.Note)
	}
	return strings.Join(lines, "\n") + "\n"
}

// qrDataURI encodes content as a PNG QR code data URI. An empty URI leaves
// the code off the page.
func qrDataURI(content string) template.URL {
	if content == "" {
		return ""
	}
	png, err := qrcode.Encode(content, qrcode.Medium, 160)
	if err != nil {
		log.Printf("[sandbox] WARN: qr code for %s: %v", content, err)
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}
