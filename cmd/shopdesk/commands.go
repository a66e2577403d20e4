package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/apiclient"
	"shopdesk/internal/billing"
	"shopdesk/internal/catalog"
	"shopdesk/internal/domain"
	"shopdesk/internal/ledger"
	"shopdesk/internal/paging"
	"shopdesk/internal/reports"
	"shopdesk/internal/returns"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	return a.svc.Login(ctx, args[0], args[1])
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := a.flags("products")
	query := fs.String("q", "", "search name or code")
	target := fs.String("target", catalog.TargetAll, "target group")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := a.svc.LoadProducts(ctx)
	if err != nil {
		return err
	}
	p := paging.Paginate(catalog.FilterProducts(products, *query, *target), *page, a.cfg.PageSize)

	tw := a.table()
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tSIZE\tGENDER\tSTOCK\tPRICE")
	for _, item := range p.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", item.ID, item.Code, item.Name, item.Size,
			domain.GenderLabel(item.Gender), item.CurrentStock, item.SellPrice.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.pageFooter(p.Page, p.TotalPages, p.Total)
	return nil
}

func (a *app) product(ctx context.Context, args []string) error {
	fs := a.flags("product")
	id := fs.Int64("id", 0, "product to edit")
	code := fs.String("code", "", "product code")
	name := fs.String("name", "", "name")
	category := fs.String("category", "", "category")
	gender := fs.String("gender", "", "gender")
	size := fs.String("size", "", "size")
	color := fs.String("color", "", "color")
	buy := fs.String("buy", "", "buy price")
	sell := fs.String("sell", "", "sell price")
	stock := fs.Int("stock", 0, "opening stock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := a.svc.LoadProducts(ctx)
	if err != nil {
		return err
	}
	form := catalog.ProductForm{Gender: domain.GenderUnisex}
	if *id != 0 {
		existing, ok := findProduct(products, *id)
		if !ok {
			return fmt.Errorf("product %d not found", *id)
		}
		form = catalog.ProductFormFrom(existing)
	}

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "code":
			form.Code = *code
		case "name":
			form.Name = *name
		case "category":
			form.Category = *category
		case "gender":
			form.Gender = *gender
		case "size":
			form.Size = *size
		case "color":
			form.Color = *color
		case "stock":
			form.OpeningStock = *stock
		case "buy":
			form.BuyPrice, err = parseAmount("buy", *buy)
		case "sell":
			form.SellPrice, err = parseAmount("sell", *sell)
		}
		if err != nil && parseErr == nil {
			parseErr = err
		}
	})
	if parseErr != nil {
		return parseErr
	}

	_, err = a.svc.SaveProduct(ctx, form, *id)
	return err
}

func (a *app) deleteProduct(ctx context.Context, args []string) error {
	id, _, err := leadingID(args)
	if err != nil {
		return err
	}
	return a.svc.DeleteProduct(ctx, id)
}

func (a *app) purchase(ctx context.Context, args []string) error {
	fs := a.flags("purchase")
	id := fs.Int64("id", 0, "purchase to edit")
	supplier := fs.String("supplier", "", "supplier name")
	date := fs.String("date", "", "purchase date YYYY-MM-DD")
	items := fs.String("items", "", "productID:qty[@cost] or new:CODE:qty[@cost],...")
	name := fs.String("name", "", "name of the new product")
	category := fs.String("category", "", "category of the new product")
	gender := fs.String("gender", domain.GenderUnisex, "gender of the new product")
	size := fs.String("size", "", "size of the new product")
	color := fs.String("color", "", "color of the new product")
	sell := fs.String("sell", "0", "sell price of the new product")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest, fresh, err := splitNewEntries(*items)
	if err != nil {
		return err
	}
	var lines []itemSpec
	if strings.TrimSpace(rest) != "" || len(fresh) == 0 {
		if lines, err = parseSaleItems(rest); err != nil {
			return err
		}
	}
	sellPrice, err := parseAmount("sell", *sell)
	if err != nil {
		return err
	}

	products, err := a.svc.LoadProducts(ctx)
	if err != nil {
		return err
	}
	form := catalog.NewPurchaseForm(time.Now())
	if *id != 0 {
		existing, err := a.client.GetPurchase(ctx, *id)
		if err != nil {
			return err
		}
		form = catalog.PurchaseFormFrom(existing)
		if len(fresh) > 0 {
			if err := form.UseNewProduct(0); err != nil {
				return err
			}
		}
		for _, line := range lines {
			idx := purchaseLineIndex(form, line.ProductID)
			if idx < 0 {
				return fmt.Errorf("%w: product %d", catalog.ErrEditLocked, line.ProductID)
			}
			applyPurchaseLine(&form.Lines[idx], line)
		}
	} else {
		form.Lines = form.Lines[:0]
		for i, line := range lines {
			product, ok := findProduct(products, line.ProductID)
			if !ok {
				return fmt.Errorf("product %d not found", line.ProductID)
			}
			if err := form.AddLine(); err != nil {
				return err
			}
			if err := form.SelectProduct(i, product); err != nil {
				return err
			}
			applyPurchaseLine(&form.Lines[i], line)
		}

		registered := 0
		for _, entry := range fresh {
			if err := form.AddLine(); err != nil {
				return err
			}
			i := len(form.Lines) - 1
			if product, ok := catalog.FindByCode(products, entry.Code); ok {
				if err := form.SelectProduct(i, product); err != nil {
					return err
				}
				applyPurchaseLine(&form.Lines[i], entry.itemSpec)
				continue
			}
			registered++
			if registered > 1 {
				return errors.New("only one new product can be registered per purchase")
			}
			if err := form.UseNewProduct(i); err != nil {
				return err
			}
			line := &form.Lines[i]
			line.NewProduct = domain.NewProductInput{
				Code:      entry.Code,
				Name:      *name,
				Category:  *category,
				Gender:    *gender,
				Size:      *size,
				Color:     *color,
				SellPrice: sellPrice,
			}
			applyPurchaseLine(line, entry.itemSpec)
		}
	}
	if *supplier != "" {
		form.Supplier = *supplier
	}
	if *date != "" {
		form.Date = *date
	}

	_, err = a.svc.SavePurchase(ctx, form, *id)
	return err
}

func purchaseLineIndex(form *catalog.PurchaseForm, productID int64) int {
	for i, line := range form.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func applyPurchaseLine(line *catalog.PurchaseLine, in itemSpec) {
	line.Quantity = in.Quantity
	if in.Price != nil {
		line.UnitPrice = *in.Price
	}
}

func (a *app) customers(ctx context.Context, args []string) error {
	fs := a.flags("customers")
	query := fs.String("q", "", "search name or phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	customers, err := a.svc.Customers(ctx, *query)
	if err != nil {
		return err
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tDUE")
	for _, c := range customers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Phone, c.DueBalance.StringFixed(2))
	}
	return tw.Flush()
}

func (a *app) saveCustomer(ctx context.Context, args []string) error {
	fs := a.flags("customer")
	id := fs.Int64("id", 0, "customer to edit")
	var form catalog.CustomerForm
	fs.StringVar(&form.Name, "name", "", "name")
	fs.StringVar(&form.Phone, "phone", "", "phone")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Address, "address", "", "address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, err := a.svc.SaveCustomer(ctx, form, *id)
	return err
}

func (a *app) sell(ctx context.Context, args []string) error {
	fs := a.flags("sell")
	items := fs.String("items", "", "productID:qty[@price],...")
	discount := fs.String("discount", "0", "bill discount")
	paid := fs.String("paid", "", "amount paid now (default: full bill)")
	customerID := fs.Int64("customer", 0, "customer id, required for credit")
	method := fs.String("method", domain.PaymentMethodCash, "cash, upi, card or bank")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lines, err := parseSaleItems(*items)
	if err != nil {
		return err
	}
	disc, err := parseAmount("discount", *discount)
	if err != nil {
		return err
	}

	if _, err := a.svc.LoadProducts(ctx); err != nil {
		return err
	}
	cart := a.svc.Cart()
	for _, line := range lines {
		if err := a.svc.AddToCart(line.ProductID); err != nil {
			return err
		}
		cart.UpdateQuantity(line.ProductID, line.Quantity)
		if got, _ := cart.Line(line.ProductID); got.Quantity != line.Quantity {
			return fmt.Errorf("%w: only %d of %s available", billing.ErrInsufficientStock, got.Quantity, got.Code)
		}
		if line.Price != nil {
			if err := cart.UpdateSellingPrice(line.ProductID, *line.Price); err != nil {
				return err
			}
		}
	}
	cart.SetDiscount(disc)
	fmt.Fprintf(a.out, "Cart %d items  MRP discount %s\n", cart.ItemCount(), cart.ItemDiscount().StringFixed(2))

	opts := billing.CheckoutOptions{PaidNow: cart.FinalAmount(), PaymentMethod: *method}
	if *paid != "" {
		if opts.PaidNow, err = parseAmount("paid", *paid); err != nil {
			return err
		}
	}
	if *customerID != 0 {
		opts.CustomerID = customerID
	}

	sale, err := a.svc.SaveSale(ctx, opts)
	if err != nil {
		return err
	}
	a.printSale(sale)
	return nil
}

func (a *app) sales(ctx context.Context, args []string) error {
	fs := a.flags("sales")
	var filter reports.SalesFilter
	fs.StringVar(&filter.From, "from", "", "first day YYYY-MM-DD")
	fs.StringVar(&filter.To, "to", "", "last day YYYY-MM-DD")
	fs.StringVar(&filter.Search, "q", "", "search total, bill number or customer")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sales, err := a.svc.Sales(ctx, filter)
	if err != nil {
		return err
	}
	p := paging.Paginate(sales, *page, a.cfg.PageSize)

	tw := a.table()
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tITEMS\tTOTAL\tPAID\tDUE\tSTATUS")
	for _, s := range p.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n", s.ID, s.SaleDate.Local().Format("2006-01-02 15:04"),
			customerName(s), s.ItemsCount, s.Total.StringFixed(2), s.PaidAmount.StringFixed(2),
			s.DueAmount.StringFixed(2), s.PaymentStatus)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.pageFooter(p.Page, p.TotalPages, p.Total)
	return nil
}

func (a *app) sale(ctx context.Context, args []string) error {
	id, _, err := leadingID(args)
	if err != nil {
		return err
	}
	sale, err := a.svc.Sale(ctx, id)
	if err != nil {
		return err
	}
	a.printSale(sale)
	return nil
}

func (a *app) printSale(sale domain.Sale) {
	fmt.Fprintf(a.out, "Sale #%d  %s  %s\n", sale.ID, sale.SaleDate.Local().Format("02 Jan 2006 15:04"), customerName(sale))

	tw := a.table()
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tMRP\tPRICE\tDISC\tTOTAL\tRETURNABLE")
	markdown := decimal.Zero
	for _, item := range sale.Items {
		name := strconv.FormatInt(item.ProductID, 10)
		if item.Product != nil {
			name = item.Product.Name
		}
		disc := itemDiscount(item)
		markdown = markdown.Add(disc)
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%d\n", item.ID, name, item.Quantity, item.MRP.StringFixed(2),
			item.UnitPrice.StringFixed(2), disc.StringFixed(2), item.LineTotal.StringFixed(2), item.RemainingQty)
	}
	_ = tw.Flush()

	if markdown.IsPositive() {
		fmt.Fprintf(a.out, "MRP discount %s\n", markdown.StringFixed(2))
	}
	fmt.Fprintf(a.out, "Subtotal %s  Discount %s  Total %s\n", sale.Subtotal.StringFixed(2), sale.Discount.StringFixed(2), sale.Total.StringFixed(2))
	fmt.Fprintf(a.out, "Paid %s  Due %s  Status %s\n", sale.PaidAmount.StringFixed(2), sale.DueAmount.StringFixed(2), sale.PaymentStatus)
	if refunded, adjusted := returns.Summary(sale); refunded.IsPositive() || adjusted.IsPositive() {
		fmt.Fprintf(a.out, "Refunded %s  Adjusted %s\n", refunded.StringFixed(2), adjusted.StringFixed(2))
	}
	if rec := billing.Reconcile(sale); !rec.Balanced {
		fmt.Fprintf(a.out, "WARNING: paid + due is off by %s\n", rec.Gap.StringFixed(2))
	}
	for _, ret := range sale.Returns {
		fmt.Fprintf(a.out, "Return #%d %s %s\n", ret.ID, ret.RefundAmount.StringFixed(2), returns.Settle(ret).Label)
	}
	for _, inv := range sale.Invoices {
		fmt.Fprintf(a.out, "Invoice %s  %s\n", inv.InvoiceNumber, a.client.InvoiceURL(inv.ID, apiclient.DocumentPrint))
	}
}

// itemDiscount is the markdown from MRP on a billed line, zero when sold at
// or above MRP.
func itemDiscount(item domain.SaleItem) decimal.Decimal {
	diff := item.MRP.Sub(item.UnitPrice)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func (a *app) returnItems(ctx context.Context, args []string) error {
	saleID, rest, err := leadingID(args)
	if err != nil {
		return err
	}
	fs := a.flags("return")
	items := fs.String("items", "", "saleItemID:qty,...")
	method := fs.String("method", "", "refund method; empty adjusts against due")
	reason := fs.String("reason", "", "reason")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	quantities, err := parseReturnItems(*items)
	if err != nil {
		return err
	}

	form, _, err := a.svc.StartReturn(ctx, saleID)
	if err != nil {
		return err
	}
	for _, itemID := range sortedIDs(quantities) {
		form.SetQuantity(itemID, quantities[itemID])
	}
	fmt.Fprintf(a.out, "Refund total %s\n", form.RefundTotal().StringFixed(2))

	ret, err := a.svc.SubmitReturn(ctx, form, *method, *reason)
	if err != nil {
		return err
	}
	if ret.Invoice != nil {
		fmt.Fprintf(a.out, "Refund invoice %s  %s\n", ret.Invoice.InvoiceNumber, a.client.InvoiceURL(ret.Invoice.ID, apiclient.DocumentPrint))
	}
	return nil
}

func (a *app) pay(ctx context.Context, args []string) error {
	customerID, rest, err := leadingID(args)
	if err != nil {
		return err
	}
	fs := a.flags("pay")
	amount := fs.String("amount", "", "amount received")
	method := fs.String("method", domain.PaymentMethodCash, "cash, upi, card or bank")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	value, err := parseAmount("amount", *amount)
	if err != nil {
		return err
	}

	customer, err := a.svc.Customer(ctx, customerID)
	if err != nil {
		return err
	}
	unpaid, outstanding, err := a.svc.LatestUnpaidSale(ctx, customerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Latest unpaid bill #%d  %s  Due %s  Outstanding %s\n", unpaid.ID,
		unpaid.SaleDate.Local().Format("02 Jan 2006"), unpaid.DueAmount.StringFixed(2), outstanding.StringFixed(2))

	payment, err := a.svc.ReceivePayment(ctx, customer, value, *method)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Receipt %s  %s\n", payment.ReceiptNo, a.client.ReceiptURL(payment.ReceiptNo, apiclient.DocumentPrint))
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	customerID, rest, err := leadingID(args)
	if err != nil {
		return err
	}
	fs := a.flags("history")
	var filter ledger.Filter
	fs.StringVar(&filter.Kind, "kind", ledger.KindAll, "all, payment or refund")
	fs.StringVar(&filter.Search, "q", "", "search receipt, invoice, method or amount")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	h, err := a.svc.PaymentHistory(ctx, customerID, filter)
	if err != nil {
		return err
	}
	p := paging.Paginate(h.Entries, *page, a.cfg.PageSize)

	fmt.Fprintf(a.out, "%s  due %s\n", h.Customer.Name, h.Customer.DueBalance.StringFixed(2))
	tw := a.table()
	fmt.Fprintln(tw, "DATE\tRECEIPT\tINVOICE\tMETHOD\tAMOUNT")
	for _, entry := range p.Items {
		invoice := ""
		if entry.Invoice != nil {
			invoice = entry.Invoice.InvoiceNumber
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", entry.PaymentDate.Local().Format("2006-01-02 15:04"),
			entry.ReceiptNo, invoice, strings.ToUpper(entry.PaymentMethod), entry.Amount.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Payments %s  Refunds %s  Net %s\n", h.Totals.Payments.StringFixed(2),
		h.Totals.Refunds.StringFixed(2), h.Totals.Net.StringFixed(2))
	a.pageFooter(p.Page, p.TotalPages, p.Total)
	return nil
}

func (a *app) document(ctx context.Context, kind string, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errUsage
	}
	ref := args[0]
	fs := a.flags(kind)
	download := fs.Bool("download", false, "plain-text download instead of printable HTML")
	output := fs.String("o", "", "write to file instead of stdout")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	format := apiclient.DocumentPrint
	if *download {
		format = apiclient.DocumentDownload
	}
	var url string
	if kind == "invoice" {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice id %q", ref)
		}
		url = a.client.InvoiceURL(id, format)
	} else {
		url = a.client.ReceiptURL(ref, format)
	}

	body, _, err := a.client.FetchDocument(ctx, url)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = a.out.Write(body)
		return err
	}
	return os.WriteFile(*output, body, 0o644)
}

func (a *app) dashboard(ctx context.Context) error {
	d, err := a.svc.Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Today: %s from %d bills\n", d.TodaySales.StringFixed(2), d.TodayBills)
	fmt.Fprintf(a.out, "Products: %d  Out of stock: %d  Stock value: %s\n", d.TotalProducts, d.OutOfStock, d.StockValue.StringFixed(2))

	tw := a.table()
	fmt.Fprintln(tw, "DAY\tSALES")
	for _, day := range d.Trend {
		fmt.Fprintf(tw, "%s\t%s\n", day.Label, day.Total.StringFixed(2))
	}
	if len(d.LowStock) > 0 {
		fmt.Fprintln(tw, "\nLOW STOCK\tQTY")
		for _, p := range d.LowStock {
			fmt.Fprintf(tw, "%s %s\t%d\n", p.Code, p.Name, p.CurrentStock)
		}
	}
	if len(d.Categories) > 0 {
		fmt.Fprintln(tw, "\nCATEGORY\tVALUE")
		for _, c := range d.Categories {
			fmt.Fprintf(tw, "%s\t%s\n", c.Category, c.Value.StringFixed(2))
		}
	}
	return tw.Flush()
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := a.flags("report")
	var filter reports.SalesFilter
	fs.StringVar(&filter.From, "from", "", "first day YYYY-MM-DD")
	fs.StringVar(&filter.To, "to", "", "last day YYYY-MM-DD")
	format := fs.String("format", "csv", "csv or html")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := a.svc.DailyReport(ctx, filter)
	if err != nil {
		return err
	}
	switch *format {
	case "csv":
		_, err = io.WriteString(a.out, summary.CSV())
	case "html":
		_, err = io.WriteString(a.out, summary.HTML())
	default:
		err = fmt.Errorf("unknown report format %q", *format)
	}
	return err
}

func (a *app) pageFooter(page, totalPages, total int) {
	fmt.Fprintf(a.out, "Page %d of %d (%d total)\n", page, totalPages, total)
}

// itemSpec is one id:qty[@price] entry of an -items flag.
type itemSpec struct {
	ProductID int64
	Quantity  int
	Price     *decimal.Decimal
}

// parseSaleItems reads "id:qty[@price],...". Repeated ids are merged and the
// last price given wins.
func parseSaleItems(raw string) ([]itemSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("-items is required")
	}
	var out []itemSpec
	index := map[int64]int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var price *decimal.Decimal
		if at := strings.IndexByte(part, '@'); at >= 0 {
			p, err := decimal.NewFromString(part[at+1:])
			if err != nil || p.IsNegative() {
				return nil, fmt.Errorf("invalid price in %q", part)
			}
			price = &p
			part = part[:at]
		}
		id, qty, err := parsePair(part)
		if err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].Quantity += qty
			if price != nil {
				out[i].Price = price
			}
			continue
		}
		index[id] = len(out)
		out = append(out, itemSpec{ProductID: id, Quantity: qty, Price: price})
	}
	if len(out) == 0 {
		return nil, errors.New("-items is required")
	}
	return out, nil
}

// newEntry is a new:CODE:qty[@cost] entry of a purchase -items flag.
type newEntry struct {
	itemSpec
	Code string
}

// splitNewEntries takes the new:CODE:qty[@cost] entries out of a purchase
// -items value and returns the remaining id entries untouched.
func splitNewEntries(raw string) (string, []newEntry, error) {
	var (
		rest    []string
		entries []newEntry
	)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, ok := strings.CutPrefix(part, "new:")
		if !ok {
			rest = append(rest, part)
			continue
		}
		entry := newEntry{itemSpec: itemSpec{Quantity: 1}}
		if at := strings.IndexByte(code, '@'); at >= 0 {
			cost, err := decimal.NewFromString(code[at+1:])
			if err != nil || cost.IsNegative() {
				return "", nil, fmt.Errorf("invalid cost in %q", part)
			}
			entry.Price = &cost
			code = code[:at]
		}
		if colon := strings.LastIndexByte(code, ':'); colon >= 0 {
			qty, err := strconv.Atoi(code[colon+1:])
			if err != nil || qty <= 0 {
				return "", nil, fmt.Errorf("invalid quantity in %q", part)
			}
			entry.Quantity = qty
			code = code[:colon]
		}
		entry.Code = strings.ToUpper(strings.TrimSpace(code))
		if entry.Code == "" {
			return "", nil, fmt.Errorf("missing product code in %q", part)
		}
		entries = append(entries, entry)
	}
	return strings.Join(rest, ","), entries, nil
}

// parseReturnItems reads "saleItemID:qty,..." into quantities per sale item.
func parseReturnItems(raw string) (map[int64]int, error) {
	out := map[int64]int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qty, err := parsePair(part)
		if err != nil {
			return nil, err
		}
		out[id] += qty
	}
	if len(out) == 0 {
		return nil, returns.ErrNothingSelected
	}
	return out, nil
}

func parsePair(part string) (int64, int, error) {
	idStr, qtyStr, ok := strings.Cut(part, ":")
	if !ok {
		qtyStr = "1"
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("invalid id in %q", part)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyStr))
	if err != nil || qty <= 0 {
		return 0, 0, fmt.Errorf("invalid quantity in %q", part)
	}
	return id, qty, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// leadingID takes the positional id in front of the flags.
func leadingID(args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid id %q", args[0])
	}
	return id, args[1:], nil
}

func findProduct(products []domain.Product, id int64) (domain.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func customerName(s domain.Sale) string {
	if s.Customer != nil {
		return s.Customer.Name
	}
	return "Walk-in"
}

func sortedIDs(m map[int64]int) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
