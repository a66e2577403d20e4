package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Gender       string          `json:"gender"`
	Size         string          `json:"size"`
	Color        string          `json:"color"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	CurrentStock int             `json:"current_stock"`
}

// ProductInput is the create/update body. OpeningStock is only sent on create.
type ProductInput struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Gender       string          `json:"gender"`
	Size         *string         `json:"size"`
	Color        *string         `json:"color"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	OpeningStock *int            `json:"opening_stock,omitempty"`
}

type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone,omitempty"`
	Email      string          `json:"email,omitempty"`
	Address    string          `json:"address,omitempty"`
	DueBalance decimal.Decimal `json:"due_balance"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type PurchaseItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Product   *ProductRef     `json:"product,omitempty"`
}

type Purchase struct {
	ID           int64           `json:"id"`
	PurchaseDate string          `json:"purchase_date"`
	Supplier     string          `json:"supplier"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ItemsCount   int             `json:"items_count"`
	TotalItems   int             `json:"total_items"`
	Items        []PurchaseItem  `json:"items,omitempty"`
}

// ProductRef is the product snapshot nested in line items.
type ProductRef struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// NewProductInput registers a product inline as part of a purchase.
type NewProductInput struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Gender    string          `json:"gender"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// PurchaseItemInput references either an existing product (ProductID) or a new one (Product).
type PurchaseItemInput struct {
	ProductID *int64           `json:"product_id,omitempty"`
	Product   *NewProductInput `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	SellPrice *decimal.Decimal `json:"sell_price,omitempty"`
}

type PurchaseInput struct {
	PurchaseDate string              `json:"purchase_date"`
	Supplier     string              `json:"supplier"`
	Items        []PurchaseItemInput `json:"items"`
}

type SaleItem struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	MRP          decimal.Decimal `json:"mrp"`
	LineTotal    decimal.Decimal `json:"line_total"`
	RemainingQty int             `json:"remaining_qty"`
	Product      *ProductRef     `json:"product,omitempty"`
}

type Invoice struct {
	ID            int64  `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	Type          string `json:"type"`
}

type Payment struct {
	ID            int64           `json:"id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	SaleID        *int64          `json:"sale_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   time.Time       `json:"payment_date"`
	ReceiptNo     string          `json:"receipt_no"`
	Invoice       *Invoice        `json:"invoice,omitempty"`
}

type SaleReturnItem struct {
	ID         int64           `json:"id"`
	SaleItemID int64           `json:"sale_item_id"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Product    *ProductRef     `json:"product,omitempty"`
}

type SaleReturn struct {
	ID           int64            `json:"id"`
	SaleID       int64            `json:"sale_id"`
	ReturnDate   time.Time        `json:"return_date"`
	RefundMethod *string          `json:"refund_method"`
	RefundAmount decimal.Decimal  `json:"refund_amount"`
	Reason       string           `json:"reason"`
	Items        []SaleReturnItem `json:"items"`
	Invoice      *Invoice         `json:"invoice,omitempty"`
}

// Adjusted reports whether the return was settled against the customer's due.
func (r SaleReturn) Adjusted() bool {
	return r.RefundMethod == nil || strings.TrimSpace(*r.RefundMethod) == ""
}

type SaleCustomer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Sale struct {
	ID            int64           `json:"id"`
	SaleDate      time.Time       `json:"sale_date"`
	CustomerID    *int64          `json:"customer_id"`
	Customer      *SaleCustomer   `json:"customer,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	RefundTotal   decimal.Decimal `json:"refund_total"`
	NetTotal      decimal.Decimal `json:"net_total"`
	PaymentStatus string          `json:"payment_status"`
	ItemsCount    int             `json:"items_count"`
	Items         []SaleItem      `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
	Returns       []SaleReturn    `json:"returns,omitempty"`
	Invoices      []Invoice       `json:"invoices,omitempty"`
}

type SaleItemInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleRequest struct {
	SaleDate      time.Time       `json:"sale_date"`
	CustomerID    *int64          `json:"customer_id"`
	Discount      decimal.Decimal `json:"discount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Items         []SaleItemInput `json:"items"`
}

type ReturnItemInput struct {
	SaleItemID int64 `json:"sale_item_id"`
	Quantity   int   `json:"quantity"`
}

// ReturnRequest omits RefundMethod to settle the return against the customer's due.
type ReturnRequest struct {
	Items        []ReturnItemInput `json:"items"`
	RefundMethod *string           `json:"refund_method,omitempty"`
	Reason       string            `json:"reason"`
}

type PaymentRequest struct {
	CustomerID    int64           `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusUnpaid  = "unpaid"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodUPI  = "upi"
	PaymentMethodCard = "card"
	PaymentMethodBank = "bank"
)

const (
	InvoiceTypeSale   = "sale"
	InvoiceTypeRefund = "refund"
)

// IsPaymentMethod reports whether method is one the shop accepts.
func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCard, PaymentMethodBank:
		return true
	}
	return false
}

// PaymentStatusFor derives paid/partial/unpaid from what was collected against what is owed.
func PaymentStatusFor(owed, paid decimal.Decimal) string {
	switch {
	case !paid.LessThan(owed):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}

// UserAccount is a stored login. Password holds a bcrypt hash.
type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
