package store

import (
	"context"
	"errors"

	"shopdesk/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error)
	CreatePurchase(ctx context.Context, in domain.PurchaseInput) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, id int64, in domain.PurchaseInput) (*domain.Purchase, error)

	ListSales(ctx context.Context, customerID *int64) ([]domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (*domain.Sale, error)
	CreateReturn(ctx context.Context, saleID int64, req domain.ReturnRequest) (*domain.SaleReturn, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, in domain.CustomerInput) (*domain.Customer, error)
	ListCustomerPayments(ctx context.Context, customerID int64) ([]domain.Payment, error)
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)

	GetInvoice(ctx context.Context, id int64) (*domain.InvoiceDocument, error)
	GetReceipt(ctx context.Context, receiptNo string) (*domain.ReceiptDocument, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
