package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shopdesk/internal/cache"
	"shopdesk/internal/domain"
	"shopdesk/internal/session"
	"shopdesk/internal/xid"
)

const productsCacheKey = "products"

type Options struct {
	Timeout          time.Duration
	Transport        http.RoundTripper
	Sessions         session.Store
	OnSessionExpired func()
	Cache            cache.CatalogCache
	CatalogTTL       time.Duration
}

// Client talks to the shop REST API. Every request goes through the auth
// transport chain; mutations are sent once and never retried.
type Client struct {
	baseURL    string
	http       *http.Client
	sessions   session.Store
	cache      cache.CatalogCache
	catalogTTL time.Duration
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Sessions == nil {
		opts.Sessions = &session.MemoryStore{}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopCatalogCache{}
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = 30 * time.Second
	}

	chain := &unauthorizedInterceptor{
		next:      &authTransport{next: opts.Transport, sessions: opts.Sessions, onExpired: opts.OnSessionExpired},
		sessions:  opts.Sessions,
		onExpired: opts.OnSessionExpired,
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: opts.Timeout, Transport: chain},
		sessions:   opts.Sessions,
		cache:      opts.Cache,
		catalogTTL: opts.CatalogTTL,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the stored session, or session.ErrNoSession.
func (c *Client) Session() (session.Session, error) {
	return c.sessions.Load()
}

func (c *Client) Login(ctx context.Context, username, password string) (session.Session, error) {
	var resp domain.LoginResponse
	req := domain.LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := c.do(withPublic(ctx), http.MethodPost, "/login", req, &resp, "Login failed"); err != nil {
		return session.Session{}, err
	}
	if resp.Token == "" {
		return session.Session{}, fmt.Errorf("login response has no token")
	}

	s := session.Session{Token: resp.Token, Username: resp.User.Username, Role: resp.User.Role}
	if exp, err := session.ExpiryFromToken(resp.Token); err == nil {
		s.ExpiresAt = exp
	}
	if err := c.sessions.Save(s); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Logout forgets the local session. The token is stateless on the server.
func (c *Client) Logout(ctx context.Context) error {
	c.invalidateCatalog(ctx)
	return c.sessions.Clear()
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if cached, ok, err := c.cache.Get(ctx, productsCacheKey); err != nil {
		log.Printf("[apiclient] WARN: catalog cache read failed: %v", err)
	} else if ok {
		return cached, nil
	}

	products, err := getList[domain.Product](ctx, c, "/products", "Failed to load products")
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, productsCacheKey, products, c.catalogTTL); err != nil {
		log.Printf("[apiclient] WARN: catalog cache write failed: %v", err)
	}
	return products, nil
}

func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	var out domain.Product
	err := c.mutate(ctx, http.MethodPost, "/products", in, &out, "Failed to create product")
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error) {
	in.OpeningStock = nil
	var out domain.Product
	err := c.mutate(ctx, http.MethodPut, "/products/"+itoa(id), in, &out, "Failed to update product")
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.mutate(ctx, http.MethodDelete, "/products/"+itoa(id), nil, nil, "Failed to delete product")
}

func (c *Client) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return getList[domain.Purchase](ctx, c, "/purchases", "Failed to load purchases")
}

func (c *Client) GetPurchase(ctx context.Context, id int64) (domain.Purchase, error) {
	var out domain.Purchase
	err := c.do(ctx, http.MethodGet, "/purchases/"+itoa(id), nil, &out, "Failed to load purchase")
	return out, err
}

func (c *Client) CreatePurchase(ctx context.Context, in domain.PurchaseInput) (domain.Purchase, error) {
	var out domain.Purchase
	err := c.mutate(ctx, http.MethodPost, "/purchases", in, &out, "Failed to save purchase")
	return out, err
}

func (c *Client) UpdatePurchase(ctx context.Context, id int64, in domain.PurchaseInput) (domain.Purchase, error) {
	var out domain.Purchase
	err := c.mutate(ctx, http.MethodPut, "/purchases/"+itoa(id), in, &out, "Failed to update purchase")
	return out, err
}

// ListSales lists every sale, or only the sales of one customer.
func (c *Client) ListSales(ctx context.Context, customerID *int64) ([]domain.Sale, error) {
	path := "/sales"
	if customerID != nil {
		path += "?customer_id=" + itoa(*customerID)
	}
	return getList[domain.Sale](ctx, c, path, "Failed to load sales")
}

func (c *Client) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	var out domain.Sale
	err := c.do(ctx, http.MethodGet, "/sales/"+itoa(id), nil, &out, "Failed to load sale")
	return out, err
}

func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	var out domain.Sale
	err := c.mutate(ctx, http.MethodPost, "/sales", req, &out, "Failed to save sale")
	return out, err
}

func (c *Client) CreateReturn(ctx context.Context, saleID int64, req domain.ReturnRequest) (domain.SaleReturn, error) {
	var out domain.SaleReturn
	err := c.mutate(ctx, http.MethodPost, "/sales/"+itoa(saleID)+"/returns", req, &out, "Failed to save return")
	return out, err
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return getList[domain.Customer](ctx, c, "/customers", "Failed to load customers")
}

func (c *Client) CreateCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, http.MethodPost, "/customers", in, &out, "Failed to create customer")
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, in domain.CustomerInput) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, http.MethodPut, "/customers/"+itoa(id), in, &out, "Failed to update customer")
	return out, err
}

// CustomerPayments is the customer's money history. Refunds have a negative amount.
func (c *Client) CustomerPayments(ctx context.Context, customerID int64) ([]domain.Payment, error) {
	return getList[domain.Payment](ctx, c, "/customers/"+itoa(customerID)+"/payments", "Failed to load payment history")
}

func (c *Client) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	var out domain.Payment
	err := c.do(ctx, http.MethodPost, "/payments", req, &out, "Payment failed")
	return out, err
}

const (
	DocumentPrint    = "print"
	DocumentDownload = "download"
)

func (c *Client) InvoiceURL(invoiceID int64, kind string) string {
	return c.baseURL + "/invoices/" + itoa(invoiceID) + "/" + documentKind(kind)
}

func (c *Client) ReceiptURL(receiptNo string, kind string) string {
	return c.baseURL + "/receipts/" + url.PathEscape(receiptNo) + "/" + documentKind(kind)
}

// FetchDocument downloads a printable invoice or receipt with the session token.
func (c *Client) FetchDocument(ctx context.Context, documentURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", unwrapTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, "Failed to load document"), Body: string(body)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func documentKind(kind string) string {
	if kind == DocumentDownload {
		return DocumentDownload
	}
	return DocumentPrint
}

// mutate sends a request that changes stock and drops the cached catalog on success.
func (c *Client) mutate(ctx context.Context, method, path string, body any, out any, fallback string) error {
	if err := c.do(ctx, method, path, body, out, fallback); err != nil {
		return err
	}
	c.invalidateCatalog(ctx)
	return nil
}

func (c *Client) invalidateCatalog(ctx context.Context) {
	if err := c.cache.Invalidate(ctx, productsCacheKey); err != nil {
		log.Printf("[apiclient] WARN: catalog cache invalidate failed: %v", err)
	}
}

func getList[T any](ctx context.Context, c *Client, path string, fallback string) ([]T, error) {
	body, err := c.send(ctx, http.MethodGet, path, nil, fallback)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[T](body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, fallback string) error {
	raw, err := c.send(ctx, method, path, body, fallback)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := decodeOne(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", fallback, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, fallback string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", xid.New("req"))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unwrapTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, fallback), Body: string(raw)}
	}
	return raw, nil
}

// unwrapTransport strips the *url.Error around the auth sentinels so callers
// see them directly.
func unwrapTransport(err error) error {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return ErrSessionExpired
	case errors.Is(err, ErrUnauthenticated):
		return ErrUnauthenticated
	}
	return err
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
