package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopdesk/internal/apiclient"
	"shopdesk/internal/cache"
	"shopdesk/internal/config"
	"shopdesk/internal/notify"
	"shopdesk/internal/sandbox"
	"shopdesk/internal/service"
	"shopdesk/internal/session"
	"shopdesk/internal/store"
	"shopdesk/internal/store/memory"
	pgstore "shopdesk/internal/store/postgres"
)

const usage = `usage: shopdesk <command> [flags]

commands:
  login <username> <password>
  logout
  products  [-q text] [-target all|kids|male|female|unisex] [-page n]
  product   -code -name -category [-gender] [-size] [-color] [-buy] [-sell] [-stock] [-id n]
  delete-product <id>
  purchase  -items productID:qty[@cost],... [-supplier] [-date YYYY-MM-DD] [-id n]
  customers [-q text]
  customer  -name NAME [-phone] [-email] [-address] [-id n]
  sell      -items id:qty[@price],... [-discount] [-paid] [-customer id] [-method]
  sales     [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-q text] [-page n]
  sale      <id>
  return    <saleID> -items itemID:qty,... [-method] [-reason]
  pay       <customerID> -amount n [-method]
  history   <customerID> [-kind all|payment|refund] [-q text] [-page n]
  invoice   <invoiceID> [-download] [-o file]
  receipt   <receiptNo> [-download] [-o file]
  dashboard
  report    [-from] [-to] [-format csv|html]
  sandbox`

var errUsage = errors.New(usage)

func main() {
	log.SetFlags(log.LstdFlags)
	cfg := config.Load()
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if args[0] == "sandbox" {
		return serveSandbox(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, closeFn := newApp(ctx, cfg, out)
	defer closeFn()
	return a.dispatch(ctx, args[0], args[1:])
}

// app wires one CLI invocation: config, API client and the workflow service.
type app struct {
	cfg    config.Config
	out    io.Writer
	client *apiclient.Client
	svc    *service.Service
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, func()) {
	catalogCache, closeFn := catalogCache(ctx, cfg)
	loc := time.Local

	client := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		Timeout:  cfg.HTTPTimeout(),
		Sessions: session.NewFileStore(cfg.SessionFile),
		OnSessionExpired: func() {
			log.Println("[shopdesk] session expired, run `shopdesk login` again")
		},
		Cache:      catalogCache,
		CatalogTTL: cfg.CatalogTTL(),
	})
	svc := service.New(client, notify.NewLogNotifier(out), service.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		ShopName:          cfg.ShopName,
		Currency:          cfg.Currency,
		Location:          loc,
	})
	return &app{cfg: cfg, out: out, client: client, svc: svc}, closeFn
}

// catalogCache shares the product list between invocations through Redis
// when REDIS_ADDR is set and reachable.
func catalogCache(ctx context.Context, cfg config.Config) (cache.CatalogCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NoopCatalogCache{}, func() {}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(pingCtx); err != nil {
		log.Printf("[shopdesk] WARN: redis unavailable (%v), catalog cache disabled", err)
		_ = redisCache.Close()
		return cache.NoopCatalogCache{}, func() {}
	}
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			log.Printf("[shopdesk] WARN: close redis: %v", err)
		}
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.svc.Logout(ctx)
	case "products":
		return a.products(ctx, args)
	case "product":
		return a.product(ctx, args)
	case "delete-product":
		return a.deleteProduct(ctx, args)
	case "purchase":
		return a.purchase(ctx, args)
	case "customers":
		return a.customers(ctx, args)
	case "customer":
		return a.saveCustomer(ctx, args)
	case "sell":
		return a.sell(ctx, args)
	case "sales":
		return a.sales(ctx, args)
	case "sale":
		return a.sale(ctx, args)
	case "return":
		return a.returnItems(ctx, args)
	case "pay":
		return a.pay(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "invoice":
		return a.document(ctx, "invoice", args)
	case "receipt":
		return a.document(ctx, "receipt", args)
	case "dashboard":
		return a.dashboard(ctx)
	case "report":
		return a.report(ctx, args)
	default:
		return errUsage
	}
}

func serveSandbox(cfg config.Config) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	ctx := context.Background()
	var repo store.Repository
	closers := make([]func() error, 0, 1)

	if cfg.DatabaseURL != "" {
		pg, err := openPostgres(ctx, cfg)
		if err != nil {
			return fmt.Errorf("postgres unavailable (%w) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded(cfg.SandboxAdminPassword)
		log.Println("repository: in-memory")
	}

	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Printf("close error: %v", err)
			}
		}
	}()

	auth := sandbox.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := sandbox.New(repo, auth, sandbox.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		ShopName:      cfg.ShopName,
		Currency:      cfg.Currency,
	})

	server := &http.Server{
		Addr:              cfg.SandboxAddress(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("shop sandbox listening on %s", cfg.SandboxAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("sandbox stopped")
	return nil
}

// openPostgres connects, creates missing tables and seeds the admin account.
func openPostgres(ctx context.Context, cfg config.Config) (*pgstore.Store, error) {
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	if err := pg.EnsureAdmin(ctx, cfg.SandboxAdminPassword); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.SandboxAdminPassword) < 8 {
		return fmt.Errorf("SANDBOX_ADMIN_PASSWORD must be set and at least 8 characters")
	}
	if weakPassword(cfg.SandboxAdminPassword) {
		return fmt.Errorf("SANDBOX_ADMIN_PASSWORD is too weak")
	}
	return nil
}

// weakPassword rejects well-known defaults and single repeated characters.
func weakPassword(pw string) bool {
	known := map[string]bool{
		"password": true, "12345678": true, "admin123": true,
		"qwertyui": true, "shopdesk": true, "changeme": true,
	}
	if known[pw] {
		return true
	}
	for i := 1; i < len(pw); i++ {
		if pw[i] != pw[0] {
			return false
		}
	}
	return true
}
