package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront/admin"
	"storefront/auth"
	"storefront/cache"
	"storefront/handlers"
	"storefront/payment"
	"storefront/storage"
	"storefront/store"
	"storefront/store/memory"
	"storefront/store/postgres"
)

var inMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

With --memory the server keeps everything in process and starts from the
starter catalog. Nothing survives a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&inMemory, "memory", false, "Keep data in memory instead of PostgreSQL")
	rootCmd.AddCommand(serveCmd)
}

// openBackend returns the data platform, a health check and a cleanup func.
func openBackend(ctx context.Context) (*store.Backend, func(context.Context) error, func(), error) {
	if inMemory {
		backend := memory.New().Backend()
		added, err := store.SeedCatalog(ctx, backend.Products)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.WithField("products", added).Warn("Using in-memory store")
		return backend, nil, func() {}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DB.DSN, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	listener, err := db.Listen()
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		listener.Close()
		db.Close()
	}
	return db.Backend(listener), db.PingContext, cleanup, nil
}

func productCache(ctx context.Context, products store.ProductRepository) (store.ProductRepository, func()) {
	if !cfg.Redis.Enabled {
		return products, func() {}
	}
	rdb, err := cache.ConnectRedis(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, serving catalog without cache")
		return products, func() {}
	}
	return cache.NewCachedProductRepository(products, rdb, cfg.Redis.TTL, logger), func() { rdb.Close() }
}

func gateways() []payment.Gateway {
	var out []payment.Gateway
	if cfg.Payments.Flutterwave.SecretKey != "" {
		out = append(out, payment.NewFlutterwave(payment.FlutterwaveConfig{
			PublicKey: cfg.Payments.Flutterwave.PublicKey,
			SecretKey: cfg.Payments.Flutterwave.SecretKey,
			BaseURL:   cfg.Payments.Flutterwave.BaseURL,
		}))
	}
	if cfg.Payments.Coinbase.APIKey != "" {
		out = append(out, payment.NewCoinbase(payment.CoinbaseConfig{
			APIKey:        cfg.Payments.Coinbase.APIKey,
			WebhookSecret: cfg.Payments.Coinbase.WebhookSecret,
			BaseURL:       cfg.Payments.Coinbase.BaseURL,
		}))
	}
	return out
}

func serve(ctx context.Context) error {
	backend, ping, closeBackend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	products, closeCache := productCache(ctx, backend.Products)
	defer closeCache()

	files, err := storage.NewDisk(cfg.Storage.Dir, cfg.Server.BaseURL)
	if err != nil {
		return err
	}

	provider := auth.NewLocalProvider(backend.Users, backend.Tokens, []byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	gws := gateways()
	if len(gws) == 0 {
		logger.Warn("No payment gateway configured, checkout is disabled")
	}
	var coinbase handlers.WebhookParser
	for _, g := range gws {
		if cb, ok := g.(*payment.Coinbase); ok {
			coinbase = cb
		}
	}

	hub := admin.NewHub(logger)
	feed := admin.NewFeed(backend.Feed, backend.Orders, hub, logger)
	hub.OnJoin(func() interface{} {
		snapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return feed.Snapshot(snapCtx)
	})
	stopFeed := feed.Start()
	defer stopFeed()

	router := handlers.NewRouter(&handlers.Deps{
		Backend:     backend,
		Products:    products,
		Auth:        provider,
		Payments:    payment.NewAdapter(logger, gws...),
		Coinbase:    coinbase,
		Admin:       admin.NewService(products, backend.Orders, files.Bucket(admin.ProductImagesBucket), logger),
		Feed:        hub,
		Storage:     files.Handler(),
		BaseURL:     cfg.Server.BaseURL,
		Currency:    cfg.Payments.Currency,
		CORSOrigins: cfg.Server.CORSOrigins,
		IsAdmin:     cfg.Auth.IsAdmin,
		Ping:        ping,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Server.Port, "memory": inMemory}).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
