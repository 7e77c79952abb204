package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/cache"
	"github.com/GTDGit/digistore/internal/config"
	"github.com/GTDGit/digistore/internal/database"
	"github.com/GTDGit/digistore/internal/handler"
	"github.com/GTDGit/digistore/internal/middleware"
	"github.com/GTDGit/digistore/internal/repository"
	"github.com/GTDGit/digistore/internal/service"
	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/store"
	"github.com/GTDGit/digistore/internal/utils"
	"github.com/GTDGit/digistore/internal/worker"
)

// main is the application entrypoint for the digistore storefront API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("backend", cfg.Store.Backend).Msg("starting digistore")

	// 3. Open the store backend
	backend, ping, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Store.Backend).Msg("store backend unavailable")
		fmt.Fprintf(os.Stderr, "store backend unavailable: %v\n", err)
		os.Exit(1)
	}
	defer closeBackend()

	st := store.New(backend, store.Options{
		Prefix:         cfg.Store.KeyPrefix,
		MaxBytes:       cfg.Store.MaxBytes,
		RetainRecent:   cfg.Store.RetainRecent,
		FallbackRecent: cfg.Store.FallbackRecent,
		AppendOnly:     []string{store.KeyOrders},
	})

	// 4. Event hub
	hub := sse.NewHub()

	// 5. Asset storage
	assets, err := service.NewAssetService(context.Background(), &cfg.Asset)
	if err != nil {
		log.Warn().Err(err).Msg("asset storage unavailable - product files will be inlined")
		assets, _ = service.NewAssetService(context.Background(), &config.AssetConfig{MaxInlineBytes: cfg.Asset.MaxInlineBytes})
	}

	// 6. Load the session
	session, err := service.NewSession(context.Background(), st, sse.NewHubNotifier(hub), assets, service.SessionConfig{
		SeedCatalog:     cfg.Commerce.SeedCatalog,
		PaymentDelay:    cfg.Commerce.PaymentDelay,
		MaxDownloads:    cfg.Commerce.MaxDownloads,
		DownloadBaseURL: cfg.Commerce.DownloadBaseURL,
	})
	if err != nil {
		// Unreadable records fall back to defaults; the session is still usable.
		log.Warn().Err(err).Msg("session loaded with defaults for unreadable records")
	}

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:   handler.NewHealthHandler(cfg.Store.Backend, ping, hub),
		Catalog:  handler.NewCatalogHandler(session.Catalog),
		Cart:     handler.NewCartHandler(session.Cart, session.Catalog),
		Checkout: handler.NewCheckoutHandler(session),
		Library:  handler.NewLibraryHandler(session.Entitlements, session.Catalog),
		SSE:      handler.NewSSEHandler(hub),
	}

	// 8. Initialize middleware
	writeLimiter := middleware.NewRateLimiter(cfg.HTTP.WriteLimit, cfg.HTTP.WriteWindow)

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.HTTP.AllowedOrigins...))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, writeLimiter)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go worker.NewFlushWorker(session, cfg.Worker.FlushInterval).Start(ctx)
	go writeLimiter.Cleanup(ctx, 5*time.Minute)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// 16. Let scheduled orders complete and write back abandoned state
	if err := session.Close(shutdownCtx); err != nil {
		if utils.IsWarning(err) {
			log.Warn().Err(err).Msg("final flush left state unsaved")
		} else {
			log.Error().Err(err).Msg("final flush failed")
		}
	}
	log.Info().Msg("Server exited")
}

// openBackend connects the configured store backend. ping is nil for the
// in-memory backend.
func openBackend(cfg *config.Config) (store.Backend, func(context.Context) error, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rc, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
		log.Info().Msg("redis connected successfully")
		return rc, rc.Ping, func() { _ = rc.Close() }, nil

	case config.BackendPostgres:
		db, err := database.Connect(&cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.RunMigrations(db.DB); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info().Msg("migrations completed successfully")
		return repository.NewRecordRepository(db), db.PingContext, func() { _ = db.Close() }, nil

	default:
		return store.NewMemoryBackend(cfg.Store.MemoryQuota), nil, func() {}, nil
	}
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health   *handler.HealthHandler
	Catalog  *handler.CatalogHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Library  *handler.LibraryHandler
	SSE      *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, writeLimiter *middleware.RateLimiter) {
	v1 := router.Group("/v1")

	v1.GET("/health", handlers.Health.GetHealth)
	v1.GET("/events", handlers.SSE.Stream)

	// Catalog
	v1.GET("/products", handlers.Catalog.ListProducts)
	v1.GET("/products/:id", handlers.Catalog.GetProduct)
	products := v1.Group("/products")
	products.Use(writeLimiter.Handle())
	{
		products.POST("", handlers.Catalog.CreateProduct)
		products.PUT("/:id", handlers.Catalog.UpdateProduct)
		products.DELETE("/:id", handlers.Catalog.DeleteProduct)
	}

	// Cart
	v1.GET("/cart", handlers.Cart.GetCart)
	v1.DELETE("/cart", handlers.Cart.ClearCart)
	v1.POST("/cart/items", handlers.Cart.AddItem)
	v1.PUT("/cart/items/:productId", handlers.Cart.SetQuantity)
	v1.DELETE("/cart/items/:productId", handlers.Cart.RemoveItem)

	// Checkout and orders
	v1.POST("/checkout", writeLimiter.Handle(), handlers.Checkout.Checkout)
	v1.GET("/orders", handlers.Checkout.ListOrders)
	v1.GET("/orders/:id", handlers.Checkout.GetOrder)

	// Library
	v1.GET("/library", handlers.Library.ListLibrary)
	v1.POST("/library/:productId/download", handlers.Library.Download)
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
