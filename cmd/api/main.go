package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flashbot-backend/internal/cache"
	"flashbot-backend/internal/config"
	"flashbot-backend/internal/handler"
	"flashbot-backend/internal/llm"
	"flashbot-backend/internal/orders"
	"flashbot-backend/internal/router"
	"flashbot-backend/internal/service"
	"flashbot-backend/internal/shopify"
	"flashbot-backend/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting FlashBot backend...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize catalog store based on config
	var catalogStore store.CatalogStore
	switch cfg.IndexDB.Type {
	case "mysql":
		mysqlStore, err := store.NewMySQLStore(cfg.IndexDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		defer mysqlStore.Close()
		catalogStore = mysqlStore
		log.Println("MySQL catalog store initialized")
	default: // sqlite
		sqliteStore, err := store.NewSQLiteStore(cfg.IndexDB.Dir)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		defer sqliteStore.Close()
		catalogStore = sqliteStore
		log.Println("SQLite catalog store initialized")
	}

	// Initialize catalog API client
	shopifyClient := shopify.NewClient(shopify.Config{
		Token:          cfg.Shopify.Token,
		BaseURL:        cfg.Shopify.AdminBase(),
		PageSize:       cfg.Shopify.PageSize,
		MaxPages:       cfg.Shopify.MaxPages,
		InventoryBatch: cfg.Shopify.InventoryBatch,
		Timeout:        cfg.Shopify.Timeout,
		RetryAfter:     cfg.Shopify.RetryAfter,
		RequestsPerSec: cfg.Shopify.RequestsPerSec,
		Burst:          cfg.Shopify.Burst,
	})

	// Initialize language model client (optional)
	var chat llm.Chat
	if cfg.DeepSeek.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:      cfg.DeepSeek.APIKey,
			Model:       cfg.DeepSeek.Model,
			BaseURL:     cfg.DeepSeek.BaseURL,
			Temperature: cfg.DeepSeek.Temperature,
			Timeout:     cfg.DeepSeek.Timeout,
		})
		if err != nil {
			log.Printf("Warning: language model client failed: %v", err)
		} else {
			chat = client
			log.Println("Language model client initialized")
		}
	} else {
		log.Println("No language model API key, serving deterministic answers only")
	}

	// Initialize cache for the orders report
	var reportCache cache.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache failed, falling back to memory: %v", err)
		} else {
			defer redisCache.Close()
			reportCache = redisCache
		}
	}
	if reportCache == nil {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		reportCache = memCache
		log.Println("Memory cache initialized")
	}

	// Initialize orders report reader (optional)
	var ordersReader *orders.Reader
	if cfg.Orders.PubHTMLURL != "" {
		ordersReader = orders.NewReader(cfg.Orders.PubHTMLURL, cfg.Orders.TTL, cfg.Orders.Timeout, reportCache)
		log.Println("Orders report reader initialized")
	} else {
		log.Println("No orders report URL, order-status lookups disabled")
	}

	// Initialize services
	indexer := service.NewIndexer(shopifyClient, catalogStore)
	retriever := service.NewRetriever(catalogStore, cfg.Shopify.StoreBaseURL, cfg.Chat.TopK)
	answerer := service.NewAnswerer(retriever, chat, ordersReader, cfg.Chat.RefusalPhrases)

	// Start the rebuild scheduler
	scheduler := service.NewReindexScheduler(indexer, cfg.Reindex.Interval, cfg.Reindex.OnStart)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	healthHandler := handler.New(catalogStore)
	chatHandler := handler.NewChatHandler(answerer)
	adminHandler := handler.NewAdminHandler(indexer, catalogStore, cfg.IndexDB.Type)

	var ordersHandler *handler.OrdersHandler
	if ordersReader != nil {
		ordersHandler = handler.NewOrdersHandler(ordersReader)
	}

	// Create router
	r := router.New(router.Config{
		Handler:       healthHandler,
		ChatHandler:   chatHandler,
		OrdersHandler: ordersHandler,
		AdminHandler:  adminHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
