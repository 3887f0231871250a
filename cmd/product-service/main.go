package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecomstack/minishop/internal/cache"
	"github.com/ecomstack/minishop/internal/config"
	"github.com/ecomstack/minishop/internal/consumer"
	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/discovery"
	"github.com/ecomstack/minishop/internal/handlers"
	"github.com/ecomstack/minishop/internal/messaging"
)

const (
	serviceName = "product-service"
	serviceID   = "product-service-1"

	consumerRestartDelay = 5 * time.Second
)

func main() {
	cfg := config.Load()

	// Connect to PostgreSQL
	database, err := db.NewPostgresDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Connect to Redis
	redisCache, err := cache.NewRedisCache(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Register with Consul
	consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
	if err != nil {
		log.Printf("⚠️ Consul unavailable, running unregistered: %v", err)
	} else {
		err = consul.Register(discovery.ServiceConfig{
			Name: serviceName,
			ID:   serviceID,
			Port: cfg.ProductPort,
			Tags: []string{"api", "products"},
		})
		if err != nil {
			log.Fatalf("Failed to register service: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Deregister on shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if consul != nil {
			consul.Deregister(serviceID)
		}
		database.Close()
		redisCache.Close()
		os.Exit(0)
	}()

	// Create repositories
	productRepo := db.NewProductRepository(database)
	cachedRepo := db.NewCachedProductRepository(productRepo, redisCache, cfg.ProductListKey, cfg.CacheTTL, cfg.CacheFetchTimeout)

	// Create handler
	productHandler := handlers.NewProductHandler(cachedRepo)

	// Start supervised reconciler workers
	reconciler := consumer.NewStockReconciler(productRepo, redisCache, cfg.ProductListKey)
	for i := 0; i < cfg.ConsumerWorkers; i++ {
		go superviseConsumer(ctx, cfg, reconciler, i)
	}

	// Setup router
	router := gin.Default()

	router.GET("/health", productHandler.HealthCheck)
	router.GET("/products", productHandler.ListProducts)
	router.GET("/products/:id", productHandler.GetProduct)
	router.POST("/products", productHandler.CreateProduct)
	router.PUT("/products/:id", productHandler.UpdateProduct)
	router.DELETE("/products/:id", productHandler.DeleteProduct)

	// Start server
	log.Printf("🚀 %s starting on http://localhost:%d", serviceName, cfg.ProductPort)
	log.Printf("   Consuming stock decrements from queue %q with %d worker(s)", cfg.OrderQueue, cfg.ConsumerWorkers)
	router.Run(fmt.Sprintf(":%d", cfg.ProductPort))
}

// superviseConsumer keeps one reconciler worker alive: a lost broker
// connection ends the consume loop, and the worker reconnects with a fresh
// connection instead of silently stopping.
func superviseConsumer(ctx context.Context, cfg config.Config, reconciler *consumer.StockReconciler, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := runConsumer(ctx, cfg, reconciler, worker); err != nil {
			log.Printf("❌ Consumer worker %d stopped: %v", worker, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRestartDelay):
			log.Printf("🔄 Restarting consumer worker %d", worker)
		}
	}
}

func runConsumer(ctx context.Context, cfg config.Config, reconciler *consumer.StockReconciler, worker int) error {
	mq, err := messaging.NewRabbitMQ(cfg.RabbitHost, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPassword)
	if err != nil {
		return err
	}
	defer mq.Close()

	if err := mq.DeclareQueue(cfg.OrderQueue); err != nil {
		return err
	}

	tag := fmt.Sprintf("%s-%d-%s", serviceID, worker, uuid.NewString())
	messages, err := mq.Consume(cfg.OrderQueue, tag)
	if err != nil {
		return err
	}

	reconciler.Run(ctx, messages)
	return fmt.Errorf("delivery channel closed")
}
