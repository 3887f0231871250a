package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ecomstack/minishop/internal/config"
	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/discovery"
	"github.com/ecomstack/minishop/internal/handlers"
	"github.com/ecomstack/minishop/internal/messaging"
	"github.com/ecomstack/minishop/internal/publisher"
)

const (
	serviceName = "order-service"
	serviceID   = "order-service-1"
)

func main() {
	cfg := config.Load()

	// Connect to PostgreSQL
	database, err := db.NewPostgresDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Connect to RabbitMQ
	rabbitMQ, err := messaging.NewRabbitMQ(cfg.RabbitHost, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPassword)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitMQ.Close()

	if err := rabbitMQ.DeclareQueue(cfg.OrderQueue); err != nil {
		log.Fatalf("Failed to declare queue: %v", err)
	}

	// Publisher with outbox-backed replay of failed publishes
	outboxRepo := db.NewOutboxRepository(database)
	orderPublisher := publisher.NewOrderPublisher(rabbitMQ, outboxRepo, cfg.OrderQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go orderPublisher.RunReplayLoop(ctx, cfg.ReplayInterval)

	// Register with Consul
	consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
	if err != nil {
		log.Printf("⚠️ Consul unavailable, running unregistered: %v", err)
	} else {
		err = consul.Register(discovery.ServiceConfig{
			Name: serviceName,
			ID:   serviceID,
			Port: cfg.OrderPort,
			Tags: []string{"api", "orders"},
		})
		if err != nil {
			log.Fatalf("Failed to register service: %v", err)
		}
	}

	// Create repository and handler
	orderRepo := db.NewOrderRepository(database)
	orderHandler := handlers.NewOrderHandler(orderRepo, orderPublisher)

	// Setup router
	router := gin.Default()

	router.GET("/health", orderHandler.HealthCheck)
	router.GET("/orders", orderHandler.ListOrders)
	router.GET("/orders/:id", orderHandler.GetOrder)
	router.POST("/orders", orderHandler.CreateOrder)
	router.PATCH("/orders/:id/status", orderHandler.UpdateOrderStatus)

	// Deregister on shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if consul != nil {
			consul.Deregister(serviceID)
		}
		rabbitMQ.Close()
		database.Close()
		os.Exit(0)
	}()

	log.Printf("🚀 Order Service starting on http://localhost:%d", cfg.OrderPort)
	log.Printf("   Publishing events to queue %q", cfg.OrderQueue)
	router.Run(fmt.Sprintf(":%d", cfg.OrderPort))
}
