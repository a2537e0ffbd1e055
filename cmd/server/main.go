package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/config"
	"github.com/yaffalhakim1/ecommerce-api/internal/api"
	"github.com/yaffalhakim1/ecommerce-api/internal/broker"
	"github.com/yaffalhakim1/ecommerce-api/internal/cart"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/service"
	"github.com/yaffalhakim1/ecommerce-api/internal/store"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"
	"github.com/yaffalhakim1/ecommerce-api/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ecommerce API")

	tp, err := util.InitTracer("ecommerce-api", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected, migrations applied")

	carts, err := cart.NewStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Business.CartTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer carts.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)
	log.Println("Kafka producer initialized")

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ServerKey)

	lifecycle := service.NewOrderLifecycle(db, eventPublisher)
	checkoutService := service.NewCheckoutService(db, carts, gatewayClient, eventPublisher)
	orderService := service.NewOrderService(db, gatewayClient)
	reconciler := service.NewReconciler(db, lifecycle, cfg.Gateway.ServerKey)

	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	sweeper := worker.NewSweeper(db, gatewayClient, lifecycle,
		cfg.Business.SweepInterval, cfg.Business.PaymentTimeout)
	go sweeper.Start(sweeperCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, orderService, reconciler, carts, db,
		cfg.Auth.JWTSecret, cfg.Server.Env)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	sweeperCancel()

	log.Println("Server exited")
}
