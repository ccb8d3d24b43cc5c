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

	"creditmanager/internal/config"
	"creditmanager/internal/handler"
	"creditmanager/internal/infrastructure/cache"
	"creditmanager/internal/infrastructure/database"
	"creditmanager/internal/infrastructure/mq"
	"creditmanager/internal/job"
	"creditmanager/internal/repository"
	"creditmanager/internal/service"
	"creditmanager/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitSQLite(&cfg.SQLite)

	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// seed the catalog and build the immutable pricing resolver
	catalogRepo := repository.NewCatalogRepository(db)
	if err := catalogRepo.Seed(ctx, &cfg.Catalog); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	packs, err := catalogRepo.LoadPacks(ctx)
	if err != nil {
		log.Fatalf("load packs: %v", err)
	}
	coupons, err := catalogRepo.LoadCoupons(ctx)
	if err != nil {
		log.Fatalf("load coupons: %v", err)
	}
	resolver := service.NewPricingResolver(packs, coupons)
	log.Printf("catalog loaded: packs=%d, coupons=%d", len(packs), len(coupons))

	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg, resolver)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("listening on port %d (mode=%s)", cfg.Server.Port, cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	log.Println("server stopped")
}
