package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"numberrush/config"
	"numberrush/handlers"
	"numberrush/middleware"
	"numberrush/routes"
	"numberrush/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize services
	gateway := services.NewGormGateway(db, redisClient)
	if err := gateway.Migrate(); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	authService := services.NewAuthService(gateway, cfg.JWTSecret, cfg.TokenTTL)
	leaderboardService := services.NewLeaderboardService(gateway)
	snapshots := services.NewSnapshotWriter(redisClient, 1024)

	// Settlement notifies players through the hub, which in turn routes to
	// the matchmaker.
	settlement := services.NewSettlementWorker(gateway, nil, 256)
	matchmaker := services.NewMatchmaker(cfg.Rules(), settlement, snapshots)
	hub := services.NewHub(matchmaker, leaderboardService)
	settlement.SetNotifier(hub)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, gateway)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	matchHandler := handlers.NewMatchHandler(matchmaker, snapshots)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, authHandler, leaderboardHandler, matchHandler, hub, authService)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers outlive the HTTP server so the final matches still settle.
	baseCtx, stopWorkers := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(baseCtx)
	workers.Go(func() error { return hub.Run(workerCtx) })
	workers.Go(func() error { return settlement.Run(workerCtx) })
	workers.Go(func() error { return snapshots.Run(workerCtx) })

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Printf("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		matchmaker.Shutdown()
		return err
	})

	serverErr := group.Wait()
	stopWorkers()
	if err := workers.Wait(); err != nil {
		log.Printf("Worker error: %v", err)
	}
	if serverErr != nil {
		log.Fatal("Server failed:", serverErr)
	}
	log.Printf("Server stopped")
}
