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

	"github.com/gin-gonic/gin"

	"bibliohub/internal/auth"
	"bibliohub/internal/catalog"
	"bibliohub/internal/loans"
	"bibliohub/internal/notify"
	"bibliohub/internal/realtime"
	"bibliohub/internal/reviews"
	"bibliohub/internal/stats"
	"bibliohub/pkg/assets"
	"bibliohub/pkg/database"
	"bibliohub/pkg/utils"
)

const reminderInterval = time.Hour

func main() {
	utils.LoadEnv()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()

	store, err := assets.NewDirStore(srvCfg.AssetsDir, srvCfg.AssetsURL)
	if err != nil {
		log.Fatalf("assets store failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Static(srvCfg.AssetsURL, srvCfg.AssetsDir)

	hub := realtime.NewHub()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		hubStats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"ws_rooms":    hubStats.Rooms,
				"ws_clients":  hubStats.Connections,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_rooms":   hubStats.Rooms,
			"ws_clients": hubStats.Connections,
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Repos and the dispatcher
	catalogRepo := catalog.NewRepo(db)
	statsRepo := stats.NewRepo(db)
	notifRepo := notify.NewRepo(db)
	chatRepo := realtime.NewChatRepo(db)
	loanRepo := loans.NewRepo(db)
	dispatcher := notify.NewDispatcher(notifRepo, hub, nil)
	reviewRepo := reviews.NewRepo(db, catalogRepo, statsRepo, nil)
	loanSvc := loans.NewService(db, loanRepo, catalogRepo, statsRepo, dispatcher, nil)

	// Public routes
	public := router.Group("/")
	catalogHandler := catalog.NewHandler(catalogRepo, store)
	catalogHandler.RegisterPublicRoutes(public)
	reviewHandler := reviews.NewHandler(reviewRepo, dispatcher)
	reviewHandler.RegisterPublicRoutes(public)
	statsHandler := stats.NewHandler(statsRepo)
	statsHandler.RegisterPublicRoutes(public)

	// Realtime
	router.GET("/ws", realtime.WSHandler(hub, tokenSvc, notifRepo, chatRepo))

	// Protected routes
	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	authHandler.RegisterProtectedRoutes(protected)
	protected.GET("/chat/history", realtime.HistoryHandler(chatRepo))

	loanHandler := loans.NewHandler(loanSvc, loanRepo)
	loanHandler.RegisterRoutes(protected)
	reviewHandler.RegisterProtectedRoutes(protected)
	notifyHandler := notify.NewHandler(notifRepo)
	notifyHandler.RegisterRoutes(protected)

	// Admin routes
	adminGated := router.Group("/")
	adminGated.Use(auth.AuthMiddleware(tokenSvc, authRepo), auth.RequireAdmin())
	catalogHandler.RegisterAdminRoutes(adminGated)
	loanHandler.RegisterAdminRoutes(adminGated)

	admin := router.Group("/admin")
	admin.Use(auth.AuthMiddleware(tokenSvc, authRepo), auth.RequireAdmin())
	statsHandler.RegisterAdminRoutes(admin)

	// Overdue reminder sweeper
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go loanSvc.RunReminderLoop(sweepCtx, reminderInterval)

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down server")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	log.Println("server stopped")
}
