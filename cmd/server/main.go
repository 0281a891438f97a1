package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codesync/collab-hub/api/handlers"
	"github.com/codesync/collab-hub/internal/config"
	"github.com/codesync/collab-hub/internal/db"
	"github.com/codesync/collab-hub/internal/repository"
	"github.com/codesync/collab-hub/internal/ws"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	// Optional audit log of joins and leaves
	var recorder ws.Recorder
	var sessions handlers.SessionStore
	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}

		database, err := db.InitDB(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.CloseDB()

		sessionRepo := repository.NewCollabSessionRepository(database)
		closed, err := sessionRepo.CloseDangling(context.Background(), time.Now())
		if err != nil {
			log.Fatalf("Failed to close dangling collaboration sessions: %v", err)
		}
		if closed > 0 {
			log.Printf("Closed %d collaboration sessions left open by a previous run", closed)
		}

		recorder = sessionRepo
		sessions = sessionRepo
	} else {
		log.Println("Database path not set, collaboration session history disabled")
	}

	// Initialize WebSocket service
	wsService := ws.NewService(ws.Options{
		DefaultProjectID: cfg.Hub.DefaultProjectID,
		MailboxSize:      cfg.Hub.MailboxSize,
		MaxMessageSize:   cfg.Hub.MaxMessageSize,
		WriteWait:        cfg.Hub.WriteWait,
		PongWait:         cfg.Hub.PongWait,
		CheckOrigin:      ws.OriginChecker(cfg.Server.AllowedOrigins),
	}, recorder)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(wsService.Handler())
	presenceHandler := handlers.NewPresenceHandler(wsService, sessions)

	// Initialize Gin router
	r := gin.Default()

	r.Use(corsMiddleware())
	if cfg.Hub.TrustIdentityHeaders {
		r.Use(handlers.IdentityHeaders())
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"rooms":  wsService.Registry().RoomCount(),
		})
	})

	// WebSocket routes
	wsHandler.RegisterRoutes(r)

	// API routes
	api := r.Group("/api")
	{
		presenceHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Hijacked WebSocket connections are not tracked by Shutdown.
	wsService.Close()
	waitForRooms(ctx, wsService.Registry())
}

// waitForRooms gives the read pumps time to run the leave protocol, so the
// audit log records every departure before the database closes.
func waitForRooms(ctx context.Context, registry *ws.Registry) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for registry.RoomCount() > 0 {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown timed out with %d rooms still open", registry.RoomCount())
			return
		case <-ticker.C:
		}
	}
}

// corsMiddleware returns a CORS middleware for the REST endpoints.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
