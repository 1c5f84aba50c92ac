// Command filecabinet runs the folder and file API on its own, for
// deployments that keep document storage separate from the main service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/database"
	"github.com/deskhub/deskhub/internal/files"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/internal/tokens"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	port := os.Getenv("FILECABINET_PORT")
	if port == "" {
		port = "5010"
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		folders store.Collection[files.Folder]   = store.NewMemoryCollection[files.Folder]()
		items   store.Collection[files.FileItem] = store.NewMemoryCollection[files.FileItem]()
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v); using memory-backed collections", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			folders = store.NewMongoCollection[files.Folder](db, "folders")
			items = store.NewMongoCollection[files.FileItem](db, "files")
		}
	}

	var objects storage.ObjectStore = storage.NewMemoryStorage()
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("object storage unavailable (%v); keeping files in memory", err)
		} else {
			objects = s
		}
	}

	r := gin.New()
	r.Use(middleware.CORS(), gin.Recovery(), middleware.RequestLogger())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	api := r.Group("/api/v1", middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret)), middleware.TenantMiddleware())
	files.NewHandler(files.NewService(folders, items, objects, cfg.Files.URLTTL), cfg.Files.MaxUploadSize).Register(api)

	srv := &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: r, ReadTimeout: cfg.Server.ReadTimeout}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Infof("filecabinet listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server failed: %v", err)
	}
}
