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

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/handler"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/service"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"github.com/TerutomiBaba/golferweb-chatsrv/internal/database"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/logger"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/utils"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	pidPath    string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of chatsrv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chatsrv version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "chatsrv",
		Short: "Competition chat relay server",
		Long:  `chatsrv relays chat messages and stamps between the participants of a competition over WebSocket connections`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "configs/chatsrv.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&pidPath, "pid", "", "path to PID file, empty to disable")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("failed to initialize database",
			zap.String("type", cfg.Database.Type),
			zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Error("failed to close database", zap.Error(err))
		}
	}()

	if pidPath != "" {
		pm := utils.NewPIDManager(pidPath)
		if err := pm.WritePID(); err != nil {
			zapLogger.Fatal("failed to write PID file",
				zap.String("path", pidPath),
				zap.Error(err))
		}
		defer func() {
			if err := pm.RemovePID(); err != nil {
				zapLogger.Error("failed to remove PID file", zap.Error(err))
			}
		}()
	}

	m := metrics.New(cfg.Metrics)
	registry := session.NewRegistry(zapLogger)
	services := service.NewServices(zapLogger, db, registry, m)
	dispatcher := handler.NewDispatcher(zapLogger, registry, services, m)
	chatHandler := handler.NewHandler(zapLogger, registry, dispatcher, m)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(zapLogger))
	router.Use(m.Middleware())

	router.GET(cfg.Server.ChatPath, chatHandler.HandleChat)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	// Everything that is not a registered route is served from the static
	// asset directory, chat endpoint and assets share one listener.
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zapLogger.Info("starting chat server",
			zap.Int("port", cfg.Server.Port),
			zap.String("chatPath", cfg.Server.ChatPath),
			zap.String("version", version.Get()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("forced shutdown", zap.Error(err))
	}
}

// requestLogger logs completed HTTP requests. WebSocket upgrades log once
// when the connection ends.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	accessLogger := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		accessLogger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}
