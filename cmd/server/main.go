package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-messaging-demo/backend/pkg/di"
	"chat-messaging-demo/backend/pkg/router"
	"chat-messaging-demo/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Tracing and the /metrics endpoint on :2112
	shutdownTracing := observability.SetupTracing("chat-messaging")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// appCtx owns background workers (websocket hub, stream pumps)
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	container, err := di.New(appCtx)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %v", err)
	}
	defer container.Close()

	appLog := container.Logger
	appLog.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	r := router.New(appCtx, container)
	r.SetupRoutes()

	port := container.Config.Server.Port
	if port == "" {
		port = "8081"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r.Engine,
	}

	go func() {
		appLog.Info("Server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	stopApp()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.LogError(err, "Server forced to shutdown")
	}

	appLog.Info("Server exited gracefully")
}
