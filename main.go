package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load()

	cfg := config.DefaultFromEnv()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Dump inbound requests to stderr")
	flag.StringVar(&cfg.StatusURL, "status-url", cfg.StatusURL, "Upstream status endpoint")
	flag.StringVar(&cfg.ChatURL, "chat-url", cfg.ChatURL, "Upstream chat endpoint")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the continuity cache (empty uses in-memory)")
	flag.Parse()

	if cfg.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	srv := server.New(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("duckgate starting", "host", cfg.Host, "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}
