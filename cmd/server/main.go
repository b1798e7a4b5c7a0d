package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	simplchat "github.com/MegaGrindStone/simpl-chat"
	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/MegaGrindStone/simpl-chat/internal/config"
	"github.com/MegaGrindStone/simpl-chat/internal/handlers"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("error getting user config dir: %w", err))
	}

	cfgFilePath := flag.String("config", filepath.Join(cfgDir, "simpl", "config.yaml"), "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*cfgFilePath)
	if err != nil {
		panic(err)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// The function endpoint always answers with the in-process chat function, even when sessions are
	// configured to call a deployed one.
	function, err := cfg.AIChat(logger)
	if err != nil {
		panic(err)
	}
	replier, err := cfg.Replier(logger)
	if err != nil {
		panic(err)
	}

	sessions := chat.NewRegistryWithLimits(replier, cfg.Options(), cfg.Limits(), logger)

	m, err := handlers.NewMain(sessions, function, logger)
	if err != nil {
		panic(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(simplchat.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/message", m.HandleMessage)
	mux.HandleFunc("/sse/messages", m.HandleSSE)
	mux.HandleFunc("/api/aichat", m.HandleAIChat)
	mux.HandleFunc("/.netlify/functions/aichat", m.HandleAIChat)
	mux.HandleFunc("/health", m.HandleHealth)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("error", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("error", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("error", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("error", err.Error()))
			}
		}
	}
}
