// The api command runs the codeatlas documentation service: REST endpoints
// for starting and inspecting runs, a websocket for live progress and a
// Prometheus metrics endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeatlas/internal/config"
	"codeatlas/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file (default atlas.yml)")
	port := flag.String("port", "", "listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if p := strings.TrimSpace(*port); p != "" {
		if !strings.HasPrefix(p, ":") && !strings.Contains(p, ":") {
			p = ":" + p
		}
		cfg.Port = p
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	srv := server.New(cfg.Port, app)
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
