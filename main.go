package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	var config *Config
	if _, err := os.Stat(*configPath); err == nil {
		config, err = LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		log.Printf("Loaded configuration from %s", *configPath)
	} else {
		config = DefaultConfig()
		log.Printf("No config file at %s, using defaults", *configPath)
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting eegstreamd...")
	log.Printf("Server listen: %s", config.Server.Listen)
	log.Printf("Sample rate: %.0f Hz, window: %d samples, tick: %d ms",
		config.Pipeline.SampleRate, config.Pipeline.WindowSize, config.Pipeline.TickIntervalMs)

	var metrics *PrometheusMetrics
	if config.Prometheus.Enabled {
		metrics = NewPrometheusMetrics()
		log.Printf("Prometheus metrics enabled at /metrics")
	}

	resolver, err := NewLSLResolver(config.Stream.DiscoveryGroup, config.Stream.Interface)
	if err != nil {
		log.Fatalf("Failed to initialize stream resolver: %v", err)
	}

	streams := NewStreamManager(resolver)
	hub := NewEventHub(metrics)
	processor := NewProcessor(&config.Pipeline, streams, hub, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.MQTT.Enabled {
		publisher, err := NewMQTTPublisher(&config.MQTT, processor)
		if err != nil {
			log.Printf("Warning: Failed to start MQTT publisher: %v", err)
		} else {
			publisher.StartPublisher(ctx)
		}
	}

	if config.Stream.AutoConnect != "" {
		if _, err := processor.Connect(config.Stream.AutoConnect); err != nil {
			log.Printf("Warning: auto-connect to %q failed: %v", config.Stream.AutoConnect, err)
			log.Printf("Pipeline will run on synthetic data until a stream is connected")
		}
	}

	if config.Pipeline.AutoStart {
		processor.Start()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(w, r, processor, hub)
	})
	mux.HandleFunc("/api/connect", func(w http.ResponseWriter, r *http.Request) {
		handleConnect(w, r, processor)
	})
	mux.HandleFunc("/api/disconnect", func(w http.ResponseWriter, r *http.Request) {
		handleDisconnect(w, r, processor)
	})
	mux.HandleFunc("/api/stream-info", func(w http.ResponseWriter, r *http.Request) {
		handleStreamInfo(w, r, processor)
	})
	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		handleStart(w, r, processor)
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	var handler http.Handler = mux
	if config.Server.EnableCORS {
		handler = corsMiddleware(mux)
	}

	server := &http.Server{
		Addr:    config.Server.Listen,
		Handler: handler,
	}

	go func() {
		log.Printf("HTTP server listening on %s", config.Server.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down...", sig)

	processor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("Shutdown complete")
}
