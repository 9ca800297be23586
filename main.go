package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-curator/internal/database"
	"media-curator/internal/extract"
	"media-curator/internal/handlers"
	"media-curator/internal/logging"
	"media-curator/internal/media"
	"media-curator/internal/middleware"
	"media-curator/internal/scanner"
	"media-curator/internal/search"
	"media-curator/internal/startup"
	"media-curator/internal/vectorindex"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	// libvips is optional; thumbnails fall back to pure-Go decoding.
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using fallback image decoding: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize metadata store
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	logging.Info("Database ready in %v (%s)", time.Since(dbStart).Round(time.Millisecond), config.DatabasePath)

	// Initialize vector index
	index, err := vectorindex.Open(config.VectorIndexPath, config.EmbeddingDim)
	if err != nil {
		logging.Fatal("Failed to open vector index: %v", err)
	}
	logging.Info("Vector index ready: %d records, dim %d", index.Len(), index.Dim())

	// Model services
	extractor := extract.NewService(extract.Config{
		OllamaURL:    config.OllamaURL,
		EmbedModel:   config.EmbedModel,
		VisionModel:  config.VisionModel,
		WhisperURL:   config.WhisperURL,
		WhisperModel: config.WhisperModel,
		EmbeddingDim: config.EmbeddingDim,
		TagThreshold: config.TagThreshold,
	})

	// Scan pipeline and search engine
	scan := scanner.New(db, index, extractor, scanner.Config{
		MediaDir:    config.MediaDir,
		ExcludeDirs: config.ExcludeDirs,
		Workers:     config.ScanWorkers,
	})
	engine := search.New(db, index, extractor)

	thumbGen, err := media.NewThumbnailGenerator(config.ThumbnailDir)
	if err != nil {
		logging.Fatal("Failed to initialize thumbnail cache: %v", err)
	}

	// Setup router
	h := handlers.New(db, index, scan, engine, extractor, thumbGen)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router)

	// Middleware chain: metrics innermost so it sees final status codes,
	// logging next, compression outermost.
	var handler http.Handler = router
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming originals has no bounded duration
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	go handleShutdown(srv)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime).Round(time.Millisecond),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}

	// ListenAndServe only returns once Shutdown has drained in-flight
	// requests, so the stores can be flushed and closed safely here.
	if err := index.Save(); err != nil {
		logging.Warn("Vector index save error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Vector index saved")
	}
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}
	startup.LogShutdownComplete()
}

// serveMetrics exposes Prometheus metrics on a separate port so the scrape
// endpoint never shares the public listener.
func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
}
