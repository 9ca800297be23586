package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"media-curator/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	MediaDir    string
	CacheDir    string
	DataDir     string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	LogHealthChecks bool

	ExcludeDirs []string
	ScanWorkers int

	OllamaURL    string
	EmbedModel   string
	VisionModel  string
	WhisperURL   string
	WhisperModel string
	EmbeddingDim int
	TagThreshold float64

	// Derived paths
	DatabasePath    string
	VectorIndexPath string
	ThumbnailDir    string
}

// LoadConfig loads and validates configuration. Values come from a
// curator.yaml config file when present, overridden by CURATOR_*
// environment variables (e.g. CURATOR_MEDIA_DIR).
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	v := viper.New()
	v.SetConfigName("curator")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/curator")
	v.AddConfigPath(".")
	v.SetEnvPrefix("curator")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("media_dir", "/media")
	v.SetDefault("cache_dir", "/cache")
	v.SetDefault("data_dir", "/data")
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_health_checks", true)
	v.SetDefault("exclude_dirs", []string{})
	v.SetDefault("scan_workers", 0)
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("embed_model", "clip-vit-base")
	v.SetDefault("vision_model", "llava")
	v.SetDefault("whisper_url", "http://localhost:8090")
	v.SetDefault("whisper_model", "whisper-1")
	v.SetDefault("embedding_dim", 512)
	v.SetDefault("tag_threshold", 0.35)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logging.Debug("No config file found, using environment and defaults")
	} else {
		logging.Info("Loaded config file: %s", v.ConfigFileUsed())
	}

	cfg := &Config{
		MediaDir:        v.GetString("media_dir"),
		CacheDir:        v.GetString("cache_dir"),
		DataDir:         v.GetString("data_dir"),
		Port:            v.GetString("port"),
		MetricsPort:     v.GetString("metrics_port"),
		MetricsEnabled:  v.GetBool("metrics_enabled"),
		LogHealthChecks: v.GetBool("log_health_checks"),
		ExcludeDirs:     v.GetStringSlice("exclude_dirs"),
		ScanWorkers:     v.GetInt("scan_workers"),
		OllamaURL:       v.GetString("ollama_url"),
		EmbedModel:      v.GetString("embed_model"),
		VisionModel:     v.GetString("vision_model"),
		WhisperURL:      v.GetString("whisper_url"),
		WhisperModel:    v.GetString("whisper_model"),
		EmbeddingDim:    v.GetInt("embedding_dim"),
		TagThreshold:    v.GetFloat64("tag_threshold"),
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:        %s", cfg.MediaDir)
	logging.Info("  CACHE_DIR:        %s", cfg.CacheDir)
	logging.Info("  DATA_DIR:         %s", cfg.DataDir)
	logging.Info("  PORT:             %s", cfg.Port)
	logging.Info("  METRICS_PORT:     %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:  %v", cfg.MetricsEnabled)
	logging.Info("  EXCLUDE_DIRS:     %v", cfg.ExcludeDirs)
	logging.Info("  OLLAMA_URL:       %s", cfg.OllamaURL)
	logging.Info("  EMBED_MODEL:      %s (dim %d)", cfg.EmbedModel, cfg.EmbeddingDim)
	logging.Info("  VISION_MODEL:     %s", cfg.VisionModel)
	logging.Info("  WHISPER_URL:      %s", cfg.WhisperURL)
	logging.Info("  TAG_THRESHOLD:    %.2f", cfg.TagThreshold)
	logging.Info("  LOG_LEVEL:        %s", logging.GetLevel())

	if cfg.EmbeddingDim < 1 {
		return nil, fmt.Errorf("embedding_dim must be positive, got %d", cfg.EmbeddingDim)
	}
	if cfg.TagThreshold < 0 || cfg.TagThreshold > 1 {
		return nil, fmt.Errorf("tag_threshold must be in [0,1], got %f", cfg.TagThreshold)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if cfg.MediaDir, err = filepath.Abs(cfg.MediaDir); err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	if cfg.CacheDir, err = filepath.Abs(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	if cfg.DataDir, err = filepath.Abs(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Media directory:  %s", cfg.MediaDir)
	logging.Info("  Cache directory:  %s", cfg.CacheDir)
	logging.Info("  Data directory:   %s", cfg.DataDir)

	if err := ensureDirectory(cfg.MediaDir, "media"); err != nil {
		return nil, fmt.Errorf("media directory unusable: %w", err)
	}
	if err := ensureDirectory(cfg.CacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory unusable: %w", err)
	}
	if err := ensureDirectory(cfg.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory unusable: %w", err)
	}
	if err := testWriteAccess(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data directory not writable: %w", err)
	}
	if err := testWriteAccess(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("cache directory not writable: %w", err)
	}

	cfg.DatabasePath = filepath.Join(cfg.DataDir, "library.db")
	cfg.VectorIndexPath = filepath.Join(cfg.DataDir, "vectors.idx")
	cfg.ThumbnailDir = filepath.Join(cfg.CacheDir, "thumbnails")

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  ffmpeg check failed: %v (video indexing will fail)", err)
	} else {
		logging.Info("  [OK] ffmpeg available")
	}

	logging.Info("")
	return cfg, nil
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
}

// GetRoutes extracts all registered routes from the router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil // subrouters without a path template
		}
		methods, err := route.GetMethods()
		if err != nil {
			routes = append(routes, RouteInfo{Method: "*", Path: path})
			return nil
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, nil
}

// LogHTTPRoutes logs the registered HTTP routes
func LogHTTPRoutes(router *mux.Router) {
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("Failed to enumerate routes: %v", err)
		return
	}
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP ROUTES")
	logging.Info("------------------------------------------------------------")
	for _, route := range routes {
		logging.Info("  %-7s %s", route.Method, route.Path)
	}
	logging.Info("")
}

// ServerConfig describes the started server for logging
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the startup summary
func LogServerStarted(config ServerConfig) {
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___      _____                 __
   /  |/  /__  ____/ (_)__ _/ ___/_ ________ _____/ /____  ____
  / /|_/ / _ \/ __  / / __ '/ /  / // / __/ '/ __/ __/ _ \/ __/
 /_/  /_/\___/\__,_/_/\__,_/\___/\_,_/_/  \_,_/\__/\____/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}
