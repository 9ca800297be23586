package startup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CURATOR_MEDIA_DIR", filepath.Join(tmp, "media"))
	t.Setenv("CURATOR_CACHE_DIR", filepath.Join(tmp, "cache"))
	t.Setenv("CURATOR_DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("CURATOR_PORT", "9999")
	t.Setenv("CURATOR_TAG_THRESHOLD", "0.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.TagThreshold != 0.5 {
		t.Errorf("TagThreshold = %f, want 0.5", cfg.TagThreshold)
	}
	if cfg.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %d, want default 512", cfg.EmbeddingDim)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL = %q, want default", cfg.OllamaURL)
	}

	// Directories were created and derived paths point inside them.
	for _, dir := range []string{cfg.MediaDir, cfg.CacheDir, cfg.DataDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "library.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.VectorIndexPath != filepath.Join(cfg.DataDir, "vectors.idx") {
		t.Errorf("VectorIndexPath = %q", cfg.VectorIndexPath)
	}
	if cfg.ThumbnailDir != filepath.Join(cfg.CacheDir, "thumbnails") {
		t.Errorf("ThumbnailDir = %q", cfg.ThumbnailDir)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CURATOR_MEDIA_DIR", filepath.Join(tmp, "media"))
	t.Setenv("CURATOR_CACHE_DIR", filepath.Join(tmp, "cache"))
	t.Setenv("CURATOR_DATA_DIR", filepath.Join(tmp, "data"))

	t.Setenv("CURATOR_EMBEDDING_DIM", "0")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted embedding_dim 0")
	}

	t.Setenv("CURATOR_EMBEDDING_DIM", "512")
	t.Setenv("CURATOR_TAG_THRESHOLD", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted tag_threshold 1.5")
	}
}

func TestLoadConfigRejectsFileAsDirectory(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "not-a-dir")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CURATOR_MEDIA_DIR", filePath)
	t.Setenv("CURATOR_CACHE_DIR", filepath.Join(tmp, "cache"))
	t.Setenv("CURATOR_DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("CURATOR_EMBEDDING_DIM", "512")
	t.Setenv("CURATOR_TAG_THRESHOLD", "0.35")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted a file as media directory")
	}
}

func TestGetBuildInfo(t *testing.T) {
	t.Parallel()

	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
