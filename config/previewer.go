package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	previewerOnce   sync.Once
	previewerConfig *PreviewerConfig
)

// PreviewerConfig 预览引擎配置
type PreviewerConfig struct {
	// 外部 CLI 渲染器
	CLIPath          string
	CLITimeout       time.Duration
	CLIDisabled      bool
	CLIKeepArtifacts bool

	// 策略全局偏好顺序（逗号分隔的引擎名）
	EngineOrder []string

	// 结果缓存
	DocCacheCapacity  int
	PageCacheCapacity int
	DocCacheTTL       time.Duration
	PageCacheTTL      time.Duration
	ParseTimeout      time.Duration
	RenderTimeout     time.Duration

	// 存储
	StorageType string
	StorageRoot string

	// PNG 输出的最大宽度（像素），0 表示不限制
	MaxPNGWidth int
}

func GetPreviewerConfig() *PreviewerConfig {
	previewerOnce.Do(func() {
		loadDotenv()

		previewerConfig = &PreviewerConfig{
			CLIPath:          os.Getenv("PREVIEW_CLI_PATH"),
			CLITimeout:       envDurationMS("PREVIEW_CLI_TIMEOUT_MS", 20*time.Second),
			CLIDisabled:      envBool("PREVIEW_CLI_DISABLED", false),
			CLIKeepArtifacts: envBool("PREVIEW_CLI_KEEP_ARTIFACTS", false),

			EngineOrder: envList("PREVIEW_ENGINE_ORDER"),

			DocCacheCapacity:  envInt("PREVIEW_DOC_CACHE_CAPACITY", 64),
			PageCacheCapacity: envInt("PREVIEW_PAGE_CACHE_CAPACITY", 256),
			DocCacheTTL:       envDurationMS("PREVIEW_DOC_CACHE_TTL_MS", 10*time.Minute),
			PageCacheTTL:      envDurationMS("PREVIEW_PAGE_CACHE_TTL_MS", 10*time.Minute),
			ParseTimeout:      envDurationMS("PREVIEW_PARSE_TIMEOUT_MS", 15*time.Second),
			RenderTimeout:     envDurationMS("PREVIEW_RENDER_TIMEOUT_MS", 20*time.Second),

			StorageType: envString("STORAGE_TYPE", "local"),
			StorageRoot: envString("STORAGE_ROOT", "data"),

			MaxPNGWidth: envInt("PREVIEW_PNG_MAX_WIDTH", 0),
		}
	})
	return previewerConfig
}

var dotenvOnce sync.Once

// loadDotenv 加载项目根目录下的 .env，缺失时回退环境变量
func loadDotenv() {
	dotenvOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		configDir := filepath.Dir(filename)
		rootDir := filepath.Dir(configDir)
		envPath := filepath.Join(rootDir, ".env")

		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}
	})
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q, using default %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationMS(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
