package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds runtime options for the bili-audio service.
type Config struct {
	ListenAddr        string `json:"listenAddr"`
	DataDir           string `json:"dataDir"`
	DBPath            string `json:"dbPath"`
	APIBase           string `json:"apiBase"`
	AllowOrigin       string `json:"allowOrigin"`
	DebugMode         bool   `json:"debugMode"`
	EnableDebugLogs   bool   `json:"enableDebugLogs"`
	RequestTimeoutSec int    `json:"requestTimeoutSec"`
	BiliAPIBase       string `json:"biliApiBase"`
	BiliPassportBase  string `json:"biliPassportBase"`
	WbiImgKeyFallback string `json:"wbiImgKeyFallback"`
	WbiSubKeyFallback string `json:"wbiSubKeyFallback"`
	Version           string `json:"version"`
	ConfigFile        string `json:"configFile"`
}

// Long-lived fallback WBI keys used when the nav endpoint is unreachable.
const (
	defaultWbiImgKey = "7cd084941338484aae1ad9425b84077c"
	defaultWbiSubKey = "4932caff0ff746eab6f01bf08b70ac45"
)

func resolveConfigFilePath() (string, error) {
	path := strings.TrimSpace(os.Getenv("BILIAUDIO_CONFIG_FILE"))
	if path == "" {
		path = filepath.FromSlash("./data/config.json")
	}
	return filepath.Abs(path)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	if parsed <= 0 {
		return fallback
	}
	return parsed
}

func defaultConfig(configFile string) Config {
	baseDir := filepath.Dir(configFile)
	cfg := Config{
		ListenAddr:        envOrDefault("BILIAUDIO_LISTEN", ":18787"),
		DataDir:           envOrDefault("BILIAUDIO_DATA_DIR", baseDir),
		APIBase:           envOrDefault("BILIAUDIO_API_BASE", ""),
		AllowOrigin:       envOrDefault("BILIAUDIO_ALLOW_ORIGIN", "*"),
		DebugMode:         strings.EqualFold(envOrDefault("BILIAUDIO_DEBUG", "false"), "true"),
		EnableDebugLogs:   strings.EqualFold(envOrDefault("BILIAUDIO_DEBUG", "false"), "true"),
		RequestTimeoutSec: envIntOrDefault("BILIAUDIO_REQUEST_TIMEOUT_SEC", 10),
		BiliAPIBase:       envOrDefault("BILIAUDIO_BILI_API_BASE", "https://api.bilibili.com"),
		BiliPassportBase:  envOrDefault("BILIAUDIO_BILI_PASSPORT_BASE", "https://passport.bilibili.com"),
		WbiImgKeyFallback: envOrDefault("BILIAUDIO_WBI_IMG_KEY", defaultWbiImgKey),
		WbiSubKeyFallback: envOrDefault("BILIAUDIO_WBI_SUB_KEY", defaultWbiSubKey),
		Version:           envOrDefault("BILIAUDIO_VERSION", "1.0.0"),
		ConfigFile:        configFile,
	}
	cfg = normalizeConfig(cfg, configFile)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "db", "app.db")
	}
	cfg.ConfigFile = configFile
	return cfg
}

func normalizeConfig(cfg Config, configFile string) Config {
	configDir := filepath.Dir(configFile)
	cfg.ConfigFile = configFile

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":18787"
	}
	cfg.APIBase = strings.TrimSpace(cfg.APIBase)
	if cfg.APIBase != "" && !strings.HasPrefix(cfg.APIBase, "/") {
		cfg.APIBase = "/" + cfg.APIBase
	}
	cfg.APIBase = strings.TrimSuffix(cfg.APIBase, "/")
	if strings.TrimSpace(cfg.AllowOrigin) == "" {
		cfg.AllowOrigin = "*"
	}
	if cfg.DebugMode {
		cfg.EnableDebugLogs = true
	}
	cfg.DebugMode = cfg.EnableDebugLogs
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 10
	}
	cfg.BiliAPIBase = strings.TrimSuffix(strings.TrimSpace(cfg.BiliAPIBase), "/")
	if cfg.BiliAPIBase == "" {
		cfg.BiliAPIBase = "https://api.bilibili.com"
	}
	cfg.BiliPassportBase = strings.TrimSuffix(strings.TrimSpace(cfg.BiliPassportBase), "/")
	if cfg.BiliPassportBase == "" {
		cfg.BiliPassportBase = "https://passport.bilibili.com"
	}
	if strings.TrimSpace(cfg.WbiImgKeyFallback) == "" {
		cfg.WbiImgKeyFallback = defaultWbiImgKey
	}
	if strings.TrimSpace(cfg.WbiSubKeyFallback) == "" {
		cfg.WbiSubKeyFallback = defaultWbiSubKey
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "1.0.0"
	}

	cfg.DataDir = absPathWithBase(cfg.DataDir, configDir)
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = configDir
	}

	cfg.DBPath = absPathWithBase(cfg.DBPath, configDir)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "db", "app.db")
	}
	return cfg
}

func absPathWithBase(target string, base string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if filepath.IsAbs(target) {
		return target
	}
	if base == "" {
		if abs, err := filepath.Abs(target); err == nil {
			return abs
		}
		return target
	}
	if abs, err := filepath.Abs(filepath.Join(base, target)); err == nil {
		return abs
	}
	return filepath.Join(base, target)
}

// Load keeps backward compatibility by returning the current config snapshot.
func Load() (Config, error) {
	manager, err := NewManager()
	if err != nil {
		return Config{}, err
	}
	cfg := manager.Current()
	manager.StopWatching()
	return cfg, nil
}
