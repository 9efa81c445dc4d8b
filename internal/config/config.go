package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MaxWorkers     int
	ConvertQuality int
	ToolTimeout    time.Duration
	HistoryDBPath  string
	MakerNotesPath string
	ExiftoolConfig string
	MD5ChunkSize   int64
	StabilityDelay time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.MaxWorkers = getEnvInt("MAX_WORKERS", 1)
	cfg.ConvertQuality = getEnvInt("CONVERT_QUALITY", 95)
	cfg.ToolTimeout = time.Duration(getEnvInt("TOOL_TIMEOUT", 300)) * time.Second
	cfg.HistoryDBPath = getEnv("HISTORY_DB", "")
	cfg.MakerNotesPath = getEnv("MAKERNOTES_BIN", "makernotes_apple.bin")
	cfg.ExiftoolConfig = getEnv("EXIFTOOL_CONFIG", ".exiftool_config")
	cfg.MD5ChunkSize = getEnvInt64("MD5_CHUNK_SIZE", 4*1024*1024)
	cfg.StabilityDelay = time.Duration(getEnvInt("STABILITY_DELAY", 1)) * time.Second
	return cfg
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
