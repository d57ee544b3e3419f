package update

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type RuntimeConfig struct {
	DBPath          string
	WindowDays      int
	BufferDays      int
	SaveTimeoutSecs int
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DBPath:          defaultDBPath(),
		WindowDays:      28,
		BufferDays:      30,
		SaveTimeoutSecs: 5,
	}
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v := strings.TrimSpace(os.Getenv("GHOSTD_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v, ok := getEnvInt("GHOSTD_WINDOW_DAYS"); ok && v > 0 {
		cfg.WindowDays = v
	}
	if v, ok := getEnvInt("GHOSTD_BUFFER_DAYS"); ok && v > 0 {
		cfg.BufferDays = v
	}
	if v, ok := getEnvInt("GHOSTD_SAVE_TIMEOUT_SECONDS"); ok && v > 0 {
		cfg.SaveTimeoutSecs = v
	}
	return cfg
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ghostd.db"
	}
	return filepath.Join(home, ".ghostd.db")
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
