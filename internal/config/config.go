package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	DBPath   string
	Debug    bool

	// Cipher
	AESKeyB64 string

	// Wearable
	WatchAddress string
	GuardID      string

	// Coercion thresholds
	HRThreshold    int
	StepsThreshold int
	AlertCooldown  time.Duration

	// Guard rounds
	BeaconMinRSSI   int
	CheckinCooldown time.Duration
	ScanWindow      time.Duration
	ScanRetry       time.Duration
	ConnectBackoff  time.Duration

	// Outbox replay
	SyncURL      string
	SyncInterval time.Duration
	SyncBatch    int

	// Collaborators
	TelemetryMirrorURL string
	LockControllerURL  string

	// Tables file (credential table + beacon map)
	TablesPath string
}

func FromEnv() Config {
	return Config{
		HTTPAddr: getenvDefault("EDGE_HTTP_ADDR", ":8080"),
		DBPath:   getenvDefault("EDGE_DB_PATH", "./data/interaopen.db"),
		Debug:    getenvBool("EDGE_DEBUG"),

		AESKeyB64: os.Getenv("EDGE_AES256_KEY_B64"),

		WatchAddress: os.Getenv("EDGE_WATCH_ADDRESS"),
		GuardID:      getenvDefault("EDGE_GUARD_ID", "guard-1"),

		HRThreshold:    getenvInt("EDGE_HR_THRESHOLD", 130),
		StepsThreshold: getenvInt("EDGE_STEPS_THRESHOLD", 5),
		AlertCooldown:  getenvSeconds("EDGE_ALERT_COOLDOWN_SECONDS", 180),

		BeaconMinRSSI:   getenvSignedInt("EDGE_BEACON_MIN_RSSI", -80),
		CheckinCooldown: getenvSeconds("EDGE_CHECKIN_COOLDOWN_SECONDS", 300),
		ScanWindow:      getenvSeconds("EDGE_SCAN_WINDOW_SECONDS", 4),
		ScanRetry:       getenvSeconds("EDGE_SCAN_RETRY_SECONDS", 2),
		ConnectBackoff:  getenvSeconds("EDGE_CONNECT_BACKOFF_SECONDS", 8),

		SyncURL:      os.Getenv("EDGE_SYNC_URL"),
		SyncInterval: getenvSeconds("EDGE_SYNC_INTERVAL_SECONDS", 30),
		SyncBatch:    getenvInt("EDGE_SYNC_BATCH", 30),

		TelemetryMirrorURL: os.Getenv("EDGE_TELEMETRY_MIRROR_URL"),
		LockControllerURL:  os.Getenv("EDGE_LOCK_CONTROLLER_URL"),

		TablesPath: getenvDefault("EDGE_TABLES_PATH", "./config/tables.yaml"),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvBool(key string) bool {
	v := os.Getenv(key)
	return strings.EqualFold(v, "true") || v == "1"
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getenvSignedInt allows negative values (RSSI thresholds are negative).
func getenvSignedInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvSeconds(key string, def int) time.Duration {
	return time.Duration(getenvInt(key, def)) * time.Second
}
