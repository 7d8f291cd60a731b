package main

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables that supply flag defaults.
const (
	envConfigPath  = "IMAGEGW_CONFIG_PATH"
	envLogLevel    = "IMAGEGW_LOG_LEVEL"
	envLogFormat   = "IMAGEGW_LOG_FORMAT"
	envShowVersion = "IMAGEGW_SHOW_VERSION"
)

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getEnvBool accepts strconv.ParseBool spellings plus yes/no and on/off.
// Anything else yields fallback.
func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return fallback
}
