// Package config provides environment helpers for go-eyestate commands.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by the commands.
const (
	EnvModel     = "EYESTATE_MODEL"
	EnvCascade   = "EYESTATE_CASCADE"
	EnvCamera    = "EYESTATE_CAMERA"
	EnvCache     = "EYESTATE_CACHE"
	EnvLogLevel  = "EYESTATE_LOG_LEVEL"
	EnvWeb       = "EYESTATE_WEB"
	EnvThreads   = "EYESTATE_THREADS"
	EnvHeadless  = "EYESTATE_HEADLESS"
	EnvAWSRegion = "AWS_REGION"
	EnvEndpoint  = "AWS_ENDPOINT_URL"
)

// String returns the env var or def when unset or blank.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
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

// Bool returns the env var parsed as a bool, or def when unset or invalid.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Camera interprets EYESTATE_CAMERA: a number selects a device index,
// anything else is a file path or stream URI.
func Camera(defDevice int) (device int, uri string) {
	v := strings.TrimSpace(os.Getenv(EnvCamera))
	if v == "" {
		return defDevice, ""
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n, ""
	}
	return defDevice, v
}

// CacheDir returns EYESTATE_CACHE, or a directory under the user cache dir.
func CacheDir() string {
	if v := String(EnvCache, ""); v != "" {
		return v
	}
	if base, err := os.UserCacheDir(); err == nil {
		return base + string(os.PathSeparator) + "eyestate"
	}
	return ".eyestate-cache"
}
