// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

// Get reads an environment variable or returns a default value.
func Get(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetInt parses an environment variable as an integer, else a default value.
func GetInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
