package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".logctl_token"
)

// ErrNotLoggedIn is returned by LoadToken when no token has been stored.
var ErrNotLoggedIn = errors.New("not logged in: run `logctl login` first")

// APIURL returns the base URL for the log sink API.
// It can be overridden with the LOGCTL_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("LOGCTL_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is ~/.logctl_token unless LOGCTL_TOKEN_FILE is set.
func TokenPath() string {
	if v := os.Getenv("LOGCTL_TOKEN_FILE"); v != "" {
		return v
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return tokenFileName
	}
	return filepath.Join(dir, tokenFileName)
}

func SaveToken(token string) error {
	if err := os.WriteFile(TokenPath(), []byte(token), 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func LoadToken() (string, error) {
	data, err := os.ReadFile(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// RemoveToken deletes the stored token. It reports false when there was none.
func RemoveToken() (bool, error) {
	err := os.Remove(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
