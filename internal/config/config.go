// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Server ServerConfig
	Speech SpeechConfig
	Align  AlignConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds persistent storage configuration.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// SpeechConfig holds voice pipeline configuration.
type SpeechConfig struct {
	// BaseURL of the hosted synthesis/recognition API.
	BaseURL string
	// APIKey authenticates against the voice pipeline.
	APIKey string
	// RegenerateRPS throttles regeneration requests per timeline (default: 0.2,
	// one request per five seconds).
	RegenerateRPS float64
	// RegenerateBurst allows short bursts of regeneration requests (default: 2).
	RegenerateBurst int
}

// AlignConfig holds alignment and caption chunking defaults.
type AlignConfig struct {
	// GapExtendThreshold is the largest inter-segment gap, in seconds,
	// absorbed during timeline repair (default: 0.5).
	GapExtendThreshold float64
	// MaxWordsPerChunk bounds caption chunk word count (default: 6).
	MaxWordsPerChunk int
	// MaxCharsPerLine bounds caption line length (default: 42).
	MaxCharsPerLine int
	// MinChunkDuration is the target minimum caption duration in seconds
	// (default: 0.833).
	MinChunkDuration float64
	// MaxChunkDuration bounds caption duration in seconds (default: 4.0).
	MaxChunkDuration float64
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for persistent storage")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Speech flags
	speechURL := flag.String("speech-url", "", "Voice pipeline base URL")
	speechKey := flag.String("speech-api-key", "", "Voice pipeline API key")

	// Alignment flags
	gapThreshold := flag.String("gap-extend-threshold", "", "Largest auto-absorbed gap in seconds (default: 0.5)")
	maxWords := flag.String("caption-max-words", "", "Max words per caption chunk (default: 6)")
	maxChars := flag.String("caption-max-chars", "", "Max characters per caption line (default: 42)")
	minChunkDur := flag.String("caption-min-duration", "", "Min caption duration in seconds (default: 0.833)")
	maxChunkDur := flag.String("caption-max-duration", "", "Max caption duration in seconds (default: 4.0)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Voiceline Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Speech: SpeechConfig{
			BaseURL:         getConfigValue(*speechURL, "SPEECH_BASE_URL", ""),
			APIKey:          getConfigValue(*speechKey, "SPEECH_API_KEY", ""),
			RegenerateRPS:   getFloatConfigValue("", "REGENERATE_RPS", 0.2),
			RegenerateBurst: getIntConfigValue("", "REGENERATE_BURST", 2),
		},
		Align: AlignConfig{
			GapExtendThreshold: getFloatConfigValue(*gapThreshold, "GAP_EXTEND_THRESHOLD", 0.5),
			MaxWordsPerChunk:   getIntConfigValue(*maxWords, "CAPTION_MAX_WORDS", 6),
			MaxCharsPerLine:    getIntConfigValue(*maxChars, "CAPTION_MAX_CHARS", 42),
			MinChunkDuration:   getFloatConfigValue(*minChunkDur, "CAPTION_MIN_DURATION", 0.833),
			MaxChunkDuration:   getFloatConfigValue(*maxChunkDur, "CAPTION_MAX_DURATION", 4.0),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Align.GapExtendThreshold <= 0 {
		return fmt.Errorf("gap extend threshold must be positive, got %v", c.Align.GapExtendThreshold)
	}
	if c.Align.MaxWordsPerChunk < 1 {
		return fmt.Errorf("caption max words must be at least 1, got %d", c.Align.MaxWordsPerChunk)
	}
	if c.Align.MinChunkDuration >= c.Align.MaxChunkDuration {
		return fmt.Errorf("caption min duration %v must be below max duration %v",
			c.Align.MinChunkDuration, c.Align.MaxChunkDuration)
	}

	// Speech BaseURL can be empty - the alignment API still works on
	// transcripts supplied directly by the caller.

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Voiceline", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

// ChunkDefaults exposes the configured caption bounds in the shape the
// chunker consumes.
func (c *Config) ChunkDefaults() (maxWords, maxChars int, minDur, maxDur float64) {
	return c.Align.MaxWordsPerChunk, c.Align.MaxCharsPerLine,
		c.Align.MinChunkDuration, c.Align.MaxChunkDuration
}
