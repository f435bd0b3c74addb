// Package config loads configuration for the browser suite and the demo shop
// from environment variables and CLI flags, validates it, and provides
// defaults.
//
// The suite reads E2E_* variables. The demo shop reads its own variables and
// the --no-email / --addr flags.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/shop-e2e/internal/ratelimit"
)

const (
	// DefaultScreenshotDir is where screenshots land when E2E_SCREENSHOT_DIR is unset.
	DefaultScreenshotDir = "test-results/screenshots"

	// DefaultElementTimeout bounds waits for elements a test requires.
	DefaultElementTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds existence probes for optional elements.
	DefaultProbeTimeout = 5 * time.Second
	// DefaultNavigationTimeout bounds page loads and network-idle waits.
	DefaultNavigationTimeout = 30 * time.Second

	// LiveSiteURL is the public demo storefront the original suite targets.
	LiveSiteURL = "https://automationexercise.com"
)

var supportedBrowsers = map[string]bool{
	"chromium": true,
	"firefox":  true,
	"webkit":   true,
}

// Suite holds browser-suite configuration.
type Suite struct {
	// BaseURL is the storefront under test. Empty means the harness starts
	// the local demo shop and uses its URL.
	BaseURL string
	Live    bool // E2E_LIVE=1 enables tests against public sites

	Browser  string // chromium, firefox or webkit
	Headless bool
	SlowMo   time.Duration

	ElementTimeout    time.Duration
	ProbeTimeout      time.Duration
	NavigationTimeout time.Duration

	ScreenshotDir string
	LogLevel      string

	// Optional S3 upload of screenshots.
	ArtifactBucket     string
	ArtifactPrefix     string
	AWSEndpointS3      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// Shop holds demo shop server configuration.
type Shop struct {
	ListenAddr   string
	BaseURL      string
	DatabasePath string // SQLite file; ":memory:" keeps everything in-process
	DatabaseKey  []byte // optional 32-byte SQLCipher key from hex DATABASE_KEY
	LogLevel     string

	SessionDuration time.Duration
	RateLimitConfig ratelimit.Config

	NoEmail         bool // --no-email: log emails instead of sending
	ResendAPIKey    string
	ResendFromEmail string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadSuite loads suite configuration from E2E_* environment variables.
func LoadSuite() (*Suite, error) {
	cfg := &Suite{
		BaseURL:  strings.TrimRight(getEnvOrDefault("E2E_BASE_URL", ""), "/"),
		Live:     parseBoolOrDefault("E2E_LIVE", false),
		Browser:  strings.ToLower(getEnvOrDefault("E2E_BROWSER", "chromium")),
		Headless: parseBoolOrDefault("E2E_HEADLESS", true),
		SlowMo:   parseDurationOrDefault("E2E_SLOWMO", 0),

		ElementTimeout:    parseDurationOrDefault("E2E_ELEMENT_TIMEOUT", DefaultElementTimeout),
		ProbeTimeout:      parseDurationOrDefault("E2E_PROBE_TIMEOUT", DefaultProbeTimeout),
		NavigationTimeout: parseDurationOrDefault("E2E_NAVIGATION_TIMEOUT", DefaultNavigationTimeout),

		ScreenshotDir: getEnvOrDefault("E2E_SCREENSHOT_DIR", DefaultScreenshotDir),
		LogLevel:      getEnvOrDefault("E2E_LOG_LEVEL", "info"),

		ArtifactBucket:     getEnvOrDefault("E2E_ARTIFACT_BUCKET", ""),
		ArtifactPrefix:     getEnvOrDefault("E2E_ARTIFACT_PREFIX", "screenshots"),
		AWSEndpointS3:      getEnvOrDefault("AWS_ENDPOINT_URL_S3", ""),
		AWSRegion:          getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the suite configuration.
func (c *Suite) Validate() error {
	var errs []string

	if !supportedBrowsers[c.Browser] {
		errs = append(errs, fmt.Sprintf("E2E_BROWSER must be one of chromium, firefox, webkit (got %q)", c.Browser))
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, "E2E_BASE_URL must start with http:// or https://")
	}
	if c.ElementTimeout <= 0 {
		errs = append(errs, "E2E_ELEMENT_TIMEOUT must be positive")
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, "E2E_PROBE_TIMEOUT must be positive")
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, "E2E_NAVIGATION_TIMEOUT must be positive")
	}
	if c.ProbeTimeout > c.ElementTimeout {
		errs = append(errs, "E2E_PROBE_TIMEOUT must not exceed E2E_ELEMENT_TIMEOUT")
	}
	if strings.TrimSpace(c.ScreenshotDir) == "" {
		errs = append(errs, "E2E_SCREENSHOT_DIR must not be empty")
	}
	if c.ArtifactBucket != "" {
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when E2E_ARTIFACT_BUCKET is set")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when E2E_ARTIFACT_BUCKET is set")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// TargetURL returns the storefront URL for tests: the configured base URL,
// else the provided local fallback.
func (c *Suite) TargetURL(localFallback string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return strings.TrimRight(localFallback, "/")
}

// UploadsArtifacts reports whether screenshots are also pushed to S3.
func (c *Suite) UploadsArtifacts() bool {
	return c.ArtifactBucket != ""
}

// ParseShopFlags parses the demo shop CLI flags.
func ParseShopFlags() (noEmail bool, addr string) {
	flag.BoolVar(&noEmail, "no-email", false, "Log emails instead of sending them through Resend")
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()
	return noEmail, addr
}

// LoadShop loads demo shop configuration from environment variables and flag values.
func LoadShop(noEmail bool, addr string) (*Shop, error) {
	cfg := &Shop{NoEmail: noEmail}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("BASE_URL", ""), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/shop.db")
	var keyErr error
	if keyHex := getEnvOrDefault("DATABASE_KEY", ""); keyHex != "" {
		cfg.DatabaseKey, keyErr = hex.DecodeString(keyHex)
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 24*time.Hour)

	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	cfg.ResendAPIKey = getEnvOrDefault("RESEND_API_KEY", "")
	cfg.ResendFromEmail = getEnvOrDefault("RESEND_FROM_EMAIL", "noreply@shop.example.com")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keyErr != nil {
		return nil, &ValidationError{Errors: []string{"DATABASE_KEY must be hex encoded"}}
	}
	return cfg, nil
}

// Validate checks the demo shop configuration.
func (c *Shop) Validate() error {
	var errs []string

	if !c.NoEmail && c.ResendAPIKey == "" {
		errs = append(errs, "RESEND_API_KEY is required (set env var or use --no-email)")
	}
	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}
	if len(c.DatabaseKey) != 0 && len(c.DatabaseKey) != 32 {
		errs = append(errs, "DATABASE_KEY must decode to exactly 32 bytes")
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}
	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Shop) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "demoshop starting...")
	if c.NoEmail {
		fmt.Fprintln(os.Stderr, "  Email:   Mock (--no-email)")
	} else {
		fmt.Fprintf(os.Stderr, "  Email:   Resend (from: %s)\n", c.ResendFromEmail)
	}
	if len(c.DatabaseKey) > 0 {
		fmt.Fprintf(os.Stderr, "  DB:      %s (encrypted)\n", c.DatabasePath)
	} else {
		fmt.Fprintf(os.Stderr, "  DB:      %s\n", c.DatabasePath)
	}
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

// MustLoadShop loads demo shop configuration and panics if validation fails.
func MustLoadShop(noEmail bool, addr string) *Shop {
	cfg, err := LoadShop(noEmail, addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
