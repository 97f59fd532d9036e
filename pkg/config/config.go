package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hutch/pkg/types"
)

// Config holds the full control-plane configuration. Values come from
// defaults, then an optional YAML file, then the environment; the
// environment always wins.
type Config struct {
	Log       Log
	Database  Database
	API       API
	Auth      Auth
	Payment   Payment
	Workspace Workspace
}

// Log configures the structured logger.
type Log struct {
	Level string
	JSON  bool
}

// Database configures the persistence gateway.
type Database struct {
	URL                string
	MaxConns           int
	SlowQueryThreshold time.Duration
}

// API configures the HTTP surface.
type API struct {
	Addr           string
	FrontendOrigin string

	AuthRateLimit  int
	AuthRateWindow time.Duration
	APIRateLimit   int
	APIRateWindow  time.Duration
}

// Auth configures the credential service.
type Auth struct {
	TokenSecret string
	TokenTTL    time.Duration
	BcryptCost  int
}

// Payment configures the provider client and webhook verification.
type Payment struct {
	Provider      string
	APIBase       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	PlanIDs       []string
}

// PlanAllowed reports whether a plan id is in the configured catalog.
func (p Payment) PlanAllowed(planID string) bool {
	for _, id := range p.PlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}

// Workspace configures the lifecycle manager, engine adapter, and proxy.
type Workspace struct {
	Network string
	Image   string
	Port    int

	CPUDefault    float64
	CPUMax        float64
	MemoryDefault int64
	MemoryMin     int64
	MemoryMax     int64

	MaxPerUser int

	StopTimeout      time.Duration
	ProxyDialTimeout time.Duration

	LifecycleRateLimit  int
	LifecycleRateWindow time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: Log{
			Level: "info",
			JSON:  true,
		},
		Database: Database{
			MaxConns:           20,
			SlowQueryThreshold: time.Second,
		},
		API: API{
			Addr:           ":3000",
			FrontendOrigin: "http://localhost:5173",
			AuthRateLimit:  5,
			AuthRateWindow: 15 * time.Minute,
			APIRateLimit:   100,
			APIRateWindow:  15 * time.Minute,
		},
		Auth: Auth{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		Payment: Payment{
			Provider: "razorpay",
			APIBase:  "https://api.razorpay.com/v1",
		},
		Workspace: Workspace{
			Network:             "hutch-net",
			Image:               "hutch/workspace:latest",
			Port:                8080,
			CPUDefault:          1.0,
			CPUMax:              types.MaxCPUQuota,
			MemoryDefault:       512 << 20,
			MemoryMin:           types.MinMemoryBytes,
			MemoryMax:           types.MaxMemoryBytes,
			MaxPerUser:          3,
			StopTimeout:         30 * time.Second,
			ProxyDialTimeout:    5 * time.Second,
			LifecycleRateLimit:  10,
			LifecycleRateWindow: 5 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then the environment overlay, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig mirrors Config for YAML decoding. Durations and memory sizes
// arrive as strings; pointers distinguish unset fields so the file only
// overrides what it names.
type fileConfig struct {
	Log struct {
		Level *string `yaml:"level"`
		JSON  *bool   `yaml:"json"`
	} `yaml:"log"`
	Database struct {
		URL                *string `yaml:"url"`
		MaxConns           *int    `yaml:"max_conns"`
		SlowQueryThreshold *string `yaml:"slow_query_threshold"`
	} `yaml:"database"`
	API struct {
		Addr           *string `yaml:"addr"`
		FrontendOrigin *string `yaml:"frontend_origin"`
		AuthRateLimit  *int    `yaml:"auth_rate_limit"`
		AuthRateWindow *string `yaml:"auth_rate_window"`
		APIRateLimit   *int    `yaml:"api_rate_limit"`
		APIRateWindow  *string `yaml:"api_rate_window"`
	} `yaml:"api"`
	Auth struct {
		TokenSecret *string `yaml:"token_secret"`
		TokenTTL    *string `yaml:"token_ttl"`
		BcryptCost  *int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Payment struct {
		Provider      *string  `yaml:"provider"`
		APIBase       *string  `yaml:"api_base"`
		KeyID         *string  `yaml:"key_id"`
		KeySecret     *string  `yaml:"key_secret"`
		WebhookSecret *string  `yaml:"webhook_secret"`
		PlanIDs       []string `yaml:"plan_ids"`
	} `yaml:"payment"`
	Workspace struct {
		Network             *string  `yaml:"network"`
		Image               *string  `yaml:"image"`
		Port                *int     `yaml:"port"`
		CPUDefault          *float64 `yaml:"cpu_default"`
		CPUMax              *float64 `yaml:"cpu_max"`
		MemoryDefault       *string  `yaml:"memory_default"`
		MemoryMin           *string  `yaml:"memory_min"`
		MemoryMax           *string  `yaml:"memory_max"`
		MaxPerUser          *int     `yaml:"max_per_user"`
		StopTimeout         *string  `yaml:"stop_timeout"`
		ProxyDialTimeout    *string  `yaml:"proxy_dial_timeout"`
		LifecycleRateLimit  *int     `yaml:"lifecycle_rate_limit"`
		LifecycleRateWindow *string  `yaml:"lifecycle_rate_window"`
	} `yaml:"workspace"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %v", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	setString(&c.Log.Level, fc.Log.Level)
	setBool(&c.Log.JSON, fc.Log.JSON)

	setString(&c.Database.URL, fc.Database.URL)
	setInt(&c.Database.MaxConns, fc.Database.MaxConns)
	if err := setDuration(&c.Database.SlowQueryThreshold, fc.Database.SlowQueryThreshold, "database.slow_query_threshold"); err != nil {
		return err
	}

	setString(&c.API.Addr, fc.API.Addr)
	setString(&c.API.FrontendOrigin, fc.API.FrontendOrigin)
	setInt(&c.API.AuthRateLimit, fc.API.AuthRateLimit)
	setInt(&c.API.APIRateLimit, fc.API.APIRateLimit)
	if err := setDuration(&c.API.AuthRateWindow, fc.API.AuthRateWindow, "api.auth_rate_window"); err != nil {
		return err
	}
	if err := setDuration(&c.API.APIRateWindow, fc.API.APIRateWindow, "api.api_rate_window"); err != nil {
		return err
	}

	setString(&c.Auth.TokenSecret, fc.Auth.TokenSecret)
	setInt(&c.Auth.BcryptCost, fc.Auth.BcryptCost)
	if err := setDuration(&c.Auth.TokenTTL, fc.Auth.TokenTTL, "auth.token_ttl"); err != nil {
		return err
	}

	setString(&c.Payment.Provider, fc.Payment.Provider)
	setString(&c.Payment.APIBase, fc.Payment.APIBase)
	setString(&c.Payment.KeyID, fc.Payment.KeyID)
	setString(&c.Payment.KeySecret, fc.Payment.KeySecret)
	setString(&c.Payment.WebhookSecret, fc.Payment.WebhookSecret)
	if len(fc.Payment.PlanIDs) > 0 {
		c.Payment.PlanIDs = fc.Payment.PlanIDs
	}

	setString(&c.Workspace.Network, fc.Workspace.Network)
	setString(&c.Workspace.Image, fc.Workspace.Image)
	setInt(&c.Workspace.Port, fc.Workspace.Port)
	setFloat(&c.Workspace.CPUDefault, fc.Workspace.CPUDefault)
	setFloat(&c.Workspace.CPUMax, fc.Workspace.CPUMax)
	setInt(&c.Workspace.MaxPerUser, fc.Workspace.MaxPerUser)
	setInt(&c.Workspace.LifecycleRateLimit, fc.Workspace.LifecycleRateLimit)
	if err := setMemory(&c.Workspace.MemoryDefault, fc.Workspace.MemoryDefault, "workspace.memory_default"); err != nil {
		return err
	}
	if err := setMemory(&c.Workspace.MemoryMin, fc.Workspace.MemoryMin, "workspace.memory_min"); err != nil {
		return err
	}
	if err := setMemory(&c.Workspace.MemoryMax, fc.Workspace.MemoryMax, "workspace.memory_max"); err != nil {
		return err
	}
	if err := setDuration(&c.Workspace.StopTimeout, fc.Workspace.StopTimeout, "workspace.stop_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.Workspace.ProxyDialTimeout, fc.Workspace.ProxyDialTimeout, "workspace.proxy_dial_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.Workspace.LifecycleRateWindow, fc.Workspace.LifecycleRateWindow, "workspace.lifecycle_rate_window"); err != nil {
		return err
	}

	return nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	if c.Log.JSON, err = envBool("LOG_JSON", c.Log.JSON); err != nil {
		return err
	}

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	if c.Database.MaxConns, err = envInt("DATABASE_MAX_CONNS", c.Database.MaxConns); err != nil {
		return err
	}
	if c.Database.SlowQueryThreshold, err = envDuration("SLOW_QUERY_THRESHOLD", c.Database.SlowQueryThreshold); err != nil {
		return err
	}

	c.API.Addr = envString("API_ADDR", c.API.Addr)
	c.API.FrontendOrigin = envString("FRONTEND_ORIGIN", c.API.FrontendOrigin)
	if c.API.AuthRateLimit, err = envInt("RATE_AUTH_LIMIT", c.API.AuthRateLimit); err != nil {
		return err
	}
	if c.API.AuthRateWindow, err = envDuration("RATE_AUTH_WINDOW", c.API.AuthRateWindow); err != nil {
		return err
	}
	if c.API.APIRateLimit, err = envInt("RATE_API_LIMIT", c.API.APIRateLimit); err != nil {
		return err
	}
	if c.API.APIRateWindow, err = envDuration("RATE_API_WINDOW", c.API.APIRateWindow); err != nil {
		return err
	}

	c.Auth.TokenSecret = envString("TOKEN_SECRET", c.Auth.TokenSecret)
	if c.Auth.TokenTTL, err = envDuration("TOKEN_TTL", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Auth.BcryptCost, err = envInt("BCRYPT_COST", c.Auth.BcryptCost); err != nil {
		return err
	}

	c.Payment.Provider = envString("PAYMENT_PROVIDER", c.Payment.Provider)
	c.Payment.APIBase = envString("PAYMENT_API_BASE", c.Payment.APIBase)
	c.Payment.KeyID = envString("PAYMENT_KEY_ID", c.Payment.KeyID)
	c.Payment.KeySecret = envString("PAYMENT_KEY_SECRET", c.Payment.KeySecret)
	c.Payment.WebhookSecret = envString("PAYMENT_WEBHOOK_SECRET", c.Payment.WebhookSecret)
	c.Payment.PlanIDs = envList("PAYMENT_PLAN_IDS", c.Payment.PlanIDs)

	c.Workspace.Network = envString("WORKSPACE_NETWORK", c.Workspace.Network)
	c.Workspace.Image = envString("WORKSPACE_IMAGE", c.Workspace.Image)
	if c.Workspace.Port, err = envInt("WORKSPACE_PORT", c.Workspace.Port); err != nil {
		return err
	}
	if c.Workspace.CPUDefault, err = envFloat("WORKSPACE_CPU_DEFAULT", c.Workspace.CPUDefault); err != nil {
		return err
	}
	if c.Workspace.CPUMax, err = envFloat("WORKSPACE_CPU_MAX", c.Workspace.CPUMax); err != nil {
		return err
	}
	if c.Workspace.MemoryDefault, err = envMemory("WORKSPACE_MEMORY_DEFAULT", c.Workspace.MemoryDefault); err != nil {
		return err
	}
	if c.Workspace.MemoryMin, err = envMemory("WORKSPACE_MEMORY_MIN", c.Workspace.MemoryMin); err != nil {
		return err
	}
	if c.Workspace.MemoryMax, err = envMemory("WORKSPACE_MEMORY_MAX", c.Workspace.MemoryMax); err != nil {
		return err
	}
	if c.Workspace.MaxPerUser, err = envInt("MAX_WORKSPACES_PER_USER", c.Workspace.MaxPerUser); err != nil {
		return err
	}
	if c.Workspace.StopTimeout, err = envDuration("STOP_TIMEOUT", c.Workspace.StopTimeout); err != nil {
		return err
	}
	if c.Workspace.ProxyDialTimeout, err = envDuration("PROXY_DIAL_TIMEOUT", c.Workspace.ProxyDialTimeout); err != nil {
		return err
	}
	if c.Workspace.LifecycleRateLimit, err = envInt("RATE_LIFECYCLE_LIMIT", c.Workspace.LifecycleRateLimit); err != nil {
		return err
	}
	if c.Workspace.LifecycleRateWindow, err = envDuration("RATE_LIFECYCLE_WINDOW", c.Workspace.LifecycleRateWindow); err != nil {
		return err
	}

	return nil
}

// Validate checks required settings and internal consistency.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	if c.Auth.BcryptCost < 10 {
		return fmt.Errorf("BCRYPT_COST must be at least 10 (got %d)", c.Auth.BcryptCost)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
		return fmt.Errorf("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required")
	}
	if c.Payment.WebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if len(c.Payment.PlanIDs) == 0 {
		return fmt.Errorf("PAYMENT_PLAN_IDS must list at least one plan")
	}
	if c.Workspace.CPUMax <= 0 {
		return fmt.Errorf("WORKSPACE_CPU_MAX must be positive")
	}
	if c.Workspace.CPUDefault <= 0 || c.Workspace.CPUDefault > c.Workspace.CPUMax {
		return fmt.Errorf("WORKSPACE_CPU_DEFAULT must be in (0, %g]", c.Workspace.CPUMax)
	}
	if c.Workspace.MemoryMin > c.Workspace.MemoryMax {
		return fmt.Errorf("WORKSPACE_MEMORY_MIN exceeds WORKSPACE_MEMORY_MAX")
	}
	if c.Workspace.MemoryDefault < c.Workspace.MemoryMin || c.Workspace.MemoryDefault > c.Workspace.MemoryMax {
		return fmt.Errorf("WORKSPACE_MEMORY_DEFAULT outside [%d, %d] bytes", c.Workspace.MemoryMin, c.Workspace.MemoryMax)
	}
	if c.Workspace.Port <= 0 || c.Workspace.Port > 65535 {
		return fmt.Errorf("WORKSPACE_PORT must be a valid port")
	}
	if c.Workspace.MaxPerUser <= 0 {
		return fmt.Errorf("MAX_WORKSPACES_PER_USER must be positive")
	}
	return nil
}

// ParseMemorySize parses a human memory size: "512m"/"512M" (MiB),
// "2g"/"2G" (GiB), or a bare integer meaning MiB.
func ParseMemorySize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}

	mult := int64(1 << 20)
	switch s[len(s)-1] {
	case 'm', 'M':
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("memory size must be positive")
	}
	return n * mult, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %v", field, err)
	}
	*dst = d
	return nil
}

func setMemory(dst *int64, src *string, field string) error {
	if src == nil {
		return nil
	}
	n, err := ParseMemorySize(*src)
	if err != nil {
		return fmt.Errorf("invalid memory size for %s: %v", field, err)
	}
	*dst = n
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q", key, v)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %q", key, v)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, v)
	}
	return d, nil
}

func envMemory(key string, def int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := ParseMemorySize(v)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size for %s: %q", key, v)
	}
	return n, nil
}

func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
