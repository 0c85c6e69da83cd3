package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration required by the API process.
// Values come from env; a local .env file is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Provider  ProviderConfig
	Sync      SyncConfig
	Analytics AnalyticsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// Timezone defines the calendar day used for rollups and "today" views.
	Timezone string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	// Host empty disables the distributed sync lease (single-instance mode).
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string

	// DefaultRegion is used to parse caller numbers without a country prefix.
	DefaultRegion string
}

type SyncConfig struct {
	CallLimit        int
	RollupWindowDays int

	CallsCron      string
	RollupCron     string
	AssistantsCron string

	LeaseTTL         time.Duration
	SchedulerEnabled bool
}

type AnalyticsConfig struct {
	// LeadValue is the fixed revenue estimate per qualified call.
	LeadValue float64
}

func Load() (Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.Timezone = strings.TrimSpace(os.Getenv("APP_TIMEZONE"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))

	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PROVIDER_BASE_URL")), "/")
	c.Provider.APIKey = os.Getenv("PROVIDER_API_KEY")
	c.Provider.WebhookSecret = os.Getenv("PROVIDER_WEBHOOK_SECRET")
	c.Provider.DefaultRegion = strings.ToUpper(strings.TrimSpace(os.Getenv("PROVIDER_DEFAULT_REGION")))

	{
		n, err := optionalInt("SYNC_CALL_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Sync.CallLimit = n
	}
	{
		n, err := optionalInt("SYNC_ROLLUP_WINDOW_DAYS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Sync.RollupWindowDays = n
	}
	c.Sync.CallsCron = strings.TrimSpace(os.Getenv("SYNC_CALLS_CRON"))
	c.Sync.RollupCron = strings.TrimSpace(os.Getenv("SYNC_ROLLUP_CRON"))
	c.Sync.AssistantsCron = strings.TrimSpace(os.Getenv("SYNC_ASSISTANTS_CRON"))
	c.Sync.LeaseTTL = mustDuration("SYNC_LEASE_TTL")
	c.Sync.SchedulerEnabled = envBool("SYNC_SCHEDULER_ENABLED", true)

	if v := strings.TrimSpace(os.Getenv("ANALYTICS_LEAD_VALUE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("ANALYTICS_LEAD_VALUE must be a number, got %q", v))
		}
		c.Analytics.LeadValue = f
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every violation at once and fills defaults for optional values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Local"
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE is not a known zone: %q", c.App.Timezone))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("PROVIDER_BASE_URL is required"))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("PROVIDER_API_KEY is required"))
	}
	if c.IsProduction() && c.Provider.WebhookSecret == "" {
		errs = append(errs, errors.New("PROVIDER_WEBHOOK_SECRET is required in production"))
	}
	if c.Provider.DefaultRegion == "" {
		c.Provider.DefaultRegion = "US"
	}

	if c.Sync.CallLimit == 0 {
		c.Sync.CallLimit = 100
	}
	if c.Sync.CallLimit < 0 || c.Sync.CallLimit > 1000 {
		errs = append(errs, fmt.Errorf("SYNC_CALL_LIMIT must be within 1..1000, got %d", c.Sync.CallLimit))
	}
	if c.Sync.RollupWindowDays == 0 {
		c.Sync.RollupWindowDays = 8
	}
	if c.Sync.RollupWindowDays < 0 || c.Sync.RollupWindowDays > 90 {
		errs = append(errs, fmt.Errorf("SYNC_ROLLUP_WINDOW_DAYS must be within 1..90, got %d", c.Sync.RollupWindowDays))
	}
	if c.Sync.CallsCron == "" {
		c.Sync.CallsCron = "*/5 * * * *"
	}
	if c.Sync.RollupCron == "" {
		c.Sync.RollupCron = "15 * * * *"
	}
	if c.Sync.AssistantsCron == "" {
		c.Sync.AssistantsCron = "0 */6 * * *"
	}
	for key, spec := range map[string]string{
		"SYNC_CALLS_CRON":      c.Sync.CallsCron,
		"SYNC_ROLLUP_CRON":     c.Sync.RollupCron,
		"SYNC_ASSISTANTS_CRON": c.Sync.AssistantsCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s is not a valid cron expression: %q", key, spec))
		}
	}
	if c.Sync.LeaseTTL <= 0 {
		c.Sync.LeaseTTL = 5 * time.Minute
	}

	if c.Analytics.LeadValue == 0 {
		c.Analytics.LeadValue = 500
	}
	if c.Analytics.LeadValue < 0 {
		errs = append(errs, fmt.Errorf("ANALYTICS_LEAD_VALUE must be >= 0, got %v", c.Analytics.LeadValue))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Location returns the zone for calendar-day bucketing. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envBool(key string, def bool) bool {
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

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
