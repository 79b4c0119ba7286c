package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultFederated = []string{
	"google-oauth2", "github", "facebook", "apple", "twitter", "linkedin", "windowslive",
}

type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	MongoURI           string `yaml:"mongo_uri"`
	MongoDB            string `yaml:"mongo_db"`
	MetadataCollection string `yaml:"metadata_collection"`
	MetadataBackend    string `yaml:"metadata_backend"` // mongo | memory

	SessionBackend  string `yaml:"session_backend"` // cookie | redis
	SessionSecret   string `yaml:"session_secret"`
	SessionCookie   string `yaml:"session_cookie"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
	SessionSecure   bool   `yaml:"session_secure"`
	ActiveKid       string `yaml:"jwt_active_kid"`
	ActiveKeyPath   string `yaml:"jwt_active_key"`
	NextKid         string `yaml:"jwt_next_kid"`
	NextKeyPath     string `yaml:"jwt_next_key"`
	RedisAddr       string `yaml:"redis_addr"`

	MgmtDomain       string `yaml:"mgmt_domain"`
	MgmtClientID     string `yaml:"mgmt_client_id"`
	MgmtClientSecret string `yaml:"mgmt_client_secret"`
	MgmtAudience     string `yaml:"mgmt_audience"`
	MgmtTimeoutSec   int    `yaml:"mgmt_timeout_sec"`

	RabbitURL      string `yaml:"rabbit_url"`
	RabbitExchange string `yaml:"rabbit_exchange"`

	RateLimitPerMin    int      `yaml:"rate_limit_per_min"`
	CORSOrigins        []string `yaml:"cors_origins"`
	FederatedProviders []string `yaml:"federated_providers"`
	DevLogin           bool     `yaml:"dev_login"`
}

func (c Config) Prod() bool { return c.Env == "prod" }

// Load reads the environment. When CONFIG_FILE points to a YAML file its
// values are applied first and the environment still wins.
func Load() (Config, error) {
	c := Config{
		Port:               "8080",
		Env:                "dev",
		MongoURI:           "mongodb://localhost:27017",
		MongoDB:            "rehab_dashboard",
		MetadataCollection: "users",
		MetadataBackend:    "mongo",
		SessionBackend:     "cookie",
		SessionSecret:      "dev_session_secret_change_me",
		SessionCookie:      "appSession",
		SessionTTLHours:    24,
		RedisAddr:          "localhost:6379",
		MgmtTimeoutSec:     10,
		RabbitExchange:     "profile.events",
		RateLimitPerMin:    30,
		FederatedProviders: defaultFederated,
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	c.Port = getenv("APP_PORT", c.Port)
	c.Env = getenv("APP_ENV", c.Env)
	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDB = getenv("MONGO_DB", c.MongoDB)
	c.MetadataCollection = getenv("METADATA_COLLECTION", c.MetadataCollection)
	c.MetadataBackend = getenv("METADATA_BACKEND", c.MetadataBackend)
	c.SessionBackend = getenv("SESSION_BACKEND", c.SessionBackend)
	c.SessionSecret = getenv("SESSION_SECRET", c.SessionSecret)
	c.SessionCookie = getenv("SESSION_COOKIE", c.SessionCookie)
	c.SessionTTLHours = atoi(getenv("SESSION_TTL_HOURS", strconv.Itoa(c.SessionTTLHours)))
	c.SessionSecure = getenv("SESSION_SECURE", strconv.FormatBool(c.SessionSecure)) == "true"
	c.ActiveKid = getenv("JWT_ACTIVE_KID", c.ActiveKid)
	c.ActiveKeyPath = getenv("JWT_ACTIVE_KEY", c.ActiveKeyPath)
	c.NextKid = getenv("JWT_NEXT_KID", c.NextKid)
	c.NextKeyPath = getenv("JWT_NEXT_KEY", c.NextKeyPath)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.MgmtDomain = getenv("MGMT_DOMAIN", c.MgmtDomain)
	c.MgmtClientID = getenv("MGMT_CLIENT_ID", c.MgmtClientID)
	c.MgmtClientSecret = getenv("MGMT_CLIENT_SECRET", c.MgmtClientSecret)
	c.MgmtAudience = getenv("MGMT_AUDIENCE", c.MgmtAudience)
	c.MgmtTimeoutSec = atoi(getenv("MGMT_TIMEOUT_SEC", strconv.Itoa(c.MgmtTimeoutSec)))
	c.RabbitURL = getenv("RABBIT_URL", c.RabbitURL)
	c.RabbitExchange = getenv("RABBIT_EXCHANGE", c.RabbitExchange)
	c.RateLimitPerMin = atoi(getenv("RATE_LIMIT_PER_MIN", strconv.Itoa(c.RateLimitPerMin)))
	c.DevLogin = getenv("DEV_LOGIN", strconv.FormatBool(c.DevLogin)) == "true"
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("FEDERATED_PROVIDERS"); v != "" {
		c.FederatedProviders = splitList(v)
	}

	if c.MgmtAudience == "" && c.MgmtDomain != "" {
		c.MgmtAudience = "https://" + c.MgmtDomain + "/api/v2/"
	}
	return c, c.validate()
}

func (c *Config) overlayFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.MetadataBackend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("METADATA_BACKEND must be mongo or memory, got %q", c.MetadataBackend)
	}
	switch c.SessionBackend {
	case "cookie", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be cookie or redis, got %q", c.SessionBackend)
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.DevLogin && c.Prod() {
		return fmt.Errorf("DEV_LOGIN is not allowed when APP_ENV=prod")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
