// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server
	Mongo     Mongo
	JWT       JWT
	RateLimit RateLimit
	TLS       TLS
	Logger    LoggerMode
	// AppURL prefixes notification deep links.
	AppURL string
}

type Server struct {
	Port     string
	HTTPPort string
}

type Mongo struct {
	URI      string
	Database string
}

type JWT struct {
	Secret    string
	Keys      map[string]string
	ActiveKid string
	TTL       time.Duration
}

type RateLimit struct {
	PerMinute int
	Burst     int
}

type TLS struct {
	CertFile string
	KeyFile  string
	Require  bool
}

type LoggerMode struct {
	Development bool
	Level       string
}

var defaults = map[string]any{
	"PORT":             "50051",
	"HTTP_PORT":        "8080",
	"MONGODB_DATABASE": "chat_db",
	"TOKEN_TTL":        "24h",
	"RATE_LIMIT_RPM":   10,
	"RATE_LIMIT_BURST": 5,
	"REQUIRE_TLS":      false,
	"APP_URL":          "http://localhost:3000",
	"LOG_LEVEL":        "info",
	"LOG_DEVELOPMENT":  false,
}

// Load reads envFile when it exists, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// a missing .env is fine; real deployments set the environment directly
		if err := godotenv.Load(envFile); err != nil {
			slog.Debug("no env file loaded", "file", envFile, "err", err)
		}
	}
	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return Parse(v)
}

// Parse builds a Config from v and validates it.
func Parse(v *viper.Viper) (*Config, error) {
	keys, err := ParseKeys(v.GetString("JWT_KEYS"))
	if err != nil {
		return nil, err
	}
	c := &Config{
		Server: Server{Port: v.GetString("PORT"), HTTPPort: v.GetString("HTTP_PORT")},
		Mongo:  Mongo{URI: v.GetString("MONGODB_URI"), Database: v.GetString("MONGODB_DATABASE")},
		JWT: JWT{
			Secret:    v.GetString("JWT_SECRET"),
			Keys:      keys,
			ActiveKid: v.GetString("JWT_ACTIVE_KID"),
			TTL:       v.GetDuration("TOKEN_TTL"),
		},
		RateLimit: RateLimit{PerMinute: v.GetInt("RATE_LIMIT_RPM"), Burst: v.GetInt("RATE_LIMIT_BURST")},
		TLS: TLS{
			CertFile: v.GetString("TLS_CERT"),
			KeyFile:  v.GetString("TLS_KEY"),
			Require:  v.GetBool("REQUIRE_TLS"),
		},
		Logger: LoggerMode{Development: v.GetBool("LOG_DEVELOPMENT"), Level: v.GetString("LOG_LEVEL")},
		AppURL: v.GetString("APP_URL"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.JWT.Secret == "" && len(c.JWT.Keys) == 0 {
		return errors.New("JWT_SECRET or JWT_KEYS is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.Errorf("TOKEN_TTL must be positive, got %s", c.JWT.TTL)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.TLS.Require && c.TLS.CertFile == "" {
		return errors.New("REQUIRE_TLS is set but no certificate is configured")
	}
	return nil
}

// SigningKeys is the kid -> secret set for the JWT manager. A bare
// JWT_SECRET becomes the "default" key.
func (c *Config) SigningKeys() (map[string]string, string) {
	if len(c.JWT.Keys) > 0 {
		active := c.JWT.ActiveKid
		if _, ok := c.JWT.Keys[active]; !ok {
			kids := make([]string, 0, len(c.JWT.Keys))
			for k := range c.JWT.Keys {
				kids = append(kids, k)
			}
			sort.Strings(kids)
			active = kids[len(kids)-1]
		}
		return c.JWT.Keys, active
	}
	return map[string]string{"default": c.JWT.Secret}, "default"
}

// ParseKeys parses "kid1:secret1,kid2:secret2".
func ParseKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return keys, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		kid, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || kid == "" || secret == "" {
			return nil, errors.Errorf("malformed JWT_KEYS entry %q", pair)
		}
		keys[kid] = secret
	}
	return keys, nil
}
