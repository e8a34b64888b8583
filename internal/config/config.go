package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"API_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	JWTExpires   time.Duration `mapstructure:"JWT_EXPIRES"`
	CookieSecure bool          `mapstructure:"COOKIE_SECURE"`
	BcryptCost   int           `mapstructure:"BCRYPT_COST"`

	FrontendURLOne string `mapstructure:"FRONTEND_URL_ONE"`
	FrontendURLTwo string `mapstructure:"FRONTEND_URL_TWO"`

	MaxUploadSize int64  `mapstructure:"MAX_UPLOAD_SIZE"`
	UploadTmpDir  string `mapstructure:"UPLOAD_TMP_DIR"`
	DoctorSort    string `mapstructure:"DOCTOR_SORT"`

	AvatarBucket    string `mapstructure:"AVATAR_BUCKET"`
	AWSRegion       string `mapstructure:"AWS_REGION"`
	AvatarEndpoint  string `mapstructure:"AVATAR_ENDPOINT"`
	AvatarPublicURL string `mapstructure:"AVATAR_PUBLIC_URL"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For
	// header is honoured. Empty means the peer address is the client.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`
}

var keys = []string{
	"API_PORT", "ENV", "LOG_LEVEL",
	"MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "JWT_EXPIRES", "COOKIE_SECURE", "BCRYPT_COST",
	"FRONTEND_URL_ONE", "FRONTEND_URL_TWO",
	"MAX_UPLOAD_SIZE", "UPLOAD_TMP_DIR", "DOCTOR_SORT",
	"AVATAR_BUCKET", "AWS_REGION", "AVATAR_ENDPOINT", "AVATAR_PUBLIC_URL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TRUSTED_PROXIES",
}

// Load reads .env files (if any) into the process environment and then binds
// the environment onto Config. Existing environment variables win over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault("API_PORT", "4000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DATABASE", "hospital")
	v.SetDefault("JWT_EXPIRES", "168h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("FRONTEND_URL_ONE", "http://localhost:5173")
	v.SetDefault("FRONTEND_URL_TWO", "http://localhost:5174")
	v.SetDefault("MAX_UPLOAD_SIZE", 5<<20)
	v.SetDefault("UPLOAD_TMP_DIR", os.TempDir())
	v.SetDefault("DOCTOR_SORT", "insertion")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AllowedOrigins lists the configured front-end origins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range []string{c.FrontendURLOne, c.FrontendURLTwo} {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Proxies returns the trusted proxy list with blanks removed.
func (c *Config) Proxies() []string {
	var out []string
	for _, p := range c.TrustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings needed to serve traffic.
func (c *Config) Validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.JWTExpires <= 0 {
		return fmt.Errorf("JWT_EXPIRES must be positive, got %s", c.JWTExpires)
	}
	if c.DoctorSort != "name" && c.DoctorSort != "insertion" {
		return fmt.Errorf("DOCTOR_SORT must be \"name\" or \"insertion\", got %q", c.DoctorSort)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	for _, p := range c.Proxies() {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p)
		}
	}
	if c.IsProduction() && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true in production")
	}
	return nil
}
