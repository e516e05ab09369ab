package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DBDriver    string
	DBUrl       string
	TokenSecret string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	Debug       bool
	LogFormat   string

	BootstrapEmail    string
	BootstrapPassword string
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ParseFlags reads the configuration from the command line. Every flag falls
// back to an environment variable, and variables found in a .env file in the
// working directory are loaded first without overriding the real environment.
func ParseFlags(args []string) (cfg Config, err error) {
	err = godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	port, err := envUint("PORT", 80)
	if err != nil {
		return
	}
	accessTTL, err := envUint("TOKEN_TTL", 120)
	if err != nil {
		return
	}
	refreshTTL, err := envUint("REFRESH_TTL", 8760)
	if err != nil {
		return
	}
	debug, err := envBool("DEBUG")
	if err != nil {
		return
	}

	flags := flag.NewFlagSet("civic-survey", flag.ContinueOnError)

	var host string
	flags.StringVar(&host, "host", env("HOST", "0.0.0.0"), "listen host name")
	flags.UintVar(&port, "port", port, "listen port number")
	flags.StringVar(&cfg.DBDriver, "db-driver", env("DB_DRIVER", DriverSQLite), "database driver (sqlite3 or postgres)")
	flags.StringVar(&cfg.DBUrl, "db-url", env("DATABASE_URL", "civic-survey.sqlite"), "SQLite3 file path or PostgreSQL connection URL")
	flags.StringVar(&cfg.TokenSecret, "token-secret", env("TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	flags.UintVar(&accessTTL, "token-ttl", accessTTL, "access token TTL in seconds")
	flags.UintVar(&refreshTTL, "refresh-ttl", refreshTTL, "refresh token TTL in hours")
	flags.BoolVar(&cfg.Debug, "debug", debug, "log at DEBUG level")
	flags.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "text"), "log format (text or json)")
	flags.StringVar(&cfg.BootstrapEmail, "bootstrap-email", env("BOOTSTRAP_ADMIN_EMAIL", ""), "global admin created when no admin exists")
	flags.StringVar(&cfg.BootstrapPassword, "bootstrap-password", env("BOOTSTRAP_ADMIN_PASSWORD", ""), "password of the bootstrap global admin")

	err = flags.Parse(args)
	if err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.AccessTTL = time.Duration(accessTTL) * time.Second
	cfg.RefreshTTL = time.Duration(refreshTTL) * time.Hour

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres:
		err = fmt.Errorf("unsupported -db-driver %q", cfg.DBDriver)
	case cfg.BootstrapEmail != "" && cfg.BootstrapPassword == "":
		err = errors.New("missing parameter -bootstrap-password")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) (uint, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return uint(n), nil
}

func envBool(key string) (bool, error) {
	v := env(key, "")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return b, nil
}
