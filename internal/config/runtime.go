package config

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Runtime holds process settings for `trakka serve`, read from TRAKKA_* variables.
type Runtime struct {
	Env          string        `envconfig:"ENV" default:"development"`
	Addr         string        `envconfig:"ADDR" default:"127.0.0.1:8080"`
	BasePath     string        `envconfig:"BASE_PATH" default:"/v1"`
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	RateLimit    int           `envconfig:"RATE_LIMIT" default:"120"`
	LogFormat    string        `envconfig:"LOG_FORMAT" default:"text"`
	DevLogin     bool          `envconfig:"DEV_LOGIN" default:"false"`
	ActorHeader  bool          `envconfig:"ALLOW_ACTOR_HEADER" default:"false"`
}

// LoadRuntime reads runtime configuration from the environment.
func LoadRuntime() (*Runtime, error) {
	var rt Runtime
	if err := envconfig.Process("trakka", &rt); err != nil {
		return nil, err
	}
	if rt.JWTSecret == "" && !rt.ActorHeader {
		return nil, errors.New("TRAKKA_JWT_SECRET is required unless TRAKKA_ALLOW_ACTOR_HEADER is set")
	}
	if rt.IsProduction() && (rt.DevLogin || rt.ActorHeader) {
		return nil, errors.New("dev login and actor header auth are not allowed in production")
	}
	return &rt, nil
}

// IsProduction returns true when running in production.
func (r *Runtime) IsProduction() bool {
	return r != nil && r.Env == "production"
}

// NewLogger returns a slog.Logger for the configured format.
func NewLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
