// Package config holds the settings of the query pipeline, consolidated
// from defaults, a JSON document and the environment.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/providers/cosmos"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/providers/postgresql"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/providers/sqlite"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/providers/sqlserver"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

var ErrUnknownProvider = errors.New("unknown provider")

type Config struct {
	Provider           null.String `json:"provider" envconfig:"ASCETIC_ORM_PROVIDER"`
	Schema             null.String `json:"schema" envconfig:"ASCETIC_ORM_SCHEMA"`
	DSN                null.String `json:"dsn" envconfig:"ASCETIC_ORM_DSN"`
	PlanCacheSize      null.Int    `json:"planCacheSize" envconfig:"ASCETIC_ORM_PLAN_CACHE_SIZE"`
	UseRelationalNulls null.Bool   `json:"useRelationalNulls" envconfig:"ASCETIC_ORM_USE_RELATIONAL_NULLS"`
	PrecompiledQueries null.Bool   `json:"precompiledQueries" envconfig:"ASCETIC_ORM_PRECOMPILED_QUERIES"`
	LogLevel           null.String `json:"logLevel" envconfig:"ASCETIC_ORM_LOG_LEVEL"`
	LogFormat          null.String `json:"logFormat" envconfig:"ASCETIC_ORM_LOG_FORMAT"`
}

func NewConfig() Config {
	return Config{
		Provider:           null.NewString("sqlite", false),
		DSN:                null.NewString(":memory:", false),
		PlanCacheSize:      null.NewInt(1024, false),
		UseRelationalNulls: null.NewBool(false, false),
		PrecompiledQueries: null.NewBool(true, false),
		LogLevel:           null.NewString("info", false),
		LogFormat:          null.NewString("text", false),
	}
}

// Apply overrides c with the valid fields of cfg.
func (c Config) Apply(cfg Config) Config {
	if cfg.Provider.Valid && cfg.Provider.String != "" {
		c.Provider = cfg.Provider
	}
	if cfg.Schema.Valid {
		c.Schema = cfg.Schema
	}
	if cfg.DSN.Valid && cfg.DSN.String != "" {
		c.DSN = cfg.DSN
	}
	if cfg.PlanCacheSize.Valid {
		c.PlanCacheSize = cfg.PlanCacheSize
	}
	if cfg.UseRelationalNulls.Valid {
		c.UseRelationalNulls = cfg.UseRelationalNulls
	}
	if cfg.PrecompiledQueries.Valid {
		c.PrecompiledQueries = cfg.PrecompiledQueries
	}
	if cfg.LogLevel.Valid && cfg.LogLevel.String != "" {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.LogFormat.Valid && cfg.LogFormat.String != "" {
		c.LogFormat = cfg.LogFormat
	}
	return c
}

// GetConsolidatedConfig layers the JSON document, then env, over the
// defaults.
func GetConsolidatedConfig(jsonRawConf json.RawMessage, env map[string]string) (Config, error) {
	result := NewConfig()
	if jsonRawConf != nil {
		jsonConf := Config{}
		if err := json.Unmarshal(jsonRawConf, &jsonConf); err != nil {
			return result, errors.Wrap(err, "invalid configuration document")
		}
		result = result.Apply(jsonConf)
	}

	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, errors.Wrap(err, "invalid environment")
	}
	result = result.Apply(envConfig)

	return result, result.Validate()
}

// FromEnv consolidates the defaults with the process environment.
func FromEnv() (Config, error) {
	return GetConsolidatedConfig(nil, Environ(os.Environ()))
}

// Environ converts KEY=value pairs into a map.
func Environ(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func (c Config) Validate() error {
	if _, err := c.NewProvider(); err != nil {
		return err
	}
	if c.PlanCacheSize.Int64 < 0 {
		return errors.Errorf("plan cache size must not be negative, got %d", c.PlanCacheSize.Int64)
	}
	if _, err := logrus.ParseLevel(c.LogLevel.String); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	switch c.LogFormat.String {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat.String)
	}
	return nil
}

func (c Config) NewProvider() (query.Provider, error) {
	switch c.Provider.String {
	case "sqlite":
		return sqlite.NewProvider(), nil
	case "postgresql", "postgres":
		return postgresql.NewProvider(), nil
	case "sqlserver", "mssql":
		return sqlserver.NewProvider(), nil
	case "cosmos":
		return cosmos.NewProvider(), nil
	}
	return nil, errors.Wrap(ErrUnknownProvider, c.Provider.String)
}

// Logger returns a logger at the configured level and format.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel.String); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat.String == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func (c Config) CompilerOptions(logger logrus.FieldLogger) []query.CompilerOption {
	return []query.CompilerOption{
		query.WithLogger(logger),
		query.WithPlanCacheSize(int(c.PlanCacheSize.Int64)),
		query.UseRelationalNulls(c.UseRelationalNulls.Bool),
		query.PrecompiledQueries(c.PrecompiledQueries.Bool),
	}
}
