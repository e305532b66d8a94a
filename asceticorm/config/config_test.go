package config

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func TestDefaults(t *testing.T) {
	c, err := GetConsolidatedConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), c)
	assert.Equal(t, "sqlite", c.Provider.String)
	assert.False(t, c.Provider.Valid)

	provider, err := c.NewProvider()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", provider.Name())
	assert.Len(t, c.CompilerOptions(c.Logger()), 4)
}

func TestConsolidationOrder(t *testing.T) {
	raw := json.RawMessage(`{"provider":"postgresql","planCacheSize":16,"logLevel":"debug"}`)
	env := map[string]string{
		"ASCETIC_ORM_PLAN_CACHE_SIZE":      "32",
		"ASCETIC_ORM_USE_RELATIONAL_NULLS": "true",
		"ASCETIC_ORM_LOG_FORMAT":           "json",
		"UNRELATED":                        "x",
	}
	c, err := GetConsolidatedConfig(raw, env)
	require.NoError(t, err)

	assert.Equal(t, null.StringFrom("postgresql"), c.Provider)
	assert.Equal(t, null.IntFrom(32), c.PlanCacheSize)
	assert.Equal(t, null.BoolFrom(true), c.UseRelationalNulls)
	assert.True(t, c.PrecompiledQueries.Bool)

	logger := c.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"provider", map[string]string{"ASCETIC_ORM_PROVIDER": "oracle"}},
		{"cache size", map[string]string{"ASCETIC_ORM_PLAN_CACHE_SIZE": "-1"}},
		{"log level", map[string]string{"ASCETIC_ORM_LOG_LEVEL": "loud"}},
		{"log format", map[string]string{"ASCETIC_ORM_LOG_FORMAT": "xml"}},
		{"malformed bool", map[string]string{"ASCETIC_ORM_PRECOMPILED_QUERIES": "perhaps"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := GetConsolidatedConfig(nil, c.env)
			assert.Error(t, err)
		})
	}

	_, err := GetConsolidatedConfig(json.RawMessage(`{"provider":`), nil)
	assert.Error(t, err)

	_, err = Config{Provider: null.StringFrom("oracle")}.NewProvider()
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestProviders(t *testing.T) {
	for name, expected := range map[string]string{
		"sqlite":     "sqlite",
		"postgres":   "postgresql",
		"postgresql": "postgresql",
		"mssql":      "sqlserver",
		"sqlserver":  "sqlserver",
		"cosmos":     "cosmos",
	} {
		provider, err := NewConfig().Apply(Config{Provider: null.StringFrom(name)}).NewProvider()
		require.NoError(t, err, name)
		assert.Equal(t, expected, provider.Name(), name)
	}
}

func TestEnviron(t *testing.T) {
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, Environ([]string{"A=1", "B=x=y", "broken"}))
}
