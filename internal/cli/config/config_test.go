package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultGatewayAddr, cfg.Gateway.Addr)
	assert.Equal(t, 30*time.Second, cfg.Gateway.ForwardTimeout)
	assert.Equal(t, "partql_engine", cfg.Gateway.Units.Image)
	assert.Equal(t, 8080, cfg.Gateway.Units.Port)
	assert.Equal(t, 2*time.Second, cfg.Gateway.Units.StartupGrace)
	assert.True(t, cfg.Gateway.Units.AutoRemove)
	assert.Equal(t, DefaultDataDir, cfg.Engine.DataDir)
	assert.Equal(t, DefaultFormat, cfg.Client.Format)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `log_level: debug
gateway:
  addr: ":9000"
  units:
    image: custom_engine
    startup_grace: 500ms
    provision_rate: 2.5
    provision_burst: 3
engine:
  data_dir: /srv/data
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partql.yaml"), []byte(content), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "partql.yaml", cfg.File)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.Equal(t, "custom_engine", cfg.Gateway.Units.Image)
	assert.Equal(t, 500*time.Millisecond, cfg.Gateway.Units.StartupGrace)
	assert.InDelta(t, 2.5, cfg.Gateway.Units.ProvisionRate, 1e-9)
	assert.Equal(t, 3, cfg.Gateway.Units.ProvisionBurst)
	assert.Equal(t, "/srv/data", cfg.Engine.DataDir)
	// untouched keys keep their defaults
	assert.Equal(t, "partql_network", cfg.Gateway.Units.Network)
}

func TestLoadExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "other.yml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: json\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.yaml")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partql.yaml"),
		[]byte("gateway:\n  addr: \":7000\"\n  units:\n    port: 7001\nengine:\n  addr: \":7002\"\n"), 0o600))

	t.Setenv("PARTQL_GATEWAY__ADDR", ":8100")
	t.Setenv("PARTQL_GATEWAY__UNITS__PORT", "8101")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("data-dir", "", "")
	BindFlag(flags, "addr", "gateway.addr")
	BindFlag(flags, "data-dir", "engine.data_dir")
	require.NoError(t, flags.Parse([]string{"--addr", ":9100"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Gateway.Addr, "flag beats env and file")
	assert.Equal(t, 8101, cfg.Gateway.Units.Port, "env beats file")
	assert.Equal(t, ":7002", cfg.Engine.Addr, "file beats defaults")
	assert.Equal(t, DefaultDataDir, cfg.Engine.DataDir, "unchanged flags are ignored")
}

func TestLoadIgnoresUnboundFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("container", "", "")
	BindFlag(flags, "log-level", "log_level")
	require.NoError(t, flags.Parse([]string{"--log-level", "warn", "--container", "pets"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partql.yaml"),
		[]byte("gateway:\n  adr: \":9000\"\n"), 0o600))

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adr")
}

func TestLoadSkipsUnknownEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PARTQL_HISTORY", "/tmp/history")
	t.Setenv("PARTQL_GATEWAY__ADR", ":9000")
	t.Setenv("PARTQL_ENGINE__ADDR", ":9001")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayAddr, cfg.Gateway.Addr)
	assert.Equal(t, ":9001", cfg.Engine.Addr)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"PARTQL_LOG_LEVEL", "log_level"},
		{"PARTQL_GATEWAY__ADDR", "gateway.addr"},
		{"PARTQL_GATEWAY__UNITS__NAME_PREFIX", "gateway.units.name_prefix"},
		{"PARTQL_ENGINE__DATA_DIR", "engine.data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, EnvKey(tt.env))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, errSubstr: "log_level"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: "log_format"},
		{name: "bad client format", mutate: func(c *Config) { c.Client.Format = "xml" }, errSubstr: "client.format"},
		{name: "port zero", mutate: func(c *Config) { c.Gateway.Units.Port = 0 }, errSubstr: "gateway.units.port"},
		{name: "port too high", mutate: func(c *Config) { c.Gateway.Units.Port = 70000 }, errSubstr: "gateway.units.port"},
		{name: "no gateway addr", mutate: func(c *Config) { c.Gateway.Addr = "" }, errSubstr: "gateway.addr"},
		{name: "no engine addr", mutate: func(c *Config) { c.Engine.Addr = "" }, errSubstr: "engine.addr"},
		{name: "no gateway url", mutate: func(c *Config) { c.Client.GatewayURL = "" }, errSubstr: "gateway_url"},
		{name: "negative rate", mutate: func(c *Config) { c.Gateway.Units.ProvisionRate = -1 }, errSubstr: "provision_rate"},
		{name: "rate without burst", mutate: func(c *Config) {
			c.Gateway.Units.ProvisionRate = 1
			c.Gateway.Units.ProvisionBurst = 0
		}, errSubstr: "provision_burst"},
		{name: "negative grace", mutate: func(c *Config) { c.Gateway.Units.StartupGrace = -time.Second }, errSubstr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetConfig(context.Background())
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PARTQL_LOG_FORMAT", "xml")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNewLogger(t *testing.T) {
	var buf logSink

	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()

	assert.NotNil(t, GetLogger(ctx), "discard fallback")
	assert.Equal(t, DefaultGatewayAddr, GetConfig(ctx).Gateway.Addr, "defaults fallback")

	cfg := &Config{LogLevel: "debug"}
	ctx = WithConfig(ctx, cfg)
	assert.Same(t, cfg, GetConfig(ctx))

	logger, _ := NewLogger(&logSink{}, "info", "text")
	ctx = WithLogger(ctx, logger)
	assert.Same(t, logger, GetLogger(ctx))
}

type logSink struct{ b []byte }

func (s *logSink) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}

func (s *logSink) String() string { return string(s.b) }
