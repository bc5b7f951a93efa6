// Package config provides configuration management for the partql CLI.
//
// Values are layered, lowest to highest: built-in defaults, the YAML config
// file, PARTQL_ environment variables, then flags set on the command line.
package config

import "time"

// Default values.
const (
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultGatewayAddr  = ":8000"
	DefaultRegistryPath = ".partql/registry.db"
	DefaultEngineAddr   = ":8080"
	DefaultDataDir      = "/etc/data"
	DefaultGatewayURL   = "http://localhost:8000"
	DefaultFormat       = "table"
)

// Config holds all CLI configuration options.
type Config struct {
	LogLevel  string        `koanf:"log_level"`
	LogFormat string        `koanf:"log_format"`
	Gateway   GatewayConfig `koanf:"gateway"`
	Engine    EngineConfig  `koanf:"engine"`
	Client    ClientConfig  `koanf:"client"`

	// File is the config file that was loaded, empty if none.
	File string `koanf:"-"`
}

// GatewayConfig configures the routing gateway.
type GatewayConfig struct {
	Addr           string        `koanf:"addr"`
	RegistryPath   string        `koanf:"registry_path"`
	DockerHost     string        `koanf:"docker_host"`
	ForwardTimeout time.Duration `koanf:"forward_timeout"`
	Units          UnitsConfig   `koanf:"units"`
}

// UnitsConfig configures how compute units are provisioned.
type UnitsConfig struct {
	Image          string        `koanf:"image"`
	Network        string        `koanf:"network"`
	NamePrefix     string        `koanf:"name_prefix"`
	Port           int           `koanf:"port"`
	DataPath       string        `koanf:"data_path"`
	User           string        `koanf:"user"`
	AutoRemove     bool          `koanf:"auto_remove"`
	StartupGrace   time.Duration `koanf:"startup_grace"`
	ProvisionRate  float64       `koanf:"provision_rate"`
	ProvisionBurst int           `koanf:"provision_burst"`
}

// EngineConfig configures a compute unit process.
type EngineConfig struct {
	Addr    string `koanf:"addr"`
	DataDir string `koanf:"data_dir"`
}

// ClientConfig configures the client commands.
type ClientConfig struct {
	GatewayURL string        `koanf:"gateway_url"`
	Format     string        `koanf:"format"`
	Timeout    time.Duration `koanf:"timeout"`
}

// Defaults returns the built-in defaults keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"log_level":                     DefaultLogLevel,
		"log_format":                    DefaultLogFormat,
		"gateway.addr":                  DefaultGatewayAddr,
		"gateway.registry_path":         DefaultRegistryPath,
		"gateway.docker_host":           "",
		"gateway.forward_timeout":       "30s",
		"gateway.units.image":           "partql_engine",
		"gateway.units.network":         "partql_network",
		"gateway.units.name_prefix":     "partql_engine",
		"gateway.units.port":            8080,
		"gateway.units.data_path":       DefaultDataDir,
		"gateway.units.user":            "root",
		"gateway.units.auto_remove":     true,
		"gateway.units.startup_grace":   "2s",
		"gateway.units.provision_rate":  0,
		"gateway.units.provision_burst": 1,
		"engine.addr":                   DefaultEngineAddr,
		"engine.data_dir":               DefaultDataDir,
		"client.gateway_url":            DefaultGatewayURL,
		"client.format":                 DefaultFormat,
		"client.timeout":                "30s",
	}
}
