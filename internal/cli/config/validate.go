package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	formats     = []string{"table", "json", "yaml", "csv", "md", "markdown"}
	errNoAddr   = errors.New("listen address is required")
	errNoTarget = errors.New("client.gateway_url is required")
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %v, got %q", logLevels, c.LogLevel)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("log_format must be one of %v, got %q", logFormats, c.LogFormat)
	}
	if !slices.Contains(formats, c.Client.Format) {
		return fmt.Errorf("client.format must be one of %v, got %q", formats, c.Client.Format)
	}

	if c.Gateway.Addr == "" {
		return fmt.Errorf("gateway.addr: %w", errNoAddr)
	}
	if c.Engine.Addr == "" {
		return fmt.Errorf("engine.addr: %w", errNoAddr)
	}
	if c.Client.GatewayURL == "" {
		return errNoTarget
	}

	u := c.Gateway.Units
	if u.Port < 1 || u.Port > 65535 {
		return fmt.Errorf("gateway.units.port must be between 1 and 65535, got %d", u.Port)
	}
	if u.Image == "" || u.NamePrefix == "" {
		return errors.New("gateway.units.image and gateway.units.name_prefix are required")
	}
	if u.ProvisionRate < 0 {
		return fmt.Errorf("gateway.units.provision_rate must not be negative, got %g", u.ProvisionRate)
	}
	if u.ProvisionRate > 0 && u.ProvisionBurst < 1 {
		return fmt.Errorf("gateway.units.provision_burst must be at least 1, got %d", u.ProvisionBurst)
	}
	if u.StartupGrace < 0 || c.Gateway.ForwardTimeout < 0 || c.Client.Timeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
