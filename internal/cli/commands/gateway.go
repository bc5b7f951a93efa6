package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/partql/internal/cli/config"
	"github.com/leapstack-labs/partql/internal/gateway"
	"github.com/leapstack-labs/partql/internal/metrics"
	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/leapstack-labs/partql/internal/unit"
	"github.com/spf13/cobra"
)

// NewGatewayCommand creates the gateway command.
func NewGatewayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the routing gateway",
		Long: `Run the HTTP gateway that owns the container registry.

Every query and document request is routed on its partition key to a
dedicated compute unit. Units are created on first use through the local
Docker daemon and reused afterwards.`,
		Example: `  # Serve on the default address
  partql gateway

  # Serve on another port with a custom engine image
  partql gateway --addr :9000 --image registry.local/partql_engine:dev`,
		Args: cobra.NoArgs,
		RunE: runGateway,
	}

	bindString(cmd, "addr", "", "gateway.addr", "Listen address (default: "+config.DefaultGatewayAddr+")")
	bindString(cmd, "registry", "", "gateway.registry_path", "Path to the registry database")
	bindString(cmd, "docker-host", "", "gateway.docker_host", "Docker daemon address (default: from environment)")
	bindString(cmd, "image", "", "gateway.units.image", "Compute unit image")
	bindString(cmd, "network", "", "gateway.units.network", "Network units are attached to")
	bindDuration(cmd, "forward-timeout", "gateway.forward_timeout", "Timeout for requests forwarded to units")
	bindDuration(cmd, "startup-grace", "gateway.units.startup_grace", "Wait after starting a unit before using it")

	return cmd
}

// unitOptions maps the units config onto manager options.
func unitOptions(c config.UnitsConfig) unit.Options {
	opts := unit.DefaultOptions()
	opts.Image = c.Image
	opts.Network = c.Network
	opts.NamePrefix = c.NamePrefix
	opts.Port = c.Port
	opts.DataPath = c.DataPath
	opts.User = c.User
	opts.AutoRemove = c.AutoRemove
	opts.StartupGrace = c.StartupGrace
	opts.ProvisionRate = c.ProvisionRate
	opts.ProvisionBurst = c.ProvisionBurst
	return opts
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg.Gateway
	ctx := cmd.Context()

	if dir := filepath.Dir(cfg.RegistryPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	reg, err := registry.Open(ctx, cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	backend, err := unit.NewDockerBackend(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	if err := backend.Ping(ctx); err != nil {
		cmdCtx.Logger.Warn("docker daemon not reachable, units will fail to provision", "error", err)
	}

	m := metrics.New()
	opts := unitOptions(cfg.Units)
	opts.Logger = cmdCtx.Logger.With("component", "units")
	opts.Observer = m

	srv := gateway.NewServer(gateway.Config{
		Registry:       reg,
		Units:          unit.NewManager(backend, opts),
		ForwardTimeout: cfg.ForwardTimeout,
		Logger:         cmdCtx.Logger,
		Metrics:        m,
	})
	return srv.Serve(ctx, cfg.Addr)
}
