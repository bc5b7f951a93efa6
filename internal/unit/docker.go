package unit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// DockerBackend provisions units as Docker containers.
type DockerBackend struct {
	cli *client.Client
}

var _ Backend = (*DockerBackend)(nil)

// NewDockerBackend connects to the Docker daemon at host, or to the daemon
// named by the DOCKER_* environment when host is empty.
func NewDockerBackend(host string) (*DockerBackend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerBackend{cli: cli}, nil
}

// Close releases the daemon connection.
func (b *DockerBackend) Close() error {
	return b.cli.Close()
}

// Ping checks that the daemon is reachable.
func (b *DockerBackend) Ping(ctx context.Context) error {
	if _, err := b.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

// UnitRunning lists running containers. The name filter matches substrings,
// so the result is checked for an exact name.
func (b *DockerBackend) UnitRunning(ctx context.Context, name string) (bool, error) {
	list, err := b.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}
	for _, c := range list {
		for _, n := range c.Names {
			if n == "/"+name {
				return true, nil
			}
		}
	}
	return false, nil
}

// EnsureVolume creates the volume unless it already exists.
func (b *DockerBackend) EnsureVolume(ctx context.Context, name string) error {
	_, err := b.cli.VolumeInspect(ctx, name)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect volume %s: %w", name, err)
	}
	if _, err := b.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name}); err != nil {
		return fmt.Errorf("create volume %s: %w", name, err)
	}
	return nil
}

// CreateUnit creates the engine container. The engine inside is configured
// through its environment to serve on spec.Port and store documents under
// spec.DataPath.
func (b *DockerBackend) CreateUnit(ctx context.Context, spec Spec) (string, error) {
	cfg := &container.Config{
		Image: spec.Image,
		User:  spec.User,
		Cmd:   []string{"engine"},
		Env: []string{
			"PARTQL_ENGINE__ADDR=:" + strconv.Itoa(spec.Port),
			"PARTQL_ENGINE__DATA_DIR=" + spec.DataPath,
		},
		Labels: map[string]string{
			"partql.unit":   spec.Name,
			"partql.volume": spec.Volume,
		},
	}
	hostCfg := &container.HostConfig{
		Binds:       []string{spec.Volume + ":" + spec.DataPath},
		AutoRemove:  spec.AutoRemove,
		NetworkMode: container.NetworkMode(spec.Network),
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			spec.Network: {},
		},
	}

	resp, err := b.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		if errdefs.IsConflict(err) {
			return "", fmt.Errorf("create container %s: %w", spec.Name, ErrUnitExists)
		}
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}
	return resp.ID, nil
}

// StartUnit starts a created container.
func (b *DockerBackend) StartUnit(ctx context.Context, id string) error {
	if err := b.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}
