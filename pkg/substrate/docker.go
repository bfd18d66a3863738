package substrate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/luxfi/log"
)

// Environment handles created by this substrate share a name prefix so that
// stale environments from previous runs can be found and reclaimed.
const HandlePrefix = "mn."

// Docker drives isolated environments as docker containers on a user-defined
// bridge network with static IPs.
type Docker struct {
	network string
	subnet  string
	log     log.Logger
}

// NewDocker creates a docker-backed substrate. network is the bridge network
// name, subnet its CIDR (created on first use if absent).
func NewDocker(network, subnet string, logger log.Logger) *Docker {
	return &Docker{network: network, subnet: subnet, log: logger}
}

func (d *Docker) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil {
		return out.String(), fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

func (d *Docker) ensureNetwork(ctx context.Context) error {
	if _, err := d.run(ctx, "network", "inspect", d.network); err == nil {
		return nil
	}
	d.log.Debug("Creating bridge network", "name", d.network, "subnet", d.subnet)
	_, err := d.run(ctx, "network", "create", "--subnet", d.subnet, d.network)
	return err
}

// Create starts an idle container pinned to the given address. The container
// must outlive the command that created it, so it runs a do-nothing entrypoint.
func (d *Docker) Create(ctx context.Context, name, image, address string) error {
	if err := d.ensureNetwork(ctx); err != nil {
		return err
	}
	d.log.Debug("Creating environment", "name", name, "ip", address, "image", image)
	_, err := d.run(ctx, "run", "-d",
		"--name", name,
		"--network", d.network,
		"--ip", address,
		"--privileged",
		image,
		"tail", "-f", "/dev/null")
	return err
}

// Exec runs a shell command inside the container.
func (d *Docker) Exec(ctx context.Context, name, command string) (string, error) {
	return d.run(ctx, "exec", name, "sh", "-lc", command)
}

// CopyInto copies a host file or directory contents into the container.
func (d *Docker) CopyInto(ctx context.Context, name, srcPath, destPath string) error {
	_, err := d.run(ctx, "cp", srcPath, name+":"+destPath)
	return err
}

// Remove force-removes the container; a missing container is not an error.
func (d *Docker) Remove(ctx context.Context, name string) error {
	out, err := d.run(ctx, "rm", "-f", name)
	if err != nil && strings.Contains(out, "No such container") {
		return nil
	}
	return err
}

// List returns all containers carrying the substrate handle prefix, including
// stopped ones, so stale state from crashed runs is visible.
func (d *Docker) List(ctx context.Context) ([]string, error) {
	out, err := d.run(ctx, "ps", "-a", "--filter", "name="+HandlePrefix, "--format", "{{.Names}}")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
