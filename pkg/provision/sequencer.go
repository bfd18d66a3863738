// Package provision stages compiled artifacts into node environments and
// drives the boot sequence: validators one at a time, then the gateway,
// gated on readiness checks.
package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/luxfi/log"

	"github.com/fogbed/iotanet/pkg/core"
	"github.com/fogbed/iotanet/pkg/metrics"
	"github.com/fogbed/iotanet/pkg/substrate"
)

// In-environment paths the node binary contract fixes.
const (
	ConfigDir      = "/custom_config"
	ConfigFileName = "validator.yaml"
	LogDir         = "/var/log/iota"
	LogFile        = LogDir + "/iota-node.log"
	PidFile        = LogDir + "/iota-node.pid"
)

// Timings bound every wait in the boot path. There are no unbounded waits.
type Timings struct {
	// InterValidatorDelay throttles sequential validator starts. Validators
	// started too close together have been observed to fail peer discovery.
	InterValidatorDelay time.Duration
	// StabilizationDelay runs once after the last validator, before the
	// gateway starts.
	StabilizationDelay time.Duration

	ProcessTimeout time.Duration
	ProcessPoll    time.Duration
	PortTimeout    time.Duration
	PortPoll       time.Duration

	CopyAttempts uint
	LogTailLines int
}

// DefaultTimings returns the stock boot schedule.
func DefaultTimings() Timings {
	return Timings{
		InterValidatorDelay: 8 * time.Second,
		StabilizationDelay:  15 * time.Second,
		ProcessTimeout:      30 * time.Second,
		ProcessPoll:         time.Second,
		PortTimeout:         90 * time.Second,
		PortPoll:            2 * time.Second,
		CopyAttempts:        3,
		LogTailLines:        200,
	}
}

// Sequencer boots one network. It owns the per-node staging directories under
// liveDataDir for the lifetime of the boot.
type Sequencer struct {
	sub         substrate.Substrate
	image       string
	nodeBinary  string
	liveDataDir string
	timings     Timings
	log         log.Logger
}

// NewSequencer creates a sequencer. nodeBinary is the in-environment node
// executable name.
func NewSequencer(sub substrate.Substrate, image, nodeBinary, liveDataDir string, timings Timings, logger log.Logger) *Sequencer {
	return &Sequencer{
		sub:         sub,
		image:       image,
		nodeBinary:  nodeBinary,
		liveDataDir: liveDataDir,
		timings:     timings,
		log:         logger,
	}
}

// BootNetwork runs the full staged boot: every validator in insertion order
// with a stabilization throttle between starts, a settle delay, then the
// gateway gated on its RPC port actually listening. Any node failure aborts
// the remainder of the sequence; the caller is expected to tear down the
// whole network rather than patch a single node.
func (s *Sequencer) BootNetwork(ctx context.Context, topo *core.Topology, configs map[string][]byte, genesisBlob string) error {
	validators := topo.Validators()
	gateways := topo.Gateways()

	s.log.Info("Starting validators sequentially", "count", len(validators))
	for i, node := range validators {
		if err := s.bootNode(ctx, node, configs[node.Name], genesisBlob); err != nil {
			return err
		}
		if i < len(validators)-1 {
			s.log.Debug("Throttling before next validator", "delay", s.timings.InterValidatorDelay)
			if err := sleepCtx(ctx, s.timings.InterValidatorDelay); err != nil {
				return err
			}
		}
	}

	if len(gateways) > 0 {
		s.log.Info("Waiting for validator network to stabilize", "delay", s.timings.StabilizationDelay)
		if err := sleepCtx(ctx, s.timings.StabilizationDelay); err != nil {
			return err
		}
	}

	for _, node := range gateways {
		if err := s.bootNode(ctx, node, configs[node.Name], genesisBlob); err != nil {
			return err
		}
		if err := s.waitPortOpen(ctx, node, node.Ports.RPC); err != nil {
			return err
		}
		if err := node.Advance(core.StatusPortConfirmed); err != nil {
			return err
		}
		metrics.NodesBooted.WithLabelValues(string(node.Role)).Inc()
		s.log.Info("Gateway RPC confirmed", "node", node.Name, "endpoint", node.RPCEndpoint())
	}

	for _, node := range topo.Nodes() {
		if err := node.Advance(core.StatusRunning); err != nil {
			return err
		}
	}
	return nil
}

// bootNode takes one node from Created to ProcessStarted: create environment,
// inject artifacts, start the process detached, confirm it stays alive.
func (s *Sequencer) bootNode(ctx context.Context, node *core.NodeDescriptor, config []byte, genesisBlob string) error {
	start := time.Now()
	s.log.Info("Booting node", "node", node.Name, "role", node.Role, "ip", node.Address)

	if len(config) == 0 {
		return s.fail(node, "stage", "no compiled config for node", "", nil)
	}
	if err := s.sub.Create(ctx, node.ContainerName(), s.image, node.Address); err != nil {
		return s.fail(node, "create", "failed to create environment", "", err)
	}

	stageDir, err := s.stage(node, config, genesisBlob)
	if err != nil {
		return s.fail(node, "stage", "failed to stage artifacts", "", err)
	}
	if err := s.inject(ctx, node, stageDir); err != nil {
		return s.fail(node, "inject", "failed to copy artifacts into environment", "", err)
	}
	if err := node.Advance(core.StatusConfigInjected); err != nil {
		return err
	}

	if _, err := s.sub.Exec(ctx, node.ContainerName(), s.startCommand()); err != nil {
		return s.fail(node, "start", "failed to start node process", s.logTail(ctx, node), err)
	}
	if err := node.Advance(core.StatusProcessStarted); err != nil {
		return err
	}

	if err := s.waitProcessAlive(ctx, node); err != nil {
		return err
	}
	if node.Role == core.RoleValidator {
		metrics.NodesBooted.WithLabelValues(string(node.Role)).Inc()
	}
	metrics.StageDuration.WithLabelValues("boot_node").Observe(time.Since(start).Seconds())
	return nil
}

// stage writes the compiled config and the genesis blob into the node's
// host-side staging directory.
func (s *Sequencer) stage(node *core.NodeDescriptor, config []byte, genesisBlob string) (string, error) {
	dir := filepath.Join(s.liveDataDir, node.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), config, 0o644); err != nil {
		return "", err
	}
	blob, err := os.ReadFile(genesisBlob)
	if err != nil {
		return "", fmt.Errorf("failed to read genesis blob: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filepath.Base(genesisBlob)), blob, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// inject copies the staged directory into the environment. A single flaky
// copy is retried with backoff before escalating.
func (s *Sequencer) inject(ctx context.Context, node *core.NodeDescriptor, stageDir string) error {
	if _, err := s.sub.Exec(ctx, node.ContainerName(), "mkdir -p "+ConfigDir); err != nil {
		return err
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.sub.CopyInto(ctx, node.ContainerName(), stageDir+string(filepath.Separator)+".", ConfigDir)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.timings.CopyAttempts))
	return err
}

func (s *Sequencer) startCommand() string {
	return fmt.Sprintf(
		"set -e; mkdir -p %s; nohup %s --config-path %s/%s > %s 2>&1 & echo $! > %s",
		LogDir, s.nodeBinary, ConfigDir, ConfigFileName, LogFile, PidFile,
	)
}

// waitProcessAlive polls until the detached process is confirmed running. A
// pid file alone is not enough; the pid must still be alive.
func (s *Sequencer) waitProcessAlive(ctx context.Context, node *core.NodeDescriptor) error {
	check := fmt.Sprintf("test -f %s && ps -p $(cat %s) >/dev/null 2>&1 && echo OK || echo NOK", PidFile, PidFile)
	deadline := time.Now().Add(s.timings.ProcessTimeout)
	for time.Now().Before(deadline) {
		out, err := s.sub.Exec(ctx, node.ContainerName(), check)
		if err == nil && strings.Contains(out, "OK") {
			s.log.Debug("Node process alive", "node", node.Name)
			return nil
		}
		if err := sleepCtx(ctx, s.timings.ProcessPoll); err != nil {
			return err
		}
	}
	return s.fail(node, "process-confirm", "node process did not come up within "+s.timings.ProcessTimeout.String(), s.logTail(ctx, node), nil)
}

// waitPortOpen polls until the given port is observed listening inside the
// environment. A process can be alive long before its listener binds, so this
// is a separate, longer-bounded wait.
func (s *Sequencer) waitPortOpen(ctx context.Context, node *core.NodeDescriptor, port int) error {
	tool, err := s.sub.Exec(ctx, node.ContainerName(), "command -v ss >/dev/null 2>&1 && echo ss || echo netstat")
	if err != nil {
		return s.fail(node, "port-confirm", "failed to probe for a socket tool", "", err)
	}
	check := fmt.Sprintf("%s -lnt | grep -q ':%d' && echo OK || echo NOK", strings.TrimSpace(tool), port)

	s.log.Debug("Waiting for port", "node", node.Name, "port", port)
	deadline := time.Now().Add(s.timings.PortTimeout)
	for time.Now().Before(deadline) {
		out, err := s.sub.Exec(ctx, node.ContainerName(), check)
		if err == nil && strings.Contains(out, "OK") {
			s.log.Debug("Port open", "node", node.Name, "port", port)
			return nil
		}
		if err := sleepCtx(ctx, s.timings.PortPoll); err != nil {
			return err
		}
	}
	return s.fail(node, "port-confirm",
		fmt.Sprintf("port %d did not open within %s", port, s.timings.PortTimeout), s.logTail(ctx, node), nil)
}

// Teardown terminates every node that reached ProcessStarted and removes all
// environments. Safe to call at any point of a partial boot, and idempotent:
// nodes that never started are skipped without error.
func (s *Sequencer) Teardown(ctx context.Context, topo *core.Topology) {
	for _, node := range topo.Nodes() {
		if node.Started() {
			if _, err := s.sub.Exec(ctx, node.ContainerName(), "pkill -9 "+s.nodeBinary+" 2>/dev/null || true"); err != nil {
				s.log.Warn("Failed to signal node process", "node", node.Name, "error", err)
			}
		}
		if err := s.sub.Remove(ctx, node.ContainerName()); err != nil {
			s.log.Warn("Failed to remove environment", "node", node.Name, "error", err)
		}
	}
}

// logTail captures the end of the node's process log for error reports.
func (s *Sequencer) logTail(ctx context.Context, node *core.NodeDescriptor) string {
	cmd := fmt.Sprintf("tail -n %d %s 2>/dev/null || true", s.timings.LogTailLines, LogFile)
	out, err := s.sub.Exec(ctx, node.ContainerName(), cmd)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (s *Sequencer) fail(node *core.NodeDescriptor, stage, msg, tail string, err error) error {
	node.Fail(msg)
	metrics.BootFailures.WithLabelValues(stage).Inc()
	return core.ProvisionError{Node: node.Name, Stage: stage, Msg: msg, LogTail: tail, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
