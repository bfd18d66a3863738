package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/log"

	"github.com/fogbed/iotanet/pkg/core"
	"github.com/fogbed/iotanet/pkg/substrate"
)

const rpcProbeMethod = "iota_getTotalTransactionBlocks"

// WaitRPCReady probes the gateway's JSON-RPC surface from inside its own
// environment until a well-formed result comes back. An open port does not
// mean the RPC layer is serving yet, so this runs after port confirmation.
// The probe is best effort: a timeout is reported as false, not as an error,
// and the caller decides whether that is fatal.
func WaitRPCReady(ctx context.Context, sub substrate.Substrate, gateway *core.NodeDescriptor, timeout, poll time.Duration, logger log.Logger) bool {
	payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"%s","params":[]}`, rpcProbeMethod)
	probe := fmt.Sprintf(
		`curl -s -m 5 -X POST -H "Content-Type: application/json" -d '%s' http://127.0.0.1:%d`,
		payload, gateway.Ports.RPC)

	logger.Info("Probing gateway RPC", "node", gateway.Name, "method", rpcProbeMethod)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out, err := sub.Exec(ctx, gateway.ContainerName(), probe)
		if err == nil && strings.Contains(out, `"result"`) {
			logger.Info("Gateway RPC ready", "node", gateway.Name)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
	logger.Warn("Gateway RPC not confirmed within timeout, continuing",
		"node", gateway.Name, "timeout", timeout)
	return false
}
