// Package compiler rewrites the genesis tool's generic node templates into
// concrete per-node runtime configurations.
package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/luxfi/log"

	"github.com/fogbed/iotanet/pkg/core"
)

// In-container paths baked into every compiled config. The node binary reads
// its config from /custom_config and keeps state under /app.
const (
	DBPath          = "/app/db"
	GenesisBlobPath = "/custom_config/genesis.blob"
	AppPort         = 8080
)

// Retention directives are stripped from test-network configs: test networks
// must retain full history.
var excludedDirectives = []string{"pruning-period", "num-epochs-to-retain"}

// The gateway config embeds these key pairs, lifted from its genesis template.
var gatewayKeyNames = []string{
	"authority-key-pair",
	"protocol-key-pair",
	"account-key-pair",
	"network-key-pair",
}

// Compiler derives runtime configs from genesis templates. Transport is the
// P2P multiaddr transport tag ("tcp" or "udp"); it belongs to the node
// binary's expected schema, not to this layer.
type Compiler struct {
	Transport string
	log       log.Logger
}

// New creates a compiler with the given transport tag.
func New(transport string, logger log.Logger) *Compiler {
	return &Compiler{Transport: transport, log: logger}
}

// CompileValidator rewrites a validator template line by line. Recognized
// directives are replaced preserving the original indentation depth; excluded
// retention directives are dropped; everything else passes through unchanged.
func (c *Compiler) CompileValidator(template []byte, node *core.NodeDescriptor) ([]byte, error) {
	lines := strings.Split(string(template), "\n")
	out := make([]string, 0, len(lines))

	var sawGenesis, sawListen bool
	for _, line := range lines {
		if containsAny(line, excludedDirectives) {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		switch {
		case strings.Contains(line, "db-path:"):
			out = append(out, indent+`db-path: "`+DBPath+`"`)
		case strings.Contains(line, "genesis-file-location:"):
			sawGenesis = true
			out = append(out, indent+`genesis-file-location: "`+GenesisBlobPath+`"`)
		case strings.Contains(line, "network-address:"):
			// validators never expose the application RPC surface
			out = append(out, indent+fmt.Sprintf("network-address: /ip4/127.0.0.1/tcp/%d/http", AppPort))
		case strings.Contains(line, "metrics-address:"):
			out = append(out, indent+fmt.Sprintf(`metrics-address: "0.0.0.0:%d"`, node.Ports.Metrics))
		case strings.Contains(line, "listen-address:"):
			sawListen = true
			out = append(out, indent+fmt.Sprintf(`listen-address: "0.0.0.0:%d"`, node.Ports.P2P))
		case strings.Contains(line, "external-address:"):
			out = append(out, indent+"external-address: "+node.P2PAddress(c.Transport))
		default:
			out = append(out, line)
		}
	}

	if !sawGenesis {
		return nil, core.CompileError{Node: node.Name, Msg: "template has no genesis-file-location directive"}
	}
	if !sawListen {
		return nil, core.CompileError{Node: node.Name, Msg: "template has no p2p listen-address directive"}
	}
	return []byte(strings.Join(out, "\n")), nil
}

// CompileGateway synthesizes the gateway config rather than patching the
// template: the gateway additionally needs the genesis-derived key pairs, a
// JSON-RPC binding, and a seed-peer entry for every validator. A missing key
// pair is left blank and logged; some deployments provision keys out of band.
func (c *Compiler) CompileGateway(template []byte, node *core.NodeDescriptor, validators []*core.NodeDescriptor) ([]byte, error) {
	if len(validators) == 0 {
		return nil, core.CompileError{Node: node.Name, Msg: "gateway requires at least one validator for its seed-peer list"}
	}

	keys := extractKeyPairs(template)
	var b strings.Builder
	b.WriteString("---\n")
	for _, name := range gatewayKeyNames {
		value, ok := keys[name]
		if !ok {
			c.log.Warn("Gateway template missing key pair, leaving blank", "node", node.Name, "key", name)
		}
		fmt.Fprintf(&b, "%s:\n  value: %s\n", name, value)
	}
	fmt.Fprintf(&b, "db-path: %q\n", DBPath)
	fmt.Fprintf(&b, "network-address: /ip4/0.0.0.0/tcp/%d/http\n", AppPort)
	fmt.Fprintf(&b, "json-rpc-address: \"0.0.0.0:%d\"\n", node.Ports.RPC)
	b.WriteString("enable-rest-api: true\n")
	fmt.Fprintf(&b, "metrics-address: \"0.0.0.0:%d\"\n", node.Ports.Metrics)
	b.WriteString("p2p-config:\n")
	fmt.Fprintf(&b, "  listen-address: \"0.0.0.0:%d\"\n", node.Ports.P2P)
	fmt.Fprintf(&b, "  external-address: %s\n", node.P2PAddress(c.Transport))
	b.WriteString("  seed-peers:\n")
	for _, v := range validators {
		fmt.Fprintf(&b, "    - address: %s\n", v.P2PAddress(c.Transport))
	}
	b.WriteString("genesis:\n")
	fmt.Fprintf(&b, "  genesis-file-location: %q\n", GenesisBlobPath)
	return []byte(b.String()), nil
}

// extractKeyPairs pulls `<name>:\n  value: <v>` pairs out of a template.
func extractKeyPairs(template []byte) map[string]string {
	keys := make(map[string]string, len(gatewayKeyNames))
	content := string(template)
	for _, name := range gatewayKeyNames {
		re := regexp.MustCompile(regexp.QuoteMeta(name) + `:\s*\n\s*value:\s*(.+)`)
		if m := re.FindStringSubmatch(content); m != nil {
			keys[name] = strings.TrimSpace(m[1])
		}
	}
	return keys
}

func containsAny(line string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}
