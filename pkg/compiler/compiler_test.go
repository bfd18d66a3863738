package compiler_test

import (
	"fmt"
	"strings"

	"github.com/luxfi/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/fogbed/iotanet/pkg/compiler"
	"github.com/fogbed/iotanet/pkg/core"
)

const validatorTemplate = `---
db-path: /opt/iota/db
network-address: /ip4/0.0.0.0/tcp/8080/http
metrics-address: "127.0.0.1:9184"
consensus-config:
  db-path: /opt/iota/consensus_db
p2p-config:
    listen-address: "0.0.0.0:8084"
    external-address: /ip4/127.0.0.1/udp/8084
genesis:
  genesis-file-location: /opt/iota/genesis.blob
authority-store-pruning-config:
  pruning-period-secs: 3600
  num-epochs-to-retain: 2
`

const gatewayTemplate = `---
authority-key-pair:
  value: AUTH123==
protocol-key-pair:
  value: PROTO456==
account-key-pair:
  value: ACCT789==
network-key-pair:
  value: NET000==
db-path: /opt/iota/db
`

func newTopology() (*core.Topology, []*core.NodeDescriptor, *core.NodeDescriptor) {
	topo := core.NewTopology()
	var validators []*core.NodeDescriptor
	for i := 1; i <= 3; i++ {
		v, err := topo.AddValidator(fmt.Sprintf("validator%d", i), fmt.Sprintf("10.0.0.%d", i))
		Expect(err).NotTo(HaveOccurred())
		validators = append(validators, v)
	}
	gw, err := topo.AddGateway("gateway1", "10.0.0.100")
	Expect(err).NotTo(HaveOccurred())
	return topo, validators, gw
}

var _ = Describe("Validator config", func() {
	var (
		c          *compiler.Compiler
		validators []*core.NodeDescriptor
	)

	BeforeEach(func() {
		c = compiler.New("tcp", log.NewLogger("compiler-test"))
		_, validators, _ = newTopology()
	})

	It("patches recognized directives from the node identity", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[1])
		Expect(err).NotTo(HaveOccurred())

		text := string(out)
		Expect(text).To(ContainSubstring(`db-path: "/app/db"`))
		Expect(text).To(ContainSubstring(`genesis-file-location: "/custom_config/genesis.blob"`))
		Expect(text).To(ContainSubstring(`listen-address: "0.0.0.0:2011"`))
		Expect(text).To(ContainSubstring("external-address: /ip4/10.0.0.2/tcp/2011"))
	})

	It("round-trips through a YAML parser with the expected values", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())

		var doc map[string]any
		Expect(yaml.Unmarshal(out, &doc)).To(Succeed())
		Expect(doc["db-path"]).To(Equal("/app/db"))

		genesisSection := doc["genesis"].(map[string]any)
		Expect(genesisSection["genesis-file-location"]).To(Equal("/custom_config/genesis.blob"))

		p2p := doc["p2p-config"].(map[string]any)
		Expect(p2p["listen-address"]).To(Equal("0.0.0.0:2001"))
		Expect(p2p["external-address"]).To(Equal("/ip4/10.0.0.1/tcp/2001"))
	})

	It("preserves the original indentation depth of substituted lines", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())

		// the template indents p2p keys with four spaces and genesis with two
		Expect(string(out)).To(ContainSubstring("\n    listen-address:"))
		Expect(string(out)).To(ContainSubstring("\n  genesis-file-location:"))
	})

	It("binds the application RPC surface to loopback", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("network-address: /ip4/127.0.0.1/tcp/8080/http"))
	})

	It("drops retention directives entirely", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).NotTo(ContainSubstring("pruning-period"))
		Expect(string(out)).NotTo(ContainSubstring("num-epochs-to-retain"))
	})

	It("passes unrecognized lines through unchanged", func() {
		out, err := c.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("consensus-config:"))
		Expect(string(out)).To(ContainSubstring("authority-store-pruning-config:"))
	})

	It("fails on a template missing required directives", func() {
		_, err := c.CompileValidator([]byte("db-path: /x\n"), validators[0])
		var compileErr core.CompileError
		Expect(err).To(BeAssignableToTypeOf(compileErr))
	})

	It("honors the configured transport tag", func() {
		udp := compiler.New("udp", log.NewLogger("compiler-test"))
		out, err := udp.CompileValidator([]byte(validatorTemplate), validators[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("external-address: /ip4/10.0.0.1/udp/2001"))
	})
})

var _ = Describe("Gateway config", func() {
	var (
		c          *compiler.Compiler
		validators []*core.NodeDescriptor
		gateway    *core.NodeDescriptor
	)

	BeforeEach(func() {
		c = compiler.New("tcp", log.NewLogger("compiler-test"))
		_, validators, gateway = newTopology()
	})

	It("embeds the four key pairs from the template", func() {
		out, err := c.CompileGateway([]byte(gatewayTemplate), gateway, validators)
		Expect(err).NotTo(HaveOccurred())

		var doc map[string]any
		Expect(yaml.Unmarshal(out, &doc)).To(Succeed())
		for name, want := range map[string]string{
			"authority-key-pair": "AUTH123==",
			"protocol-key-pair":  "PROTO456==",
			"account-key-pair":   "ACCT789==",
			"network-key-pair":   "NET000==",
		} {
			section := doc[name].(map[string]any)
			Expect(section["value"]).To(Equal(want), name)
		}
	})

	It("lists one seed peer per validator in insertion order", func() {
		out, err := c.CompileGateway([]byte(gatewayTemplate), gateway, validators)
		Expect(err).NotTo(HaveOccurred())

		var doc struct {
			P2P struct {
				SeedPeers []struct {
					Address string `yaml:"address"`
				} `yaml:"seed-peers"`
			} `yaml:"p2p-config"`
		}
		Expect(yaml.Unmarshal(out, &doc)).To(Succeed())
		Expect(doc.P2P.SeedPeers).To(HaveLen(3))
		Expect(doc.P2P.SeedPeers[0].Address).To(Equal("/ip4/10.0.0.1/tcp/2001"))
		Expect(doc.P2P.SeedPeers[1].Address).To(Equal("/ip4/10.0.0.2/tcp/2011"))
		Expect(doc.P2P.SeedPeers[2].Address).To(Equal("/ip4/10.0.0.3/tcp/2021"))
	})

	It("binds JSON-RPC and metrics to the gateway's allocated ports", func() {
		out, err := c.CompileGateway([]byte(gatewayTemplate), gateway, validators)
		Expect(err).NotTo(HaveOccurred())

		text := string(out)
		Expect(text).To(ContainSubstring(fmt.Sprintf(`json-rpc-address: "0.0.0.0:%d"`, gateway.Ports.RPC)))
		Expect(text).To(ContainSubstring(fmt.Sprintf(`metrics-address: "0.0.0.0:%d"`, gateway.Ports.Metrics)))
		Expect(text).To(ContainSubstring(fmt.Sprintf(`listen-address: "0.0.0.0:%d"`, gateway.Ports.P2P)))
	})

	It("emits a config even when key pairs are missing from the template", func() {
		out, err := c.CompileGateway([]byte("db-path: /x\n"), gateway, validators)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(string(out), "\n")
		Expect(lines).To(ContainElement("authority-key-pair:"))
		// blank value, still parseable
		var doc map[string]any
		Expect(yaml.Unmarshal(out, &doc)).To(Succeed())
	})

	It("refuses to compile without validators", func() {
		_, err := c.CompileGateway([]byte(gatewayTemplate), gateway, nil)
		Expect(err).To(HaveOccurred())
	})
})
