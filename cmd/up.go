package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fogbed/iotanet/pkg/core"
	"github.com/fogbed/iotanet/pkg/genesis"
	"github.com/fogbed/iotanet/pkg/network"
	"github.com/fogbed/iotanet/pkg/substrate"
)

var (
	// Up command flags
	upValidators   int
	upGateways     int
	upTopologyFile string
	upImage        string
	upWithClient   bool
	upWithFaucet   bool
	upGenesisTool  string
)

// topologyFile is the on-disk topology description. YAML and JSON both parse.
type topologyFile struct {
	Validators []topologyNode `yaml:"validators"`
	Gateways   []topologyNode `yaml:"gateways"`
	Client     *topologyNode  `yaml:"client"`
}

type topologyNode struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// NewUpCmd creates the up command
func NewUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Boot a test network",
		Long:  "Generates genesis material, compiles per-node configs, and boots the network. Containers keep running after the command returns; use clean to tear them down.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd)
		},
	}

	cmd.Flags().IntVar(&upValidators, "validators", 4, "number of validator nodes")
	cmd.Flags().IntVar(&upGateways, "gateways", 1, "number of gateway nodes")
	cmd.Flags().StringVar(&upTopologyFile, "topology", "", "topology file (YAML or JSON); overrides --validators/--gateways")
	cmd.Flags().StringVar(&upImage, "image", "", "node container image (default from config)")
	cmd.Flags().BoolVar(&upWithClient, "client", false, "provision a client environment wired to the gateway")
	cmd.Flags().BoolVar(&upWithFaucet, "with-faucet", false, "pass --with-faucet to the genesis tool")
	cmd.Flags().StringVar(&upGenesisTool, "genesis-tool", "", "genesis tool binary (default from config)")

	return cmd
}

func runUp(cmd *cobra.Command) error {
	topo, clientNode, err := buildTopology()
	if err != nil {
		return err
	}

	opts := network.DefaultOptions()
	opts.WorkDir = app.WorkDir
	opts.Transport = viper.GetString("p2p-transport")
	opts.NodeBinary = viper.GetString("node-binary")
	opts.Image = upImage
	if opts.Image == "" {
		opts.Image = viper.GetString("image")
	}

	toolName := upGenesisTool
	if toolName == "" {
		toolName = viper.GetString("genesis-tool")
	}
	tool, err := genesis.FindTool(toolName)
	if err != nil {
		return err
	}
	if _, err := genesis.CheckToolVersion(tool); err != nil {
		return err
	}
	opts.GenesisTool = tool
	opts.WithFaucet = upWithFaucet

	if clientNode != nil {
		opts.ClientName = clientNode.Name
		opts.ClientAddress = clientNode.Address
	}

	sub := substrate.NewDocker(viper.GetString("docker-network"), viper.GetString("docker-subnet"), app.Log)
	net := network.New(topo, sub, opts, app.Log)

	if err := net.Start(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Network is up.")
	if url := net.RPCURL(); url != "" {
		fmt.Println("JSON-RPC:", url)
	}
	return nil
}

// buildTopology assembles the topology from a file when given, or from the
// validator/gateway counts with addresses derived from the docker subnet.
func buildTopology() (*core.Topology, *topologyNode, error) {
	topo := core.NewTopology()

	if upTopologyFile != "" {
		raw, err := os.ReadFile(upTopologyFile)
		if err != nil {
			return nil, nil, err
		}
		var tf topologyFile
		if err := yaml.Unmarshal(raw, &tf); err != nil {
			return nil, nil, core.ErrInvalidConfigf("failed to parse topology file: %v", err)
		}
		for _, v := range tf.Validators {
			if _, err := topo.AddValidator(v.Name, v.Address); err != nil {
				return nil, nil, err
			}
		}
		for _, g := range tf.Gateways {
			if _, err := topo.AddGateway(g.Name, g.Address); err != nil {
				return nil, nil, err
			}
		}
		client := tf.Client
		if client == nil && upWithClient {
			return nil, nil, core.ErrInvalidConfig("--client given but topology file has no client entry")
		}
		return topo, client, topo.Validate()
	}

	prefix, err := subnetPrefix(viper.GetString("docker-subnet"))
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < upValidators; i++ {
		name := fmt.Sprintf("validator%d", i+1)
		if _, err := topo.AddValidator(name, fmt.Sprintf("%s%d", prefix, 10+i)); err != nil {
			return nil, nil, err
		}
	}
	for i := 0; i < upGateways; i++ {
		name := fmt.Sprintf("gateway%d", i+1)
		if _, err := topo.AddGateway(name, fmt.Sprintf("%s%d", prefix, 100+i)); err != nil {
			return nil, nil, err
		}
	}

	var client *topologyNode
	if upWithClient {
		client = &topologyNode{Name: "client", Address: prefix + "200"}
	}
	return topo, client, topo.Validate()
}

// subnetPrefix derives the first-three-octet prefix of a /16 or /24 subnet.
func subnetPrefix(subnet string) (string, error) {
	base := strings.SplitN(subnet, "/", 2)[0]
	octets := strings.Split(base, ".")
	if len(octets) != 4 {
		return "", core.ErrInvalidConfigf("unusable docker subnet %q", subnet)
	}
	return strings.Join(octets[:3], ".") + ".", nil
}
