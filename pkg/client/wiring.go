// Package client wires a CLI client environment to a booted gateway: it
// renders the client config, installs the funding keystore, and scrapes
// keytool output for generated accounts.
package client

import (
	"context"
	"os"
	"path/filepath"

	"github.com/luxfi/log"
	"gopkg.in/yaml.v3"

	"github.com/fogbed/iotanet/pkg/core"
	"github.com/fogbed/iotanet/pkg/genesis"
	"github.com/fogbed/iotanet/pkg/substrate"
)

const (
	// ClientHome is where the client binary looks for its config and keystore.
	ClientHome       = "/root/.iota"
	ConfigFileName   = "client.yaml"
	KeystoreFileName = "iota.keystore"
	// EnvAlias names the environment entry pointing at the local gateway.
	EnvAlias = "fogbed"
)

type clientEnv struct {
	Alias string  `yaml:"alias"`
	RPC   string  `yaml:"rpc"`
	WS    *string `yaml:"ws"`
}

type clientConfig struct {
	Keystore struct {
		File string `yaml:"File"`
	} `yaml:"keystore"`
	Envs      []clientEnv `yaml:"envs"`
	ActiveEnv string      `yaml:"active_env"`
}

// Wirer connects a client environment to a gateway.
type Wirer struct {
	sub substrate.Substrate
	log log.Logger
}

// NewWirer creates a wirer over the given substrate.
func NewWirer(sub substrate.Substrate, logger log.Logger) *Wirer {
	return &Wirer{sub: sub, log: logger}
}

// Wire renders client.yaml against the gateway's RPC endpoint and installs it
// together with the funding keystore into the named client environment. The
// gateway must have a confirmed RPC port; wiring a client to a gateway that
// never bound its listener produces a client that fails on first use.
func (w *Wirer) Wire(ctx context.Context, clientName string, gateway *core.NodeDescriptor, artifact *genesis.Artifact, stagingDir string) error {
	if gateway == nil || gateway.Role != core.RoleGateway {
		return core.ClientConfigError{Msg: "wiring requires a gateway node"}
	}
	switch gateway.Status() {
	case core.StatusPortConfirmed, core.StatusRunning:
	default:
		return core.ClientConfigError{Msg: "gateway " + gateway.Name + " is " + string(gateway.Status()) + ", not serving RPC"}
	}
	if !artifact.HasKeystore() {
		return core.ClientConfigError{Msg: "genesis produced no funding keystore"}
	}

	cfg := clientConfig{ActiveEnv: EnvAlias}
	cfg.Keystore.File = filepath.Join(ClientHome, KeystoreFileName)
	cfg.Envs = []clientEnv{{Alias: EnvAlias, RPC: gateway.RPCEndpoint()}}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return core.ClientConfigError{Msg: "failed to render client config: " + err.Error()}
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return err
	}
	configPath := filepath.Join(stagingDir, ConfigFileName)
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return err
	}

	handle := substrate.HandlePrefix + clientName
	w.log.Info("Wiring client", "client", clientName, "gateway", gateway.Name, "rpc", gateway.RPCEndpoint())
	if _, err := w.sub.Exec(ctx, handle, "mkdir -p "+ClientHome); err != nil {
		return err
	}
	if err := w.sub.CopyInto(ctx, handle, configPath, filepath.Join(ClientHome, ConfigFileName)); err != nil {
		return err
	}
	return w.sub.CopyInto(ctx, handle, artifact.KeystorePath, filepath.Join(ClientHome, KeystoreFileName))
}

// GenerateAccount asks the client binary for a fresh ed25519 address and
// records it under the given alias. Keytool output is a formatted table, so
// the address is scraped rather than parsed.
func (w *Wirer) GenerateAccount(ctx context.Context, clientName, alias string, accounts *Accounts) (Account, error) {
	handle := substrate.HandlePrefix + clientName
	out, err := w.sub.Exec(ctx, handle, "iota client new-address ed25519")
	if err != nil {
		return Account{}, core.ClientConfigError{Msg: "account generation failed: " + err.Error()}
	}
	address, err := ParseKeytoolAddress(out)
	if err != nil {
		return Account{}, err
	}
	acct := Account{Alias: alias, Address: address}
	accounts.Add(acct)
	w.log.Info("Generated account", "alias", alias, "address", address)
	return acct, nil
}
