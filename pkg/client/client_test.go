package client

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fogbed/iotanet/pkg/core"
	"github.com/fogbed/iotanet/pkg/genesis"
)

const keytoolTable = `╭────────────────┬──────────────────────────────────────────────────────────────────────╮
│ address        │ 0x2b1d9f32cfa44a2a8d6dfeb4a076e3c48d5f847e20a1b3bb0c2d8e9f6a7b8c9d │
│ publicBase64Key│ AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHyAhIiM=                     │
│ keyScheme      │ ed25519                                                              │
╰────────────────┴──────────────────────────────────────────────────────────────────────╯`

type fakeSub struct {
	execs  []string
	copies [][2]string
	execFn func(name, command string) (string, error)
}

func (f *fakeSub) Create(context.Context, string, string, string) error { return nil }

func (f *fakeSub) Exec(_ context.Context, name, command string) (string, error) {
	f.execs = append(f.execs, name+": "+command)
	if f.execFn != nil {
		return f.execFn(name, command)
	}
	return "", nil
}

func (f *fakeSub) CopyInto(_ context.Context, name, src, dest string) error {
	f.copies = append(f.copies, [2]string{src, name + ":" + dest})
	return nil
}

func (f *fakeSub) Remove(context.Context, string) error   { return nil }
func (f *fakeSub) List(context.Context) ([]string, error) { return nil, nil }

func confirmedGateway(t *testing.T) *core.NodeDescriptor {
	t.Helper()
	topo := core.NewTopology()
	_, err := topo.AddValidator("validator1", "10.0.0.1")
	require.NoError(t, err)
	gw, err := topo.AddGateway("gateway1", "10.0.0.100")
	require.NoError(t, err)
	require.NoError(t, gw.Advance(core.StatusConfigInjected))
	require.NoError(t, gw.Advance(core.StatusProcessStarted))
	require.NoError(t, gw.Advance(core.StatusPortConfirmed))
	return gw
}

func artifactWithKeystore(t *testing.T) *genesis.Artifact {
	t.Helper()
	dir := t.TempDir()
	keystore := filepath.Join(dir, "iota.keystore")
	require.NoError(t, os.WriteFile(keystore, []byte(`["key"]`), 0o644))
	return &genesis.Artifact{Dir: dir, KeystorePath: keystore}
}

func TestWireRendersClientConfig(t *testing.T) {
	sub := &fakeSub{}
	w := NewWirer(sub, log.NewLogger("client-test"))
	gw := confirmedGateway(t)
	staging := t.TempDir()

	require.NoError(t, w.Wire(context.Background(), "client", gw, artifactWithKeystore(t), staging))

	raw, err := os.ReadFile(filepath.Join(staging, ConfigFileName))
	require.NoError(t, err)

	var cfg struct {
		Keystore struct {
			File string `yaml:"File"`
		} `yaml:"keystore"`
		Envs []struct {
			Alias string `yaml:"alias"`
			RPC   string `yaml:"rpc"`
		} `yaml:"envs"`
		ActiveEnv string `yaml:"active_env"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.Equal(t, "/root/.iota/iota.keystore", cfg.Keystore.File)
	require.Len(t, cfg.Envs, 1)
	assert.Equal(t, "fogbed", cfg.Envs[0].Alias)
	assert.Equal(t, "http://10.0.0.100:9010", cfg.Envs[0].RPC)
	assert.Equal(t, "fogbed", cfg.ActiveEnv)
}

func TestWireInstallsConfigAndKeystore(t *testing.T) {
	sub := &fakeSub{}
	w := NewWirer(sub, log.NewLogger("client-test"))
	gw := confirmedGateway(t)

	require.NoError(t, w.Wire(context.Background(), "client", gw, artifactWithKeystore(t), t.TempDir()))

	require.Len(t, sub.copies, 2)
	assert.Equal(t, "mn.client:/root/.iota/client.yaml", sub.copies[0][1])
	assert.Equal(t, "mn.client:/root/.iota/iota.keystore", sub.copies[1][1])
	require.NotEmpty(t, sub.execs)
	assert.Contains(t, sub.execs[0], "mkdir -p /root/.iota")
}

func TestWireRequiresConfirmedGateway(t *testing.T) {
	sub := &fakeSub{}
	w := NewWirer(sub, log.NewLogger("client-test"))
	topo := core.NewTopology()
	_, err := topo.AddValidator("validator1", "10.0.0.1")
	require.NoError(t, err)
	gw, err := topo.AddGateway("gateway1", "10.0.0.100")
	require.NoError(t, err)

	err = w.Wire(context.Background(), "client", gw, artifactWithKeystore(t), t.TempDir())
	var cfgErr core.ClientConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "not serving RPC")
	assert.Empty(t, sub.copies, "nothing may be installed on a refused wire")
}

func TestWireRequiresKeystore(t *testing.T) {
	sub := &fakeSub{}
	w := NewWirer(sub, log.NewLogger("client-test"))
	gw := confirmedGateway(t)

	err := w.Wire(context.Background(), "client", gw, &genesis.Artifact{Dir: t.TempDir()}, t.TempDir())
	var cfgErr core.ClientConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "keystore")
}

func TestWireRejectsValidatorTarget(t *testing.T) {
	sub := &fakeSub{}
	w := NewWirer(sub, log.NewLogger("client-test"))
	topo := core.NewTopology()
	v, err := topo.AddValidator("validator1", "10.0.0.1")
	require.NoError(t, err)

	err = w.Wire(context.Background(), "client", v, artifactWithKeystore(t), t.TempDir())
	var cfgErr core.ClientConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseKeytoolAddress(t *testing.T) {
	addr, err := ParseKeytoolAddress(keytoolTable)
	require.NoError(t, err)
	assert.Equal(t, "0x2b1d9f32cfa44a2a8d6dfeb4a076e3c48d5f847e20a1b3bb0c2d8e9f6a7b8c9d", addr)
}

func TestParseKeytoolAddressPlainOutput(t *testing.T) {
	addr, err := ParseKeytoolAddress("created new keypair at address 0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), addr)
}

func TestParseKeytoolAddressMissing(t *testing.T) {
	_, err := ParseKeytoolAddress("no address here")
	var cfgErr core.ClientConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseKeytoolPublicKey(t *testing.T) {
	key, err := ParseKeytoolPublicKey(keytoolTable)
	require.NoError(t, err)
	assert.Equal(t, "AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHyAhIiM=", key)
}

func TestGenerateAccountScrapesAddress(t *testing.T) {
	sub := &fakeSub{execFn: func(_, command string) (string, error) {
		if strings.Contains(command, "new-address") {
			return keytoolTable, nil
		}
		return "", nil
	}}
	w := NewWirer(sub, log.NewLogger("client-test"))
	accounts := NewAccounts()

	acct, err := w.GenerateAccount(context.Background(), "client", "alice", accounts)
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Alias)
	assert.True(t, strings.HasPrefix(acct.Address, "0x"))

	got, ok := accounts.Get("alice")
	require.True(t, ok)
	assert.Equal(t, acct, got)
	assert.Len(t, accounts.All(), 1)
}

func TestWaitRPCReady(t *testing.T) {
	gw := confirmedGateway(t)
	calls := 0
	sub := &fakeSub{execFn: func(_, command string) (string, error) {
		calls++
		if calls < 3 {
			return "", nil
		}
		return `{"jsonrpc":"2.0","id":1,"result":"0"}`, nil
	}}

	ready := WaitRPCReady(context.Background(), sub, gw, 200*time.Millisecond, 5*time.Millisecond, log.NewLogger("client-test"))
	assert.True(t, ready)
	assert.Equal(t, 3, calls)
}

func TestWaitRPCReadyTimesOutBestEffort(t *testing.T) {
	gw := confirmedGateway(t)
	sub := &fakeSub{execFn: func(_, _ string) (string, error) {
		return `{"error":"not ready"}`, nil
	}}

	ready := WaitRPCReady(context.Background(), sub, gw, 30*time.Millisecond, 5*time.Millisecond, log.NewLogger("client-test"))
	assert.False(t, ready)
}
