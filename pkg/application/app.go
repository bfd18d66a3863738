package application

import (
	"path/filepath"

	"github.com/luxfi/log"
	"github.com/spf13/viper"
)

// IotaNet is the main application context that holds all dependencies
type IotaNet struct {
	Log     log.Logger
	WorkDir string
	Config  *viper.Viper
}

// New creates a new IotaNet application instance
func New() *IotaNet {
	return &IotaNet{}
}

// Setup initializes the application with dependencies
func (a *IotaNet) Setup(workDir string, logger log.Logger, config *viper.Viper) {
	a.WorkDir = workDir
	a.Log = logger
	a.Config = config
}

// GenesisDir returns the genesis working directory path
func (a *IotaNet) GenesisDir() string {
	return filepath.Join(a.WorkDir, "genesis")
}

// LiveDataDir returns the per-node staging directory path
func (a *IotaNet) LiveDataDir() string {
	return filepath.Join(a.WorkDir, "live_data")
}
