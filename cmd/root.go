package cmd

import (
	"fmt"

	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fogbed/iotanet/pkg/application"
)

var (
	// Version information (set by ldflags)
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// Global flags
	configFile string
	logLevel   string
	workDir    string

	// Application context
	app *application.IotaNet
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "iotanet",
		Short:   "Local IOTA test network orchestrator",
		Long:    `Boots multi-node IOTA test networks in docker containers: genesis generation, per-node config compilation, sequenced boot, and client wiring.`,
		Version: fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeApp()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./iotanet.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "working directory for network state (default /tmp/iotanet)")

	// Initialize config
	cobra.OnInitialize(initConfig)

	// Add commands
	rootCmd.AddCommand(NewUpCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewCleanCmd())
	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("iotanet")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("IOTANET")
	viper.AutomaticEnv()

	viper.SetDefault("p2p-transport", "tcp")
	viper.SetDefault("image", "iotaledger/iota-node:latest")
	viper.SetDefault("node-binary", "iota-node")
	viper.SetDefault("genesis-tool", "iota")
	viper.SetDefault("docker-network", "iotanet")
	viper.SetDefault("docker-subnet", "172.28.0.0/16")

	if err := viper.ReadInConfig(); err == nil {
		// Config file found and loaded
	}
}

func initializeApp() error {
	if workDir == "" {
		workDir = viper.GetString("work-dir")
	}
	if workDir == "" {
		workDir = "/tmp/iotanet"
	}

	logger := log.NewLogger("iotanet")

	app = application.New()
	app.Setup(workDir, logger, viper.GetViper())

	return nil
}
