package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fogbed/iotanet/pkg/genesis"
)

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify host prerequisites",
		Long:  "Checks that docker is usable and that the ledger tool is present at a supported version. Exits non-zero when any prerequisite is missing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false

			if _, err := exec.LookPath("docker"); err != nil {
				fmt.Println("docker: NOT FOUND")
				failed = true
			} else if out, err := exec.CommandContext(cmd.Context(), "docker", "info", "--format", "{{.ServerVersion}}").Output(); err != nil {
				fmt.Println("docker: daemon not reachable")
				failed = true
			} else {
				fmt.Printf("docker: ok (server %s)\n", strings.TrimSpace(string(out)))
			}

			toolName := viper.GetString("genesis-tool")
			tool, err := genesis.FindTool(toolName)
			if err != nil {
				fmt.Printf("%s: NOT FOUND\n", toolName)
				failed = true
			} else if version, err := genesis.CheckToolVersion(tool); err != nil {
				fmt.Printf("%s: %v\n", toolName, err)
				failed = true
			} else {
				fmt.Printf("%s: ok (version %s, minimum %s)\n", toolName, version, genesis.MinToolVersion)
			}

			if failed {
				return fmt.Errorf("missing prerequisites")
			}
			fmt.Println("All prerequisites satisfied.")
			return nil
		},
	}
}
