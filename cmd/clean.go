package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fogbed/iotanet/pkg/substrate"
)

var cleanForce bool

// NewCleanCmd creates the clean command
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all tracked environments and the work dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := substrate.NewDocker(viper.GetString("docker-network"), viper.GetString("docker-subnet"), app.Log)
			names, err := sub.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(names) == 0 && !dirExists(app.WorkDir) {
				fmt.Println("Nothing to clean.")
				return nil
			}

			if !cleanForce {
				fmt.Printf("Remove %d environment(s) and %s? [y/N] ", len(names), app.WorkDir)
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			for _, name := range names {
				if err := sub.Remove(cmd.Context(), name); err != nil {
					app.Log.Warn("Failed to remove environment", "name", name, "error", err)
				}
			}
			if err := os.RemoveAll(app.WorkDir); err != nil {
				return err
			}
			fmt.Printf("Removed %d environment(s) and %s\n", len(names), app.WorkDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanForce, "force", false, "skip the confirmation prompt")
	return cmd
}

func dirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
