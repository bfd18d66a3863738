package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fogbed/iotanet/pkg/substrate"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked environments and work dir usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := substrate.NewDocker(viper.GetString("docker-network"), viper.GetString("docker-subnet"), app.Log)
			names, err := sub.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Println("No tracked environments.")
			} else {
				fmt.Printf("Tracked environments (%d):\n", len(names))
				for _, name := range names {
					fmt.Println("  " + name)
				}
			}

			size, err := dirSize(app.WorkDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Printf("Work dir %s: absent\n", app.WorkDir)
					return nil
				}
				return err
			}
			fmt.Printf("Work dir %s: %.1f MiB\n", app.WorkDir, float64(size)/(1<<20))
			return nil
		},
	}
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
