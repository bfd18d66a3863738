package main

import (
	"os"

	"github.com/fogbed/iotanet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
