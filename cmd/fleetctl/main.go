package main

import (
	"os"

	"github.com/fleetbridge-systems/fleetbridge/cmd/fleetctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
