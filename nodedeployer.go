package main

import (
	"os"

	"github.com/maxpert/nodedeployer/cli"
	"github.com/spf13/cobra"
)

// override by ldflags
var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:     "nodedeployer",
		Short:   "Lay out cluster node configuration on this machine",
		Version: version,
	}
	cli.RegisterCommands(root)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
