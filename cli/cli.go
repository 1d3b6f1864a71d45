// Package cli wires the deployer lifecycle operations and the admin server
// to cobra commands.
package cli

import (
	"github.com/maxpert/nodedeployer/deployer"
	"github.com/spf13/cobra"
)

var (
	configPath             string
	dataRoot               string
	clusterManifest        string
	infrastructureManifest string
	currentManifest        string
	nodes                  []string
	purge                  bool
	verbose                bool
)

func RegisterCommands(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&dataRoot, "data-root", "", "deployment data root (overrides config)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	createCmd := operationCmd(deployer.OpCreate, "Deploy a cluster manifest on this machine")
	applyManifestFlags(createCmd)
	applyNodeFlags(createCmd)
	root.AddCommand(createCmd)
	//
	updateCmd := operationCmd(deployer.OpUpdate, "Move the deployment to a new cluster manifest")
	applyManifestFlags(updateCmd)
	applyNodeFlags(updateCmd)
	root.AddCommand(updateCmd)
	//
	removeCmd := operationCmd(deployer.OpRemove, "Remove the deployment from this machine")
	removeCmd.Flags().BoolVar(&purge, "purge", false, "also delete the deployment history")
	applyNodeFlags(removeCmd)
	root.AddCommand(removeCmd)
	//
	rollbackCmd := operationCmd(deployer.OpRollback, "Redeploy the previously applied cluster manifest")
	applyNodeFlags(rollbackCmd)
	root.AddCommand(rollbackCmd)
	//
	validateCmd := operationCmd(deployer.OpValidate, "Validate a cluster manifest without deploying it")
	applyManifestFlags(validateCmd)
	validateCmd.Flags().StringVar(&currentManifest, "current-manifest", "", "compare against this currently deployed manifest")
	root.AddCommand(validateCmd)
	//
	root.AddCommand(serveCmd)
}

func applyManifestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&clusterManifest, "cluster-manifest", "m", "", "cluster manifest path (overrides config)")
	cmd.Flags().StringVarP(&infrastructureManifest, "infrastructure-manifest", "i", "", "infrastructure manifest path (overrides config)")
}

func applyNodeFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&nodes, "node", "n", nil, "node to deploy on this machine (repeatable)")
}
