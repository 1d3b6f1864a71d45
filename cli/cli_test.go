package cli

import (
	"testing"

	"github.com/maxpert/nodedeployer/cfg"
	"github.com/maxpert/nodedeployer/deployer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCommands(t *testing.T) {
	root := &cobra.Command{Use: "nodedeployer"}
	RegisterCommands(root)

	for _, name := range []string{"create", "update", "remove", "rollback", "validate", "serve"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	remove, _, _ := root.Find([]string{"remove"})
	assert.NotNil(t, remove.Flags().Lookup("purge"))
	assert.Nil(t, remove.Flags().Lookup("cluster-manifest"))

	validate, _, _ := root.Find([]string{"validate"})
	assert.NotNil(t, validate.Flags().Lookup("current-manifest"))
	assert.Nil(t, validate.Flags().Lookup("node"))
}

func TestParameters(t *testing.T) {
	saved := cfg.Config
	defer func() { cfg.Config = saved }()

	cfg.Config = cfg.Default()
	cfg.Config.ClusterManifest = "/in/cluster.xml"
	cfg.Config.InfrastructureManifest = "/in/infra.xml"
	cfg.Config.Deployment.Nodes = []string{"N0.1"}
	purge = true
	currentManifest = "/in/current.xml"
	defer func() {
		purge = false
		currentManifest = ""
	}()

	p := parameters(deployer.OpUpdate)
	assert.Equal(t, deployer.Parameters{
		Operation:                  deployer.OpUpdate,
		ClusterManifestPath:        "/in/cluster.xml",
		InfrastructureManifestPath: "/in/infra.xml",
		Nodes:                      []string{"N0.1"},
	}, p)
	assert.NoError(t, p.Check())

	p = parameters(deployer.OpRemove)
	assert.Empty(t, p.ClusterManifestPath)
	assert.True(t, p.Purge)
	assert.NoError(t, p.Check())

	p = parameters(deployer.OpValidate)
	assert.Equal(t, "/in/current.xml", p.CurrentManifestPath)
	assert.Nil(t, p.Nodes)
	assert.NoError(t, p.Check())

	p = parameters(deployer.OpRollback)
	assert.False(t, p.Purge)
	assert.NoError(t, p.Check())
}
