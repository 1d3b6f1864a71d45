package delta

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCluster(seeds ...string) *manifest.ClusterManifest {
	isSeed := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		isSeed[s] = true
	}
	var nodes []manifest.Node
	for _, name := range []string{"N0.0", "N0.1", "N0.2"} {
		nodes = append(nodes, manifest.Node{NodeName: name, NodeTypeRef: "NT", IsSeedNode: isSeed[name]})
	}
	return &manifest.ClusterManifest{
		Name:           "C",
		NodeTypes:      []manifest.NodeType{{Name: "NT"}},
		Infrastructure: manifest.Infrastructure{Static: &manifest.StaticInfrastructure{NodeList: nodes}},
		FabricSettings: []manifest.Section{
			{Name: "Security", Parameters: []manifest.Parameter{{Name: "ClusterCredentialType", Value: "None"}}},
			{Name: "Trace", Parameters: []manifest.Parameter{{Name: "Level", Value: "4"}}},
		},
	}
}

func dynamicCluster(seedCounts ...int) *manifest.ClusterManifest {
	m := &manifest.ClusterManifest{
		Name:           "C",
		NodeTypes:      []manifest.NodeType{{Name: "NT"}},
		Infrastructure: manifest.Infrastructure{Dynamic: &manifest.DynamicInfrastructure{}},
	}
	for i, k := range seedCounts {
		m.Infrastructure.Dynamic.Roles = append(m.Infrastructure.Dynamic.Roles, manifest.Role{
			RoleName: []string{"FE", "BE"}[i], NodeTypeRef: "NT", SeedNodeCount: k,
		})
	}
	return m
}

func TestCompare_SeedChurn(t *testing.T) {
	current := staticCluster("N0.0")

	decision, err := Compare(current, staticCluster("N0.0", "N0.1"))
	require.NoError(t, err)
	assert.Equal(t, RestartNotRequired, decision.Outcome)
	assert.Equal(t, []string{"N0.1"}, decision.Seeds.Added)
	assert.Equal(t, 1, decision.Seeds.CurrentCount)
	assert.Equal(t, 2, decision.Seeds.TargetCount)

	_, err = Compare(current, staticCluster("N0.0", "N0.1", "N0.2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedChurn)
	assert.True(t, manifest.IsConfigError(err))

	// Same count but two names swapped.
	_, err = Compare(current, staticCluster("N0.1"))
	assert.ErrorIs(t, err, ErrSeedChurn)
}

func TestCompare_DynamicSeedCounts(t *testing.T) {
	decision, err := Compare(dynamicCluster(3, 0), dynamicCluster(3, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"BE.0"}, decision.Seeds.Added)

	_, err = Compare(dynamicCluster(3), dynamicCluster(5))
	assert.ErrorIs(t, err, ErrSeedChurn)

	decision, err = Compare(dynamicCluster(3), dynamicCluster(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"FE.2"}, decision.Seeds.Removed)
}

func TestCompare_KindMismatch(t *testing.T) {
	_, err := Compare(staticCluster("N0.0"), dynamicCluster(1))
	require.Error(t, err)
	assert.True(t, manifest.IsConfigError(err))
	assert.NotErrorIs(t, err, ErrSeedChurn)
}

func TestCompare_NilManifest(t *testing.T) {
	_, err := Compare(nil, staticCluster())
	assert.True(t, manifest.IsConfigError(err))
}

func TestCompare_TargetValidation(t *testing.T) {
	target := staticCluster("N0.0")
	target.Name = ""
	_, err := Compare(staticCluster("N0.0"), target)
	require.Error(t, err)
	assert.True(t, manifest.IsConfigError(err))

	rejected := errors.New("rejected by schema")
	a, err := NewAnalyzer(ValidatorFunc(func(*manifest.ClusterManifest) error { return rejected }), nil)
	require.NoError(t, err)
	_, err = a.Compare(staticCluster("N0.0"), staticCluster("N0.0"))
	assert.ErrorIs(t, err, rejected)
}

func TestCompare_StaticChanges(t *testing.T) {
	current := staticCluster("N0.0")
	target := staticCluster("N0.0")
	target.FabricSettings[0].Parameters[0].Value = "X509"
	target.FabricSettings = append(target.FabricSettings, manifest.Section{
		Name: "Hosting", Parameters: []manifest.Parameter{{Name: "Timeout", Value: "30"}},
	})
	target.FabricSettings[1].Parameters = nil

	decision, err := Compare(current, target)
	require.NoError(t, err)
	assert.Equal(t, RestartRequired, decision.Outcome)
	assert.Equal(t, []SettingChange{
		{Section: "Security", Parameter: "ClusterCredentialType", Value: "X509", Kind: ChangeModified},
		{Section: "Hosting", Parameter: "Timeout", Value: "30", Kind: ChangeAdded},
		{Section: "Trace", Parameter: "Level", Kind: ChangeRemoved},
	}, decision.Changes)
}

func TestCompare_Unchanged(t *testing.T) {
	decision, err := Compare(staticCluster("N0.0"), staticCluster("N0.0"))
	require.NoError(t, err)
	assert.Equal(t, RestartNotRequired, decision.Outcome)
	assert.Empty(t, decision.Changes)
}

func TestAnalyzer_DynamicParameters(t *testing.T) {
	a, err := NewAnalyzer(nil, []string{"Trace/*"})
	require.NoError(t, err)

	target := staticCluster("N0.0")
	target.FabricSettings[1].Parameters[0].Value = "5"
	decision, err := a.Compare(staticCluster("N0.0"), target)
	require.NoError(t, err)
	assert.Equal(t, RestartNotRequired, decision.Outcome)

	target.FabricSettings[0].Parameters[0].Value = "X509"
	decision, err = a.Compare(staticCluster("N0.0"), target)
	require.NoError(t, err)
	assert.Equal(t, RestartRequired, decision.Outcome)
	require.Len(t, decision.Changes, 1)
	assert.Equal(t, "Security", decision.Changes[0].Section)

	_, err = NewAnalyzer(nil, []string{"Trace/[a"})
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "restart_required", RestartRequired.String())
	assert.Equal(t, "restart_not_required", RestartNotRequired.String())
}

func TestChangesRoundTrip(t *testing.T) {
	changes := []SettingChange{
		{Section: "Security", Parameter: "ClusterCredentialType", Value: "X509", Kind: ChangeModified},
		{Section: "Security", Parameter: "Secret", Value: "", IsEncrypted: true, Kind: ChangeModified},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChanges(&buf, changes))
	assert.Equal(t, "Security\nClusterCredentialType\nX509\nfalse\nSecurity\nSecret\n\ntrue\n", buf.String())

	got, err := ReadChanges(&buf)
	require.NoError(t, err)
	assert.Equal(t, changes, got)
}

func TestChangesErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteChanges(&buf, []SettingChange{{Section: "S", Parameter: "P", Value: "a\nb"}}))

	_, err := ReadChanges(strings.NewReader("S\nP\nV\n"))
	assert.Error(t, err)

	_, err = ReadChanges(strings.NewReader("S\nP\nV\nmaybe\n"))
	assert.Error(t, err)

	got, err := ReadChanges(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}
