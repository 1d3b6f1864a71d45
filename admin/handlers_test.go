package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/maxpert/nodedeployer/deployer"
	"github.com/maxpert/nodedeployer/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCluster = `<?xml version="1.0" encoding="UTF-8"?>
<ClusterManifest Name="AdminCluster" Version="3.1">
  <NodeTypes>
    <NodeType Name="NodeType0">
      <Endpoints>
        <ClientConnectionEndpoint Port="19000"/>
        <ClusterConnectionEndpoint Port="19001"/>
      </Endpoints>
    </NodeType>
  </NodeTypes>
  <Infrastructure>
    <Static>
      <NodeList>
        <Node NodeName="N0.0" IPAddressOrFQDN="10.0.0.1" IsSeedNode="true" NodeTypeRef="NodeType0" FaultDomain="fd:/0" UpgradeDomain="UD0"/>
        <Node NodeName="N0.1" IPAddressOrFQDN="10.0.0.2" IsSeedNode="false" NodeTypeRef="NodeType0" FaultDomain="fd:/1" UpgradeDomain="UD1"/>
      </NodeList>
    </Static>
  </Infrastructure>
  <FabricSettings>
    <Section Name="Security">
      <Parameter Name="ClusterCredentialType" Value="None"/>
    </Section>
  </FabricSettings>
</ClusterManifest>
`

type fakeInspector struct {
	deployed  bool
	builds    int
	snapshots []store.Snapshot
	current   uint64
}

func (f *fakeInspector) CurrentSource() (*deployer.Source, error) {
	if !f.deployed {
		return nil, deployer.ErrNotDeployed
	}
	return deployer.ParseSource([]byte(testCluster), nil)
}

func (f *fakeInspector) InspectPlan(src *deployer.Source) (*deployer.Plan, error) {
	f.builds++
	return deployer.BuildPlan(src, deployer.NewLayout(vfs.NewMem(), "/data"), "1.0.0", deployer.AllNodes)
}

func (f *fakeInspector) HistorySnapshots() ([]store.Snapshot, uint64, error) {
	return f.snapshots, f.current, nil
}

func newTestRouter(t *testing.T, inspector Inspector) http.Handler {
	t.Helper()
	handlers, err := NewAdminHandlers(inspector, 4)
	require.NoError(t, err)
	return NewRouter(handlers)
}

func get(t *testing.T, h http.Handler, path string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestTopologyEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{deployed: true})

	var body struct {
		Data topologyView `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/topology", &body))
	assert.Equal(t, "AdminCluster", body.Data.Cluster)
	assert.Equal(t, "static", body.Data.Kind)
	require.Len(t, body.Data.Nodes, 2)
	assert.True(t, body.Data.Nodes[0].IsSeed)
	assert.False(t, body.Data.Nodes[1].IsSeed)
}

func TestVotesEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{deployed: true})

	var body struct {
		Data []voteView `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/votes", &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "N0.0", body.Data[0].NodeName)
	assert.Equal(t, "SeedNode,N0.0", body.Data[0].Token)
}

func TestNodeSettingsEndpoint(t *testing.T) {
	inspector := &fakeInspector{deployed: true}
	h := newTestRouter(t, inspector)

	var body struct {
		Data settingsView `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/nodes/N0.1/settings", &body))
	assert.Equal(t, "N0.1", body.Data.Node)
	assert.Len(t, body.Data.Fingerprint, 16)
	assert.NotEmpty(t, body.Data.Sections)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nodes/N9.9/settings", nil))

	// Both requests were served from one cached plan.
	assert.Equal(t, 1, inspector.builds)
}

func TestEndpointsNotDeployed(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{})
	for _, path := range []string{"/topology", "/votes", "/nodes/N0.0/settings"} {
		assert.Equal(t, http.StatusNotFound, get(t, h, path, nil), path)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{
		snapshots: []store.Snapshot{
			{Version: 1, ManifestName: "AdminCluster", ManifestVersion: "3.0", Fingerprint: 0xab},
			{Version: 2, ManifestName: "AdminCluster", ManifestVersion: "3.1", Fingerprint: 0xcd, AppliedAt: 1},
		},
		current: 2,
	})

	var body struct {
		Data []snapshotView `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/history", &body))
	require.Len(t, body.Data, 2)
	assert.False(t, body.Data[0].Current)
	assert.True(t, body.Data[1].Current)
	assert.Equal(t, "00000000000000ab", body.Data[0].Fingerprint)
	assert.Empty(t, body.Data[0].AppliedAt)
	assert.NotEmpty(t, body.Data[1].AppliedAt)
}

func TestMetricsDisabled(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{})
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics", nil))
}

func TestReadOnly(t *testing.T) {
	h := newTestRouter(t, &fakeInspector{deployed: true})
	req := httptest.NewRequest(http.MethodPost, "/topology", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
