package deployer

import (
	"errors"
	"testing"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMachine struct {
	hostname string
	addrs    []string
	err      error
}

func (m fakeMachine) Hostname() (string, error)    { return m.hostname, nil }
func (m fakeMachine) Addresses() ([]string, error) { return m.addrs, m.err }

func sampleTopology() *topology.Topology {
	return &topology.Topology{
		Kind: manifest.KindStatic,
		Nodes: []topology.Node{
			{Name: "N0.0", Address: "10.0.0.4"},
			{Name: "N0.1", Address: "Host-B.contoso.com"},
			{Name: "N0.2", Address: "[fe80::1]"},
		},
	}
}

func names(nodes []topology.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestSelectLocalNodes(t *testing.T) {
	tests := []struct {
		name     string
		explicit []string
		scaleMin bool
		machine  fakeMachine
		want     []string
	}{
		{"explicit", []string{"N0.2", "N0.0"}, false, fakeMachine{}, []string{"N0.2", "N0.0"}},
		{"scale min", nil, true, fakeMachine{}, []string{"N0.0", "N0.1", "N0.2"}},
		{"address", nil, false, fakeMachine{addrs: []string{"10.0.0.4"}}, []string{"N0.0"}},
		{"fqdn case-insensitive", nil, false, fakeMachine{hostname: "host-b.CONTOSO.com"}, []string{"N0.1"}},
		{"ipv6 brackets", nil, false, fakeMachine{addrs: []string{"fe80::1"}}, []string{"N0.2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectLocalNodes(sampleTopology(), tc.explicit, tc.scaleMin, tc.machine)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
		})
	}
}

func TestSelectLocalNodes_Errors(t *testing.T) {
	_, err := SelectLocalNodes(sampleTopology(), []string{"N9.9"}, false, fakeMachine{})
	assert.True(t, manifest.IsConfigError(err))

	_, err = SelectLocalNodes(sampleTopology(), nil, false, fakeMachine{hostname: "elsewhere"})
	assert.ErrorIs(t, err, ErrNoLocalNodes)

	_, err = SelectLocalNodes(sampleTopology(), nil, false, fakeMachine{err: errors.New("boom")})
	assert.Error(t, err)
}

func TestEndpointPorts(t *testing.T) {
	assert.Nil(t, EndpointPorts(nil))

	ep := &manifest.Endpoints{
		ClientConnectionEndpoint:  &manifest.Endpoint{Port: "19000"},
		ClusterConnectionEndpoint: &manifest.Endpoint{Port: " 19001 "},
		HttpGatewayEndpoint:       &manifest.Endpoint{Port: "not-a-port"},
		LeaseDriverEndpoint:       &manifest.Endpoint{Port: "0"},
		EphemeralEndpoints:        &manifest.PortRange{StartPort: 49000, EndPort: 50000},
		ApplicationEndpoints:      &manifest.PortRange{StartPort: 2, EndPort: 1},
	}
	assert.Equal(t, []int{19000, 19001, 49000, 50000}, EndpointPorts(ep))
}

func TestParseOperation(t *testing.T) {
	for _, name := range []string{"create", "update", "remove", "rollback", "validate"} {
		op, err := ParseOperation(name)
		require.NoError(t, err)
		assert.Equal(t, Operation(name), op)
	}
	_, err := ParseOperation("serve")
	assert.Error(t, err)
}

func TestParametersCheck(t *testing.T) {
	tests := []struct {
		name  string
		p     Parameters
		valid bool
	}{
		{"create", Parameters{Operation: OpCreate, ClusterManifestPath: "c.xml"}, true},
		{"create without manifest", Parameters{Operation: OpCreate}, false},
		{"update without manifest", Parameters{Operation: OpUpdate}, false},
		{"remove", Parameters{Operation: OpRemove, Purge: true}, true},
		{"rollback", Parameters{Operation: OpRollback}, true},
		{"validate with current", Parameters{Operation: OpValidate, ClusterManifestPath: "c.xml", CurrentManifestPath: "o.xml"}, true},
		{"current outside validate", Parameters{Operation: OpUpdate, ClusterManifestPath: "c.xml", CurrentManifestPath: "o.xml"}, false},
		{"purge outside remove", Parameters{Operation: OpRollback, Purge: true}, false},
		{"unknown", Parameters{Operation: "explode"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Check()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
