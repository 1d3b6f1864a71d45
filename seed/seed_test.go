package seed

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endpoints(client, cluster string) *manifest.Endpoints {
	ep := &manifest.Endpoints{}
	if client != "" {
		ep.ClientConnectionEndpoint = &manifest.Endpoint{Port: client}
	}
	if cluster != "" {
		ep.ClusterConnectionEndpoint = &manifest.Endpoint{Port: cluster}
	}
	return ep
}

func roster() []topology.Node {
	return []topology.Node{
		{Name: "N0.0", Address: "10.0.0.1", IsSeed: true, Endpoints: endpoints("19000", "19001")},
		{Name: "N0.1", Address: "10.0.0.2", Endpoints: nil},
		{Name: "N0.2", Address: "host-c", IsSeed: true, Endpoints: endpoints("19010", "19011")},
	}
}

func TestBuildVoteTable(t *testing.T) {
	table, err := BuildVoteTable(roster())
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"N0.0", "N0.2"}, table.Names())
	assert.Equal(t, []Entry{
		{Key: "N0.0", Value: "SeedNode,N0.0"},
		{Key: "N0.2", Value: "SeedNode,N0.2"},
	}, table.Tokens())
	assert.Equal(t, []Entry{
		{Key: "N0.0", Value: "10.0.0.1:19000"},
		{Key: "N0.2", Value: "host-c:19010"},
	}, table.ClientAddresses())
	assert.Equal(t, []Entry{
		{Key: "N0.0", Value: "10.0.0.1:19001"},
		{Key: "N0.2", Value: "host-c:19011"},
	}, table.ClusterConnections())
}

func TestBuildVoteTable_KeysMatchSeedSet(t *testing.T) {
	nodes := roster()
	table, err := BuildVoteTable(nodes)
	require.NoError(t, err)

	topo := &topology.Topology{Nodes: nodes}
	var seeds []string
	for _, n := range topo.Seeds() {
		seeds = append(seeds, n.Name)
	}
	for _, entries := range [][]Entry{table.Tokens(), table.ClientAddresses(), table.ClusterConnections()} {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		assert.Equal(t, seeds, keys)
	}
}

func TestBuildVoteTable_NoSeeds(t *testing.T) {
	table, err := BuildVoteTable([]topology.Node{{Name: "N0.0"}})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Tokens())
}

func TestBuildVoteTable_MissingEndpoint(t *testing.T) {
	tests := []struct {
		name string
		node topology.Node
	}{
		{"no endpoints", topology.Node{Name: "S", Address: "a", IsSeed: true}},
		{"no client endpoint", topology.Node{Name: "S", Address: "a", IsSeed: true, Endpoints: endpoints("", "1")}},
		{"no cluster endpoint", topology.Node{Name: "S", Address: "a", IsSeed: true, Endpoints: endpoints("1", "")}},
		{"empty port", topology.Node{Name: "S", Address: "a", IsSeed: true, Endpoints: &manifest.Endpoints{
			ClientConnectionEndpoint:  &manifest.Endpoint{},
			ClusterConnectionEndpoint: &manifest.Endpoint{Port: "1"},
		}}},
		{"no address", topology.Node{Name: "S", IsSeed: true, Endpoints: endpoints("1", "2")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nodes := append(roster(), tc.node)
			table, err := BuildVoteTable(nodes)
			assert.ErrorIs(t, err, ErrMissingEndpoint)
			assert.Nil(t, table)
		})
	}
}

func TestTableRoundTrip(t *testing.T) {
	table, err := BuildVoteTable(roster())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, VotesHeader, table.Tokens()))
	assert.Equal(t, "[Votes]\n  N0.0 = SeedNode,N0.0\n  N0.2 = SeedNode,N0.2\n", buf.String())

	header, entries, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, VotesHeader, header)
	assert.Equal(t, table.Tokens(), entries)
}

func TestReadTable_BlankLinesAndErrors(t *testing.T) {
	header, entries, err := ReadTable(strings.NewReader("\n[SeedInfo]\n\n  N0.0 = 10.0.0.1:19001\n"))
	require.NoError(t, err)
	assert.Equal(t, ClusterConnectionsHeader, header)
	assert.Equal(t, []Entry{{Key: "N0.0", Value: "10.0.0.1:19001"}}, entries)

	_, _, err = ReadTable(strings.NewReader("[Votes]\n  garbage\n"))
	assert.Error(t, err)

	_, _, err = ReadTable(strings.NewReader("\n\n"))
	assert.Error(t, err)
}

func TestWriteTable_RejectsUnrepresentableEntries(t *testing.T) {
	for _, e := range []Entry{
		{Key: "", Value: "x"},
		{Key: " padded", Value: "x"},
		{Key: "a = b", Value: "x"},
		{Key: "k", Value: "line\nbreak"},
	} {
		var buf bytes.Buffer
		assert.Error(t, WriteTable(&buf, VotesHeader, []Entry{e}), e.Key)
	}
}
