// Package topology reconciles the declared cluster topology with the
// infrastructure manifest and produces the canonical list of resolved nodes.
package topology

import (
	"github.com/maxpert/nodedeployer/manifest"
)

// Node is one cluster member as seen by the deployer.
type Node struct {
	Name          string
	Address       string
	FaultDomain   string
	UpgradeDomain string
	NodeType      string
	IsSeed        bool

	// Role and Ordinal are only set for dynamically provisioned nodes;
	// Ordinal is -1 when the name carries no parsable suffix.
	Role    string
	Ordinal int

	Endpoints    *manifest.Endpoints
	Certificates *manifest.Certificates
}

// Topology is a fully resolved node roster.
type Topology struct {
	Kind  manifest.ProviderKind
	Nodes []Node
}

// Seeds returns the seed nodes in roster order.
func (t *Topology) Seeds() []Node {
	seeds := make([]Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.IsSeed {
			seeds = append(seeds, n)
		}
	}
	return seeds
}

// Node looks a node up by name.
func (t *Topology) Node(name string) (*Node, bool) {
	for i := range t.Nodes {
		if t.Nodes[i].Name == name {
			return &t.Nodes[i], true
		}
	}
	return nil, false
}

// Names returns node names in roster order.
func (t *Topology) Names() []string {
	names := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		names[i] = n.Name
	}
	return names
}
