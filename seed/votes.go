// Package seed derives the seed-node vote table used to bootstrap cluster
// membership.
package seed

import (
	"errors"
	"fmt"

	"github.com/maxpert/nodedeployer/topology"
)

// ProviderTag prefixes every vote token.
const ProviderTag = "SeedNode"

// ErrMissingEndpoint is returned when a seed node lacks the client or
// cluster connection endpoint.
var ErrMissingEndpoint = errors.New("seed node missing required endpoint")

// Vote is the derived data for a single seed node.
type Vote struct {
	NodeName          string
	Token             string
	ClientAddress     string
	ClusterConnection string
}

// VoteTable holds one Vote per seed node, in roster order.
type VoteTable struct {
	Votes []Vote
}

// BuildVoteTable computes the vote table for every seed node of nodes. The
// table is returned only when every seed node could be processed.
func BuildVoteTable(nodes []topology.Node) (*VoteTable, error) {
	table := &VoteTable{}
	for _, n := range nodes {
		if !n.IsSeed {
			continue
		}
		if n.Endpoints == nil {
			return nil, fmt.Errorf("%w: node %s has no endpoints", ErrMissingEndpoint, n.Name)
		}
		client := n.Endpoints.ClientConnectionEndpoint
		if client == nil || client.Port == "" {
			return nil, fmt.Errorf("%w: node %s has no client connection endpoint", ErrMissingEndpoint, n.Name)
		}
		cluster := n.Endpoints.ClusterConnectionEndpoint
		if cluster == nil || cluster.Port == "" {
			return nil, fmt.Errorf("%w: node %s has no cluster connection endpoint", ErrMissingEndpoint, n.Name)
		}
		if n.Address == "" {
			return nil, fmt.Errorf("%w: node %s has no address", ErrMissingEndpoint, n.Name)
		}

		table.Votes = append(table.Votes, Vote{
			NodeName:          n.Name,
			Token:             Token(n.Name),
			ClientAddress:     n.Address + ":" + client.Port,
			ClusterConnection: n.Address + ":" + cluster.Port,
		})
	}
	return table, nil
}

// Token renders the vote token of a seed node.
func Token(nodeName string) string {
	return ProviderTag + "," + nodeName
}

// Len returns the number of seed nodes.
func (t *VoteTable) Len() int {
	return len(t.Votes)
}

// Names returns the seed node names in table order.
func (t *VoteTable) Names() []string {
	names := make([]string, len(t.Votes))
	for i, v := range t.Votes {
		names[i] = v.NodeName
	}
	return names
}

// Tokens returns node name -> vote token pairs in table order.
func (t *VoteTable) Tokens() []Entry {
	return t.entries(func(v Vote) string { return v.Token })
}

// ClientAddresses returns node name -> host:clientPort pairs.
func (t *VoteTable) ClientAddresses() []Entry {
	return t.entries(func(v Vote) string { return v.ClientAddress })
}

// ClusterConnections returns node name -> host:clusterPort pairs.
func (t *VoteTable) ClusterConnections() []Entry {
	return t.entries(func(v Vote) string { return v.ClusterConnection })
}

func (t *VoteTable) entries(value func(Vote) string) []Entry {
	out := make([]Entry, len(t.Votes))
	for i, v := range t.Votes {
		out[i] = Entry{Key: v.NodeName, Value: value(v)}
	}
	return out
}
