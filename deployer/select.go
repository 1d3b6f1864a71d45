package deployer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/topology"
)

// ErrNoLocalNodes is returned when no node of the topology belongs to this
// machine.
var ErrNoLocalNodes = errors.New("no node of the topology matches this machine")

// SelectLocalNodes picks the nodes to deploy on this machine: the explicit
// names when given, every node for scale-min clusters, otherwise nodes whose
// address matches the machine hostname or one of its addresses.
func SelectLocalNodes(t *topology.Topology, explicit []string, scaleMin bool, machine MachineIdentity) ([]topology.Node, error) {
	if len(explicit) > 0 {
		nodes := make([]topology.Node, 0, len(explicit))
		for _, name := range explicit {
			n, ok := t.Node(name)
			if !ok {
				return nil, manifest.Errorf("node %s is not part of the topology", name)
			}
			nodes = append(nodes, *n)
		}
		return nodes, nil
	}

	if scaleMin {
		return append([]topology.Node(nil), t.Nodes...), nil
	}

	local := make(map[string]struct{})
	if hostname, err := machine.Hostname(); err == nil && hostname != "" {
		local[strings.ToLower(hostname)] = struct{}{}
		if short, _, found := strings.Cut(hostname, "."); found {
			local[strings.ToLower(short)] = struct{}{}
		}
	}
	addrs, err := machine.Addresses()
	if err != nil {
		return nil, fmt.Errorf("failed to list machine addresses: %w", err)
	}
	for _, a := range addrs {
		local[strings.ToLower(a)] = struct{}{}
	}

	var nodes []topology.Node
	for _, n := range t.Nodes {
		addr := strings.ToLower(strings.Trim(n.Address, "[]"))
		if _, ok := local[addr]; ok {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return nil, ErrNoLocalNodes
	}
	return nodes, nil
}
