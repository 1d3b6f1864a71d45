package deployer

import (
	"bytes"
	"fmt"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/seed"
	"github.com/maxpert/nodedeployer/settings"
	"github.com/maxpert/nodedeployer/topology"
)

// Source is a loaded manifest pair together with the raw bytes it was
// decoded from.
type Source struct {
	Cluster        *manifest.ClusterManifest
	Infrastructure *manifest.InfrastructureManifest
	ClusterXML     []byte
	InfraXML       []byte
}

// ParseSource decodes raw manifest bytes. infraXML may be empty.
func ParseSource(clusterXML, infraXML []byte) (*Source, error) {
	cluster, err := manifest.ParseClusterManifest(bytes.NewReader(clusterXML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster manifest: %w", err)
	}
	src := &Source{Cluster: cluster, ClusterXML: clusterXML}
	if len(infraXML) > 0 {
		infra, err := manifest.ParseInfrastructureManifest(bytes.NewReader(infraXML))
		if err != nil {
			return nil, fmt.Errorf("failed to parse infrastructure manifest: %w", err)
		}
		src.Infrastructure = infra
		src.InfraXML = infraXML
	}
	return src, nil
}

// NodePlan is the fully built configuration of one local node.
type NodePlan struct {
	Node        topology.Node
	Sections    []manifest.Section
	Settings    []byte
	Fingerprint uint64
	Ports       []int
}

// Plan is everything a deployment writes, computed before any write.
type Plan struct {
	Source   *Source
	Topology *topology.Topology
	Votes    *seed.VoteTable
	Nodes    []NodePlan

	VotesFile              []byte
	ClientConnectionsFile  []byte
	ClusterConnectionsFile []byte
}

// NodePicker chooses which resolved nodes a plan builds settings for.
type NodePicker func(t *topology.Topology, scaleMin bool) ([]topology.Node, error)

// AllNodes builds every node of the topology.
func AllNodes(t *topology.Topology, _ bool) ([]topology.Node, error) {
	return append([]topology.Node(nil), t.Nodes...), nil
}

// LocalNodes builds the nodes that belong to this machine.
func LocalNodes(explicit []string, machine MachineIdentity) NodePicker {
	return func(t *topology.Topology, scaleMin bool) ([]topology.Node, error) {
		return SelectLocalNodes(t, explicit, scaleMin, machine)
	}
}

// BuildPlan resolves the topology, synthesizes the vote table and builds the
// merged settings of each picked node.
func BuildPlan(src *Source, layout Layout, nodeVersion string, pick NodePicker) (*Plan, error) {
	if err := manifest.Validate(src.Cluster); err != nil {
		return nil, err
	}

	topo, err := topology.ResolveManifest(src.Cluster, src.Infrastructure)
	if err != nil {
		return nil, err
	}

	votes, err := seed.BuildVoteTable(topo.Nodes)
	if err != nil {
		return nil, err
	}

	local, err := pick(topo, src.Cluster.IsScaleMin())
	if err != nil {
		return nil, err
	}

	plan := &Plan{Source: src, Topology: topo, Votes: votes}
	for _, node := range local {
		np, err := buildNodePlan(src.Cluster, node, layout, nodeVersion)
		if err != nil {
			return nil, err
		}
		plan.Nodes = append(plan.Nodes, np)
	}

	if plan.VotesFile, err = tableBytes(seed.VotesHeader, votes.Tokens()); err != nil {
		return nil, err
	}
	if plan.ClientConnectionsFile, err = tableBytes(seed.ClientConnectionsHeader, votes.ClientAddresses()); err != nil {
		return nil, err
	}
	if plan.ClusterConnectionsFile, err = tableBytes(seed.ClusterConnectionsHeader, votes.ClusterConnections()); err != nil {
		return nil, err
	}
	return plan, nil
}

func buildNodePlan(m *manifest.ClusterManifest, node topology.Node, layout Layout, nodeVersion string) (NodePlan, error) {
	nt, ok := m.NodeType(node.NodeType)
	if !ok {
		return NodePlan{}, manifest.Errorf("node %s references undeclared node type %q", node.Name, node.NodeType)
	}

	env := settings.Environment{
		WorkingDir:  layout.NodeWorkDir(node.Name),
		NodeVersion: nodeVersion,
		IsScaleMin:  m.IsScaleMin(),
	}
	nodeSections := settings.BuildNodeSections(node, env, settings.InputsFromNodeType(nt))
	merged := settings.Merge(m.FabricSettings, nodeSections)

	var buf bytes.Buffer
	if err := manifest.WriteSettings(&buf, merged); err != nil {
		return NodePlan{}, fmt.Errorf("failed to serialize settings of %s: %w", node.Name, err)
	}

	return NodePlan{
		Node:        node,
		Sections:    merged,
		Settings:    buf.Bytes(),
		Fingerprint: settings.Fingerprint(merged),
		Ports:       EndpointPorts(node.Endpoints),
	}, nil
}

func tableBytes(header string, entries []seed.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := seed.WriteTable(&buf, header, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
