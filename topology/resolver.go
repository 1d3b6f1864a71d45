package topology

import (
	"github.com/maxpert/nodedeployer/manifest"
	"github.com/rs/zerolog/log"
)

// ResolveManifest resolves the topology declared by a cluster manifest,
// using infra for dynamic data. infra may be nil for static topologies.
func ResolveManifest(m *manifest.ClusterManifest, infra *manifest.InfrastructureManifest) (*Topology, error) {
	if m == nil {
		return nil, manifest.Errorf("cluster manifest is nil")
	}
	var external []manifest.InfrastructureNode
	if infra != nil {
		external = infra.NodeList
	}
	nodes, kind, err := Resolve(m.Infrastructure, external, m.NodeTypes)
	if err != nil {
		return nil, err
	}
	return &Topology{Kind: kind, Nodes: nodes}, nil
}

// Resolve produces the resolved node list for one infrastructure section.
// Nothing is returned unless every node resolved.
func Resolve(infra manifest.Infrastructure, external []manifest.InfrastructureNode, nodeTypes []manifest.NodeType) ([]Node, manifest.ProviderKind, error) {
	types, err := indexNodeTypes(nodeTypes)
	if err != nil {
		return nil, manifest.KindUnknown, err
	}

	probe := manifest.ClusterManifest{Infrastructure: infra}
	kind := probe.Kind()

	var nodes []Node
	switch kind {
	case manifest.KindStatic:
		nodes, err = resolveStatic(infra.Static.NodeList, types)
	case manifest.KindDynamic:
		nodes, err = resolveDynamic(infra.Dynamic.Roles, external, types)
	case manifest.KindStaticWithDynamicOverlay:
		nodes, err = resolveOverlay(infra.StaticWithDynamicOverlay.NodeList, external, types)
	default:
		return nil, kind, manifest.Errorf("infrastructure section must contain exactly one topology variant")
	}
	if err != nil {
		return nil, kind, err
	}

	log.Debug().
		Str("kind", kind.String()).
		Int("nodes", len(nodes)).
		Msg("Resolved topology")
	return nodes, kind, nil
}

func indexNodeTypes(nodeTypes []manifest.NodeType) (map[string]*manifest.NodeType, error) {
	types := make(map[string]*manifest.NodeType, len(nodeTypes))
	for i := range nodeTypes {
		nt := &nodeTypes[i]
		if _, dup := types[nt.Name]; dup {
			return nil, manifest.Errorf("duplicate node type %s", nt.Name)
		}
		types[nt.Name] = nt
	}
	return types, nil
}

// resolveStatic takes identity and placement from the node entry; endpoints
// and certificates come from the node type.
func resolveStatic(entries []manifest.Node, types map[string]*manifest.NodeType) ([]Node, error) {
	nodes := make([]Node, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if _, dup := seen[entry.NodeName]; dup {
			return nil, manifest.Errorf("duplicate node %s", entry.NodeName)
		}
		seen[entry.NodeName] = struct{}{}

		nt, ok := types[entry.NodeTypeRef]
		if !ok {
			return nil, manifest.Errorf("node %s references undeclared node type %q", entry.NodeName, entry.NodeTypeRef)
		}

		nodes = append(nodes, Node{
			Name:          entry.NodeName,
			Address:       entry.IPAddressOrFQDN,
			FaultDomain:   entry.FaultDomain,
			UpgradeDomain: entry.UpgradeDomain,
			NodeType:      nt.Name,
			IsSeed:        entry.IsSeedNode,
			Ordinal:       -1,
			Endpoints:     nt.Endpoints,
			Certificates:  nt.Certificates,
		})
	}
	return nodes, nil
}

// resolveOverlay resolves like resolveStatic, then replaces each wildcard
// field with the value of the same-named infrastructure node. A wildcard
// without a matching node stays as is.
func resolveOverlay(entries []manifest.Node, external []manifest.InfrastructureNode, types map[string]*manifest.NodeType) ([]Node, error) {
	nodes, err := resolveStatic(entries, types)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]manifest.InfrastructureNode, len(external))
	for _, candidate := range external {
		pending[candidate.NodeName] = candidate
	}

	for i := range nodes {
		node := &nodes[i]
		candidate, ok := pending[node.Name]
		if !ok {
			continue
		}
		delete(pending, node.Name)

		if manifest.IsWildcard(node.Address) {
			node.Address = candidate.IPAddressOrFQDN
		}
		if manifest.IsWildcard(node.FaultDomain) {
			node.FaultDomain = candidate.FaultDomain
		}
		if manifest.IsWildcard(node.UpgradeDomain) {
			node.UpgradeDomain = candidate.UpgradeDomain
		}
	}

	// TODO: decide whether infrastructure nodes left in pending should be
	// reported once the overlay contract for unused entries is settled.
	return nodes, nil
}

// resolveDynamic builds the roster from the infrastructure manifest. Within a
// role the first SeedNodeCount candidates, in input order, are seeds.
func resolveDynamic(roles []manifest.Role, external []manifest.InfrastructureNode, types map[string]*manifest.NodeType) ([]Node, error) {
	if len(external) == 0 {
		return nil, manifest.Errorf("dynamic topology requires an infrastructure manifest with at least one node")
	}

	roleTable := make(map[string]manifest.Role, len(roles))
	for _, role := range roles {
		if _, dup := roleTable[role.RoleName]; dup {
			return nil, manifest.Errorf("duplicate role %s", role.RoleName)
		}
		if _, ok := types[role.NodeTypeRef]; !ok {
			return nil, manifest.Errorf("role %s references undeclared node type %q", role.RoleName, role.NodeTypeRef)
		}
		roleTable[role.RoleName] = role
	}

	nodes := make([]Node, 0, len(external))
	seen := make(map[string]struct{}, len(external))
	positions := make(map[string]int, len(roleTable))

	for _, candidate := range external {
		if _, dup := seen[candidate.NodeName]; dup {
			return nil, manifest.Errorf("duplicate node %s in infrastructure manifest", candidate.NodeName)
		}
		seen[candidate.NodeName] = struct{}{}

		roleName := candidate.RoleOrTierName
		if roleName == "" {
			roleName = RoleFromNodeName(candidate.NodeName)
		}
		role, ok := roleTable[roleName]
		if !ok {
			return nil, manifest.Errorf("node %s belongs to undeclared role %q", candidate.NodeName, roleName)
		}
		if candidate.NodeTypeRef != "" && candidate.NodeTypeRef != role.NodeTypeRef {
			return nil, manifest.Errorf("node %s declares node type %q but role %s maps to %q",
				candidate.NodeName, candidate.NodeTypeRef, role.RoleName, role.NodeTypeRef)
		}
		nt := types[role.NodeTypeRef]

		ordinal, err := NodeOrdinal(candidate.NodeName)
		if err != nil {
			ordinal = -1
		}

		position := positions[roleName]
		positions[roleName] = position + 1

		nodes = append(nodes, Node{
			Name:          candidate.NodeName,
			Address:       candidate.IPAddressOrFQDN,
			FaultDomain:   candidate.FaultDomain,
			UpgradeDomain: candidate.UpgradeDomain,
			NodeType:      nt.Name,
			IsSeed:        position < role.SeedNodeCount,
			Role:          roleName,
			Ordinal:       ordinal,
			Endpoints:     candidate.Endpoints,
			Certificates:  nt.Certificates,
		})
	}
	return nodes, nil
}
