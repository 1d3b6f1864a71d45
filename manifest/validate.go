package manifest

import "strings"

// Validate checks the structural consistency of a cluster manifest. It does
// not need the infrastructure manifest; errors are ConfigErrors.
func Validate(m *ClusterManifest) error {
	if m == nil {
		return Errorf("cluster manifest is nil")
	}
	if strings.TrimSpace(m.Name) == "" {
		return Errorf("cluster manifest name is empty")
	}
	if m.Kind() == KindUnknown {
		return Errorf("cluster manifest %s must declare exactly one infrastructure variant", m.Name)
	}

	nodeTypes := make(map[string]struct{}, len(m.NodeTypes))
	for _, nt := range m.NodeTypes {
		if nt.Name == "" {
			return Errorf("node type with empty name")
		}
		if _, dup := nodeTypes[nt.Name]; dup {
			return Errorf("duplicate node type %s", nt.Name)
		}
		nodeTypes[nt.Name] = struct{}{}
	}

	switch m.Kind() {
	case KindDynamic:
		roles := make(map[string]struct{}, len(m.Infrastructure.Dynamic.Roles))
		for _, role := range m.Infrastructure.Dynamic.Roles {
			if role.RoleName == "" {
				return Errorf("role with empty name")
			}
			if _, dup := roles[role.RoleName]; dup {
				return Errorf("duplicate role %s", role.RoleName)
			}
			roles[role.RoleName] = struct{}{}
			if _, ok := nodeTypes[role.NodeTypeRef]; !ok {
				return Errorf("role %s references undeclared node type %q", role.RoleName, role.NodeTypeRef)
			}
			if role.SeedNodeCount < 0 {
				return Errorf("role %s has negative seed node count %d", role.RoleName, role.SeedNodeCount)
			}
		}
	default:
		names := make(map[string]struct{})
		for _, node := range m.StaticNodes() {
			if node.NodeName == "" {
				return Errorf("node with empty name")
			}
			if _, dup := names[node.NodeName]; dup {
				return Errorf("duplicate node %s", node.NodeName)
			}
			names[node.NodeName] = struct{}{}
			if _, ok := nodeTypes[node.NodeTypeRef]; !ok {
				return Errorf("node %s references undeclared node type %q", node.NodeName, node.NodeTypeRef)
			}
		}
	}

	sections := make(map[string]struct{}, len(m.FabricSettings))
	for _, s := range m.FabricSettings {
		if _, dup := sections[s.Name]; dup {
			return Errorf("duplicate settings section %s", s.Name)
		}
		sections[s.Name] = struct{}{}
	}
	return nil
}
