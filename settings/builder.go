// Package settings synthesizes the per-node settings sections from a
// resolved node and its node type.
package settings

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/topology"
)

// Section names produced by BuildNodeSections.
const (
	SectionFabricNode                    = "FabricNode"
	SectionNodeDomainIds                 = "NodeDomainIds"
	SectionNodeProperties                = "NodeProperties"
	SectionNodeCapacities                = "NodeCapacities"
	SectionNodeSfssRgPolicies            = "NodeSfssRgPolicies"
	SectionLogicalApplicationDirectories = "LogicalApplicationDirectories"
	SectionLogicalNodeDirectories        = "LogicalNodeDirectories"
)

// Environment carries the deployment-wide values written into every node.
type Environment struct {
	WorkingDir  string
	NodeVersion string
	IsScaleMin  bool
}

// NodeInputs are the optional per-node collections. Nil or empty fields
// omit the corresponding parameters or sections.
type NodeInputs struct {
	KtlLogger                  *manifest.KtlLoggerSettings
	PlacementProperties        []manifest.KeyValue
	Capacities                 []manifest.KeyValue
	ResourceGovernancePolicies []manifest.KeyValue
	LogicalDirectories         []manifest.LogicalDirectory
}

// InputsFromNodeType collects the optional inputs declared on a node type.
func InputsFromNodeType(nt *manifest.NodeType) NodeInputs {
	if nt == nil {
		return NodeInputs{}
	}
	return NodeInputs{
		KtlLogger:                  nt.KtlLoggerSettings,
		PlacementProperties:        nt.PlacementProperties,
		Capacities:                 nt.Capacities,
		ResourceGovernancePolicies: nt.SfssRgPolicies,
		LogicalDirectories:         nt.LogicalDirectories,
	}
}

// BuildNodeSections builds the settings sections of one node. The result
// depends only on its arguments.
func BuildNodeSections(node topology.Node, env Environment, in NodeInputs) []manifest.Section {
	sections := []manifest.Section{buildFabricNode(node, env, in)}

	var domains []manifest.Parameter
	if node.UpgradeDomain != "" {
		domains = append(domains, param("UpgradeDomainId", node.UpgradeDomain))
	}
	if node.FaultDomain != "" {
		domains = append(domains, param("NodeFaultDomainId", node.FaultDomain))
	}
	sections = appendSection(sections, SectionNodeDomainIds, domains)
	sections = appendSection(sections, SectionNodeProperties, keyValues(in.PlacementProperties))
	sections = appendSection(sections, SectionNodeCapacities, keyValues(in.Capacities))
	sections = appendSection(sections, SectionNodeSfssRgPolicies, keyValues(in.ResourceGovernancePolicies))

	var appDirs, nodeDirs []manifest.Parameter
	for _, dir := range in.LogicalDirectories {
		p := param(dir.LogicalDirectoryName, dir.MappedTo)
		if strings.EqualFold(dir.Context, manifest.DirectoryContextNode) {
			nodeDirs = append(nodeDirs, p)
		} else {
			appDirs = append(appDirs, p)
		}
	}
	sections = appendSection(sections, SectionLogicalApplicationDirectories, appDirs)
	sections = appendSection(sections, SectionLogicalNodeDirectories, nodeDirs)

	return sections
}

func buildFabricNode(node topology.Node, env Environment, in NodeInputs) manifest.Section {
	s := manifest.Section{Name: SectionFabricNode}
	s.Parameters = append(s.Parameters,
		param("InstanceName", node.Name),
		param("IPAddressOrFQDN", BracketIPv6(node.Address)),
		param("WorkingDir", env.WorkingDir),
		param("NodeVersion", env.NodeVersion),
		param("NodeType", node.NodeType),
		param("IsScaleMin", strconv.FormatBool(env.IsScaleMin)),
	)

	if ktl := in.KtlLogger; ktl != nil {
		s.Parameters = append(s.Parameters,
			param("SharedLogFilePath", ktl.SharedLogFilePath),
			param("SharedLogFileId", ktl.SharedLogFileID),
			param("SharedLogFileSizeInMB", strconv.Itoa(ktl.SharedLogFileSizeInMB)),
		)
	}

	if certs := node.Certificates; certs != nil {
		s.Parameters = appendCertificate(s.Parameters, "ClientAuthX509", certs.ClientCertificate)
		s.Parameters = appendCertificate(s.Parameters, "UserRoleClientX509", certs.UserRoleClientCertificate)
		s.Parameters = appendCertificate(s.Parameters, "ServerAuthX509", certs.ServerCertificate)
		s.Parameters = appendCertificate(s.Parameters, "ClusterX509", certs.ClusterCertificate)
	}

	ep := node.Endpoints
	if ep == nil {
		ep = &manifest.Endpoints{}
	}
	s.Parameters = append(s.Parameters,
		param("ClientConnectionPort", port(ep.ClientConnectionEndpoint)),
		param("ClusterConnectionPort", port(ep.ClusterConnectionEndpoint)),
		param("LeaseAgentPort", port(ep.LeaseDriverEndpoint)),
		param("ServiceConnectionPort", port(ep.ServiceConnectionEndpoint)),
		param("HttpGatewayPort", port(ep.HttpGatewayEndpoint)),
		param("HttpGatewayProtocol", protocol(ep.HttpGatewayEndpoint)),
		param("HttpApplicationGatewayPort", port(ep.HttpApplicationGatewayEndpoint)),
		param("HttpApplicationGatewayProtocol", protocol(ep.HttpApplicationGatewayEndpoint)),
		param("ClusterManagerReplicatorPort", port(ep.ClusterManagerReplicatorEndpoint)),
		param("RepairManagerReplicatorPort", port(ep.RepairManagerReplicatorEndpoint)),
		param("NamingReplicatorPort", port(ep.NamingReplicatorEndpoint)),
		param("FailoverManagerReplicatorPort", port(ep.FailoverManagerReplicatorEndpoint)),
		param("ImageStoreServiceReplicatorPort", port(ep.ImageStoreServiceReplicatorEndpoint)),
		param("UpgradeServiceReplicatorPort", port(ep.UpgradeServiceReplicatorEndpoint)),
		param("DefaultReplicatorPort", port(ep.DefaultReplicatorEndpoint)),
		param("StartApplicationPortRange", rangeStart(ep.ApplicationEndpoints)),
		param("EndApplicationPortRange", rangeEnd(ep.ApplicationEndpoints)),
		param("StartDynamicPortRange", rangeStart(ep.EphemeralEndpoints)),
		param("EndDynamicPortRange", rangeEnd(ep.EphemeralEndpoints)),
	)
	return s
}

func appendCertificate(params []manifest.Parameter, prefix string, cert *manifest.X509) []manifest.Parameter {
	if cert == nil {
		return params
	}
	return append(params,
		param(prefix+"StoreName", cert.X509StoreName),
		param(prefix+"FindType", cert.X509FindType),
		param(prefix+"FindValue", cert.X509FindValue),
		param(prefix+"FindValueSecondary", cert.X509FindValueSecondary),
	)
}

// BracketIPv6 wraps a literal IPv6 address in brackets. Host names, IPv4
// addresses and already bracketed values are returned unchanged.
func BracketIPv6(addr string) string {
	if strings.HasPrefix(addr, "[") {
		return addr
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is6() {
		return addr
	}
	return "[" + addr + "]"
}

func appendSection(sections []manifest.Section, name string, params []manifest.Parameter) []manifest.Section {
	if len(params) == 0 {
		return sections
	}
	return append(sections, manifest.Section{Name: name, Parameters: params})
}

func keyValues(kvs []manifest.KeyValue) []manifest.Parameter {
	if len(kvs) == 0 {
		return nil
	}
	params := make([]manifest.Parameter, len(kvs))
	for i, kv := range kvs {
		params[i] = param(kv.Name, kv.Value)
	}
	return params
}

func param(name, value string) manifest.Parameter {
	return manifest.Parameter{Name: name, Value: value}
}

func port(ep *manifest.Endpoint) string {
	if ep == nil || ep.Port == "" {
		return "0"
	}
	return ep.Port
}

func protocol(ep *manifest.Endpoint) string {
	if ep == nil {
		return ""
	}
	return ep.Protocol
}

func rangeStart(r *manifest.PortRange) string {
	if r == nil {
		return "0"
	}
	return strconv.Itoa(r.StartPort)
}

func rangeEnd(r *manifest.PortRange) string {
	if r == nil {
		return "0"
	}
	return strconv.Itoa(r.EndPort)
}
