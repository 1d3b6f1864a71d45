package manifest

import (
	"encoding/xml"
	"strings"
)

// Wildcard marks a static topology field that is filled from the
// infrastructure manifest.
const Wildcard = "*"

// IsWildcard reports whether v is the overlay wildcard (case-insensitive).
func IsWildcard(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), Wildcard)
}

// ClusterManifest is the deserialized cluster manifest document.
type ClusterManifest struct {
	XMLName        xml.Name       `xml:"ClusterManifest"`
	Name           string         `xml:"Name,attr"`
	Version        string         `xml:"Version,attr"`
	Description    string         `xml:"Description,attr,omitempty"`
	NodeTypes      []NodeType     `xml:"NodeTypes>NodeType"`
	Infrastructure Infrastructure `xml:"Infrastructure"`
	FabricSettings []Section      `xml:"FabricSettings>Section"`
}

// NodeType carries the defaults shared by every node referencing it.
type NodeType struct {
	Name                string             `xml:"Name,attr"`
	Endpoints           *Endpoints         `xml:"Endpoints"`
	Certificates        *Certificates      `xml:"Certificates"`
	KtlLoggerSettings   *KtlLoggerSettings `xml:"KtlLoggerSettings"`
	PlacementProperties []KeyValue         `xml:"PlacementProperties>Property"`
	Capacities          []KeyValue         `xml:"Capacities>Capacity"`
	SfssRgPolicies      []KeyValue         `xml:"SfssRgPolicies>SfssRgPolicy"`
	LogicalDirectories  []LogicalDirectory `xml:"LogicalDirectories>LogicalDirectory"`
}

// KeyValue is a generic Name/Value pair.
type KeyValue struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:"Value,attr"`
}

// Directory contexts for LogicalDirectory.Context.
const (
	DirectoryContextApplication = "application"
	DirectoryContextNode        = "node"
)

type LogicalDirectory struct {
	LogicalDirectoryName string `xml:"LogicalDirectoryName,attr"`
	MappedTo             string `xml:"MappedTo,attr"`
	Context              string `xml:"Context,attr,omitempty"`
}

type KtlLoggerSettings struct {
	SharedLogFilePath     string `xml:"SharedLogFilePath,attr"`
	SharedLogFileID       string `xml:"SharedLogFileId,attr"`
	SharedLogFileSizeInMB int    `xml:"SharedLogFileSizeInMB,attr"`
}

// Endpoint is a single named port. Protocol is only meaningful for
// gateway endpoints.
type Endpoint struct {
	Port     string `xml:"Port,attr"`
	Protocol string `xml:"Protocol,attr,omitempty"`
}

// PortRange is an inclusive port interval.
type PortRange struct {
	StartPort int `xml:"StartPort,attr"`
	EndPort   int `xml:"EndPort,attr"`
}

type Endpoints struct {
	ClientConnectionEndpoint            *Endpoint  `xml:"ClientConnectionEndpoint"`
	ClusterConnectionEndpoint           *Endpoint  `xml:"ClusterConnectionEndpoint"`
	LeaseDriverEndpoint                 *Endpoint  `xml:"LeaseDriverEndpoint"`
	ServiceConnectionEndpoint           *Endpoint  `xml:"ServiceConnectionEndpoint"`
	HttpGatewayEndpoint                 *Endpoint  `xml:"HttpGatewayEndpoint"`
	HttpApplicationGatewayEndpoint      *Endpoint  `xml:"HttpApplicationGatewayEndpoint"`
	ClusterManagerReplicatorEndpoint    *Endpoint  `xml:"ClusterManagerReplicatorEndpoint"`
	RepairManagerReplicatorEndpoint     *Endpoint  `xml:"RepairManagerReplicatorEndpoint"`
	NamingReplicatorEndpoint            *Endpoint  `xml:"NamingReplicatorEndpoint"`
	FailoverManagerReplicatorEndpoint   *Endpoint  `xml:"FailoverManagerReplicatorEndpoint"`
	ImageStoreServiceReplicatorEndpoint *Endpoint  `xml:"ImageStoreServiceReplicatorEndpoint"`
	UpgradeServiceReplicatorEndpoint    *Endpoint  `xml:"UpgradeServiceReplicatorEndpoint"`
	DefaultReplicatorEndpoint           *Endpoint  `xml:"DefaultReplicatorEndpoint"`
	ApplicationEndpoints                *PortRange `xml:"ApplicationEndpoints"`
	EphemeralEndpoints                  *PortRange `xml:"EphemeralEndpoints"`
}

// X509 identifies a certificate by find type, value and store.
type X509 struct {
	X509FindType           string `xml:"X509FindType,attr"`
	X509FindValue          string `xml:"X509FindValue,attr"`
	X509FindValueSecondary string `xml:"X509FindValueSecondary,attr,omitempty"`
	X509StoreName          string `xml:"X509StoreName,attr"`
}

type Certificates struct {
	ClientCertificate         *X509 `xml:"ClientCertificate"`
	UserRoleClientCertificate *X509 `xml:"UserRoleClientCertificate"`
	ServerCertificate         *X509 `xml:"ServerCertificate"`
	ClusterCertificate        *X509 `xml:"ClusterCertificate"`
}

// Infrastructure is a tagged union; exactly one variant must be set.
type Infrastructure struct {
	Static                   *StaticInfrastructure  `xml:"Static"`
	Dynamic                  *DynamicInfrastructure `xml:"Dynamic"`
	StaticWithDynamicOverlay *OverlayInfrastructure `xml:"StaticWithDynamicOverlay"`
}

type StaticInfrastructure struct {
	IsScaleMin bool   `xml:"IsScaleMin,attr,omitempty"`
	NodeList   []Node `xml:"NodeList>Node"`
}

type DynamicInfrastructure struct {
	Roles []Role `xml:"Roles>Role"`
}

type OverlayInfrastructure struct {
	NodeList []Node `xml:"NodeList>Node"`
}

// Node is a manifest-declared cluster member.
type Node struct {
	NodeName        string `xml:"NodeName,attr"`
	IPAddressOrFQDN string `xml:"IPAddressOrFQDN,attr"`
	IsSeedNode      bool   `xml:"IsSeedNode,attr"`
	NodeTypeRef     string `xml:"NodeTypeRef,attr"`
	FaultDomain     string `xml:"FaultDomain,attr,omitempty"`
	UpgradeDomain   string `xml:"UpgradeDomain,attr,omitempty"`
}

// Role maps an infrastructure role to a node type and its seed count.
type Role struct {
	RoleName      string `xml:"RoleName,attr"`
	NodeTypeRef   string `xml:"NodeTypeRef,attr"`
	SeedNodeCount int    `xml:"SeedNodeCount,attr"`
}

// Section is a named list of parameters. Order is preserved.
type Section struct {
	Name       string      `xml:"Name,attr"`
	Parameters []Parameter `xml:"Parameter"`
}

type Parameter struct {
	Name        string `xml:"Name,attr"`
	Value       string `xml:"Value,attr"`
	IsEncrypted bool   `xml:"IsEncrypted,attr,omitempty"`
}

// InfrastructureManifest is the externally supplied node roster.
type InfrastructureManifest struct {
	XMLName  xml.Name             `xml:"InfrastructureInformation"`
	NodeList []InfrastructureNode `xml:"NodeList>Node"`
}

type InfrastructureNode struct {
	NodeName        string     `xml:"NodeName,attr"`
	RoleOrTierName  string     `xml:"RoleOrTierName,attr"`
	IPAddressOrFQDN string     `xml:"IPAddressOrFQDN,attr"`
	FaultDomain     string     `xml:"FaultDomain,attr,omitempty"`
	UpgradeDomain   string     `xml:"UpgradeDomain,attr,omitempty"`
	NodeTypeRef     string     `xml:"NodeTypeRef,attr,omitempty"`
	Endpoints       *Endpoints `xml:"Endpoints"`
}

// NodeType returns the node type with the given name.
func (m *ClusterManifest) NodeType(name string) (*NodeType, bool) {
	for i := range m.NodeTypes {
		if m.NodeTypes[i].Name == name {
			return &m.NodeTypes[i], true
		}
	}
	return nil, false
}

// StaticNodes returns the manifest-declared node list for the static and
// overlay variants, nil for dynamic.
func (m *ClusterManifest) StaticNodes() []Node {
	switch {
	case m.Infrastructure.Static != nil:
		return m.Infrastructure.Static.NodeList
	case m.Infrastructure.StaticWithDynamicOverlay != nil:
		return m.Infrastructure.StaticWithDynamicOverlay.NodeList
	}
	return nil
}

// IsScaleMin reports whether every node of the cluster runs on one machine.
func (m *ClusterManifest) IsScaleMin() bool {
	return m.Infrastructure.Static != nil && m.Infrastructure.Static.IsScaleMin
}

// Section returns the named fabric settings section.
func (m *ClusterManifest) Section(name string) (*Section, bool) {
	for i := range m.FabricSettings {
		if m.FabricSettings[i].Name == name {
			return &m.FabricSettings[i], true
		}
	}
	return nil, false
}

// Parameter returns the named parameter of the section.
func (s *Section) Parameter(name string) (*Parameter, bool) {
	for i := range s.Parameters {
		if s.Parameters[i].Name == name {
			return &s.Parameters[i], true
		}
	}
	return nil, false
}
