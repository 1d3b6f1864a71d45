package manifest

// ProviderKind discriminates how the node roster of a cluster is obtained.
type ProviderKind int

const (
	KindUnknown ProviderKind = iota
	// KindStatic: node list fully declared in the cluster manifest.
	KindStatic
	// KindDynamic: node roster supplied by the infrastructure manifest.
	KindDynamic
	// KindStaticWithDynamicOverlay: declared node list whose wildcard fields
	// are filled from the infrastructure manifest.
	KindStaticWithDynamicOverlay
)

func (k ProviderKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindStaticWithDynamicOverlay:
		return "static_with_dynamic_overlay"
	}
	return "unknown"
}

// Kind infers the provider kind from the infrastructure variant present.
// KindUnknown is returned when zero or several variants are set.
func (m *ClusterManifest) Kind() ProviderKind {
	kind := KindUnknown
	count := 0
	if m.Infrastructure.Static != nil {
		kind = KindStatic
		count++
	}
	if m.Infrastructure.Dynamic != nil {
		kind = KindDynamic
		count++
	}
	if m.Infrastructure.StaticWithDynamicOverlay != nil {
		kind = KindStaticWithDynamicOverlay
		count++
	}
	if count != 1 {
		return KindUnknown
	}
	return kind
}
