package delta

import (
	"errors"
	"fmt"
	"sort"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/topology"
)

// ErrSeedChurn is wrapped by the validation error raised when an update
// changes the seed set by more than one node.
var ErrSeedChurn = errors.New("seed node set changed by more than one node")

// SeedSet is the seed membership declared by one manifest.
type SeedSet struct {
	Count int
	Names map[string]struct{}
}

// SeedSetOf extracts the declared seed set. Dynamic manifests sum the
// per-role seed counts and name seeds by the role ordinal convention;
// static and overlay manifests count nodes flagged as seed.
func SeedSetOf(m *manifest.ClusterManifest) SeedSet {
	set := SeedSet{Names: make(map[string]struct{})}
	if m.Infrastructure.Dynamic != nil {
		for _, role := range m.Infrastructure.Dynamic.Roles {
			set.Count += role.SeedNodeCount
			for i := 0; i < role.SeedNodeCount; i++ {
				set.Names[topology.NodeName(role.RoleName, i)] = struct{}{}
			}
		}
		return set
	}
	for _, node := range m.StaticNodes() {
		if node.IsSeedNode {
			set.Count++
			set.Names[node.NodeName] = struct{}{}
		}
	}
	return set
}

// SeedSetDelta compares the seed sets of two manifests.
type SeedSetDelta struct {
	CurrentCount int
	TargetCount  int
	Added        []string
	Removed      []string
}

// ComputeSeedSetDelta returns the counts and the symmetric difference of
// the two seed sets, with names sorted.
func ComputeSeedSetDelta(current, target SeedSet) SeedSetDelta {
	d := SeedSetDelta{CurrentCount: current.Count, TargetCount: target.Count}
	for name := range target.Names {
		if _, ok := current.Names[name]; !ok {
			d.Added = append(d.Added, name)
		}
	}
	for name := range current.Names {
		if _, ok := target.Names[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}

// SymmetricDifference returns the names present in exactly one seed set.
func (d SeedSetDelta) SymmetricDifference() []string {
	out := make([]string, 0, len(d.Added)+len(d.Removed))
	out = append(out, d.Added...)
	out = append(out, d.Removed...)
	sort.Strings(out)
	return out
}

// Check enforces that at most one seed node is added or removed.
func (d SeedSetDelta) Check() error {
	countDiff := d.TargetCount - d.CurrentCount
	if countDiff < 0 {
		countDiff = -countDiff
	}
	if countDiff > 1 {
		return &manifest.ConfigError{
			Reason: fmt.Sprintf("seed node count changes from %d to %d", d.CurrentCount, d.TargetCount),
			Err:    ErrSeedChurn,
		}
	}
	if diff := d.SymmetricDifference(); len(diff) > 1 {
		return &manifest.ConfigError{
			Reason: fmt.Sprintf("seed nodes %v change in one update", diff),
			Err:    ErrSeedChurn,
		}
	}
	return nil
}
