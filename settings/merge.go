package settings

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/nodedeployer/manifest"
)

// Merge overlays node sections on top of the cluster-wide sections. A node
// parameter replaces the cluster parameter of the same name in the same
// section; everything else is appended in order. Inputs are not modified.
func Merge(cluster, node []manifest.Section) []manifest.Section {
	merged := Clone(cluster)
	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[s.Name] = i
	}

	for _, s := range node {
		i, ok := index[s.Name]
		if !ok {
			merged = append(merged, cloneSection(s))
			index[s.Name] = len(merged) - 1
			continue
		}
		target := &merged[i]
		for _, p := range s.Parameters {
			if existing, found := target.Parameter(p.Name); found {
				*existing = p
				continue
			}
			target.Parameters = append(target.Parameters, p)
		}
	}
	return merged
}

// Clone deep-copies a section list.
func Clone(sections []manifest.Section) []manifest.Section {
	if sections == nil {
		return nil
	}
	out := make([]manifest.Section, len(sections))
	for i, s := range sections {
		out[i] = cloneSection(s)
	}
	return out
}

func cloneSection(s manifest.Section) manifest.Section {
	params := make([]manifest.Parameter, len(s.Parameters))
	copy(params, s.Parameters)
	return manifest.Section{Name: s.Name, Parameters: params}
}

// Fingerprint hashes the sections in order. Equal section lists always
// produce equal fingerprints.
func Fingerprint(sections []manifest.Section) uint64 {
	d := xxhash.New()
	for _, s := range sections {
		writeField(d, s.Name)
		for _, p := range s.Parameters {
			writeField(d, p.Name)
			writeField(d, p.Value)
			writeField(d, strconv.FormatBool(p.IsEncrypted))
		}
		d.Write([]byte{0xff})
	}
	return d.Sum64()
}

// writeField length-prefixes values so adjacent fields cannot collide.
func writeField(d *xxhash.Digest, v string) {
	d.WriteString(strconv.Itoa(len(v)))
	d.Write([]byte{':'})
	d.WriteString(v)
}
