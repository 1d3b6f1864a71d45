package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// LoadClusterManifest reads and decodes a cluster manifest file.
func LoadClusterManifest(path string) (*ClusterManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cluster manifest: %w", err)
	}
	defer f.Close()

	m, err := ParseClusterManifest(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseClusterManifest decodes a cluster manifest document.
func ParseClusterManifest(r io.Reader) (*ClusterManifest, error) {
	var m ClusterManifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadInfrastructureManifest reads and decodes an infrastructure manifest.
// An empty path returns nil without error.
func LoadInfrastructureManifest(path string) (*InfrastructureManifest, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open infrastructure manifest: %w", err)
	}
	defer f.Close()

	m, err := ParseInfrastructureManifest(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse infrastructure manifest %s: %w", path, err)
	}
	return m, nil
}

func ParseInfrastructureManifest(r io.Reader) (*InfrastructureManifest, error) {
	var m InfrastructureManifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal encodes v (a manifest or settings document) as indented XML with
// the standard header.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
