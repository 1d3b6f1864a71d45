package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// Node names of dynamically provisioned nodes follow "<role>.<ordinal>".
// Everything that depends on this convention goes through the functions
// below.

const ordinalSeparator = "."

// NodeOrdinal parses the integer suffix after the last '.' of a node name.
func NodeOrdinal(name string) (int, error) {
	idx := strings.LastIndex(name, ordinalSeparator)
	if idx < 0 || idx == len(name)-1 {
		return -1, fmt.Errorf("node name %q has no ordinal suffix", name)
	}
	ordinal, err := strconv.Atoi(name[idx+1:])
	if err != nil || ordinal < 0 {
		return -1, fmt.Errorf("node name %q has invalid ordinal suffix", name)
	}
	return ordinal, nil
}

// RoleFromNodeName returns the part of a node name before the last '.'.
func RoleFromNodeName(name string) string {
	idx := strings.LastIndex(name, ordinalSeparator)
	if idx <= 0 {
		return ""
	}
	return name[:idx]
}

// NodeName builds the conventional name of the ordinal-th node of a role.
func NodeName(role string, ordinal int) string {
	return role + ordinalSeparator + strconv.Itoa(ordinal)
}
