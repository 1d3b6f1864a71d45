package deployer

import "fmt"

// Operation is a lifecycle operation of the deployer.
type Operation string

const (
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpRemove   Operation = "remove"
	OpRollback Operation = "rollback"
	OpValidate Operation = "validate"
)

// ParseOperation maps a command name to an Operation.
func ParseOperation(name string) (Operation, error) {
	switch op := Operation(name); op {
	case OpCreate, OpUpdate, OpRemove, OpRollback, OpValidate:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// Parameters are the typed inputs of one operation.
type Parameters struct {
	Operation                  Operation
	ClusterManifestPath        string
	InfrastructureManifestPath string
	// CurrentManifestPath is compared against the target by validate.
	CurrentManifestPath string
	Nodes               []string
	// Purge also deletes the deployment history on remove.
	Purge bool
}

// Check reports a parameter combination the operation cannot run with.
func (p Parameters) Check() error {
	switch p.Operation {
	case OpCreate, OpUpdate, OpValidate:
		if p.ClusterManifestPath == "" {
			return fmt.Errorf("%s requires a cluster manifest", p.Operation)
		}
	case OpRemove, OpRollback:
	default:
		return fmt.Errorf("unknown operation %q", p.Operation)
	}
	if p.CurrentManifestPath != "" && p.Operation != OpValidate {
		return fmt.Errorf("current manifest is only accepted by validate")
	}
	if p.Purge && p.Operation != OpRemove {
		return fmt.Errorf("purge is only accepted by remove")
	}
	return nil
}
