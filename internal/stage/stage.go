// Package stage defines the readiness check contract: stage names and
// their fixed execution order, the CheckResult every executor produces,
// status aggregation, and the executor registry the orchestrator runs
// against.
package stage

import (
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// Name identifies a validation stage.
type Name string

// Project stages, in execution order.
const (
	Access          Name = "access"
	ApplianceHealth Name = "appliance_health"
	StorageCache    Name = "storage_cache"
	Quota           Name = "quota"
)

// Machine stages, in execution order.
const (
	Region        Name = "region"
	ResourceGroup Name = "resource_group"
	VNetSubnet    Name = "vnet_subnet"
	VMSKU         Name = "vm_sku"
	DiskType      Name = "disk_type"
	Discovery     Name = "discovery"
	RBAC          Name = "rbac"
)

// ProjectSequence returns the fixed stage order for project targets.
func ProjectSequence() []Name {
	return []Name{Access, ApplianceHealth, StorageCache, Quota}
}

// MachineSequence returns the fixed stage order for machine targets.
func MachineSequence() []Name {
	return []Name{Region, ResourceGroup, VNetSubnet, VMSKU, DiskType, Discovery, RBAC}
}

// SequenceFor returns the stage order for a target kind.
func SequenceFor(kind plan.Kind) []Name {
	if kind == plan.KindProject {
		return ProjectSequence()
	}
	return MachineSequence()
}

// KindOf reports which target kind a stage belongs to. Stage names are
// disjoint between kinds, so the kind is recoverable from the name alone.
func KindOf(name Name) (plan.Kind, bool) {
	for _, s := range ProjectSequence() {
		if s == name {
			return plan.KindProject, true
		}
	}
	for _, s := range MachineSequence() {
		if s == name {
			return plan.KindMachine, true
		}
	}
	return "", false
}

// Known reports whether name is a defined stage for either kind.
func Known(name Name) bool {
	_, ok := KindOf(name)
	return ok
}
