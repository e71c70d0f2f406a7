// Package plan defines the validation plan: the projects, machines, and
// supporting inventory a readiness run operates on. Plans are declared in
// YAML or JSON files and loaded read-only; azmig never mutates them.
package plan

import (
	"strings"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/quota"
)

// Kind distinguishes the two validated target types.
type Kind string

const (
	// KindProject is a migration project target.
	KindProject Kind = "project"
	// KindMachine is a machine (VM) target.
	KindMachine Kind = "machine"
)

// Target is anything the validation pipeline can run stages against.
// Projects and machines both satisfy it.
type Target interface {
	// TargetName returns the stable, unique name of the target.
	TargetName() string
	// TargetKind returns the target's kind.
	TargetKind() Kind
}

// Project is a migration project: the container resource that owns
// appliances, the replication cache storage account, and the vault.
type Project struct {
	// Name uniquely identifies the project within the plan.
	Name string `yaml:"name" json:"name"`
	// Subscription is the subscription ID the project lives in.
	Subscription string `yaml:"subscription" json:"subscription"`
	// Region is the project's region (e.g., "eastus").
	Region string `yaml:"region" json:"region"`
	// ResourceGroup is the resource group containing the project.
	ResourceGroup string `yaml:"resource_group,omitempty" json:"resource_group,omitempty"`
	// Appliance is the name of the discovery appliance registered
	// with the project. Empty means no appliance.
	Appliance string `yaml:"appliance,omitempty" json:"appliance,omitempty"`
	// CacheStorageID is the full resource ID of the replication cache
	// storage account.
	CacheStorageID string `yaml:"cache_storage_id,omitempty" json:"cache_storage_id,omitempty"`
	// VaultName is the recovery vault associated with the project,
	// when the operator knows it.
	VaultName string `yaml:"vault_name,omitempty" json:"vault_name,omitempty"`
}

// TargetName implements Target.
func (p *Project) TargetName() string { return p.Name }

// TargetKind implements Target.
func (p *Project) TargetKind() Kind { return KindProject }

// Machine is a machine target: one VM to be migrated.
type Machine struct {
	// Name uniquely identifies the machine within the plan.
	Name string `yaml:"name" json:"name"`
	// Project optionally names the migration project this machine
	// belongs to. When empty, the project is inferred by matching.
	Project string `yaml:"project,omitempty" json:"project,omitempty"`
	// Subscription is the target subscription for the migrated VM.
	Subscription string `yaml:"subscription,omitempty" json:"subscription,omitempty"`
	// Region is the target region for the migrated VM.
	Region string `yaml:"region" json:"region"`
	// ResourceGroup is the target resource group name.
	ResourceGroup string `yaml:"resource_group,omitempty" json:"resource_group,omitempty"`
	// VNet and Subnet name the target network placement.
	VNet   string `yaml:"vnet,omitempty" json:"vnet,omitempty"`
	Subnet string `yaml:"subnet,omitempty" json:"subnet,omitempty"`
	// SKU is the target VM size (e.g., "Standard_D4s_v5").
	SKU string `yaml:"sku,omitempty" json:"sku,omitempty"`
	// DiskType is the target managed disk type (e.g., "Premium_LRS").
	DiskType string `yaml:"disk_type,omitempty" json:"disk_type,omitempty"`
	// RequiredVCPUs is the vCPU demand the machine places on the
	// target family quota. Zero means derive from the SKU.
	RequiredVCPUs int `yaml:"required_vcpus,omitempty" json:"required_vcpus,omitempty"`
}

// TargetName implements Target.
func (m *Machine) TargetName() string { return m.Name }

// TargetKind implements Target.
func (m *Machine) TargetKind() Kind { return KindMachine }

// Network describes a virtual network available for placement checks.
type Network struct {
	Name    string   `yaml:"name" json:"name"`
	Region  string   `yaml:"region,omitempty" json:"region,omitempty"`
	Subnets []string `yaml:"subnets,omitempty" json:"subnets,omitempty"`
}

// Plan is a parsed validation plan.
type Plan struct {
	Version  int       `yaml:"version,omitempty" json:"version,omitempty"`
	Projects []Project `yaml:"projects,omitempty" json:"projects,omitempty"`
	Machines []Machine `yaml:"machines,omitempty" json:"machines,omitempty"`

	// AllowedRegions restricts where machines may land. Empty means
	// any region is acceptable.
	AllowedRegions []string `yaml:"allowed_regions,omitempty" json:"allowed_regions,omitempty"`
	// Networks is the known virtual network inventory.
	Networks []Network `yaml:"networks,omitempty" json:"networks,omitempty"`
	// Inventory lists machine names reported by discovery appliances.
	Inventory []string `yaml:"inventory,omitempty" json:"inventory,omitempty"`
	// SKUs is the VM size catalog for SKU and quota checks.
	SKUs []quota.SKU `yaml:"skus,omitempty" json:"skus,omitempty"`
	// Quotas lists vCPU quota rows per family and region.
	Quotas []quota.Limit `yaml:"quotas,omitempty" json:"quotas,omitempty"`

	// Source is the path the plan was loaded from.
	Source string `yaml:"-" json:"-"`
	// Fingerprint is the SHA-256 hex digest of the raw plan bytes.
	// Checkpoint sessions use it to decide resumability.
	Fingerprint string `yaml:"-" json:"-"`
}

// Catalog builds the quota catalog declared by the plan.
func (p *Plan) Catalog() *quota.Catalog {
	return quota.NewCatalog(p.SKUs, p.Quotas)
}

// ProjectByName returns the project with the given name, matched
// case-insensitively, or nil.
func (p *Plan) ProjectByName(name string) *Project {
	for i := range p.Projects {
		if strings.EqualFold(p.Projects[i].Name, name) {
			return &p.Projects[i]
		}
	}
	return nil
}

// TargetCount returns how many targets a run over this plan visits.
func (p *Plan) TargetCount() int {
	return len(p.Projects) + len(p.Machines)
}
