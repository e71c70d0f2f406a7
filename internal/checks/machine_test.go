package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

func machineRequest(p *plan.Plan, idx int) stage.Request {
	mc := &p.Machines[idx]
	return stage.Request{
		Machine: mc,
		Match:   match.NewMatcher(p.Projects).Match(mc),
	}
}

func TestRegion_AllowedAndDisallowed(t *testing.T) {
	p := testPlan()
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.Region, machineRequest(p, 0))
	assert.Equal(t, stage.StatusOK, res.Status)

	p.Machines[0].Region = "japaneast"
	res = runStage(t, reg, stage.Region, machineRequest(p, 0))
	assert.Equal(t, stage.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "japaneast")
}

func TestRegion_NoRestrictionsSkips(t *testing.T) {
	p := testPlan()
	p.AllowedRegions = nil
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.Region, machineRequest(p, 0))
	assert.Equal(t, stage.StatusSkipped, res.Status)
}

func TestRegion_ProjectRegionDivergenceWarns(t *testing.T) {
	// Given: an allowed machine region that differs from the matched
	// project's region
	p := testPlan()
	p.Machines[0].Region = "northeurope"
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.Region, machineRequest(p, 0))
	assert.Equal(t, stage.StatusWarning, res.Status)
	assert.Contains(t, res.Message, "westeurope")
}

func TestResourceGroup_NameRules(t *testing.T) {
	tests := []struct {
		name       string
		rg         string
		wantStatus stage.Status
	}{
		{"valid", "rg-migrate_prod(01)", stage.StatusOK},
		{"valid with dots", "rg.migrate.01", stage.StatusOK},
		{"empty skips", "", stage.StatusSkipped},
		{"trailing period", "rg-migrate.", stage.StatusFailed},
		{"invalid characters", "rg migrate!", stage.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			p.Machines[0].ResourceGroup = tt.rg
			reg := builtinRegistry(p)

			res := runStage(t, reg, stage.ResourceGroup, machineRequest(p, 0))
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestResourceGroup_TooLongFails(t *testing.T) {
	p := testPlan()
	long := make([]byte, 91)
	for i := range long {
		long[i] = 'a'
	}
	p.Machines[0].ResourceGroup = string(long)
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.ResourceGroup, machineRequest(p, 0))
	assert.Equal(t, stage.StatusFailed, res.Status)
}

func TestVNetSubnet_Resolution(t *testing.T) {
	tests := []struct {
		name       string
		vnet       string
		subnet     string
		wantStatus stage.Status
	}{
		{"vnet and subnet resolve", "vnet-weu", "snet-app", stage.StatusOK},
		{"vnet only", "vnet-weu", "", stage.StatusOK},
		{"case insensitive", "VNET-WEU", "SNET-APP", stage.StatusOK},
		{"unknown vnet", "vnet-nope", "", stage.StatusFailed},
		{"unknown subnet", "vnet-weu", "snet-nope", stage.StatusFailed},
		{"no vnet declared", "", "", stage.StatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			p.Machines[0].VNet = tt.vnet
			p.Machines[0].Subnet = tt.subnet
			reg := builtinRegistry(p)

			res := runStage(t, reg, stage.VNetSubnet, machineRequest(p, 0))
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestVNetSubnet_RegionMismatchWarns(t *testing.T) {
	p := testPlan()
	p.Machines[0].VNet = "vnet-weu"
	p.Machines[0].Region = "northeurope"
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.VNetSubnet, machineRequest(p, 0))
	assert.Equal(t, stage.StatusWarning, res.Status)
	assert.Contains(t, res.Message, "northeurope")
}

func TestVMSKU_CatalogChecks(t *testing.T) {
	tests := []struct {
		name       string
		sku        string
		required   int
		wantStatus stage.Status
	}{
		{"resolves", "Standard_D4s_v5", 4, stage.StatusOK},
		{"case insensitive", "standard_d4s_v5", 0, stage.StatusOK},
		{"undersized", "Standard_D4s_v5", 8, stage.StatusWarning},
		{"unknown sku", "Standard_Z99", 0, stage.StatusFailed},
		{"no sku declared", "", 0, stage.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			p.Machines[0].SKU = tt.sku
			p.Machines[0].RequiredVCPUs = tt.required
			reg := builtinRegistry(p)

			res := runStage(t, reg, stage.VMSKU, machineRequest(p, 0))
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestVMSKU_EmptyCatalogSkips(t *testing.T) {
	p := testPlan()
	p.SKUs = nil
	p.Quotas = nil
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.VMSKU, machineRequest(p, 0))
	assert.Equal(t, stage.StatusSkipped, res.Status)
}

func TestDiskType_SupportedSet(t *testing.T) {
	tests := []struct {
		name       string
		diskType   string
		wantStatus stage.Status
	}{
		{"premium", "Premium_LRS", stage.StatusOK},
		{"case insensitive", "premium_lrs", stage.StatusOK},
		{"unsupported", "Floppy_LRS", stage.StatusFailed},
		{"empty skips", "", stage.StatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			p.Machines[0].DiskType = tt.diskType
			reg := builtinRegistry(p)

			res := runStage(t, reg, stage.DiskType, machineRequest(p, 0))
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestDiscovery_CorrelationOutcomes(t *testing.T) {
	p := testPlan()
	reg := builtinRegistry(p)

	// db01 is listed verbatim in the inventory.
	res := runStage(t, reg, stage.Discovery, machineRequest(p, 1))
	assert.Equal(t, stage.StatusOK, res.Status)
	assert.Equal(t, "db01", res.Details["discovered_name"])

	// web01 appears only as dvweb01; the prefix-stripped match warns.
	res = runStage(t, reg, stage.Discovery, machineRequest(p, 0))
	assert.Equal(t, stage.StatusWarning, res.Status)
	assert.Equal(t, "dvweb01", res.Details["discovered_name"])

	// An absent machine fails.
	p.Machines[0].Name = "ghost99"
	res = runStage(t, reg, stage.Discovery, machineRequest(p, 0))
	assert.Equal(t, stage.StatusFailed, res.Status)
}

func TestDiscovery_NoInventorySkips(t *testing.T) {
	p := testPlan()
	p.Inventory = nil
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.Discovery, machineRequest(p, 0))
	assert.Equal(t, stage.StatusSkipped, res.Status)
}

func TestRBAC_AlwaysSkipsOffline(t *testing.T) {
	p := testPlan()
	reg := builtinRegistry(p)

	res := runStage(t, reg, stage.RBAC, machineRequest(p, 0))
	assert.Equal(t, stage.StatusSkipped, res.Status)
}
