package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/quota"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// resourceGroupRe covers the Azure resource group character set:
// alphanumerics, underscores, parentheses, hyphens, periods, 1-90 chars.
var resourceGroupRe = regexp.MustCompile(`^[A-Za-z0-9._()\-]{1,90}$`)

// managedDiskTypes lists the disk storage types Azure Migrate can
// replicate to.
var managedDiskTypes = []string{
	"Standard_LRS",
	"StandardSSD_LRS",
	"StandardSSD_ZRS",
	"Premium_LRS",
	"Premium_ZRS",
	"PremiumV2_LRS",
	"UltraSSD_LRS",
}

// regionExecutor checks the machine's target region against the plan's
// allowed regions, and flags divergence from the matched project.
func regionExecutor(p *plan.Plan) stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if len(p.AllowedRegions) == 0 {
			return stage.Skip(stage.Region, "plan does not declare allowed regions"), nil
		}

		if !containsFold(p.AllowedRegions, mc.Region) {
			return stage.Fail(stage.Region,
				fmt.Sprintf("region %q is not in the allowed regions", mc.Region)).
				WithDetail("region", mc.Region).
				WithDetail("allowed", p.AllowedRegions), nil
		}

		if req.Match != nil && req.Match.Project != nil &&
			req.Match.Project.Region != "" &&
			!strings.EqualFold(req.Match.Project.Region, mc.Region) {
			return stage.Warn(stage.Region,
				fmt.Sprintf("machine targets region %q while project %q is in %q",
					mc.Region, req.Match.Project.Name, req.Match.Project.Region)).
				WithDetail("region", mc.Region).
				WithDetail("project_region", req.Match.Project.Region), nil
		}

		return stage.OK(stage.Region,
			fmt.Sprintf("region %q is allowed", mc.Region)).
			WithDetail("region", mc.Region), nil
	}
}

// resourceGroupExecutor validates the target resource group name.
func resourceGroupExecutor() stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if mc.ResourceGroup == "" {
			return stage.Skip(stage.ResourceGroup, "machine declares no target resource group"), nil
		}

		if !resourceGroupRe.MatchString(mc.ResourceGroup) {
			return stage.Fail(stage.ResourceGroup,
				fmt.Sprintf("resource group name %q contains invalid characters or is too long", mc.ResourceGroup)).
				WithDetail("resource_group", mc.ResourceGroup), nil
		}
		if strings.HasSuffix(mc.ResourceGroup, ".") {
			return stage.Fail(stage.ResourceGroup,
				fmt.Sprintf("resource group name %q cannot end with a period", mc.ResourceGroup)).
				WithDetail("resource_group", mc.ResourceGroup), nil
		}

		return stage.OK(stage.ResourceGroup,
			fmt.Sprintf("resource group name %q is valid", mc.ResourceGroup)), nil
	}
}

// vnetSubnetExecutor resolves the machine's target network and subnet
// against the plan's network definitions.
func vnetSubnetExecutor(p *plan.Plan) stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if len(p.Networks) == 0 {
			return stage.Skip(stage.VNetSubnet, "plan carries no network definitions"), nil
		}
		if mc.VNet == "" {
			return stage.Skip(stage.VNetSubnet, "machine declares no virtual network"), nil
		}

		var network *plan.Network
		for i := range p.Networks {
			if strings.EqualFold(p.Networks[i].Name, mc.VNet) {
				network = &p.Networks[i]
				break
			}
		}
		if network == nil {
			return stage.Fail(stage.VNetSubnet,
				fmt.Sprintf("virtual network %q is not defined in the plan", mc.VNet)).
				WithDetail("vnet", mc.VNet), nil
		}

		if mc.Subnet != "" && !containsFold(network.Subnets, mc.Subnet) {
			return stage.Fail(stage.VNetSubnet,
				fmt.Sprintf("subnet %q does not exist in virtual network %q", mc.Subnet, network.Name)).
				WithDetail("vnet", network.Name).
				WithDetail("subnet", mc.Subnet).
				WithDetail("known_subnets", network.Subnets), nil
		}

		if network.Region != "" && mc.Region != "" &&
			!strings.EqualFold(network.Region, mc.Region) {
			return stage.Warn(stage.VNetSubnet,
				fmt.Sprintf("virtual network %q is in region %q while the machine targets %q",
					network.Name, network.Region, mc.Region)).
				WithDetail("vnet", network.Name).
				WithDetail("vnet_region", network.Region), nil
		}

		res := stage.OK(stage.VNetSubnet,
			fmt.Sprintf("virtual network %q resolves", network.Name)).
			WithDetail("vnet", network.Name)
		if mc.Subnet != "" {
			res = res.WithDetail("subnet", mc.Subnet)
		}
		return res, nil
	}
}

// vmSKUExecutor checks the declared VM size against the catalog and the
// machine's vCPU requirement.
func vmSKUExecutor(catalog *quota.Catalog) stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if catalog.Empty() {
			return stage.Skip(stage.VMSKU, "plan carries no SKU catalog"), nil
		}
		if mc.SKU == "" {
			return stage.Fail(stage.VMSKU,
				fmt.Sprintf("machine %q declares no VM size", mc.Name)), nil
		}

		sku, ok := catalog.SKU(mc.SKU)
		if !ok {
			return stage.Fail(stage.VMSKU,
				fmt.Sprintf("VM size %q is not in the SKU catalog", mc.SKU)).
				WithDetail("sku", mc.SKU), nil
		}

		if mc.RequiredVCPUs > 0 && sku.VCPUs < mc.RequiredVCPUs {
			return stage.Warn(stage.VMSKU,
				fmt.Sprintf("VM size %q provides %d vCPUs, machine requires %d",
					sku.Name, sku.VCPUs, mc.RequiredVCPUs)).
				WithDetail("sku", sku.Name).
				WithDetail("vcpus", sku.VCPUs).
				WithDetail("required_vcpus", mc.RequiredVCPUs), nil
		}

		return stage.OK(stage.VMSKU,
			fmt.Sprintf("VM size %q resolves (%s, %d vCPUs)", sku.Name, sku.Family, sku.VCPUs)).
			WithDetail("sku", sku.Name).
			WithDetail("family", sku.Family).
			WithDetail("vcpus", sku.VCPUs), nil
	}
}

// diskTypeExecutor checks the declared disk type against the managed
// disk types replication supports.
func diskTypeExecutor() stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if mc.DiskType == "" {
			return stage.Skip(stage.DiskType, "machine declares no disk type"), nil
		}

		if !containsFold(managedDiskTypes, mc.DiskType) {
			return stage.Fail(stage.DiskType,
				fmt.Sprintf("disk type %q is not a supported managed disk type", mc.DiskType)).
				WithDetail("disk_type", mc.DiskType).
				WithDetail("supported", managedDiskTypes), nil
		}

		return stage.OK(stage.DiskType,
			fmt.Sprintf("disk type %q is supported", mc.DiskType)), nil
	}
}

// discoveryExecutor correlates the machine against the plan's discovery
// inventory, tolerating environment-prefix renames.
func discoveryExecutor(p *plan.Plan) stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		mc := req.Machine
		if len(p.Inventory) == 0 {
			return stage.Skip(stage.Discovery, "plan carries no discovery inventory"), nil
		}

		dm := match.CorrelateDiscovery(mc.Name, p.Inventory)
		switch {
		case !dm.Found:
			return stage.Fail(stage.Discovery,
				fmt.Sprintf("machine %q is not present in the discovery inventory", mc.Name)), nil
		case dm.Fuzzy:
			return stage.Warn(stage.Discovery,
				fmt.Sprintf("machine %q matched discovered name %q after environment prefix strip",
					mc.Name, dm.Name)).
				WithDetail("discovered_name", dm.Name), nil
		default:
			return stage.OK(stage.Discovery,
				fmt.Sprintf("machine %q is present in the discovery inventory", mc.Name)).
				WithDetail("discovered_name", dm.Name), nil
		}
	}
}

// rbacExecutor is a provider-backed stage with no offline equivalent.
func rbacExecutor() stage.ExecutorFunc {
	return func(_ context.Context, _ stage.Request) (stage.CheckResult, error) {
		return stage.Skip(stage.RBAC, "role assignment checks require a live Azure connection"), nil
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
