// Package checks provides the built-in stage executors. They validate
// plan consistency offline: subscription ID shape, appliance presence,
// cache storage resource IDs, quota arithmetic, region and network
// declarations, SKU and disk capability, and discovery correlation.
// Hosts that talk to a live provider replace individual executors
// through the stage registry; the rest keep working unchanged.
package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/match"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/quota"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Register binds the built-in executor for every stage of both target
// kinds. Callers may re-register individual stages afterwards.
func Register(reg *stage.Registry, p *plan.Plan, matcher *match.Matcher) {
	catalog := p.Catalog()

	reg.Register(stage.Access, accessExecutor())
	reg.Register(stage.ApplianceHealth, applianceExecutor())
	reg.Register(stage.StorageCache, storageCacheExecutor())
	reg.Register(stage.Quota, quotaExecutor(p, matcher, catalog))

	reg.Register(stage.Region, regionExecutor(p))
	reg.Register(stage.ResourceGroup, resourceGroupExecutor())
	reg.Register(stage.VNetSubnet, vnetSubnetExecutor(p))
	reg.Register(stage.VMSKU, vmSKUExecutor(catalog))
	reg.Register(stage.DiskType, diskTypeExecutor())
	reg.Register(stage.Discovery, discoveryExecutor(p))
	reg.Register(stage.RBAC, rbacExecutor())
}

// accessExecutor checks the project's subscription ID shape. A missing
// or malformed ID carries the subscription-not-found kind so the
// orchestrator can short-circuit the remaining project stages.
func accessExecutor() stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		proj := req.Project
		if proj.Subscription == "" {
			return stage.Fail(stage.Access,
				fmt.Sprintf("project %q declares no subscription", proj.Name)).
				WithKind(stage.ErrKindSubscriptionNotFound), nil
		}
		if _, err := uuid.Parse(proj.Subscription); err != nil {
			return stage.Fail(stage.Access,
				fmt.Sprintf("subscription %q is not a valid subscription ID", proj.Subscription)).
				WithKind(stage.ErrKindSubscriptionNotFound).
				WithDetail("subscription", proj.Subscription), nil
		}
		return stage.OK(stage.Access, "subscription ID is well-formed").
			WithDetail("subscription", proj.Subscription), nil
	}
}

// applianceExecutor verifies a discovery appliance is registered. The
// appliance's live health needs a provider connection, so a declared
// appliance yields SKIPPED rather than a false OK.
func applianceExecutor() stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		proj := req.Project
		if proj.Appliance == "" {
			return stage.Fail(stage.ApplianceHealth,
				fmt.Sprintf("project %q has no discovery appliance registered", proj.Name)), nil
		}
		return stage.Skip(stage.ApplianceHealth,
			fmt.Sprintf("appliance %q health requires a live Azure Migrate connection", proj.Appliance)).
			WithDetail("appliance", proj.Appliance), nil
	}
}

// storageCacheExecutor validates the replication cache storage account
// resource ID declared on the project.
func storageCacheExecutor() stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		proj := req.Project
		if proj.CacheStorageID == "" {
			return stage.Warn(stage.StorageCache,
				fmt.Sprintf("project %q has no replication cache storage account configured", proj.Name)), nil
		}

		rid, err := ParseResourceID(proj.CacheStorageID)
		if err != nil {
			return stage.Fail(stage.StorageCache,
				fmt.Sprintf("cache storage resource ID is malformed: %v", err)).
				WithDetail("resource_id", proj.CacheStorageID), nil
		}
		if !strings.EqualFold(rid.Provider, "Microsoft.Storage") ||
			!strings.EqualFold(rid.ResourceType, "storageAccounts") {
			return stage.Fail(stage.StorageCache,
				fmt.Sprintf("cache storage ID references %s/%s, expected a storage account",
					rid.Provider, rid.ResourceType)).
				WithDetail("resource_id", proj.CacheStorageID), nil
		}

		res := stage.OK(stage.StorageCache,
			fmt.Sprintf("cache storage account %q resolves", rid.Name)).
			WithDetail("account", rid.Name).
			WithDetail("resource_group", rid.ResourceGroup)
		if proj.Subscription != "" && !strings.EqualFold(rid.Subscription, proj.Subscription) {
			res = stage.Warn(stage.StorageCache,
				fmt.Sprintf("cache storage account %q lives in subscription %s while the project targets %s",
					rid.Name, rid.Subscription, proj.Subscription)).
				WithDetail("account", rid.Name).
				WithDetail("storage_subscription", rid.Subscription)
		}
		return res, nil
	}
}

// quotaExecutor sums the vCPU demand of every machine matched to the
// project and evaluates it against the plan's quota limits per family.
func quotaExecutor(p *plan.Plan, matcher *match.Matcher, catalog *quota.Catalog) stage.ExecutorFunc {
	return func(_ context.Context, req stage.Request) (stage.CheckResult, error) {
		proj := req.Project
		if len(p.Quotas) == 0 {
			return stage.Skip(stage.Quota, "plan carries no quota data"), nil
		}

		demand := projectDemand(p, matcher, catalog, proj.Name)
		if len(demand) == 0 {
			return stage.OK(stage.Quota,
				fmt.Sprintf("no machines place quota demand on project %q", proj.Name)), nil
		}

		families := make([]string, 0, len(demand))
		for f := range demand {
			families = append(families, f)
		}
		sort.Strings(families)

		var (
			evals   []quota.Evaluation
			missing []string
			failed  []string
			total   int
		)
		for _, family := range families {
			limit, ok := catalog.Limit(family, proj.Region)
			if !ok {
				missing = append(missing, family)
				continue
			}
			ev := quota.Evaluate(family, limit.Total, limit.Used, demand[family], catalog)
			evals = append(evals, ev)
			total += ev.Required
			if !ev.Sufficient {
				failed = append(failed, fmt.Sprintf("%s (available %d, required %d)",
					family, ev.Available, ev.Required))
			}
		}

		switch {
		case len(failed) > 0:
			return stage.Fail(stage.Quota,
				fmt.Sprintf("insufficient vCPU quota: %s", strings.Join(failed, "; "))).
				WithDetail("evaluations", evals), nil
		case len(missing) > 0:
			return stage.Warn(stage.Quota,
				fmt.Sprintf("no quota data for families: %s", strings.Join(missing, ", "))).
				WithDetail("families", missing), nil
		default:
			return stage.OK(stage.Quota,
				fmt.Sprintf("quota sufficient for %d vCPUs across %d families", total, len(evals))).
				WithDetail("evaluations", evals), nil
		}
	}
}

// projectDemand groups the matched machines' vCPU requirements by SKU
// family. Machines without a resolvable family or vCPU count are left
// to the vm_sku stage to flag.
func projectDemand(p *plan.Plan, matcher *match.Matcher, catalog *quota.Catalog, project string) map[string]int {
	demand := make(map[string]int)
	for i := range p.Machines {
		mc := &p.Machines[i]
		m := matcher.Match(mc)
		if m.Project == nil || !strings.EqualFold(m.Project.Name, project) {
			continue
		}

		sku, ok := catalog.SKU(mc.SKU)
		if !ok {
			continue
		}
		vcpus := mc.RequiredVCPUs
		if vcpus <= 0 {
			vcpus = sku.VCPUs
		}
		if sku.Family == "" || vcpus <= 0 {
			continue
		}
		demand[sku.Family] += vcpus
	}
	return demand
}
