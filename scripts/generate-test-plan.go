//go:build ignore

// Package main generates a synthetic migration plan for benchmarking.
// Usage: go run scripts/generate-test-plan.go -machines 500 -output testdata/bench-plan.yaml
//
// The generated plan is valid and mostly clean: a few machines are
// left out of the inventory (discovery warnings) and one quota family
// is kept short (quota failures on the projects that draw from it),
// so runs produce a realistic mix of results.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/quota"
)

var (
	numProjects = flag.Int("projects", 5, "Number of Azure Migrate projects")
	numMachines = flag.Int("machines", 200, "Number of machines")
	outputPath  = flag.String("output", "testdata/bench-plan.yaml", "Output file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var regions = []string{"westeurope", "northeurope", "uksouth", "swedencentral"}

var skuCatalog = []quota.SKU{
	{Name: "Standard_D2s_v5", Family: "standardDSv5Family", VCPUs: 2},
	{Name: "Standard_D4s_v5", Family: "standardDSv5Family", VCPUs: 4},
	{Name: "Standard_D8s_v5", Family: "standardDSv5Family", VCPUs: 8},
	{Name: "Standard_E4s_v5", Family: "standardESv5Family", VCPUs: 4},
	{Name: "Standard_E8s_v5", Family: "standardESv5Family", VCPUs: 8},
	{Name: "Standard_F16s_v2", Family: "standardFSv2Family", VCPUs: 16},
}

var diskTypes = []string{"Premium_LRS", "StandardSSD_LRS", "Standard_LRS"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	p := buildPlan(rng, *numProjects, *numMachines)

	data, err := yaml.Marshal(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal plan: %v\n", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(*outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write plan: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s: %d projects, %d machines\n", *outputPath, len(p.Projects), len(p.Machines))
	fmt.Printf("Validate with: go run ./cmd/azmig validate %s --plain\n", *outputPath)
}

func buildPlan(rng *rand.Rand, projects, machines int) *plan.Plan {
	p := &plan.Plan{Version: 1, AllowedRegions: regions}

	subscriptions := make([]string, projects)
	for i := 0; i < projects; i++ {
		region := regions[i%len(regions)]
		subscriptions[i] = randomUUID(rng)
		proj := plan.Project{
			Name:          fmt.Sprintf("PROJ-%03d", i+1),
			Subscription:  subscriptions[i],
			Region:        region,
			ResourceGroup: fmt.Sprintf("rg-migrate-%s", region),
		}
		// Most projects have an appliance; some declare a cache account.
		if rng.Intn(10) < 8 {
			proj.Appliance = fmt.Sprintf("appliance-%s-%02d", region, i+1)
		}
		if rng.Intn(10) < 3 {
			proj.CacheStorageID = fmt.Sprintf(
				"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/cache%03d",
				subscriptions[i], proj.ResourceGroup, i+1)
		}
		p.Projects = append(p.Projects, proj)
	}

	for _, region := range regions {
		p.Networks = append(p.Networks, plan.Network{
			Name:    "vnet-" + region,
			Region:  region,
			Subnets: []string{"snet-web", "snet-app", "snet-data"},
		})
	}

	vcpuByFamilyRegion := map[string]int{}
	for i := 0; i < machines; i++ {
		projIdx := rng.Intn(projects)
		proj := p.Projects[projIdx]
		sku := skuCatalog[rng.Intn(len(skuCatalog))]

		m := plan.Machine{
			Name:          fmt.Sprintf("vm-%04d", i+1),
			Region:        proj.Region,
			ResourceGroup: fmt.Sprintf("rg-app-%02d", rng.Intn(20)+1),
			VNet:          "vnet-" + proj.Region,
			Subnet:        []string{"snet-web", "snet-app", "snet-data"}[rng.Intn(3)],
			SKU:           sku.Name,
			DiskType:      diskTypes[rng.Intn(len(diskTypes))],
			RequiredVCPUs: sku.VCPUs,
		}
		// A fifth of the machines rely on region+subscription matching.
		if rng.Intn(5) == 0 {
			m.Subscription = proj.Subscription
		} else {
			m.Project = proj.Name
		}
		p.Machines = append(p.Machines, m)

		vcpuByFamilyRegion[sku.Family+"/"+proj.Region] += sku.VCPUs

		// Leave a few machines out of the inventory to exercise the
		// discovery warning path.
		if rng.Intn(50) != 0 {
			p.Inventory = append(p.Inventory, m.Name)
		}
	}

	p.SKUs = skuCatalog
	for key, demand := range vcpuByFamilyRegion {
		family, region := splitKey(key)
		headroom := demand + demand/2
		if family == "standardFSv2Family" {
			// Short on purpose so large runs exercise the failure path
			headroom = demand - demand/10
		}
		p.Quotas = append(p.Quotas, quota.Limit{
			Family: family,
			Region: region,
			Total:  demand + headroom,
			Used:   demand,
		})
	}

	return p
}

func splitKey(key string) (family, region string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func randomUUID(rng *rand.Rand) string {
	b := make([]byte, 16)
	rng.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
