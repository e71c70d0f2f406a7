// Package match resolves which migration project a machine belongs to
// and derives the project-scoped context (cache storage, vault) that
// machine stages depend on. Matching is a heuristic: explicit
// configuration always wins, then region plus subscription, then region
// alone as an advisory fallback.
package match

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// vaultCacheSize bounds the prior-validation vault lookups kept in
// memory. Plans rarely declare more than a handful of projects.
const vaultCacheSize = 128

// MatchKind records how a project was selected for a machine.
type MatchKind string

const (
	// MatchExplicitName means the machine named its project directly.
	MatchExplicitName MatchKind = "explicit_name"
	// MatchRegionSubscription means region and subscription both agreed.
	MatchRegionSubscription MatchKind = "region_subscription"
	// MatchRegionOnly means only the region agreed; advisory.
	MatchRegionOnly MatchKind = "region"
	// MatchNone means no project could be associated.
	MatchNone MatchKind = "none"
)

// ProjectMatch is the resolved project context for one machine.
type ProjectMatch struct {
	// Project is the matched project, nil when Kind is MatchNone.
	Project *plan.Project
	// Kind records the matching rule that selected the project.
	Kind MatchKind
	// CacheStorageID is the replication cache storage account,
	// always taken from the matched project.
	CacheStorageID string
	// VaultName is the resolved recovery vault name.
	VaultName string
	// VaultVerified is false when VaultName is a generated
	// placeholder rather than a known resource.
	VaultVerified bool
	// Issues carries advisory notes for the target outcome.
	Issues []string
}

// VaultSource supplies vault names recorded by prior successful
// validations. The history store implements it.
type VaultSource interface {
	VaultFor(project string) (string, bool)
}

// Matcher matches machines to the projects declared in a plan.
type Matcher struct {
	projects   []plan.Project
	vaults     VaultSource
	vaultCache *lru.Cache[string, string]
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithVaultSource wires in prior-validation vault lookups.
func WithVaultSource(src VaultSource) Option {
	return func(m *Matcher) {
		m.vaults = src
	}
}

// NewMatcher creates a matcher over the given projects.
func NewMatcher(projects []plan.Project, opts ...Option) *Matcher {
	cache, _ := lru.New[string, string](vaultCacheSize)
	m := &Matcher{
		projects:   projects,
		vaultCache: cache,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves the project context for a machine. It never fails:
// when no project can be associated, the result has Kind MatchNone and
// an explanatory issue, and the machine's checks proceed without
// project context.
func (m *Matcher) Match(mc *plan.Machine) *ProjectMatch {
	res := &ProjectMatch{Kind: MatchNone}

	proj := m.findByName(mc, res)
	if proj == nil {
		proj = m.findByLocation(mc, res)
	}
	if proj == nil {
		res.Issues = append(res.Issues, fmt.Sprintf(
			"no migration project found for machine %q (region %q)", mc.Name, mc.Region))
		return res
	}

	res.Project = proj
	res.CacheStorageID = proj.CacheStorageID
	if mc.Subscription != "" && proj.Subscription != "" &&
		!strings.EqualFold(mc.Subscription, proj.Subscription) {
		res.Issues = append(res.Issues, fmt.Sprintf(
			"cache storage account belongs to subscription %s while machine %q targets %s (cross-subscription replication)",
			proj.Subscription, mc.Name, mc.Subscription))
	}

	m.resolveVault(proj, res)
	return res
}

// findByName applies the explicit project-name rule.
func (m *Matcher) findByName(mc *plan.Machine, res *ProjectMatch) *plan.Project {
	if mc.Project == "" {
		return nil
	}
	for i := range m.projects {
		if strings.EqualFold(m.projects[i].Name, mc.Project) {
			res.Kind = MatchExplicitName
			return &m.projects[i]
		}
	}
	res.Issues = append(res.Issues, fmt.Sprintf(
		"configured project %q not found in plan, falling back to region matching", mc.Project))
	return nil
}

// findByLocation applies the region+subscription rule, then region
// alone. A region-only match is advisory and gets flagged.
func (m *Matcher) findByLocation(mc *plan.Machine, res *ProjectMatch) *plan.Project {
	for i := range m.projects {
		p := &m.projects[i]
		if strings.EqualFold(p.Region, mc.Region) &&
			strings.EqualFold(p.Subscription, mc.Subscription) {
			res.Kind = MatchRegionSubscription
			return p
		}
	}
	for i := range m.projects {
		p := &m.projects[i]
		if strings.EqualFold(p.Region, mc.Region) {
			res.Kind = MatchRegionOnly
			res.Issues = append(res.Issues, fmt.Sprintf(
				"using fallback project based on region match: %s", p.Name))
			return p
		}
	}
	return nil
}

// resolveVault picks the vault name for a matched project:
// a vault recorded by a prior successful validation, then the
// configured vault, then a generated placeholder flagged unverified.
func (m *Matcher) resolveVault(p *plan.Project, res *ProjectMatch) {
	if name, ok := m.priorVault(p.Name); ok {
		res.VaultName = name
		res.VaultVerified = true
		return
	}
	if p.VaultName != "" {
		res.VaultName = p.VaultName
		res.VaultVerified = true
		return
	}
	res.VaultName = PlaceholderVault(p.Name)
	res.VaultVerified = false
	res.Issues = append(res.Issues, fmt.Sprintf(
		"vault name %q is a generated placeholder and has not been verified", res.VaultName))
}

// priorVault looks up a vault from earlier validations, caching hits so
// a project shared by many machines costs one lookup.
func (m *Matcher) priorVault(project string) (string, bool) {
	key := strings.ToLower(project)
	if name, ok := m.vaultCache.Get(key); ok {
		return name, true
	}
	if m.vaults == nil {
		return "", false
	}
	name, ok := m.vaults.VaultFor(project)
	if !ok || name == "" {
		return "", false
	}
	m.vaultCache.Add(key, name)
	return name, true
}

// PlaceholderVault derives the conventional vault name for a project:
// the project name joined with "MigrateVault" and the trailing ten
// characters of the project name.
func PlaceholderVault(project string) string {
	suffix := project
	if runes := []rune(project); len(runes) > 10 {
		suffix = string(runes[len(runes)-10:])
	}
	return fmt.Sprintf("%s-MigrateVault-%s", project, suffix)
}
