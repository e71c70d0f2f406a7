// Package quota evaluates vCPU quota sufficiency for target SKU families
// and proposes alternative SKUs when headroom is too small.
package quota

import (
	"strings"
)

// maxRecommendations caps the number of alternative SKUs proposed
// for an insufficient quota family.
const maxRecommendations = 5

// SKU describes a virtual machine size known to the validator.
type SKU struct {
	// Name is the SKU name (e.g., "Standard_D4s_v5").
	Name string `yaml:"name" json:"name"`
	// Family is the quota family the SKU draws from (e.g., "standardDSv5Family").
	Family string `yaml:"family" json:"family"`
	// VCPUs is the number of vCPUs the SKU consumes against the family quota.
	VCPUs int `yaml:"vcpus" json:"vcpus"`
}

// Limit is a vCPU quota row for one SKU family in one region.
// A row with an empty region applies to any region.
type Limit struct {
	Family string `yaml:"family" json:"family"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	Total  int    `yaml:"total" json:"total"`
	Used   int    `yaml:"used" json:"used"`
}

// Catalog holds the known SKUs and quota limits for a validation run.
// SKU order is preserved as first seen; recommendation backfill depends on it.
type Catalog struct {
	skus   []SKU
	byName map[string]int
	limits []Limit
}

// NewCatalog builds a catalog from SKU and limit rows.
// Duplicate SKU names keep the first occurrence.
func NewCatalog(skus []SKU, limits []Limit) *Catalog {
	c := &Catalog{
		byName: make(map[string]int, len(skus)),
		limits: limits,
	}
	for _, s := range skus {
		key := strings.ToLower(s.Name)
		if _, exists := c.byName[key]; exists {
			continue
		}
		c.byName[key] = len(c.skus)
		c.skus = append(c.skus, s)
	}
	return c
}

// Empty reports whether the catalog has no SKUs.
func (c *Catalog) Empty() bool {
	return len(c.skus) == 0
}

// SKU looks up a SKU by name, case-insensitively.
func (c *Catalog) SKU(name string) (SKU, bool) {
	idx, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return SKU{}, false
	}
	return c.skus[idx], true
}

// FamilyOf returns the quota family for a SKU name, or empty if unknown.
func (c *Catalog) FamilyOf(name string) string {
	s, ok := c.SKU(name)
	if !ok {
		return ""
	}
	return s.Family
}

// Limit finds the quota row for a family in a region. A region-specific row
// wins over an any-region row for the same family.
func (c *Catalog) Limit(family, region string) (Limit, bool) {
	var fallback Limit
	var haveFallback bool
	for _, l := range c.limits {
		if !strings.EqualFold(l.Family, family) {
			continue
		}
		if strings.EqualFold(l.Region, region) {
			return l, true
		}
		if l.Region == "" && !haveFallback {
			fallback = l
			haveFallback = true
		}
	}
	return fallback, haveFallback
}

// SKUs returns the catalog SKUs in first-seen order.
func (c *Catalog) SKUs() []SKU {
	out := make([]SKU, len(c.skus))
	copy(out, c.skus)
	return out
}

// Evaluation is the outcome of a quota sufficiency evaluation.
type Evaluation struct {
	Family    string `json:"family"`
	Total     int    `json:"total"`
	Used      int    `json:"used"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
	// Sufficient is true when the family has headroom for the required vCPUs.
	Sufficient bool `json:"sufficient"`
	// Recommendations lists alternative SKUs that fit within the
	// available headroom. Empty when the quota is sufficient.
	Recommendations []SKU `json:"recommendations,omitempty"`
}

// Evaluate checks whether a quota family can absorb the required vCPUs.
// Available headroom is total minus used; the family is sufficient when
// headroom covers the requirement. When it does not, Evaluate proposes
// alternative SKUs that would fit.
func Evaluate(family string, total, used, required int, catalog *Catalog) Evaluation {
	available := total - used
	ev := Evaluation{
		Family:     family,
		Total:      total,
		Used:       used,
		Available:  available,
		Required:   required,
		Sufficient: available >= required,
	}
	if !ev.Sufficient && catalog != nil {
		ev.Recommendations = Recommend(catalog, family, available)
	}
	return ev
}

// Recommend proposes up to five SKUs that fit within the available vCPU
// headroom. Same-family SKUs come first, then other families backfill in
// first-seen catalog order. Entries are de-duplicated by name.
func Recommend(catalog *Catalog, family string, available int) []SKU {
	if available <= 0 {
		return nil
	}

	var recs []SKU
	seen := make(map[string]bool)

	add := func(s SKU) bool {
		key := strings.ToLower(s.Name)
		if seen[key] {
			return len(recs) < maxRecommendations
		}
		seen[key] = true
		recs = append(recs, s)
		return len(recs) < maxRecommendations
	}

	// Same family first
	for _, s := range catalog.skus {
		if !strings.EqualFold(s.Family, family) {
			continue
		}
		if s.VCPUs <= 0 || s.VCPUs > available {
			continue
		}
		if !add(s) {
			return recs
		}
	}

	// Backfill from other families in first-seen order
	for _, s := range catalog.skus {
		if strings.EqualFold(s.Family, family) {
			continue
		}
		if s.VCPUs <= 0 || s.VCPUs > available {
			continue
		}
		if !add(s) {
			return recs
		}
	}

	return recs
}
