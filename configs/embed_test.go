package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

func TestConfigTemplate_IsValidYAML(t *testing.T) {
	// Given: the embedded config template

	// When: parsing it
	var parsed map[string]any
	err := yaml.Unmarshal([]byte(ConfigTemplate), &parsed)

	// Then: it parses and names the documented sections
	require.NoError(t, err)
	assert.Contains(t, parsed, "global")
	assert.Contains(t, parsed, "stages")
	assert.Contains(t, parsed, "sessions")
}

func TestPlanTemplate_LoadsAsAValidPlan(t *testing.T) {
	// Given: the embedded plan template

	// When: parsing it through the real plan loader
	p, err := plan.Parse([]byte(PlanTemplate), ".yaml")

	// Then: it validates with the documented targets
	require.NoError(t, err)
	assert.Len(t, p.Projects, 1)
	assert.Len(t, p.Machines, 2)
	assert.NotEmpty(t, p.Fingerprint)

	// Then: the catalog sections are populated so every stage has data
	assert.NotEmpty(t, p.AllowedRegions)
	assert.NotEmpty(t, p.Networks)
	assert.NotEmpty(t, p.SKUs)
	assert.NotEmpty(t, p.Quotas)
}
