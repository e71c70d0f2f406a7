package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
)

const samplePlanYAML = `
version: 1
projects:
  - name: contoso-migrate
    subscription: 11111111-1111-1111-1111-111111111111
    region: eastus
    appliance: contoso-appliance
    cache_storage_id: /subscriptions/11111111-1111-1111-1111-111111111111/resourceGroups/rg-migrate/providers/Microsoft.Storage/storageAccounts/contosocache
machines:
  - name: dvweb01
    region: eastus
    subscription: 11111111-1111-1111-1111-111111111111
    resource_group: rg-app
    sku: Standard_D4s_v5
    disk_type: Premium_LRS
    required_vcpus: 4
skus:
  - name: Standard_D4s_v5
    family: standardDSv5Family
    vcpus: 4
quotas:
  - family: standardDSv5Family
    region: eastus
    total: 100
    used: 20
inventory:
  - WEB01
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesYAMLPlan(t *testing.T) {
	// Given: a valid plan file
	path := writePlan(t, samplePlanYAML)

	// When: loading it
	p, err := Load(path)

	// Then: all sections are populated
	require.NoError(t, err)
	require.Len(t, p.Projects, 1)
	require.Len(t, p.Machines, 1)
	assert.Equal(t, "contoso-migrate", p.Projects[0].Name)
	assert.Equal(t, "dvweb01", p.Machines[0].Name)
	assert.Equal(t, 4, p.Machines[0].RequiredVCPUs)
	assert.Equal(t, path, p.Source)
	assert.Len(t, p.Fingerprint, 64)
}

func TestLoad_ParsesJSONPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	content := `{"machines":[{"name":"vm1","region":"westeurope"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Load(path)

	require.NoError(t, err)
	require.Len(t, p.Machines, 1)
	assert.Equal(t, "westeurope", p.Machines[0].Region)
}

func TestLoad_MissingFileReturnsPlanNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, azerrors.New(azerrors.ErrCodePlanNotFound, "", nil)))
}

func TestLoad_InvalidYAMLReturnsPlanInvalid(t *testing.T) {
	path := writePlan(t, "machines: [not closed")

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, azerrors.ErrCodePlanInvalid, azerrors.GetCode(err))
}

func TestValidate_RejectsDuplicateNamesAcrossKinds(t *testing.T) {
	// Given: a machine that reuses a project name
	path := writePlan(t, `
projects:
  - name: shared
    subscription: s
    region: eastus
machines:
  - name: SHARED
    region: eastus
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, azerrors.ErrCodeDuplicateTarget, azerrors.GetCode(err))
}

func TestValidate_RejectsEmptyPlan(t *testing.T) {
	path := writePlan(t, "version: 1\n")

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, azerrors.ErrCodeNoTargets, azerrors.GetCode(err))
}

func TestValidate_RejectsMachineWithoutRegion(t *testing.T) {
	path := writePlan(t, `
machines:
  - name: vm1
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, azerrors.ErrCodePlanInvalid, azerrors.GetCode(err))
}

func TestFingerprint_ChangesWithAnyByte(t *testing.T) {
	// Given: two plans differing by one byte
	p1, err := Parse([]byte("machines:\n  - name: vm1\n    region: eastus\n"), ".yaml")
	require.NoError(t, err)
	p2, err := Parse([]byte("machines:\n  - name: vm1\n    region: eastus \n"), ".yaml")
	require.NoError(t, err)

	// Then: fingerprints differ even though the parsed content is equivalent
	assert.NotEqual(t, p1.Fingerprint, p2.Fingerprint)
}

func TestProjectByName_CaseInsensitive(t *testing.T) {
	p := &Plan{Projects: []Project{{Name: "Contoso-Migrate"}}}

	require.NotNil(t, p.ProjectByName("contoso-migrate"))
	assert.Nil(t, p.ProjectByName("other"))
}

func TestTargetInterfaces(t *testing.T) {
	var tgt Target = &Project{Name: "p1"}
	assert.Equal(t, "p1", tgt.TargetName())
	assert.Equal(t, KindProject, tgt.TargetKind())

	tgt = &Machine{Name: "m1"}
	assert.Equal(t, "m1", tgt.TargetName())
	assert.Equal(t, KindMachine, tgt.TargetKind())
}
