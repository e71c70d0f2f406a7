package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayoit/azmig-tool-assistant-sub000/pkg/version"
)

func TestVersionCmd_Default(t *testing.T) {
	// When: running version with no flags
	output, err := runRoot(t, "version")

	// Then: the full build string is printed
	require.NoError(t, err)
	assert.Contains(t, output, "azmig")
	assert.Contains(t, output, version.Version)
	assert.Contains(t, output, "commit")
}

func TestVersionCmd_Short(t *testing.T) {
	// When: running version --short
	output, err := runRoot(t, "version", "--short")

	// Then: only the bare version string comes back
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", output)
}

func TestVersionCmd_JSON(t *testing.T) {
	// When: running version --json
	output, err := runRoot(t, "version", "--json")

	// Then: the output decodes into structured build info
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}
