package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
)

// Load reads and validates a plan file. YAML is the default format;
// files ending in .json are parsed as JSON. The raw file bytes are
// fingerprinted so checkpoint sessions can detect input changes.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, azerrors.New(azerrors.ErrCodePlanNotFound,
				fmt.Sprintf("plan file not found: %s", path), err).
				WithSuggestion("run 'azmig init' to create a starter plan")
		}
		return nil, azerrors.New(azerrors.ErrCodePlanUnreadable,
			fmt.Sprintf("cannot read plan file: %s", path), err)
	}

	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	p.Source = path
	return p, nil
}

// Parse decodes plan bytes. ext selects the format (".json" for JSON,
// anything else for YAML) and the fingerprint covers the raw bytes.
func Parse(data []byte, ext string) (*Plan, error) {
	var p Plan
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, azerrors.New(azerrors.ErrCodePlanInvalid,
				fmt.Sprintf("invalid JSON plan: %v", err), err)
		}
	default:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, azerrors.New(azerrors.ErrCodePlanInvalid,
				fmt.Sprintf("invalid YAML plan: %v", err), err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.Fingerprint = fingerprint(data)
	return &p, nil
}

// Validate checks structural plan invariants: every target is named and
// names are unique across projects and machines.
func (p *Plan) Validate() error {
	if len(p.Projects) == 0 && len(p.Machines) == 0 {
		return azerrors.New(azerrors.ErrCodeNoTargets,
			"plan declares no projects and no machines", nil).
			WithSuggestion("add a projects: or machines: section to the plan")
	}

	seen := make(map[string]string, p.TargetCount())
	note := func(name, kind string) error {
		if name == "" {
			return azerrors.New(azerrors.ErrCodePlanInvalid,
				fmt.Sprintf("%s with empty name", kind), nil)
		}
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return azerrors.New(azerrors.ErrCodeDuplicateTarget,
				fmt.Sprintf("duplicate target name %q (%s and %s)", name, prev, kind), nil).
				WithDetail("target", name)
		}
		seen[key] = kind
		return nil
	}

	for i := range p.Projects {
		if err := note(p.Projects[i].Name, "project"); err != nil {
			return err
		}
	}
	for i := range p.Machines {
		if err := note(p.Machines[i].Name, "machine"); err != nil {
			return err
		}
		if p.Machines[i].Region == "" {
			return azerrors.New(azerrors.ErrCodePlanInvalid,
				fmt.Sprintf("machine %q has no target region", p.Machines[i].Name), nil).
				WithDetail("target", p.Machines[i].Name)
		}
	}

	return nil
}

// fingerprint hashes raw plan content. Any byte-level change to the
// input file produces a different fingerprint.
func fingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
