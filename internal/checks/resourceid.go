package checks

import (
	"fmt"
	"strings"
)

// ResourceID is a parsed Azure resource identifier of the form
// /subscriptions/{sub}/resourceGroups/{rg}/providers/{ns}/{type}/{name}.
type ResourceID struct {
	Subscription  string
	ResourceGroup string
	Provider      string
	ResourceType  string
	Name          string
}

// ParseResourceID parses a top-level Azure resource ID. Child resources
// (nested type segments) are not needed here and are rejected.
func ParseResourceID(id string) (ResourceID, error) {
	trimmed := strings.Trim(id, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 8 {
		return ResourceID{}, fmt.Errorf("expected 8 segments, got %d", len(parts))
	}
	if !strings.EqualFold(parts[0], "subscriptions") ||
		!strings.EqualFold(parts[2], "resourceGroups") ||
		!strings.EqualFold(parts[4], "providers") {
		return ResourceID{}, fmt.Errorf("unexpected segment layout")
	}

	rid := ResourceID{
		Subscription:  parts[1],
		ResourceGroup: parts[3],
		Provider:      parts[5],
		ResourceType:  parts[6],
		Name:          parts[7],
	}
	for _, v := range []string{rid.Subscription, rid.ResourceGroup, rid.Provider, rid.ResourceType, rid.Name} {
		if v == "" {
			return ResourceID{}, fmt.Errorf("empty segment in resource ID")
		}
	}
	return rid, nil
}
