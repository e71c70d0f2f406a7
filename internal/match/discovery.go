package match

import (
	"strings"
)

// envPrefixes are the two-character environment prefixes conventionally
// prepended to machine names (dev, prod, QA, test). Discovery
// correlation strips them when exact matching fails.
var envPrefixes = []string{"dv", "pr", "qa", "ts"}

// DiscoveryMatch is the result of correlating a machine against the
// discovery inventory.
type DiscoveryMatch struct {
	// Name is the inventory entry that matched, empty when not found.
	Name string
	// Found reports whether any correlation succeeded.
	Found bool
	// Fuzzy is true when the match required stripping environment
	// prefixes; such matches are tentative and should be surfaced.
	Fuzzy bool
}

// CorrelateDiscovery finds the discovered machine corresponding to a
// plan machine name. Exact case-insensitive comparison is tried against
// the whole inventory first; only then does prefix-stripped comparison
// run, and its matches are flagged fuzzy.
func CorrelateDiscovery(machine string, inventory []string) DiscoveryMatch {
	for _, inv := range inventory {
		if strings.EqualFold(machine, inv) {
			return DiscoveryMatch{Name: inv, Found: true}
		}
	}

	stripped := stripEnvPrefix(machine)
	for _, inv := range inventory {
		if strings.EqualFold(stripped, stripEnvPrefix(inv)) {
			return DiscoveryMatch{Name: inv, Found: true, Fuzzy: true}
		}
	}

	return DiscoveryMatch{}
}

// stripEnvPrefix removes a known environment prefix from a name.
// Names at or below prefix length are left untouched.
func stripEnvPrefix(name string) string {
	lower := strings.ToLower(name)
	for _, prefix := range envPrefixes {
		if len(name) > len(prefix) && strings.HasPrefix(lower, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}
