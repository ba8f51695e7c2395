// Package match implements the ingredient-to-inventory matcher and the
// recipe availability aggregator. Both are pure: rules and inventory are
// passed in, nothing is cached or mutated.
package match

// Config centralizes the confidence defaults that would otherwise end up as
// magic numbers scattered across call sites.
type Config struct {
	// EquivalencyConfidence is used when an equivalency rule has no
	// threshold of its own.
	EquivalencyConfidence float64
	// CategoryConfidence is assigned to same-category matches.
	CategoryConfidence float64
	// ContainmentConfidence is assigned to substring fallback matches.
	ContainmentConfidence float64
	// MatchThreshold is the minimum confidence a candidate needs to count
	// as a match.
	MatchThreshold float64
	// EnableContainment toggles the substring fallback path.
	EnableContainment bool
}

// DefaultConfig returns the engine's standard confidence settings.
func DefaultConfig() Config {
	return Config{
		EquivalencyConfidence: 0.85,
		CategoryConfidence:    0.6,
		ContainmentConfidence: 0.4,
		MatchThreshold:        0.4,
		EnableContainment:     true,
	}
}
