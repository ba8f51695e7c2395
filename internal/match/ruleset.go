package match

import (
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/normalize"
)

// edge records one directed equivalency or exclusion link between two
// canonical names, remembering which rule authored it.
type edge struct {
	confidence float64
	ruleID     int64
}

// RuleSet is an immutable snapshot of the approved, active rules, indexed
// for lookup by canonical name. Equivalency and exclusion links are stored
// in both directions, since rules may be authored from either ingredient.
// A RuleSet is safe for concurrent use once built.
type RuleSet struct {
	equivalents map[string]map[string]edge
	exclusions  map[string]map[string]int64
	categories  map[string]map[string]int64
	strictCats  map[string]bool
}

// NewRuleSet indexes the matchable subset of rules. Rules that are not
// approved and active are ignored; stored keys are normalized with the same
// normalizer used at query time.
func NewRuleSet(rules []model.IngredientRule) *RuleSet {
	rs := &RuleSet{
		equivalents: make(map[string]map[string]edge),
		exclusions:  make(map[string]map[string]int64),
		categories:  make(map[string]map[string]int64),
		strictCats:  make(map[string]bool),
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.Matchable() {
			continue
		}
		key := normalize.Name(rule.IngredientName)
		if key == "" {
			continue
		}

		switch rule.RuleType {
		case model.RuleTypeEquivalency:
			conf := rule.ConfidenceThreshold
			for _, eq := range rule.Equivalents {
				other := normalize.Name(eq)
				if other == "" || other == key {
					continue
				}
				rs.addEquivalent(key, other, edge{confidence: conf, ruleID: rule.ID})
				rs.addEquivalent(other, key, edge{confidence: conf, ruleID: rule.ID})
			}
		case model.RuleTypeExclusion:
			for _, ex := range rule.ExcludedMatches {
				other := normalize.Name(ex)
				if other == "" {
					continue
				}
				rs.addExclusion(key, other, rule.ID)
				rs.addExclusion(other, key, rule.ID)
			}
		case model.RuleTypeCategory:
			if rule.Category == nil || rule.Category.CategoryID == "" {
				continue
			}
			if rs.categories[key] == nil {
				rs.categories[key] = make(map[string]int64)
			}
			rs.categories[key][rule.Category.CategoryID] = rule.ID
			if rule.Category.MatchMode == model.CategoryMatchStrict {
				rs.strictCats[rule.Category.CategoryID] = true
			}
		}
	}

	return rs
}

func (rs *RuleSet) addEquivalent(from, to string, e edge) {
	if rs.equivalents[from] == nil {
		rs.equivalents[from] = make(map[string]edge)
	}
	// Keep the higher-confidence rule when two rules link the same pair.
	if existing, ok := rs.equivalents[from][to]; !ok || e.confidence > existing.confidence {
		rs.equivalents[from][to] = e
	}
}

func (rs *RuleSet) addExclusion(from, to string, ruleID int64) {
	if rs.exclusions[from] == nil {
		rs.exclusions[from] = make(map[string]int64)
	}
	rs.exclusions[from][to] = ruleID
}

// Excluded reports whether the pair is disqualified by an exclusion rule.
// Exclusions are symmetric; both directions are indexed, so one lookup
// suffices.
func (rs *RuleSet) Excluded(a, b string) bool {
	_, ok := rs.exclusions[a][b]
	return ok
}

// Equivalent returns the equivalency edge linking a to b, if any.
func (rs *RuleSet) Equivalent(a, b string) (edge, bool) {
	e, ok := rs.equivalents[a][b]
	return e, ok
}

// SharedCategory returns a rule ID and true when a and b belong to a common
// category. strict is true when that category requires a containment
// relation on top of membership. When the names share several categories
// the lowest rule ID wins, so repeated runs always report the same rule.
func (rs *RuleSet) SharedCategory(a, b string) (ruleID int64, strict, ok bool) {
	for cat, id := range rs.categories[a] {
		if _, shared := rs.categories[b][cat]; !shared {
			continue
		}
		if !ok || id < ruleID {
			ruleID = id
			strict = rs.strictCats[cat]
			ok = true
		}
	}
	return ruleID, strict, ok
}

// Lookup is the per-name view of the rule set: the union of all active
// equivalency rules' equivalents, all exclusion rules' exclusions, and any
// category memberships for the canonical name.
type Lookup struct {
	Equivalents []string
	Exclusions  []string
	Categories  []string
}

// For returns the aggregate rule view for one canonical name.
func (rs *RuleSet) For(canonical string) Lookup {
	var l Lookup
	for name := range rs.equivalents[canonical] {
		l.Equivalents = append(l.Equivalents, name)
	}
	for name := range rs.exclusions[canonical] {
		l.Exclusions = append(l.Exclusions, name)
	}
	for cat := range rs.categories[canonical] {
		l.Categories = append(l.Categories, cat)
	}
	return l
}
