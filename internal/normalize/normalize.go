// Package normalize turns raw ingredient and product strings into canonical
// names usable as matching keys. Normalization is deterministic and
// idempotent so that storage-time and query-time keys always agree.
package normalize

import "strings"

// unitTokens are measurement words that show up embedded in free-text names
// ("2 cups flour", "milk 1 gallon") and carry no identity information.
var unitTokens = map[string]bool{
	"cup": true, "cups": true,
	"tablespoon": true, "tablespoons": true, "tbsp": true,
	"teaspoon": true, "teaspoons": true, "tsp": true,
	"ounce": true, "ounces": true, "oz": true,
	"pound": true, "pounds": true, "lb": true, "lbs": true,
	"gram": true, "grams": true, "g": true, "kg": true,
	"liter": true, "liters": true, "l": true, "ml": true,
	"gallon": true, "gallons": true, "gal": true, "gals": true,
	"quart": true, "quarts": true, "qt": true, "qts": true,
	"pint": true, "pints": true, "pt": true, "pts": true,
	"mls": true,
	"pinch": true, "dash": true,
	"can": true, "cans": true,
	"package": true, "packages": true, "pkg": true,
	"count": true, "ct": true,
}

// irregularSingulars folds plurals that the trailing-s heuristic gets wrong.
var irregularSingulars = map[string]string{
	"tomatoes":   "tomato",
	"potatoes":   "potato",
	"leaves":     "leaf",
	"loaves":     "loaf",
	"berries":    "berry",
	"cherries":   "cherry",
	"anchovies":  "anchovy",
	"radishes":   "radish",
	"peaches":    "peach",
	"zucchinis":  "zucchini",
	"knives":     "knife",
	"cloves":     "clove",
	"olives":     "olive",
	"chives":     "chive",
	"molasses":   "molasses",
	"asparagus":  "asparagus",
	"couscous":   "couscous",
	"hummus":     "hummus",
	"watercress": "watercress",
	"swiss":      "swiss",
	"citrus":     "citrus",
}

// Name canonicalizes a raw ingredient or product string. Empty and
// whitespace-only input canonicalizes to the empty string, which the matcher
// treats as unmatchable.
func Name(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	s = stripParentheticals(s)

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ",.;:!")
		if w == "" || isQuantity(w) || unitTokens[w] {
			continue
		}
		// Plural forms like "pinches" fold into unit tokens, so the filter
		// must run again after folding or the output would still contain a
		// strippable word.
		w = singular(w)
		if unitTokens[w] {
			continue
		}
		kept = append(kept, w)
	}

	return strings.Join(kept, " ")
}

// stripParentheticals removes "(diced)"-style qualifiers, including nested
// and unbalanced parens.
func stripParentheticals(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// isQuantity reports whether a token is a number or a fraction like "1/2".
func isQuantity(w string) bool {
	digits := 0
	for _, r := range w {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '/' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return digits > 0
}

// singular folds simple plurals. Words shorter than four characters are left
// alone so "gas" and "peas" do not collapse into nonsense.
func singular(w string) string {
	if folded, ok := irregularSingulars[w]; ok {
		return folded
	}
	if len(w) < 4 {
		return w
	}
	if strings.HasSuffix(w, "ies") {
		return w[:len(w)-3] + "y"
	}
	if strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "xes") {
		return w[:len(w)-2]
	}
	if strings.HasSuffix(w, "ss") {
		return w
	}
	if strings.HasSuffix(w, "s") {
		return w[:len(w)-1]
	}
	return w
}
