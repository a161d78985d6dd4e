package exclusivity

// pairKey is an order-independent key for a pair of care codes
type pairKey struct {
	lo, hi string
}

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// RuleSet is a read-only index over all declared exclusivity groups,
// answering pair conflict queries in O(1). Safe for concurrent readers.
type RuleSet struct {
	pairs map[pairKey]struct{}
}

// NewRuleSet indexes every pair of codes that appear together in a group
func NewRuleSet(groups []*Group) *RuleSet {
	rs := &RuleSet{pairs: make(map[pairKey]struct{})}
	for _, g := range groups {
		for i := 0; i < len(g.Codes); i++ {
			for j := i + 1; j < len(g.Codes); j++ {
				if g.Codes[i] == g.Codes[j] {
					continue
				}
				rs.pairs[newPairKey(g.Codes[i], g.Codes[j])] = struct{}{}
			}
		}
	}
	return rs
}

// Conflicts reports whether two codes are declared mutually exclusive.
// Symmetric: Conflicts(a, b) == Conflicts(b, a). A code never conflicts
// with itself.
func (rs *RuleSet) Conflicts(a, b string) bool {
	if a == b {
		return false
	}
	_, ok := rs.pairs[newPairKey(a, b)]
	return ok
}

// FindConflicts returns every already-billed code that conflicts with the
// candidate, in input order, without duplicates.
func (rs *RuleSet) FindConflicts(candidate string, billedSameDay []string) []string {
	var conflicts []string
	seen := make(map[string]struct{})
	for _, code := range billedSameDay {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if rs.Conflicts(candidate, code) {
			conflicts = append(conflicts, code)
		}
	}
	return conflicts
}
