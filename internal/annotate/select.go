package annotate

import "iter"

// SelectAllele returns the candidate whose consequence is most severe. The
// best so far is only replaced on a strictly higher severity, so the first
// of several equally severe candidates wins. Candidates without a feature
// kind rank below every kind. The bool is false for an empty sequence.
func SelectAllele(candidates iter.Seq[Candidate]) (Candidate, bool) {
	var best Candidate
	found := false
	for c := range candidates {
		if !found || rank(c.Consequence.Feature) > rank(best.Consequence.Feature) {
			best, found = c, true
		}
	}
	return best, found
}
