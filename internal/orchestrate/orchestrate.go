// Package orchestrate implements multi-query orchestration: given the
// per-query result buckets produced by running N compiled patterns over a
// set of files, it retains only the results that are mutually joinable
// with at least one result of every other query, per spec.md §4.7.
// Grounded on original_source/src/main.rs's multi-pattern reporting path,
// generalized here into pairwise fixed-point retain passes since the
// retrieved revision inlines this logic into main rather than a separate
// module.
package orchestrate

import "github.com/oxhq/cq/internal/result"

// Match pairs a query result with the source text it was matched against
// and the file it came from, since Chainable needs both sides' source to
// compare metavariable bindings.
type Match struct {
	QueryIndex int
	Result     result.QueryResult
	Source     string
	Location   string
}

// Join filters buckets (one slice of Match per query index) down to the
// subset that is mutually chainable: every retained match in bucket i must
// be Chainable with at least one retained match in every other bucket j.
// The relation is monotone under removal (removing a candidate can only
// shrink who it's chainable with), so repeating pairwise retain passes
// until nothing changes reaches the unique fixed point.
func Join(buckets [][]Match) [][]Match {
	if len(buckets) < 2 {
		return buckets
	}

	out := make([][]Match, len(buckets))
	for i, b := range buckets {
		out[i] = append([]Match(nil), b...)
	}

	for {
		changed := false
		for i := range out {
			for j := range out {
				if i == j {
					continue
				}
				kept := retain(out[i], out[j])
				if len(kept) != len(out[i]) {
					changed = true
				}
				out[i] = kept
			}
		}
		if !changed {
			break
		}
	}

	return out
}

// retain keeps only the entries of a that are Chainable with at least one
// entry of b.
func retain(a, b []Match) []Match {
	kept := make([]Match, 0, len(a))
	for _, m := range a {
		if chainableWithAny(m, b) {
			kept = append(kept, m)
		}
	}
	return kept
}

func chainableWithAny(m Match, candidates []Match) bool {
	for _, c := range candidates {
		if m.Result.Chainable(m.Source, c.Result, c.Source) && c.Result.Chainable(c.Source, m.Result, m.Source) {
			return true
		}
	}
	return false
}

// Combine enumerates the joinable tuples across buckets after Join has
// pruned them: one representative per query index, combined by taking the
// cartesian product and discarding tuples that aren't pairwise chainable.
// Used by the CLI to print one report line per chain instead of per query.
func Combine(buckets [][]Match) [][]Match {
	if len(buckets) == 0 {
		return nil
	}
	tuples := [][]Match{{}}
	for _, bucket := range buckets {
		var next [][]Match
		for _, prefix := range tuples {
			for _, m := range bucket {
				if chainableWithPrefix(m, prefix) {
					extended := append(append([]Match(nil), prefix...), m)
					next = append(next, extended)
				}
			}
		}
		tuples = next
		if len(tuples) == 0 {
			break
		}
	}
	return tuples
}

func chainableWithPrefix(m Match, prefix []Match) bool {
	for _, p := range prefix {
		if !m.Result.Chainable(m.Source, p.Result, p.Source) || !p.Result.Chainable(p.Source, m.Result, m.Source) {
			return false
		}
	}
	return true
}
