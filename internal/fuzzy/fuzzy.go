// Package fuzzy ranks candidate names against a partially typed word.
package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Tier orders matches: lower is better.
type Tier int

const (
	Exact Tier = iota
	Prefix
	Substring
	Approximate
	Subsequence
	NoMatch
)

// Match is the outcome of scoring one candidate.
type Match struct {
	Tier Tier
	// Cost breaks ties inside a tier: edit errors for Approximate, gaps for
	// Subsequence and the untyped remainder otherwise.
	Cost int
}

func (m Match) Less(o Match) bool {
	if m.Tier != o.Tier {
		return m.Tier < o.Tier
	}
	return m.Cost < o.Cost
}

// Score matches pattern against text. Case is ignored except that an exact
// case-sensitive prefix ranks above a case-insensitive one.
func Score(pattern, text string) Match {
	if pattern == "" {
		return Match{Tier: Prefix, Cost: 0}
	}
	if text == pattern {
		return Match{Tier: Exact}
	}
	rest := utf8.RuneCountInString(text) - utf8.RuneCountInString(pattern)
	if strings.HasPrefix(text, pattern) {
		return Match{Tier: Prefix, Cost: rest}
	}
	lp, lt := strings.ToLower(pattern), strings.ToLower(text)
	if lt == lp {
		return Match{Tier: Exact, Cost: 1}
	}
	if strings.HasPrefix(lt, lp) {
		return Match{Tier: Prefix, Cost: rest + 1}
	}
	if i := strings.Index(lt, lp); i >= 0 {
		return Match{Tier: Substring, Cost: i}
	}
	if errs, ok := Approx(lp, lt, maxErrors(lp)); ok {
		return Match{Tier: Approximate, Cost: errs}
	}
	if gaps, ok := subsequence(lp, lt); ok {
		return Match{Tier: Subsequence, Cost: gaps}
	}
	return Match{Tier: NoMatch}
}

func maxErrors(pattern string) int {
	k := utf8.RuneCountInString(pattern) / 4
	if k > 2 {
		k = 2
	}
	return k
}

// Approx reports the fewest edit errors, up to k, with which pattern occurs
// somewhere in text. Patterns longer than 63 runes are truncated.
func Approx(pattern, text string, k int) (int, bool) {
	runes := []rune(pattern)
	if len(runes) == 0 {
		return 0, true
	}
	if len(runes) > 63 {
		runes = runes[:63]
	}
	masks := make(map[rune]uint64, len(runes))
	for i, r := range runes {
		masks[r] |= 1 << uint(i)
	}
	highest := uint64(1) << uint(len(runes)-1)

	// r[d] has bit i set when the first i+1 pattern runes match a suffix of
	// the text read so far with at most d errors.
	r := make([]uint64, k+1)
	for d := range r {
		r[d] = (uint64(1) << uint(d)) - 1
	}
	best := -1
	for _, c := range text {
		mask := masks[c]
		prev := r[0]
		r[0] = ((r[0] << 1) | 1) & mask
		for d := 1; d <= k; d++ {
			old := r[d]
			r[d] = (((old << 1) | 1) & mask) | // match
				((prev << 1) | 1) | // substitution
				prev | // extra text rune
				((r[d-1] << 1) | 1) // skipped pattern rune
			prev = old
		}
		for d := 0; d <= k; d++ {
			if r[d]&highest != 0 {
				if best < 0 || d < best {
					best = d
				}
				break
			}
		}
		if best == 0 {
			return 0, true
		}
	}
	return best, best >= 0
}

// subsequence reports whether all runes of pattern appear in text in order
// and how many text runes lie between the first and last matched rune.
func subsequence(pattern, text string) (int, bool) {
	pr := []rune(pattern)
	i, first, last, pos := 0, -1, -1, 0
	for _, c := range text {
		if i < len(pr) && c == pr[i] {
			if first < 0 {
				first = pos
			}
			last = pos
			i++
		}
		pos++
	}
	if i < len(pr) {
		return 0, false
	}
	return last - first + 1 - len(pr), true
}

// Rank returns the indexes of names that match pattern, best first. Equal
// matches keep their input order.
func Rank(pattern string, names []string) []int {
	type scored struct {
		index int
		match Match
	}
	var hits []scored
	for i, name := range names {
		m := Score(pattern, name)
		if m.Tier == NoMatch {
			continue
		}
		hits = append(hits, scored{i, m})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].match.Less(hits[b].match)
	})
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.index
	}
	return out
}

// Value flattens a match into one number, lower is better, for use where a
// single sort key is needed.
func (m Match) Value() int {
	return int(m.Tier)*1000 + m.Cost
}
