// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package lis computes longest strictly increasing subsequences.
//
// Two engines are provided. LengthQuadratic is the straightforward
// O(n^2) dynamic programming method; it is the reference that the
// O(n log n) patience sorting engine (Length, Indices, Reconstruct)
// is tested against.
//
// When several increasing subsequences share the maximum length,
// Indices and Reconstruct return one of them. Which one depends on
// the order in which smaller tails replaced larger ones while
// scanning the input, so callers must not rely on getting the
// lexicographically smallest (or any other particular) answer.
package lis

import "cmp"

// LengthQuadratic returns the length of the longest strictly
// increasing subsequence of seq, in O(n^2) time.
func LengthQuadratic[T cmp.Ordered](seq []T) int {
	if len(seq) == 0 {
		return 0
	}
	dp := make([]int, len(seq)) // dp[i] == length of longest increasing subsequence ending at seq[i]
	best := 1
	for i := range seq {
		dp[i] = 1
		for j := 0; j < i; j++ {
			if seq[j] < seq[i] && dp[j]+1 > dp[i] {
				dp[i] = dp[j] + 1
			}
		}
		if dp[i] > best {
			best = dp[i]
		}
	}
	return best
}

// Length returns the length of the longest strictly increasing
// subsequence of seq, in O(n log n) time.
func Length[T cmp.Ordered](seq []T) int {
	return LengthFunc(len(seq), func(i, j int) bool { return seq[i] < seq[j] })
}

// Indices returns the (ascending) positions in seq of one longest
// strictly increasing subsequence.
func Indices[T cmp.Ordered](seq []T) []int {
	return IndicesFunc(len(seq), func(i, j int) bool { return seq[i] < seq[j] })
}

// Reconstruct returns one longest strictly increasing subsequence of
// seq. The returned slice does not share memory with seq.
func Reconstruct[T cmp.Ordered](seq []T) []T {
	idx := Indices(seq)
	if idx == nil {
		return nil
	}
	ret := make([]T, len(idx))
	for k, i := range idx {
		ret[k] = seq[i]
	}
	return ret
}

// LengthFunc is like Length, but the n elements are compared with
// less(i, j), which must report whether element i is strictly less
// than element j.
func LengthFunc(n int, less func(i, j int) bool) int {
	p := patience{less: less}
	for i := 0; i < n; i++ {
		p.push(i)
	}
	return len(p.tails)
}

// IndicesFunc is like Indices, but the n elements are compared with
// less(i, j) as in LengthFunc.
func IndicesFunc(n int, less func(i, j int) bool) []int {
	if n == 0 {
		return nil
	}
	p := patience{less: less, pred: make([]int, n)}
	for i := 0; i < n; i++ {
		p.push(i)
	}
	return p.indices()
}

// patience tracks, for each achievable subsequence length, the input
// element with the smallest tail value.
type patience struct {
	less  func(i, j int) bool
	tails []int // tails[L-1] == index of smallest tail of any increasing subsequence of length L found so far
	pred  []int // pred[i] == index of predecessor of element i in the subsequence ending at i, or -1 (nil in length-only mode)
}

// push adds element i (which must be the next element in input
// order) and returns the tail position it now occupies.
func (p *patience) push(i int) int {
	// Lower bound: leftmost tail that is not less than element
	// i. Searching for the leftmost tail greater than i instead
	// would let equal elements extend each other.
	lo, hi := 0, len(p.tails)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.less(p.tails[mid], i) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if p.pred != nil {
		if lo > 0 {
			p.pred[i] = p.tails[lo-1]
		} else {
			p.pred[i] = -1
		}
	}
	if lo == len(p.tails) {
		p.tails = append(p.tails, i)
	} else {
		p.tails[lo] = i
	}
	return lo
}

// sorted reports whether the tail values are strictly increasing.
func (p *patience) sorted() bool {
	for k := 1; k < len(p.tails); k++ {
		if !p.less(p.tails[k-1], p.tails[k]) {
			return false
		}
	}
	return true
}

func (p *patience) indices() []int {
	if len(p.tails) == 0 {
		return nil
	}
	ret := make([]int, len(p.tails))
	for k, i := p.tails[len(p.tails)-1], len(ret)-1; i >= 0; k, i = p.pred[k], i-1 {
		ret[i] = k
	}
	return ret
}
