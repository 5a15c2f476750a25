// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Generator produces random integer sequences. Sequence lengths are
// uniform over [MinLen, MaxLen]; a negative MinLen is treated as 0. Values are uniform over [0,
// Distinct), so a small Distinct yields many repeated values; if
// Distinct <= 0, values are uniform over the int32 range.
//
// A Generator with the same Src seed produces the same sequences.
type Generator struct {
	MinLen   int
	MaxLen   int
	Distinct int64
	Src      rand.Source

	count  int
	length *distuv.Uniform
	value  *distuv.Uniform
}

func (g *Generator) setup() {
	if g.length != nil {
		return
	}
	if g.Src == nil {
		g.Src = rand.NewSource(rand.Uint64())
	}
	if g.MinLen < 0 {
		g.MinLen = 0
	}
	if g.MaxLen < g.MinLen {
		g.MaxLen = g.MinLen
	}
	g.length = &distuv.Uniform{Min: float64(g.MinLen), Max: float64(g.MaxLen + 1), Src: g.Src}
	if g.Distinct > 0 {
		g.value = &distuv.Uniform{Min: 0, Max: float64(g.Distinct), Src: g.Src}
	} else {
		g.value = &distuv.Uniform{Min: math.MinInt32, Max: math.MaxInt32 + 1, Src: g.Src}
	}
}

// Next returns a new random sequence named "randN".
func (g *Generator) Next() Sequence {
	g.setup()
	g.count++
	n := draw(g.length)
	seq := Sequence{
		Name:   fmt.Sprintf("rand%d", g.count),
		Values: make([]int64, n),
	}
	for i := range seq.Values {
		seq.Values[i] = draw(g.value)
	}
	return seq
}

// Generate returns n new random sequences (none if n <= 0).
func (g *Generator) Generate(n int) []Sequence {
	if n <= 0 {
		return nil
	}
	seqs := make([]Sequence, n)
	for i := range seqs {
		seqs[i] = g.Next()
	}
	return seqs
}

// draw returns an integer in [u.Min, u.Max).
func draw(u *distuv.Uniform) int64 {
	v := int64(math.Floor(u.Rand()))
	if hi := int64(u.Max) - 1; v > hi {
		// rounding can land exactly on Max
		v = hi
	}
	return v
}
