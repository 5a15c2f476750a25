// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type randseqSuite struct{}

var _ = check.Suite(&randseqSuite{})

func (s *randseqSuite) TestSeed(c *check.C) {
	gen1 := Generator{MinLen: 5, MaxLen: 20, Distinct: 1000, Src: rand.NewSource(99)}
	gen2 := Generator{MinLen: 5, MaxLen: 20, Distinct: 1000, Src: rand.NewSource(99)}
	c.Check(gen1.Generate(20), check.DeepEquals, gen2.Generate(20))
	gen3 := Generator{MinLen: 5, MaxLen: 20, Distinct: 1000, Src: rand.NewSource(100)}
	c.Check(gen1.Generate(20), check.Not(check.DeepEquals), gen3.Generate(20))
}

func (s *randseqSuite) TestNegativeSizes(c *check.C) {
	gen := Generator{MinLen: -5, MaxLen: 3, Distinct: 4, Src: rand.NewSource(1)}
	c.Check(gen.Generate(-1), check.HasLen, 0)
	for _, seq := range gen.Generate(200) {
		c.Check(len(seq.Values) <= 3, check.Equals, true)
	}
	gen = Generator{MinLen: -5, MaxLen: -2, Src: rand.NewSource(1)}
	for _, seq := range gen.Generate(20) {
		c.Check(seq.Values, check.HasLen, 0)
	}
}

func (s *randseqSuite) TestBounds(c *check.C) {
	for _, trial := range []struct {
		minLen, maxLen int
		distinct       int64
	}{
		{0, 0, 5},
		{3, 3, 1},
		{0, 10, 2},
		{10, 4, 7},
		{1, 30, 0},
	} {
		c.Logf("=== %v", trial)
		gen := Generator{MinLen: trial.minLen, MaxLen: trial.maxLen, Distinct: trial.distinct, Src: rand.NewSource(1)}
		lens := map[int]bool{}
		for i, seq := range gen.Generate(500) {
			c.Check(seq.Name, check.Equals, fmt.Sprintf("rand%d", i+1))
			n := len(seq.Values)
			lens[n] = true
			c.Check(n >= trial.minLen, check.Equals, true)
			c.Check(n <= trial.maxLen || (trial.maxLen < trial.minLen && n == trial.minLen), check.Equals, true)
			for _, v := range seq.Values {
				if trial.distinct > 0 {
					c.Check(v >= 0 && v < trial.distinct, check.Equals, true, check.Commentf("%d", v))
				} else {
					c.Check(v >= math.MinInt32 && v <= math.MaxInt32, check.Equals, true, check.Commentf("%d", v))
				}
			}
		}
		if trial.maxLen > trial.minLen {
			// every length in range is drawn eventually
			c.Check(lens, check.HasLen, trial.maxLen-trial.minLen+1)
		}
	}
}

