// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package lis

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

type benchcmd struct{}

type benchRow struct {
	N         int
	LogLinear time.Duration // mean time per sequence
	Quadratic time.Duration // zero if not measured
}

func (cmd *benchcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	minLen := flags.Int("min-len", 1000, "shortest sequence length")
	maxLen := flags.Int("max-len", 128000, "longest sequence length (lengths double from -min-len)")
	quadraticMaxLen := flags.Int("quadratic-max-len", 16000, "do not run the quadratic engine on sequences longer than `N`")
	reps := flags.Int("reps", 3, "sequences per length")
	distinct := flags.Int64("distinct", 0, "number of distinct values (0 = int32 range)")
	seed := flags.Uint64("seed", 0, "random `seed` (0 = choose one)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if *minLen < 1 || *reps < 1 {
		err = fmt.Errorf("-min-len and -reps must be positive")
		return 2
	}
	if *seed == 0 {
		*seed = rand.Uint64()
	}
	log.Printf("benchmark seed %d", *seed)

	src := rand.NewSource(*seed)
	var rows []benchRow
	for n := *minLen; n <= *maxLen; n *= 2 {
		gen := Generator{MinLen: n, MaxLen: n, Distinct: *distinct, Src: src}
		var row benchRow
		row, err = benchLength(gen.Generate(*reps), n <= *quadraticMaxLen)
		if err != nil {
			return 1
		}
		log.Debugf("n=%d loglinear %v quadratic %v", n, row.LogLinear, row.Quadratic)
		rows = append(rows, row)
	}

	bufw := bufio.NewWriter(stdout)
	fmt.Fprintf(bufw, "%10s %16s %16s\n", "n", "loglinear", "quadratic")
	for _, row := range rows {
		q := "-"
		if row.Quadratic > 0 {
			q = row.Quadratic.String()
		}
		fmt.Fprintf(bufw, "%10d %16s %16s\n", row.N, row.LogLinear, q)
	}
	fmt.Fprintf(bufw, "growth exponent: loglinear %.3f, quadratic %.3f\n",
		growthExponent(rows, func(r benchRow) time.Duration { return r.LogLinear }),
		growthExponent(rows, func(r benchRow) time.Duration { return r.Quadratic }))
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	return 0
}

// benchLength times both engines on seqs (all of the same length),
// and returns an error if they disagree.
func benchLength(seqs []Sequence, quadratic bool) (benchRow, error) {
	row := benchRow{N: len(seqs[0].Values)}
	lengths := make([]int, len(seqs))
	t0 := time.Now()
	for i, seq := range seqs {
		lengths[i] = Length(seq.Values)
	}
	row.LogLinear = time.Since(t0) / time.Duration(len(seqs))
	if !quadratic {
		return row, nil
	}
	t0 = time.Now()
	for i, seq := range seqs {
		if q := LengthQuadratic(seq.Values); q != lengths[i] {
			return row, fmt.Errorf("%s: quadratic engine says %d, loglinear engine says %d", seq.Name, q, lengths[i])
		}
	}
	row.Quadratic = time.Since(t0) / time.Duration(len(seqs))
	return row, nil
}

// growthExponent fits time = c * n^k to the rows where duration is
// non-zero, and returns k (NaN if fewer than 2 rows qualify).
func growthExponent(rows []benchRow, duration func(benchRow) time.Duration) float64 {
	var x, y []float64
	for _, row := range rows {
		if d := duration(row); d > 0 {
			x = append(x, math.Log(float64(row.N)))
			y = append(y, math.Log(float64(d)))
		}
	}
	if len(x) < 2 {
		return math.NaN()
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}
